package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(deps CommandDependencies) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "대화 기록을 오브젝트 스토리지에 보관합니다",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Histories == nil || deps.Archiver == nil {
				return fmt.Errorf("export requires a configured history store and archiver")
			}

			h, err := deps.Histories.Load(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			if len(h.Messages) == 0 {
				return fmt.Errorf("thread %q has no messages to export", threadID)
			}

			key, err := deps.Archiver.Archive(cmd.Context(), h)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "업로드 완료: %s (%d개 메시지)\n", key, len(h.Messages))
			return nil
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "보관할 대화 스레드 ID")
	_ = cmd.MarkFlagRequired("thread")
	return cmd
}
