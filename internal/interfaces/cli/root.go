// Package cli implements the advisor command line interface.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storepilot/merchant-advisor/internal/application/advisory"
	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/storage/minio"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CommandDependencies aggregates the services the subcommands call. Nil
// optional dependencies disable the commands that need them.
type CommandDependencies struct {
	Logger       logging.Logger
	Orchestrator advisory.Orchestrator
	Resolver     resolver.Resolver
	Web          websearch.Aggregator
	Histories    conversation.HistoryStore
	Archiver     minio.Archiver
}

// NewRootCommand creates the root command with all subcommands mounted.
func NewRootCommand(deps CommandDependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advisor",
		Short: "소상공인 마케팅 상담 CLI",
		Long: "advisor는 가맹점 데이터와 웹 검색을 결합해 소상공인 마케팅 상담을\n" +
			"수행하는 대화형 어시스턴트의 커맨드라인 인터페이스입니다.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newChatCmd(deps),
		newResolveCmd(deps),
		newSearchCmd(deps),
		newExportCmd(deps),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "버전 정보 출력",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "advisor %s (commit: %s, built: %s)\n",
				Version, GitCommit, BuildDate)
		},
	}
}

// printJSON writes data as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
