package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storepilot/merchant-advisor/internal/application/advisory"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

func newChatCmd(deps CommandDependencies) *cobra.Command {
	var (
		threadID   string
		merchantID string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "chat \"<질문>\"",
		Short: "한 턴의 상담을 실행합니다",
		Long: "지정한 스레드에서 상담 한 턴을 실행합니다. 같은 --thread 값을 다시\n" +
			"사용하면 이전 대화 맥락이 이어집니다.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Orchestrator == nil {
				return fmt.Errorf("chat requires a configured orchestrator")
			}

			result := deps.Orchestrator.RunTurn(cmd.Context(), advisory.TurnRequest{
				ThreadID:   threadID,
				UserQuery:  args[0],
				MerchantID: merchantID,
			})

			deps.Logger.Debug("turn finished",
				logging.String("turn_id", result.TurnID),
				logging.String("status", result.Status.String()))

			if asJSON {
				return printJSON(cmd, result)
			}
			printTurnResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "default", "대화 스레드 ID")
	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "가맹점 코드 (후보 선택 응답용)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "결과를 JSON으로 출력")
	return cmd
}

func printTurnResult(cmd *cobra.Command, result advisory.TurnResult) {
	out := cmd.OutOrStdout()

	switch result.Status {
	case types.TurnStatusNeedClarify:
		fmt.Fprintln(out, "어느 가게를 말씀하시는지 선택해 주세요:")
		for i, c := range result.Candidates {
			fmt.Fprintf(out, "  %d. %s (%s, %s) [%s]\n", i+1, c.Name, c.Industry, c.Address, c.MerchantID)
		}
		fmt.Fprintln(out, "\n다시 실행할 때 --merchant <코드> 로 선택할 수 있습니다.")
	case types.TurnStatusError:
		fmt.Fprintln(out, result.Error)
	default:
		fmt.Fprintln(out, result.FinalResponse)
		if len(result.Actions) > 0 {
			fmt.Fprintln(out, "\n제안 액션:")
			for _, a := range result.Actions {
				fmt.Fprintf(out, "  - %s\n", a)
			}
		}
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "(일부 데이터 소스 제한: %s)\n", strings.Join(result.Errors, "; "))
	}
}
