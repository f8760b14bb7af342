package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storepilot/merchant-advisor/internal/application/resolver"
)

func newResolveCmd(deps CommandDependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve \"<가게 이름 또는 문장>\"",
		Short: "자유 텍스트에서 가맹점을 식별합니다",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Resolver == nil {
				return fmt.Errorf("resolve requires a configured resolver")
			}

			res, err := deps.Resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			switch res.Kind {
			case resolver.KindResolved:
				m := res.Merchant
				fmt.Fprintf(out, "식별됨: %s (%s)\n", m.Name, m.MerchantID)
				fmt.Fprintf(out, "  업종: %s / 상권: %s / 기준월: %s\n", m.Industry, m.TradeAreaKey, m.Period)
			case resolver.KindNeedsClarification:
				fmt.Fprintf(out, "%d개의 후보가 있습니다:\n", len(res.Candidates))
				for i, c := range res.Candidates {
					fmt.Fprintf(out, "  %d. %s (%s, %s) [%s]\n", i+1, c.Name, c.Industry, c.Address, c.MerchantID)
				}
			default:
				fmt.Fprintln(out, "일치하는 가맹점이 없습니다.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "결과를 JSON으로 출력")
	return cmd
}
