package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd(deps CommandDependencies) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search \"<검색어>\"",
		Short: "웹 검색 파이프라인을 직접 실행합니다",
		Long: "상담 턴이 수집했을 웹 문서를 직접 확인합니다. 질의 재작성, 공급자\n" +
			"폴백, 재순위까지 동일한 파이프라인을 탑니다.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Web == nil {
				return fmt.Errorf("search requires a configured web provider")
			}

			resp, err := deps.Web.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "공급자: %s / 문서 %d건\n\n", resp.ProviderUsed, len(resp.Docs))
			for i, d := range resp.Docs {
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, d.Title, d.URL)
				if d.Snippet != "" {
					fmt.Fprintf(out, "   %s\n", d.Snippet)
				}
				if !d.PublishedAt.IsZero() {
					fmt.Fprintf(out, "   (%s)\n", d.PublishedAt.Format("2006-01-02"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "결과를 JSON으로 출력")
	return cmd
}
