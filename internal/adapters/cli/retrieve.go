package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const snippetChars = 160

func newRetrieveCommand(a *app) *cobra.Command {
	var (
		mode   string
		well   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Show the evidence a question would be answered from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}
			parsed, err := parseModeFlag(mode)
			if err != nil {
				return err
			}
			if parsed == "" {
				parsed = domain.ModeQA
			}

			evidence, err := services.Retriever.Retrieve(cmd.Context(), args[0], parsed, well)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, evidence)
			}
			if len(evidence) == 0 {
				cmd.Println("No evidence found.")
				return nil
			}
			for i, ev := range evidence {
				cmd.Printf("  [%d] %s (%.3f: semantic %.3f, bm25 %.3f)\n", i+1, ev.Citation, ev.Score, ev.SemanticScore, ev.LexicalScore)
				cmd.Printf("      %s\n", snippet(ev.Content()))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "query mode: qa, extract or summary")
	cmd.Flags().StringVarP(&well, "well", "w", "", "restrict to chunks mentioning this well")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print evidence as JSON")
	return cmd
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= snippetChars {
		return text
	}
	return string(r[:snippetChars]) + "..."
}
