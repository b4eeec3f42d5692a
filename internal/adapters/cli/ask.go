package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/usecase"
)

type askFlags struct {
	mode       string
	well       string
	noValidate bool
	compare    bool
	json       bool
}

func newAskCommand(a *app) *cobra.Command {
	var flags askFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question with citations",
		Long: `Retrieves evidence with hybrid semantic and BM25 search, generates a cited
answer and validates it with the configured judge models.

The mode is detected from the question unless --mode is given:
  qa       factual questions (default)
  extract  trajectory extraction
  summary  structured well summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}
			if flags.compare {
				return runCompare(cmd, services, args[0], flags)
			}
			return runAsk(cmd, services, args[0], flags)
		},
	}
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "query mode: qa, extract or summary")
	cmd.Flags().StringVarP(&flags.well, "well", "w", "", "target well name")
	cmd.Flags().BoolVar(&flags.noValidate, "no-validate", false, "skip multi-model validation")
	cmd.Flags().BoolVar(&flags.compare, "compare", false, "answer in qa and summary modes and cross-check their numbers")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the answer as JSON")
	return cmd
}

func parseModeFlag(raw string) (domain.Mode, error) {
	if raw == "" {
		return "", nil
	}
	return domain.ParseMode(raw)
}

func runAsk(cmd *cobra.Command, services *Services, question string, flags askFlags) error {
	mode, err := parseModeFlag(flags.mode)
	if err != nil {
		return err
	}
	answer, err := services.Query.Ask(cmd.Context(), domain.AskRequest{
		Question:       question,
		Mode:           mode,
		Well:           flags.well,
		SkipValidation: flags.noValidate,
	})
	if err != nil {
		return err
	}
	if flags.json {
		return printJSON(cmd, answer)
	}
	printAnswer(cmd, answer)
	return nil
}

func runCompare(cmd *cobra.Command, services *Services, question string, flags askFlags) error {
	var texts []string
	for _, mode := range []domain.Mode{domain.ModeQA, domain.ModeSummary} {
		answer, err := services.Query.Ask(cmd.Context(), domain.AskRequest{
			Question:       question,
			Mode:           mode,
			Well:           flags.well,
			SkipValidation: true,
		})
		if err != nil {
			return fmt.Errorf("%s answer: %w", mode, err)
		}
		cmd.Printf("=== %s ===\n", strings.ToUpper(string(mode)))
		cmd.Println(answer.Text)
		cmd.Println()
		texts = append(texts, answer.Text)
	}

	report := usecase.CrossCheckFacts(texts)
	if flags.json {
		return printJSON(cmd, report)
	}
	cmd.Println(report.String())
	return nil
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, ev := range answer.Sources {
			cmd.Printf("  [%d] %s (%.2f)\n", i+1, ev.Citation, ev.Score)
		}
	}
	if answer.Diagnostic != "" {
		cmd.Println()
		cmd.Printf("Diagnostic: %s\n", answer.Diagnostic)
	}
	cmd.Printf("\n(%s mode, %.1fs)\n", answer.Mode, answer.Duration.Seconds())
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
