package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func newChatCommand(a *app) *cobra.Command {
	var well string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask follow-up questions in one conversation",
		Long: `Reads questions line by line. Earlier turns are remembered and offered
as context. Type /clear to forget the conversation and /quit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			cmd.Print("> ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
				case "/quit", "/exit":
					return nil
				case "/clear":
					services.Query.ClearConversation()
					cmd.Println("Conversation cleared.")
				default:
					answer, err := services.Query.Ask(cmd.Context(), domain.AskRequest{Question: line, Well: well})
					if err != nil {
						cmd.PrintErrf("error: %v\n", err)
						break
					}
					printAnswer(cmd, answer)
				}
				cmd.Print("> ")
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVarP(&well, "well", "w", "", "target well name")
	return cmd
}
