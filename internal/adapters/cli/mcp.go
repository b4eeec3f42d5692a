package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/well-report-rag/internal/adapters/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
	}

	var port int
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server exposing the retrieve_evidence,
ask_question and last_trajectory tools.

The server speaks JSON-RPC over stdio unless --port is given, in which case
it serves streamable HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			services, err := a.open(cmd)
			if err != nil {
				return err
			}
			if services.Warm != nil {
				if err := services.Warm(cmd.Context()); err != nil {
					cmd.PrintErrf("warning: %v\n", err)
				}
			}

			server, err := mcpadapter.NewServer(mcpadapter.Ports{
				Query:        services.Query,
				Retriever:    services.Retriever,
				Trajectories: services.Trajectories,
			})
			if err != nil {
				return err
			}
			if port > 0 {
				return serveHTTP(cmd, server, port)
			}
			return server.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	serve.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(serve)
	return mcpCmd
}

func serveHTTP(cmd *cobra.Command, server *mcpadapter.Server, port int) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-cmd.Context().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	cmd.PrintErrf("MCP server listening on http://localhost%s\n", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
