// Package cli is the wellrag command line: local ingestion, questions,
// retrieval, trajectory export, nodal analysis and an MCP server over one SQLite file.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

// Services are the use cases the commands drive.
type Services struct {
	Ingest       ports.DocumentIngestor
	Docs         ports.DocumentReader
	Query        ports.QueryService
	Retriever    ports.Retriever
	Trajectories ports.TrajectoryService
	Nodal        ports.NodalAnalyzer
	Warm         func(ctx context.Context) error
}

// ServiceFactory opens the services on first use. The returned func releases them.
type ServiceFactory func(ctx context.Context) (*Services, func(), error)

var errNotConfigured = errors.New("services not configured")

type app struct {
	factory  ServiceFactory
	services *Services
	release  func()
}

func (a *app) open(cmd *cobra.Command) (*Services, error) {
	if a.services != nil {
		return a.services, nil
	}
	if a.factory == nil {
		return nil, errNotConfigured
	}
	services, release, err := a.factory(cmd.Context())
	if err != nil {
		return nil, err
	}
	a.services, a.release = services, release
	return services, nil
}

func (a *app) close() {
	if a.release != nil {
		a.release()
		a.release = nil
	}
}

// NewRootCommand builds the command tree. Services are opened lazily so that
// help and flag errors never touch the database.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	a := &app{factory: factory}
	root := &cobra.Command{
		Use:           "wellrag",
		Short:         "Question answering over geothermal well reports",
		Long:          "wellrag indexes well reports and answers questions about them with cited evidence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIngestCommand(a),
		newAskCommand(a),
		newRetrieveCommand(a),
		newTrajectoryCommand(a),
		newNodalCommand(a),
		newChatCommand(a),
		newWarmCommand(a),
		newMCPCommand(a),
	)
	return root
}

// Execute runs the command line and releases opened services on every path.
func Execute(ctx context.Context, factory ServiceFactory, args []string) error {
	root := NewRootCommand(factory)
	root.SetOut(os.Stdout)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
