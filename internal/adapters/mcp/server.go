// Package mcpadapter exposes retrieval, question answering and trajectory
// export as MCP tools.
package mcpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const (
	serverName    = "well-report-rag"
	serverVersion = "0.1.0"
)

var ErrMissingQueryService = errors.New("mcp: query service is required")

// Ports aggregates the inbound services the tools call.
type Ports struct {
	Query        ports.QueryService
	Retriever    ports.Retriever
	Trajectories ports.TrajectoryService
}

func (p Ports) validate() error {
	if p.Query == nil || p.Retriever == nil || p.Trajectories == nil {
		return ErrMissingQueryService
	}
	return nil
}

type Server struct {
	ports Ports
	mcp   *server.MCPServer
}

func NewServer(p Ports) (*Server, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s := &Server{
		ports: p,
		mcp: server.NewMCPServer(serverName, serverVersion,
			server.WithToolCapabilities(false),
			server.WithInstructions("Answers questions about geothermal well reports with cited evidence."),
		),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over the given streams until ctx is cancelled.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// Handler serves MCP over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}
