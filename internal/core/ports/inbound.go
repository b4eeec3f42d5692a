package ports

import (
	"context"
	"io"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// QueryService answers questions over the indexed reports.
type QueryService interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
	ClearConversation()
}

// Retriever returns fused, ranked evidence for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, mode domain.Mode, well string) ([]domain.Evidence, error)
}

// TrajectoryService exposes the most recently extracted trajectory.
type TrajectoryService interface {
	LastTrajectory() (domain.Trajectory, bool)
}

// NodalAnalyzer runs nodal analysis over the most recently extracted trajectory.
type NodalAnalyzer interface {
	Analyze(ctx context.Context) (*domain.NodalResult, error)
}
