package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return NewWithOptions(baseURL, genModel, embedModel, Options{})
}

// NewWithOptions builds a client. HTTPTimeout is the hard ceiling of one HTTP call;
// generation deadlines normally come from the request context.
func NewWithOptions(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) run(ctx context.Context, operation string, policy resilience.AttemptPolicy, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.ExecuteWithPolicy(ctx, operation, policy, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	return wrapUnavailableIfNeeded(operation, err)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.run(ctx, "ollama.embed", resilience.AttemptPolicy{}, func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d vectors, got %d", len(texts), len(response.Embeddings))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

type generateOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// Generate runs one non-streaming completion. Attempts time out individually and a
// timed-out attempt is retried with its budget extended by req.TimeoutStep.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.client.genModel
	}
	payload := generateRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			Temperature:   req.Options.Temperature,
			TopP:          req.Options.TopP,
			RepeatPenalty: req.Options.RepeatPenalty,
			NumCtx:        req.Options.NumCtx,
			NumPredict:    req.Options.NumPredict,
		},
	}
	policy := resilience.AttemptPolicy{
		MaxAttempts: req.MaxAttempts,
		Timeout:     req.Timeout,
		TimeoutStep: req.TimeoutStep,
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return g.client.postJSON(callCtx, "/api/generate", payload, &response, "generate")
	}
	if g.client.executor == nil && req.Timeout > 0 {
		call = withTimeout(req.Timeout, call)
	}
	if err := g.client.run(ctx, "ollama.generate."+model, policy, call); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func withTimeout(timeout time.Duration, call func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return call(callCtx)
	}
}
