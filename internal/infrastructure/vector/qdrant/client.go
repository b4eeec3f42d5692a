package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/resilience"
)

const (
	payloadChunkID = "chunk_id"
	payloadContent = "content"
	upsertBatch    = 256
)

// pointNamespace derives stable point ids from chunk ids, so re-indexing a chunk overwrites its point.
var pointNamespace = uuid.MustParse("6f1c1c4e-8d3a-4b8e-9a57-2f7f4a1b9c10")

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		ensured:    make(map[string]int),
	}
}

// PointID maps a chunk id onto the UUID qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Upsert(ctx context.Context, collection string, entries []domain.IndexEntry, vectors [][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert",
			fmt.Errorf("entries/vectors mismatch: %d != %d", len(entries), len(vectors)))
	}

	if err := c.ensureCollection(ctx, collection, len(vectors[0])); err != nil {
		return err
	}

	for start := 0; start < len(entries); start += upsertBatch {
		end := min(start+upsertBatch, len(entries))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			payload := make(map[string]any, len(entries[i].Metadata)+2)
			for k, v := range entries[i].Metadata {
				payload[k] = v
			}
			payload[payloadChunkID] = entries[i].ID
			payload[payloadContent] = entries[i].Content
			points = append(points, point{
				ID:      PointID(entries[i].ID),
				Vector:  vectors[i],
				Payload: payload,
			})
		}

		url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collection)
		err := c.run(ctx, "qdrant.upsert", func(callCtx context.Context) error {
			_, err := c.doJSON(callCtx, http.MethodPut, url, map[string]any{"points": points}, nil, "upsert")
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Search returns the nearest entries with distance 1-score. A missing collection
// has no hits.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.SemanticHit, error) {
	if limit <= 0 {
		return []domain.SemanticHit{}, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	var status int
	err := c.run(ctx, "qdrant.search", func(callCtx context.Context) error {
		var err error
		status, err = c.doJSON(callCtx, http.MethodPost, url, reqBody, &searchResp, "search")
		return err
	})
	if status == http.StatusNotFound {
		return []domain.SemanticHit{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.SemanticHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.SemanticHit{
			Entry:    entryFromPayload(r.Payload),
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

// DeleteDocument removes every point whose payload names the document. A missing
// collection has nothing to delete.
func (c *Client) DeleteDocument(ctx context.Context, collection, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   domain.MetaDocumentID,
				"match": map[string]any{"value": documentID},
			}},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, collection)
	var status int
	err := c.run(ctx, "qdrant.delete", func(callCtx context.Context) error {
		var err error
		status, err = c.doJSON(callCtx, http.MethodPost, url, reqBody, nil, "delete")
		return err
	})
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func entryFromPayload(payload map[string]any) domain.IndexEntry {
	meta := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == payloadChunkID || k == payloadContent {
			continue
		}
		meta[k] = v
	}
	return domain.IndexEntry{
		ID:       domain.MetaString(payload, payloadChunkID),
		Content:  domain.MetaString(payload, payloadContent),
		Metadata: meta,
	}
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	var status int
	err := c.run(ctx, "qdrant.ensure_collection", func(callCtx context.Context) error {
		var err error
		status, err = c.doJSON(callCtx, http.MethodPut, url, reqBody, nil, "ensure collection")
		return err
	})
	// 409 when the collection already exists.
	if status == http.StatusConflict {
		c.markCollectionEnsured(collection, vectorSize)
		return nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(collection, vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(collection string, vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[collection] = vectorSize
}

func (c *Client) run(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err == nil {
		return nil
	}
	if classifyQdrantError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrServiceUnavailable, operation, err)
	}
	return err
}

// doJSON returns the response status alongside any error so callers can branch on 404/409.
func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, &StatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return resp.StatusCode, nil
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}
	// Transport failures: connection refused, resets, client timeouts.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
