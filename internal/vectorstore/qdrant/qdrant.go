// Package qdrant is a vector store backend speaking the Qdrant REST API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"pdfchat/internal/domain"
	"pdfchat/internal/vectorstore"
)

const (
	defaultTimeout = 15 * time.Second
	defaultRetries = 3
	retryBase      = 100 * time.Millisecond
)

// pointNamespace scopes the UUIDs derived from chunk ids.
var pointNamespace = uuid.MustParse("9d3c1a62-4f0e-4b7a-9a43-2f3a8f7c5e11")

// Config contains connection details for a Qdrant server.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	// Dimension is the vector size collections are created with.
	Dimension int
}

// Storage is a REST client to Qdrant. Collections use cosine distance.
type Storage struct {
	client     *resty.Client
	dimension  int
	maxRetries uint64
	retryBase  time.Duration
}

var _ vectorstore.Backend = (*Storage)(nil)

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant: vector dimension must be greater than zero")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("qdrant: url is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultRetries
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	return &Storage{
		client:     client,
		dimension:  cfg.Dimension,
		maxRetries: uint64(retries),
		retryBase:  retryBase,
	}, nil
}

type apiError struct {
	Status struct {
		Error string `json:"error"`
	} `json:"status"`
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type searchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *Storage) CreateCollection(ctx context.Context, name string, distance vectorstore.Distance) (vectorstore.Collection, error) {
	if distance == "" {
		distance = vectorstore.Cosine
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, name, "/collections/{name}", body, nil); err != nil {
		return vectorstore.Collection{}, err
	}
	return vectorstore.Collection{Name: name, Distance: distance}, nil
}

func (s *Storage) GetCollection(ctx context.Context, name string) (vectorstore.Collection, error) {
	var info collectionInfo
	if err := s.do(ctx, http.MethodGet, name, "/collections/{name}", nil, &info); err != nil {
		return vectorstore.Collection{}, err
	}
	return vectorstore.Collection{Name: name, Distance: vectorstore.Cosine}, nil
}

func (s *Storage) DeleteCollection(ctx context.Context, name string) error {
	var out struct {
		Result bool `json:"result"`
	}
	if err := s.do(ctx, http.MethodDelete, name, "/collections/{name}", nil, &out); err != nil {
		return err
	}
	if !out.Result {
		return domain.NewIndexError(domain.KindNotFound, name, nil)
	}
	return nil
}

func (s *Storage) ListCollections(ctx context.Context) ([]string, error) {
	var out struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "", "/collections", nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Result.Collections))
	for _, c := range out.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *Storage) Count(ctx context.Context, name string) (int, error) {
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := s.do(ctx, http.MethodPost, name, "/collections/{name}/points/count", body, &out); err != nil {
		return 0, err
	}
	return out.Result.Count, nil
}

// Insert stores rec under a UUID derived from the collection and record id.
// An existing point with that UUID is reported as AlreadyExists.
func (s *Storage) Insert(ctx context.Context, name string, rec vectorstore.Record) error {
	if len(rec.Vector) != s.dimension {
		return domain.NewIndexError(domain.KindInvalid, name,
			fmt.Errorf("record %q: vector dimension %d, want %d", rec.ID, len(rec.Vector), s.dimension))
	}
	id := PointID(name, rec.ID)
	var existing struct {
		Result []struct {
			ID any `json:"id"`
		} `json:"result"`
	}
	lookup := map[string]any{"ids": []string{id}, "with_payload": false, "with_vector": false}
	if err := s.do(ctx, http.MethodPost, name, "/collections/{name}/points", lookup, &existing); err != nil {
		return err
	}
	if len(existing.Result) > 0 {
		return domain.NewIndexError(domain.KindAlreadyExists, name, fmt.Errorf("record %q", rec.ID))
	}
	payload := make(map[string]any, len(rec.Metadata)+2)
	for k, v := range rec.Metadata {
		payload[k] = v
	}
	payload["text"] = rec.Text
	payload["chunk_id"] = rec.ID
	body := map[string]any{
		"points": []map[string]any{{
			"id":      id,
			"vector":  rec.Vector,
			"payload": payload,
		}},
	}
	return s.do(ctx, http.MethodPut, name, "/collections/{name}/points?wait=true", body, nil)
}

// Query returns up to k points; distance is 1 - cosine score.
func (s *Storage) Query(ctx context.Context, name string, vector []float32, k int) ([]vectorstore.Match, error) {
	if k <= 0 {
		return []vectorstore.Match{}, nil
	}
	if len(vector) != s.dimension {
		return nil, domain.NewIndexError(domain.KindInvalid, name,
			fmt.Errorf("query dimension %d, want %d", len(vector), s.dimension))
	}
	var out struct {
		Result []searchResult `json:"result"`
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if err := s.do(ctx, http.MethodPost, name, "/collections/{name}/points/search", body, &out); err != nil {
		return nil, err
	}
	matches := make([]vectorstore.Match, 0, len(out.Result))
	for _, r := range out.Result {
		meta := make(map[string]any, len(r.Payload))
		for key, v := range r.Payload {
			meta[key] = v
		}
		text, _ := meta["text"].(string)
		delete(meta, "text")
		id, _ := meta["chunk_id"].(string)
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		delete(meta, "chunk_id")
		matches = append(matches, vectorstore.Match{
			ID:       id,
			Text:     text,
			Distance: 1 - r.Score,
			Metadata: meta,
		})
	}
	return matches, nil
}

// PointID maps a record id to the UUID used as the Qdrant point id.
func PointID(collection, recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(collection+"/"+recordID)).String()
}

// do performs one request, retrying transient failures, and maps the
// response status to a domain.IndexError.
func (s *Storage) do(ctx context.Context, method, name, path string, body, out any) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBase))
	path, query, _ := strings.Cut(path, "?")
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := s.client.R().SetContext(ctx).SetError(&apiError{})
		if query != "" {
			req.SetQueryString(query)
		}
		if name != "" {
			req.SetPathParam("name", name)
		}
		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(domain.NewIndexError(domain.KindTransient, name, err))
		}
		if !resp.IsError() {
			return nil
		}
		ierr := classify(name, resp)
		if ierr.Kind == domain.KindTransient {
			return retry.RetryableError(ierr)
		}
		return ierr
	})
}

func classify(name string, resp *resty.Response) *domain.IndexError {
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Status.Error != "" {
		msg = e.Status.Error
	}
	cause := fmt.Errorf("qdrant %s %s: %s", resp.Request.Method, resp.Request.URL, msg)
	code := resp.StatusCode()
	switch {
	case code == http.StatusNotFound:
		return domain.NewIndexError(domain.KindNotFound, name, cause)
	case code == http.StatusConflict,
		code == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "already exists"):
		return domain.NewIndexError(domain.KindAlreadyExists, name, cause)
	case code == http.StatusTooManyRequests, code >= 500:
		return domain.NewIndexError(domain.KindTransient, name, cause)
	default:
		return domain.NewIndexError(domain.KindInvalid, name, cause)
	}
}
