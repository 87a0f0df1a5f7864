// Package qdrant stores session indexes in a Qdrant server over its REST API.
//
// Each session is an alias (<prefix><session>) pointing at a concrete collection. Replace
// fills a fresh collection and then moves the alias in one atomic alias operation, so
// searches see either the old or the new index.
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
	"time"

	"github.com/google/uuid"

	"clausewise/internal/domain"
)

const upsertBatchSize = 256

// manifestPointID holds the build manifest; it is excluded from searches.
var manifestPointID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("clausewise/manifest")).String()

var errNotFound = errors.New("not found")

// Store is a minimal REST client to Qdrant using cosine distance.
type Store struct {
	url    string
	apiKey string
	prefix string
	client *http.Client
}

type Config struct {
	URL              string
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		prefix: cfg.CollectionPrefix,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *Store) alias(sessionID string) string { return s.prefix + sessionID }

func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("clausewise/chunk/"+chunkID)).String()
}

func (s *Store) Replace(ctx context.Context, sessionID string, manifest domain.IndexManifest, chunks []domain.RetrievalChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if manifest.Dimension <= 0 {
		return errors.New("invalid dimension")
	}
	alias := s.alias(sessionID)
	collection := alias + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	create := map[string]any{
		"vectors": map[string]any{"size": manifest.Dimension, "distance": "Cosine"},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+collection, create, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	if err := s.fill(ctx, collection, manifest, chunks, vectors); err != nil {
		_ = s.do(ctx, http.MethodDelete, "/collections/"+collection, nil, nil)
		return err
	}

	old, err := s.aliasTarget(ctx, alias)
	if err != nil {
		_ = s.do(ctx, http.MethodDelete, "/collections/"+collection, nil, nil)
		return err
	}
	var actions []map[string]any
	if old != "" {
		actions = append(actions, map[string]any{"delete_alias": map[string]any{"alias_name": alias}})
	}
	actions = append(actions, map[string]any{"create_alias": map[string]any{
		"collection_name": collection,
		"alias_name":      alias,
	}})
	if err := s.do(ctx, http.MethodPost, "/collections/aliases", map[string]any{"actions": actions}, nil); err != nil {
		_ = s.do(ctx, http.MethodDelete, "/collections/"+collection, nil, nil)
		return fmt.Errorf("switch alias: %w", err)
	}
	if old != "" {
		_ = s.do(ctx, http.MethodDelete, "/collections/"+old, nil, nil)
	}
	return nil
}

func (s *Store) fill(ctx context.Context, collection string, manifest domain.IndexManifest, chunks []domain.RetrievalChunk, vectors [][]float32) error {
	points := make([]map[string]any, 0, len(chunks)+1)
	// the manifest point needs a valid non-zero vector for cosine distance
	unit := make([]float32, manifest.Dimension)
	unit[0] = 1
	points = append(points, map[string]any{
		"id":     manifestPointID,
		"vector": unit,
		"payload": map[string]any{
			"kind":      "manifest",
			"embedder":  manifest.Embedder,
			"dimension": manifest.Dimension,
			"chunks":    manifest.Chunks,
		},
	})
	for i, c := range chunks {
		points = append(points, map[string]any{
			"id":     pointID(c.ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"kind":         "chunk",
				"chunk_id":     c.ID,
				"text":         c.Content,
				"categories":   c.Categories,
				"clause_index": c.ClauseIndex,
			},
		})
	}
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		body := map[string]any{"points": points[start:end]}
		if err := s.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}
	return nil
}

// aliasTarget returns the collection behind alias, or "" when the alias does not exist.
func (s *Store) aliasTarget(ctx context.Context, alias string) (string, error) {
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName      string `json:"alias_name"`
				CollectionName string `json:"collection_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/aliases", nil, &resp); err != nil {
		return "", fmt.Errorf("list aliases: %w", err)
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == alias {
			return a.CollectionName, nil
		}
	}
	return "", nil
}

func (s *Store) Manifest(ctx context.Context, sessionID string) (domain.IndexManifest, bool, error) {
	var resp struct {
		Result struct {
			Payload struct {
				Embedder  string `json:"embedder"`
				Dimension int    `json:"dimension"`
				Chunks    int    `json:"chunks"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, "/collections/"+s.alias(sessionID)+"/points/"+manifestPointID, nil, &resp)
	if errors.Is(err, errNotFound) {
		return domain.IndexManifest{}, false, nil
	}
	if err != nil {
		return domain.IndexManifest{}, false, err
	}
	p := resp.Result.Payload
	return domain.IndexManifest{Embedder: p.Embedder, Dimension: p.Dimension, Chunks: p.Chunks}, true, nil
}

func (s *Store) Search(ctx context.Context, sessionID string, vector []float32, topK int) ([]domain.RetrievalChunk, error) {
	if topK <= 0 {
		topK = 3
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{{"key": "kind", "match": map[string]any{"value": "chunk"}}},
		},
	}
	var resp struct {
		Result []struct {
			Score   float32 `json:"score"`
			Payload struct {
				ChunkID     string   `json:"chunk_id"`
				Text        string   `json:"text"`
				Categories  []string `json:"categories"`
				ClauseIndex int      `json:"clause_index"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, "/collections/"+s.alias(sessionID)+"/points/search", req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, &domain.UninitializedSessionError{SessionID: sessionID}
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievalChunk{
			ID:          r.Payload.ChunkID,
			Content:     r.Payload.Text,
			Categories:  r.Payload.Categories,
			ClauseIndex: r.Payload.ClauseIndex,
			Score:       r.Score,
		})
	}
	return results, nil
}

func (s *Store) Drop(ctx context.Context, sessionID string) error {
	alias := s.alias(sessionID)
	target, err := s.aliasTarget(ctx, alias)
	if err != nil || target == "" {
		return err
	}
	actions := []map[string]any{{"delete_alias": map[string]any{"alias_name": alias}}}
	if err := s.do(ctx, http.MethodPost, "/collections/aliases", map[string]any{"actions": actions}, nil); err != nil {
		return fmt.Errorf("delete alias: %w", err)
	}
	if err := s.do(ctx, http.MethodDelete, "/collections/"+target, nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, path, errNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
