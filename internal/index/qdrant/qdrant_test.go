package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/domain"
)

type fakePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant implements the subset of the REST API the store uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]map[string]fakePoint
	aliases     map[string]string
	failUpsert  bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string]map[string]fakePoint{}, aliases: map[string]string{}}
}

func (f *fakeQdrant) resolve(name string) (map[string]fakePoint, bool) {
	if target, ok := f.aliases[name]; ok {
		name = target
	}
	c, ok := f.collections[name]
	return c, ok
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/aliases":
		var list []map[string]string
		for a, c := range f.aliases {
			list = append(list, map[string]string{"alias_name": a, "collection_name": c})
		}
		writeResult(w, map[string]any{"aliases": list})

	case r.Method == http.MethodPost && r.URL.Path == "/collections/aliases":
		var body struct {
			Actions []struct {
				Create *struct {
					Collection string `json:"collection_name"`
					Alias      string `json:"alias_name"`
				} `json:"create_alias"`
				Delete *struct {
					Alias string `json:"alias_name"`
				} `json:"delete_alias"`
			} `json:"actions"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, a := range body.Actions {
			if a.Delete != nil {
				delete(f.aliases, a.Delete.Alias)
			}
			if a.Create != nil {
				f.aliases[a.Create.Alias] = a.Create.Collection
			}
		}
		writeResult(w, true)

	case len(parts) == 2 && r.Method == http.MethodPut:
		f.collections[parts[1]] = map[string]fakePoint{}
		writeResult(w, true)

	case len(parts) == 2 && r.Method == http.MethodDelete:
		if _, ok := f.collections[parts[1]]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.collections, parts[1])
		writeResult(w, true)

	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		if f.failUpsert {
			http.Error(w, "disk full", http.StatusInternalServerError)
			return
		}
		c, ok := f.resolve(parts[1])
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Points []fakePoint `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			c[p.ID] = p
		}
		writeResult(w, true)

	case len(parts) == 4 && parts[2] == "points" && r.Method == http.MethodGet:
		c, ok := f.resolve(parts[1])
		if !ok {
			http.NotFound(w, r)
			return
		}
		p, ok := c[parts[3]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeResult(w, p)

	case len(parts) == 4 && parts[3] == "search" && r.Method == http.MethodPost:
		c, ok := f.resolve(parts[1])
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		type hit struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var hits []hit
		for _, p := range c {
			if p.Payload["kind"] != "chunk" {
				continue
			}
			hits = append(hits, hit{Score: cos(p.Vector, body.Vector), Payload: p.Payload})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > body.Limit {
			hits = hits[:body.Limit]
		}
		writeResult(w, hits)

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
	}
}

func writeResult(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": v, "status": "ok"})
}

func cos(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func newTestStore(t *testing.T) (*Store, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStore(Config{URL: srv.URL + "/", CollectionPrefix: "cw_"}), fake
}

func fixture() (domain.IndexManifest, []domain.RetrievalChunk, [][]float32) {
	return domain.IndexManifest{Embedder: "test", Dimension: 2, Chunks: 2},
		[]domain.RetrievalChunk{
			{ID: "clause-0-0", Content: "indemnify", Categories: []string{"indemnity"}},
			{ID: "clause-1-0", Content: "new york law", Categories: []string{"governing_law", "other"}, ClauseIndex: 1},
		},
		[][]float32{{1, 0}, {0, 1}}
}

func TestReplaceManifestAndSearch(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	manifest, chunks, vectors := fixture()

	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))

	got, ok, err := s.Manifest(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, manifest, got)

	res, err := s.Search(ctx, "alpha", []float32{0.1, 0.9}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "clause-1-0", res[0].ID)
	assert.Equal(t, []string{"governing_law", "other"}, res[0].Categories)
	assert.Equal(t, 1, res[0].ClauseIndex)

	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks[:1], vectors[:1]))
	assert.Len(t, fake.collections, 1, "old collection must be deleted after the alias moves")
}

func TestFailedReplaceKeepsOldIndex(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	manifest, chunks, vectors := fixture()
	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))

	fake.mu.Lock()
	fake.failUpsert = true
	fake.mu.Unlock()
	require.Error(t, s.Replace(ctx, "alpha", manifest, chunks[:1], vectors[:1]))

	res, err := s.Search(ctx, "alpha", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.Len(t, fake.collections, 1)
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.Manifest(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Search(ctx, "ghost", []float32{1, 0}, 3)
	var ue *domain.UninitializedSessionError
	assert.ErrorAs(t, err, &ue)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	manifest, chunks, vectors := fixture()
	require.NoError(t, s.Replace(ctx, "alpha", manifest, chunks, vectors))

	require.NoError(t, s.Drop(ctx, "alpha"))
	assert.Empty(t, fake.collections)
	assert.Empty(t, fake.aliases)
	require.NoError(t, s.Drop(ctx, "alpha"))
}
