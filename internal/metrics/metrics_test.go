package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBuild(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBuild(time.Now(), 7, nil)
	m.ObserveBuild(time.Now(), 3, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexChunksWritten))
}

func TestObserveQuery(t *testing.T) {
	m := NewNop()

	m.ObserveQuery("search", time.Now(), nil)
	m.ObserveQuery("answer", time.Now(), errors.New("no index"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("search", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("answer", "error")))
}

func TestSeparateRegistries(t *testing.T) {
	// registering twice on distinct registries must not panic
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
