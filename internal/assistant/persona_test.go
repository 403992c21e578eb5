package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonaSource_NoURLServesFallback(t *testing.T) {
	p := NewPersonaSource("")
	assert.Contains(t, p.Persona(context.Background()), "full-stack developer")
}

func TestPersonaSource_CachesForTTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("  Remote persona.\n"))
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPersonaSource(srv.URL,
		WithPersonaHTTPClient(srv.Client()),
		WithPersonaTTL(time.Hour),
		WithPersonaClock(func() time.Time { return now }),
	)

	assert.Equal(t, "Remote persona.", p.Persona(context.Background()))
	assert.Equal(t, "Remote persona.", p.Persona(context.Background()))
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(2 * time.Hour)
	p.Persona(context.Background())
	assert.Equal(t, int32(2), hits.Load())
}

func TestPersonaSource_ConcurrentRefreshSharesOneFetch(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("Remote persona."))
	}))
	defer srv.Close()

	p := NewPersonaSource(srv.URL, WithPersonaHTTPClient(srv.Client()))

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Persona(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, r := range results {
		assert.Equal(t, "Remote persona.", r)
	}
}

func TestPersonaSource_Failures(t *testing.T) {
	t.Run("no cache falls back to embedded text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		p := NewPersonaSource(srv.URL, WithPersonaHTTPClient(srv.Client()))
		assert.Equal(t, p.fallback, p.Persona(context.Background()))
	})

	t.Run("stale copy is served after a failed refresh", func(t *testing.T) {
		var fail atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if fail.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte("Remote persona."))
		}))
		defer srv.Close()

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		p := NewPersonaSource(srv.URL,
			WithPersonaHTTPClient(srv.Client()),
			WithPersonaClock(func() time.Time { return now }),
		)
		require.Equal(t, "Remote persona.", p.Persona(context.Background()))

		fail.Store(true)
		now = now.Add(2 * time.Hour)
		assert.Equal(t, "Remote persona.", p.Persona(context.Background()))
	})

	t.Run("empty document is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("   "))
		}))
		defer srv.Close()

		p := NewPersonaSource(srv.URL, WithPersonaHTTPClient(srv.Client()))
		assert.Equal(t, p.fallback, p.Persona(context.Background()))
	})
}

func TestPersonaSource_FailedRefreshBacksOff(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("Remote persona."))
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewPersonaSource(srv.URL,
		WithPersonaHTTPClient(srv.Client()),
		WithPersonaTTL(time.Minute),
		WithPersonaBackoff(30*time.Second),
		WithPersonaClock(func() time.Time { return now }),
	)
	require.Equal(t, "Remote persona.", p.Persona(context.Background()))

	fail.Store(true)
	now = now.Add(2 * time.Minute)
	for range 5 {
		assert.Equal(t, "Remote persona.", p.Persona(context.Background()))
	}
	assert.Equal(t, int32(2), hits.Load(), "one initial fetch and one failed refresh")

	now = now.Add(31 * time.Second)
	fail.Store(false)
	assert.Equal(t, "Remote persona.", p.Persona(context.Background()))
	assert.Equal(t, int32(3), hits.Load())
}

func TestPersonaSource_FailedFirstFetchBacksOff(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewPersonaSource(srv.URL, WithPersonaHTTPClient(srv.Client()))
	for range 3 {
		assert.Equal(t, p.fallback, p.Persona(context.Background()))
	}
	assert.Equal(t, int32(1), hits.Load())
}
