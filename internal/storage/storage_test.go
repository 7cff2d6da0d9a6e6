package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UnendingLoop/CrystalUpscaler/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

const accessDenied = `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`

// fakeS3 answers bucket HEAD requests with headStatus and counts them.
func fakeS3(t *testing.T, headStatus int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var heads atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["location"]; ok {
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><LocationConstraint>us-east-1</LocationConstraint>`))
			return
		}
		if r.Method == http.MethodHead {
			heads.Add(1)
			w.WriteHeader(headStatus)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(accessDenied))
	}))
	t.Cleanup(srv.Close)
	return srv, &heads
}

func fastStrategy(t *testing.T, attempts int, delay time.Duration) {
	t.Helper()
	prev := connectStrategy
	connectStrategy = retry.Strategy{Attempts: attempts, Delay: delay, Backoff: 1}
	t.Cleanup(func() { connectStrategy = prev })
}

func mirrorConfig(srv *httptest.Server) config.MirrorConfig {
	return config.MirrorConfig{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		User:     "user",
		Pass:     "password",
		Bucket:   "results",
	}
}

func TestNewImgMirror_Disabled(t *testing.T) {
	m, err := NewImgMirror(context.Background(), config.MirrorConfig{})
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestNewImgMirror_Connects(t *testing.T) {
	fastStrategy(t, 3, time.Millisecond)
	srv, heads := fakeS3(t, http.StatusOK)

	m, err := NewImgMirror(context.Background(), mirrorConfig(srv))
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, int64(1), heads.Load())
}

func TestNewImgMirror_GivesUpAfterAttempts(t *testing.T) {
	fastStrategy(t, 3, time.Millisecond)
	srv, heads := fakeS3(t, http.StatusForbidden)

	m, err := NewImgMirror(context.Background(), mirrorConfig(srv))
	require.Error(t, err)
	require.Nil(t, m)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, int64(3), heads.Load())
}

func TestNewImgMirror_CanceledContext(t *testing.T) {
	fastStrategy(t, 5, time.Hour)
	srv, heads := fakeS3(t, http.StatusForbidden)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	m, err := NewImgMirror(ctx, mirrorConfig(srv))
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, m)
	require.Less(t, time.Since(start), time.Minute)
	require.LessOrEqual(t, heads.Load(), int64(1))
}
