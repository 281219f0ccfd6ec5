package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthpath/meetscribe/pkg/logging"
)

func TestHTTPProviderAccessLink(t *testing.T) {
	expires := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcripts/tr-1/access-link", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(AccessLink{
			Link:      "https://cdn.test/dl/tr-1",
			ExpiresAt: expires,
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{
		BaseURL:  srv.URL,
		APIToken: "test-token",
	}, logging.NewNopLogger())

	link, err := p.AccessLink(context.Background(), "tr-1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/dl/tr-1", link.Link)
	assert.True(t, link.ExpiresAt.Equal(expires))
}

func TestHTTPProviderAccessLinkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "transcript expired", http.StatusGone)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{BaseURL: srv.URL}, logging.NewNopLogger())

	_, err := p.AccessLink(context.Background(), "tr-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func TestHTTPProviderAccessLinkEmptyLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{BaseURL: srv.URL}, logging.NewNopLogger())

	_, err := p.AccessLink(context.Background(), "tr-1")
	require.Error(t, err)
}

func TestHTTPProviderDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "pre-signed links carry no auth header")
		w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
		_, _ = w.Write([]byte("WEBVTT\n"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{BaseURL: "unused"}, logging.NewNopLogger())

	content, err := p.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", content.Body)
	assert.Equal(t, "text/vtt", content.ContentType, "content type parameters are stripped")
}

func TestHTTPProviderDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{}, logging.NewNopLogger())

	_, err := p.Download(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.True(t, p.ShouldRetry(0))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
	assert.False(t, p.ShouldRetry(4))
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}

	assert.Equal(t, time.Duration(0), p.CalculateBackoff(1))
	assert.Equal(t, time.Second, p.CalculateBackoff(2))
	assert.Equal(t, 2*time.Second, p.CalculateBackoff(3))
	assert.Equal(t, 4*time.Second, p.CalculateBackoff(4))
	assert.Equal(t, 5*time.Second, p.CalculateBackoff(5), "backoff is capped")
}
