// Package fetch retrieves finished transcript content from the
// conferencing provider: resolving descriptors to meetings, downloading
// caption payloads with a bounded retry budget, and sweeping backlogs of
// completed meetings.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wealthpath/meetscribe/pkg/logging"
)

// DefaultDownloadTimeout bounds a single content download.
const DefaultDownloadTimeout = 30 * time.Second

// maxContentBytes caps a downloaded transcript payload. Caption files for
// even day-long meetings stay well under this.
const maxContentBytes = 32 << 20

// AccessLink is a short-lived download URL issued by the provider.
type AccessLink struct {
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Content is a downloaded transcript payload.
type Content struct {
	Body        string
	ContentType string
}

// Provider issues access links for finished transcripts and serves their
// content. Implementations must be safe for concurrent use.
type Provider interface {
	AccessLink(ctx context.Context, transcriptID string) (AccessLink, error)
	Download(ctx context.Context, link string) (Content, error)
}

// HTTPProviderConfig configures the HTTP provider client.
type HTTPProviderConfig struct {
	BaseURL         string
	APIToken        string
	DownloadTimeout time.Duration
}

// HTTPProvider talks to the conferencing provider's REST API.
type HTTPProvider struct {
	cfg    HTTPProviderConfig
	client *http.Client
	logger logging.Logger
}

// NewHTTPProvider creates a provider client.
func NewHTTPProvider(cfg HTTPProviderConfig, logger logging.Logger) *HTTPProvider {
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
		logger: logger.With(logging.F("component", "provider_client")),
	}
}

// AccessLink requests a fresh download link for the given transcript.
func (p *HTTPProvider) AccessLink(ctx context.Context, transcriptID string) (AccessLink, error) {
	url := fmt.Sprintf("%s/v1/transcripts/%s/access-link", p.cfg.BaseURL, transcriptID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return AccessLink{}, fmt.Errorf("failed to build access link request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return AccessLink{}, fmt.Errorf("access link request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return AccessLink{}, fmt.Errorf("access link request returned %d: %s", resp.StatusCode, string(body))
	}

	var link AccessLink
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return AccessLink{}, fmt.Errorf("failed to decode access link response: %w", err)
	}
	if link.Link == "" {
		return AccessLink{}, fmt.Errorf("provider returned empty access link for transcript %s", transcriptID)
	}

	p.logger.Debug("Access link issued",
		logging.F("transcript_id", transcriptID),
		logging.F("expires_at", link.ExpiresAt))
	return link, nil
}

// Download fetches transcript content from an access link. The link is
// pre-signed, so no auth header is sent.
func (p *HTTPProvider) Download(ctx context.Context, link string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Content{}, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Content{}, fmt.Errorf("download returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return Content{}, fmt.Errorf("failed to read download body: %w", err)
	}

	return Content{
		Body:        string(body),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
	}, nil
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(v string) string {
	base, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(base)
}
