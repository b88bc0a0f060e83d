// Package qr encodes invitation URLs as PNG QR codes. Encoding happens
// locally; a remote chart endpoint can be configured as a fallback.
package qr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/eventinvite/eventinvite-go/internal/config"
	"github.com/eventinvite/eventinvite-go/internal/platform/logutil"
)

// maxRemoteBytes caps the fallback response size.
const maxRemoteBytes = 1 << 20

// Generator produces QR code PNGs.
type Generator struct {
	size        int
	fallbackURL string
	client      *http.Client
	logger      *slog.Logger
}

// New creates a generator from QR configuration.
func New(cfg config.QRConfig, logger *slog.Logger) *Generator {
	return &Generator{
		size:        cfg.Size,
		fallbackURL: cfg.FallbackURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logutil.NoopIfNil(logger),
	}
}

// Encode returns a PNG QR code for the given data. Local encoding with
// medium error correction; the remote fallback is used only when local
// encoding fails and a fallback URL is configured.
func (g *Generator) Encode(ctx context.Context, data string) ([]byte, error) {
	png, err := qrcode.Encode(data, qrcode.Medium, g.size)
	if err == nil {
		return png, nil
	}

	if g.fallbackURL == "" {
		return nil, fmt.Errorf("qr encoding failed: %w", err)
	}

	g.logger.Warn("local qr encoding failed, using remote fallback", "error", err)
	return g.fetchRemote(ctx, data)
}

// fetchRemote retrieves the QR PNG from the configured chart endpoint,
// substituting {data} and {size} placeholders.
func (g *Generator) fetchRemote(ctx context.Context, data string) ([]byte, error) {
	endpoint := strings.NewReplacer(
		"{data}", url.QueryEscape(data),
		"{size}", strconv.Itoa(g.size),
	).Replace(g.fallbackURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qr fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qr fallback returned status %d", resp.StatusCode)
	}

	png, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes))
	if err != nil {
		return nil, fmt.Errorf("qr fallback read failed: %w", err)
	}
	return png, nil
}
