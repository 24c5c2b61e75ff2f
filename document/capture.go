package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/omniscale/mapent"
	"github.com/pkg/errors"
)

var ErrCaptureUnavailable = errors.New("capture server not configured")

// Capturer fetches map screenshots from the capture server.
type Capturer struct {
	serverURL string
	size      int
	maxRatio  float64
	client    *http.Client
}

func NewCapturer(serverURL string, size int, maxRatio float64) *Capturer {
	return &Capturer{
		serverURL: serverURL,
		size:      size,
		maxRatio:  maxRatio,
		client:    newServiceClient(),
	}
}

// Size returns the capture dimensions for a requested aspect ratio.
// The longer side uses the configured capture size, the ratio is
// clamped to the configured maximum.
func (c *Capturer) Size(ratio float64) (width, height int) {
	if ratio <= 0 {
		ratio = 1
	}
	if ratio > c.maxRatio {
		ratio = c.maxRatio
	}
	if ratio < 1/c.maxRatio {
		ratio = 1 / c.maxRatio
	}
	if ratio >= 1 {
		return c.size, int(float64(c.size) / ratio)
	}
	return int(float64(c.size) * ratio), c.size
}

// Capture fetches a PNG screenshot of printURL.
func (c *Capturer) Capture(ctx context.Context, printURL string, width, height int) ([]byte, error) {
	if c.serverURL == "" {
		return nil, ErrCaptureUnavailable
	}
	params := url.Values{}
	params.Set("url", printURL)
	params.Set("width", strconv.Itoa(width))
	params.Set("height", strconv.Itoa(height))
	req, err := http.NewRequestWithContext(ctx, "GET", c.serverURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "mapent "+mapent.Version)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, errors.Errorf("capture server returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// CaptureTo stores a screenshot at dest. The file is written under a
// temporary name first so readers never see partial captures.
func (c *Capturer) CaptureTo(ctx context.Context, dest, printURL string, width, height int) error {
	content, err := c.Capture(ctx, printURL, width, height)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	tmpDest := fmt.Sprintf("%s~%d", dest, os.Getpid())
	if err := os.WriteFile(tmpDest, content, 0644); err != nil {
		return err
	}
	return os.Rename(tmpDest, dest)
}
