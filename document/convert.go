package document

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/omniscale/mapent"
	"github.com/pkg/errors"
)

var ErrConversionUnavailable = errors.New("conversion server not configured")

// Converter fetches documents converted to another format from the
// conversion server (convertit API).
type Converter struct {
	serverURL string
	client    *http.Client
}

func NewConverter(serverURL string) *Converter {
	return &Converter{
		serverURL: serverURL,
		client:    newServiceClient(),
	}
}

func newServiceClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			Dial: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 1 * time.Second,
			}).Dial,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Convert fetches docURL converted to the target media type. It
// returns the converted document and its media type.
func (c *Converter) Convert(ctx context.Context, docURL, to string) ([]byte, string, error) {
	if c.serverURL == "" {
		return nil, "", ErrConversionUnavailable
	}
	params := url.Values{}
	params.Set("url", docURL)
	params.Set("to", to)
	req, err := http.NewRequestWithContext(ctx, "GET", c.serverURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "mapent "+mapent.Version)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, "", errors.Errorf("conversion server returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
