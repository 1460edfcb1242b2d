package rootapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/plexsphere/rootd/internal/rootaccess"
)

// Client calls the toggle endpoint over its Unix socket.
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient creates a Client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
				DisableKeepAlives: true,
			},
		},
	}
}

// Enabled returns the current toggle value.
func (c *Client) Enabled(ctx context.Context) (bool, error) {
	var state RootState
	if err := c.do(ctx, http.MethodGet, nil, &state); err != nil {
		return false, err
	}
	return state.Enabled, nil
}

// SetEnabled changes the toggle value.
func (c *Client) SetEnabled(ctx context.Context, enabled bool) error {
	body, err := json.Marshal(setRequest{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("rootapi: client: encode request: %w", err)
	}
	return c.do(ctx, http.MethodPut, body, nil)
}

func (c *Client) do(ctx context.Context, method string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://localhost/v1/root", rd)
	if err != nil {
		return fmt.Errorf("rootapi: client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rootd not running or socket unavailable at %s: %w", c.socketPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("rootapi: client: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er ErrorResponse
		_ = json.Unmarshal(data, &er)
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusForbidden {
			return &rootaccess.PermissionError{Op: er.Op, Reason: er.Error}
		}
		return fmt.Errorf("rootapi: client: %s (status %d)", er.Error, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("rootapi: client: parse response: %w", err)
		}
	}
	return nil
}
