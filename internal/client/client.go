package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/open-foundation-team/apple-music-remote/internal/player"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
	"github.com/open-foundation-team/apple-music-remote/internal/registry"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// Client talks to one remote server.
type Client struct {
	host     string
	httpPort int
	wsPort   int
	token    string

	httpc *http.Client
}

// New creates a client for the server at host. The token may be empty
// when the server runs with authentication disabled; wsPort is only
// needed for Connect.
func New(host string, httpPort, wsPort int, token string) *Client {
	return &Client{
		host:     host,
		httpPort: httpPort,
		wsPort:   wsPort,
		token:    token,
		httpc:    &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout overrides the HTTP request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpc.Timeout = timeout
}

// APIError is a non-2xx answer from the server, carrying the message
// from its structured error body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Info fetches the server identity. Works without a token.
func (c *Client) Info() (*protocol.ServerIdentity, error) {
	var identity protocol.ServerIdentity
	if err := c.call("GET", "/api/info", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Ping checks the server is reachable. Works without a token.
func (c *Client) Ping() error {
	return c.call("GET", "/api/ping", nil, nil)
}

// State fetches the latest playback snapshot.
func (c *Client) State() (*player.Snapshot, error) {
	var snap player.Snapshot
	if err := c.call("GET", "/api/state", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Health fetches the server's client activity summary.
func (c *Client) Health() (*registry.Summary, error) {
	var summary registry.Summary
	if err := c.call("GET", "/api/health", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Do executes one transport action.
func (c *Client) Do(action player.Action) error {
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", action)
	}
	return c.call("POST", "/api/"+string(action), nil, nil)
}

// Volume reads the volume of the selected target.
func (c *Client) Volume(target player.VolumeTarget) (int, error) {
	path, err := volumePath(target)
	if err != nil {
		return 0, err
	}
	var payload struct {
		Volume int `json:"volume"`
	}
	if err := c.call("GET", path, nil, &payload); err != nil {
		return 0, err
	}
	return payload.Volume, nil
}

// SetVolume writes the volume of the selected target.
func (c *Client) SetVolume(target player.VolumeTarget, volume int) error {
	path, err := volumePath(target)
	if err != nil {
		return err
	}
	return c.call("POST", path, map[string]int{"volume": volume}, nil)
}

func volumePath(target player.VolumeTarget) (string, error) {
	switch target {
	case player.TargetMusic:
		return "/api/volume", nil
	case player.TargetSystem:
		return "/api/system-volume", nil
	default:
		return "", fmt.Errorf("unknown volume target %q", target)
	}
}

// call performs one request/response exchange. A 2xx answer decodes
// into out when out is non-nil; anything else decodes the structured
// error body into an *APIError.
func (c *Client) call(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := "http://" + net.JoinHostPort(c.host, strconv.Itoa(c.httpPort)) + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
