package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
)

// StateRunning is the only healthy connector or task state.
const StateRunning = "RUNNING"

type TaskState struct {
	ID       int    `json:"id"`
	State    string `json:"state"`
	WorkerID string `json:"worker_id"`
	Trace    string `json:"trace,omitempty"`
}

// Status is the body of GET /connectors/{name}/status.
type Status struct {
	Name      string `json:"name"`
	Connector struct {
		State    string `json:"state"`
		WorkerID string `json:"worker_id"`
	} `json:"connector"`
	Tasks []TaskState `json:"tasks"`
	Type  string      `json:"type"`
}

// Healthy is true when the connector and every one of its tasks are running.
func (s Status) Healthy() bool {
	if s.Connector.State != StateRunning {
		return false
	}
	for _, t := range s.Tasks {
		if t.State != StateRunning {
			return false
		}
	}
	return true
}

// Client is a Kafka Connect REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("connect"),
	}
}

// ListConnectors returns the names of every registered connector.
func (c *Client) ListConnectors(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, nil, &names, "connectors"); err != nil {
		return nil, err
	}
	return names, nil
}

// Status fetches connector and task states for name.
func (c *Client) Status(ctx context.Context, name string) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, nil, &st, "connectors", name, "status"); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertConfig creates or updates the connector described by spec.
func (c *Client) UpsertConfig(ctx context.Context, spec Spec) error {
	body, err := json.Marshal(spec.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config for %s: %w", spec.Name, err)
	}
	c.logger.Info("registering connector", zap.String("connector", spec.Name), zap.Uint32("server_id", spec.ServerID))
	return c.do(ctx, http.MethodPut, body, nil, "connectors", spec.Name, "config")
}

func (c *Client) do(ctx context.Context, method string, body []byte, out any, segments ...string) error {
	endpoint, err := buildURL(c.baseURL, segments...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call connect: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("connect returned error",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)))
		return fmt.Errorf("%s %s returned status %d: %s", method, endpoint, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func buildURL(baseURL string, segments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(append([]string{u.Path}, segments...)...)
	return u.String(), nil
}
