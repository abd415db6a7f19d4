// Package client talks to the qsec REST API on behalf of the polling agent
// and the one-shot CLI commands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"qsec/internal/models"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorRunes    = 200
)

// FetchError reports a transport failure or a non-2xx response.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client is a thin JSON client for the /api routes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	instanceID string
	token      string
}

// New returns a client for baseURL (e.g. http://localhost:8000/api).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		instanceID: uuid.NewString(),
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// InstanceID identifies this client in the X-QSEC-Agent header.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// Stats fetches the current stat sample.
func (c *Client) Stats(ctx context.Context) (models.StatSample, error) {
	var out models.StatSample
	err := c.getJSON(ctx, "blue.stats", "/blue/stats", nil, &out)
	return out, err
}

// Logs fetches the latest log entries (zero or one in practice), newest first.
func (c *Client) Logs(ctx context.Context) ([]models.LogEntry, error) {
	body, err := c.do(ctx, "blue.logs", http.MethodGet, "/blue/logs", nil, nil)
	if err != nil {
		return nil, err
	}
	entries, err := parseLogs(body)
	if err != nil {
		return nil, &FetchError{Op: "blue.logs", Err: err}
	}
	return entries, nil
}

// Remediate asks the blue team to remediate attack.
func (c *Client) Remediate(ctx context.Context, attack models.AttackType) (*models.RemediationAck, error) {
	var ack models.RemediationAck
	if err := c.postJSON(ctx, "blue.remediate", "/blue/remediate", models.RemediationRequest{AttackType: attack}, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Scan runs a TCP connect scan against target.
func (c *Client) Scan(ctx context.Context, target string, ports []int) ([]models.PortResult, error) {
	var out []models.PortResult
	err := c.postJSON(ctx, "red.scan", "/red/scan", models.ScanRequest{TargetIP: target, Ports: ports}, &out)
	return out, err
}

// Simulate triggers a simulated attack.
func (c *Client) Simulate(ctx context.Context, attack models.AttackType) (*models.SimulationResult, error) {
	var out models.SimulationResult
	if err := c.postJSON(ctx, "red.simulate", "/red/simulate", models.SimulationRequest{AttackType: attack}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Grover runs the mock Grover's search with the given register size.
func (c *Client) Grover(ctx context.Context, qubits int) (*models.GroverResult, error) {
	var out models.GroverResult
	q := url.Values{"qubits": []string{strconv.Itoa(qubits)}}
	if err := c.getJSON(ctx, "quantum.grover", "/quantum/grover", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Entropy fetches a fresh entropy score.
func (c *Client) Entropy(ctx context.Context) (float64, error) {
	var out models.EntropyResult
	err := c.getJSON(ctx, "quantum.entropy", "/quantum/entropy", nil, &out)
	return out.EntropyScore, err
}

// Login exchanges operator credentials for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.postJSON(ctx, "login", "/login", body, &out); err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	body, err := c.do(ctx, op, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-QSEC-Agent", c.instanceID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", errorMessage(body))}
	}
	return body, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	msg := strings.TrimSpace(string(body))
	if r := []rune(msg); len(r) > maxErrorRunes {
		msg = string(r[:maxErrorRunes])
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}
