// Package cds is a client of the Copernicus Climate Data Store API.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// Task states reported by CDS.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// APIError is a failed CDS request or task.
type APIError struct {
	StatusCode int
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	msg := "CDS API error"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Reply is the state of a CDS task.
type Reply struct {
	State         string `json:"state"`
	RequestID     string `json:"request_id"`
	Location      string `json:"location"`
	ContentLength int64  `json:"content_length"`
	Error         *struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// Client talks to one CDS endpoint.
type Client struct {
	logger  *slog.Logger
	httpCli *http.Client
	url     string
	user    string
	key     string

	// PollInterval is the pause between task state requests.
	PollInterval time.Duration
}

// NewClient creates a client for the API at url authenticated by key, which
// has the form "<uid>:<api-key>".
func NewClient(logger *slog.Logger, url, key string, maxConns int) (*Client, error) {
	user, secret, ok := strings.Cut(key, ":")
	if !ok {
		return nil, fmt.Errorf("CDS API key must have the form <uid>:<api-key>")
	}
	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        maxConns,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: maxConns,
				MaxConnsPerHost:     maxConns,
			},
		},
		url:          strings.TrimSuffix(url, "/"),
		user:         user,
		key:          secret,
		PollInterval: time.Second,
	}, nil
}

// Retrieve submits request for the named dataset, waits for CDS to finish
// the task and downloads the result to target.
func (c *Client) Retrieve(ctx context.Context, name string, request map[string]any, target string) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("cannot encode request: %w", err)
	}
	reply, err := c.call(ctx, http.MethodPost, c.url+"/resources/"+name, body)
	if err != nil {
		return err
	}
	c.logger.Info("Request submitted", "dataset", name, "id", reply.RequestID, "state", reply.State)

	for reply.State == StateQueued || reply.State == StateRunning {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.PollInterval):
		}
		id := reply.RequestID
		reply, err = c.call(ctx, http.MethodGet, c.url+"/tasks/"+id, nil)
		if err != nil {
			return err
		}
		c.logger.Debug("Request state", "id", id, "state", reply.State)
	}

	switch reply.State {
	case StateCompleted:
	case StateFailed:
		e := &APIError{Message: "request failed"}
		if reply.Error != nil {
			e.Message, e.Reason = reply.Error.Message, reply.Error.Reason
		}
		return e
	default:
		return &APIError{Message: fmt.Sprintf("unexpected task state %q", reply.State)}
	}

	start := time.Now()
	n, err := c.download(ctx, reply.Location, target)
	if err != nil {
		return err
	}
	if reply.ContentLength > 0 && n != reply.ContentLength {
		return fmt.Errorf("download of %s truncated: got %d of %d bytes", reply.Location, n, reply.ContentLength)
	}
	c.logger.Info("Result downloaded", "dataset", name, "bytes", n, "in", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Client) call(ctx context.Context, method, url string, body []byte) (*Reply, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.httpCli.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read reply of %s: %w", url, err)
	}

	reply := &Reply{}
	decodeErr := json.Unmarshal(b, reply)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		e := &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		if decodeErr == nil && reply.Error != nil {
			e.Message, e.Reason = reply.Error.Message, reply.Error.Reason
		}
		return nil, e
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("cannot decode reply of %s: %w", url, decodeErr)
	}
	return reply, nil
}

func (c *Client) download(ctx context.Context, location, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return 0, err
	}
	res, err := c.httpCli.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, &APIError{StatusCode: res.StatusCode, Message: "download of " + location + " failed"}
	}
	f, err := os.Create(target)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
