package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"SigRelay/internal/domain/models"
	domsvc "SigRelay/internal/domain/service"
	pkghttp "SigRelay/pkg/http"
	applogger "SigRelay/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// Client is the HTTP client for one executor service. Execute never returns
// a Go error: every failure is classified into an ExecutionResult so the
// distributor can treat all executors uniformly.
type Client struct {
	id       string
	baseURL  string
	timeout  time.Duration
	http     *pkghttp.Client
	disabled atomic.Bool
	logger   *applogger.Logger
}

// NewClient creates a client from the executor's profile.
func NewClient(profile *models.ExecutorProfile, lgr *applogger.Logger) *Client {
	timeout := profile.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		id:      profile.ID,
		baseURL: strings.TrimRight(profile.Endpoint, "/"),
		timeout: timeout,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		logger:  lgr,
	}
	c.disabled.Store(profile.Disabled)
	return c
}

func (c *Client) ID() string { return c.id }

// SetDisabled flips the kill switch. A disabled client fails fast without
// touching the network.
func (c *Client) SetDisabled(v bool) { c.disabled.Store(v) }

// Disabled reports the kill switch state.
func (c *Client) Disabled() bool { return c.disabled.Load() }

type executeResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Execute POSTs the signal to the executor's /execute endpoint.
func (c *Client) Execute(ctx context.Context, sig *models.Signal) *models.ExecutionResult {
	start := time.Now()
	res := &models.ExecutionResult{ExecutorID: c.id, At: start.UTC()}

	if c.disabled.Load() {
		res.ErrorKind = models.KindDisabled
		res.Error = "executor disabled"
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.SendRequest(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    c.baseURL + "/execute",
		Body:   sig,
	})
	res.Latency = time.Since(start)
	if err != nil {
		res.ErrorKind = classify(err)
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		res.ErrorKind = models.KindRemoteRejected
		res.StatusCode = resp.StatusCode
		res.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return res
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		res.ErrorKind = models.KindConnectionError
		res.Error = "decode response: " + err.Error()
		return res
	}

	res.Success = true
	res.OrderID = out.OrderID
	return res
}

// Status fetches the executor's account snapshot.
func (c *Client) Status(ctx context.Context) (*models.ExecutorStatus, error) {
	if c.disabled.Load() {
		return nil, models.ErrExecutorDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var st models.ExecutorStatus
	if err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/status",
	}, &st); err != nil {
		return nil, fmt.Errorf("executor %s status: %w", c.id, err)
	}
	return &st, nil
}

func classify(err error) models.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return models.KindTimeout
	}
	return models.KindConnectionError
}

var _ domsvc.Executor = (*Client)(nil)
