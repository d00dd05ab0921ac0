// Package alpaca implements broker.Port over the Alpaca trading and market data REST APIs.
package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
)

const (
	headerKeyID  = "APCA-API-KEY-ID"
	headerSecret = "APCA-API-SECRET-KEY"

	maxErrorBody = 512
)

var (
	_ broker.Port            = (*Client)(nil)
	_ broker.HistoryProvider = (*Client)(nil)
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	dataURL    string
	feed       string
	keyID      string
	secret     string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logger.Logger
	now        func() time.Time
}

func NewClient(cfg config.AlpacaConfig, log *logger.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
		feed:       cfg.Feed,
		keyID:      cfg.KeyID,
		secret:     cfg.SecretKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     log.Component("alpaca"),
		now:        time.Now,
	}
	c.breaker = newBreaker("alpaca", c.logger)
	return c
}

func newBreaker(name string, log *logger.Logger) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 5 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	return gobreaker.NewCircuitBreaker(st)
}

type response struct {
	status int
	body   []byte
}

// do sends one request. Only transport failures and 5xx answers count
// against the breaker; other non-2xx statuses come back as *broker.APIError.
func (c *Client) do(ctx context.Context, method, base, path string, query url.Values, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set(headerKeyID, c.keyID)
		req.Header.Set(headerSecret, c.secret)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, apiError(resp.StatusCode, data)
		}
		return response{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return err
	}

	r := res.(response)
	if r.status < 200 || r.status > 299 {
		return apiError(r.status, r.body)
	}
	if out == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var msg struct {
		Message string `json:"message"`
	}
	text := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		text = msg.Message
	}
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &broker.APIError{StatusCode: status, Message: text}
}

func isNotFound(err error) bool {
	var apiErr *broker.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
