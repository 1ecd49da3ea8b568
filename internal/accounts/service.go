package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"transaction-core-go/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Typed errors surfaced by the gateway. 4xx responses map to business errors
// and never trip the circuit breaker; transport failures, timeouts and 5xx
// responses count as remote failures and do.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrRemoteValidation   = errors.New("account service rejected the request")
	ErrServiceUnavailable = errors.New("account service unavailable")
	ErrConflict           = errors.New("conflicting balance operation")
)

// Service is a typed client over the remote Account Service.
type Service struct {
	baseURL     string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	callTimeout time.Duration
	maxRetries  uint64
}

func NewService(cfg models.AccountsConfig) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("accounts base URL cannot be empty")
	}

	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "account-service",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			zap.L().Warn("Account service circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Service{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      httpClient,
		breaker:     breaker,
		callTimeout: callTimeout,
		maxRetries:  cfg.MaxRetries,
	}, nil
}

func createCustomHttpClient() (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

// callOutcome is a response that reached us: any status code, body already
// read. Responses that never arrived are errors, not outcomes.
type callOutcome struct {
	status int
	body   []byte
}

// call runs one logical remote operation through the breaker and the retry
// policy. Transport errors and 5xx responses retry with exponential backoff
// and count against the breaker; every response below 500 is returned to the
// caller for interpretation and counts as breaker success.
func (s *Service) call(ctx context.Context, method, path string, payload any) (*callOutcome, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		var outcome *callOutcome

		operation := func() error {
			o, err := s.roundTrip(ctx, method, path, payload)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(err)
				}
				return err
			}
			if o.status >= 500 {
				return fmt.Errorf("account service returned %d", o.status)
			}
			outcome = o
			return nil
		}

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = 100 * time.Millisecond
		policy.MaxInterval = 2 * time.Second

		if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx)); err != nil {
			return nil, err
		}
		return outcome, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrServiceUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return result.(*callOutcome), nil
}

// roundTrip performs a single HTTP exchange under the per-call deadline.
func (s *Service) roundTrip(ctx context.Context, method, path string, payload any) (*callOutcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("unable to encode request body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(callCtx, method, s.baseURL+path, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("unable to build request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to account service failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read account service response: %w", err)
	}

	return &callOutcome{status: resp.StatusCode, body: data}, nil
}
