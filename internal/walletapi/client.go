package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"custodia/internal/domain"
	types "custodia/internal/domain/types"
	"custodia/internal/logging"
)

const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimitRPS <= 0 disables pacing.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Client is the HTTP implementation of domain.WalletAPI and domain.KeyRegistrar.
type Client struct {
	base    string
	http    *http.Client
	tokens  domain.TokenSource
	limiter *rate.Limiter
	log     *slog.Logger
}

var (
	_ domain.WalletAPI    = (*Client)(nil)
	_ domain.KeyRegistrar = (*Client)(nil)
)

// New returns a Client for cfg.BaseURL. tokens may be nil for an
// unauthenticated remote.
func New(cfg Config, tokens domain.TokenSource, logger *slog.Logger) *Client {
	c := &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		tokens: tokens,
		log:    logging.OrDiscard(logger),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return c
}

// WithHTTPClient replaces the underlying transport.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) RegisterPublicKey(ctx context.Context, publicKey string) error {
	in := struct {
		PublicKey string `json:"publicKey"`
	}{PublicKey: publicKey}
	return c.post(ctx, "register key", "/keys/register", in, nil)
}

func (c *Client) PrepareWallet(ctx context.Context) (domain.PreparePayload, error) {
	var out domain.PreparePayload
	err := c.post(ctx, "prepare wallet", "/wallet/prepare", nil, &out)
	return out, err
}

func (c *Client) SubmitWallet(ctx context.Context, sub domain.Submission) (domain.Wallet, error) {
	var out domain.Wallet
	err := c.post(ctx, "submit wallet", "/wallet/submit", sub, &out)
	return out, err
}

func (c *Client) PrepareAccount(ctx context.Context) (domain.PreparePayload, error) {
	var out domain.PreparePayload
	err := c.post(ctx, "prepare account", "/wallet/accounts/prepare", nil, &out)
	return out, err
}

func (c *Client) SubmitAccount(ctx context.Context, sub domain.Submission) (domain.WalletAccount, error) {
	var out domain.WalletAccount
	err := c.post(ctx, "submit account", "/wallet/accounts/submit", sub, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &domain.NetworkError{Operation: op, Err: err}
		}
	}

	var body io.Reader = http.NoBody
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%s: bearer token: %w", op, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.NetworkError{Operation: op, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("wallet api call", "op", op, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.NetworkError{Operation: op, Err: err}
	}
	var env types.Response[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode/100 != 2 {
			return &domain.NetworkError{Operation: op, Err: fmt.Errorf("post %s: %s", path, resp.Status)}
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !env.Success {
		return &domain.RemoteRejectedError{Operation: op, Message: env.Message}
	}
	if resp.StatusCode/100 != 2 {
		return &domain.NetworkError{Operation: op, Err: fmt.Errorf("post %s: %s", path, resp.Status)}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}
