package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
)

const (
	// DefaultTimeout bounds a single delivery request
	DefaultTimeout = 15 * time.Second
	// MaxTimeout is the longest a delivery request may take
	MaxTimeout = 30 * time.Second

	userAgent = "invoice-notifier/1.0"

	// maxErrorBody caps how much of a failed response is kept in the error
	maxErrorBody = 512
)

// Header names sent with every notification
const (
	HeaderDeliveryID     = "X-Delivery-ID"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderSignature      = "X-Signature"
)

// Config holds webhook destination configuration
type Config struct {
	URL     string
	Timeout time.Duration
	Secret  string
}

// Client posts JSON notifications to the configured destination
type Client struct {
	url        string
	secret     []byte
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new webhook client. An empty URL disables delivery.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	var secret []byte
	if cfg.Secret != "" {
		secret = []byte(cfg.Secret)
	}

	return &Client{
		url:        strings.TrimSpace(cfg.URL),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Configured reports whether a destination URL is set
func (c *Client) Configured() bool {
	return c.url != ""
}

// Send posts req.Body. Non-2xx responses, timeouts and network errors wrap
// port.ErrTransport.
func (c *Client) Send(ctx context.Context, req port.WebhookRequest) error {
	if !c.Configured() {
		return port.ErrDestinationNotConfigured
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", port.ErrTransport, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if req.DeliveryID != "" {
		httpReq.Header.Set(HeaderDeliveryID, req.DeliveryID)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)
	}
	if c.secret != nil {
		httpReq.Header.Set(HeaderSignature, "sha256="+Sign(c.secret, req.Body))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	c.logger.Debug("Webhook response received",
		zap.String("delivery_id", req.DeliveryID),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d: %s",
			port.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify interface compliance
var _ port.WebhookSender = (*Client)(nil)
