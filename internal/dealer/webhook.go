// Package dealer routes leads to the dealer's own CRM when marketplace
// placement fails or is not configured. The lead is never discarded on this
// path; the dealer works it directly instead of selling it.
package dealer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

const defaultForwardTimeout = 10 * time.Second

// ForwardResult carries the CRM acknowledgement for activity logging.
type ForwardResult struct {
	StatusCode int
	Body       string
}

// WebhookClient forwards assembled lead packages to the dealer CRM endpoint.
type WebhookClient struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

func NewWebhookClient(endpoint string, logger *zap.Logger) (*WebhookClient, error) {
	client := resty.New()
	client.SetTimeout(defaultForwardTimeout)
	client.SetRetryCount(0)

	return NewWebhookClientWithClient(endpoint, client, logger)
}

func NewWebhookClientWithClient(endpoint string, client *resty.Client, logger *zap.Logger) (*WebhookClient, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint != "" {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid dealer webhook endpoint: %w", err)
		}
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultForwardTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookClient{
		client:   client,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Configured reports whether a CRM endpoint was provided. An unconfigured
// client makes the fallback path a no-op failure rather than a crash.
func (c *WebhookClient) Configured() bool {
	return c != nil && c.endpoint != ""
}

// Forward delivers the full lead package to the dealer CRM.
func (c *WebhookClient) Forward(ctx context.Context, pkg *domain.LeadPackage) (*ForwardResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: dealer webhook endpoint is not set", domain.ErrNotConfigured)
	}
	if err := pkg.Validate(); err != nil {
		return nil, err
	}

	c.logger.Debug("forwarding lead to dealer crm",
		zap.String("lead_id", pkg.LeadID),
		zap.String("visitor_id", pkg.VisitorID),
	)

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(pkg).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("dealer crm request failed: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("dealer crm returned empty response")
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("dealer crm returned status %d", statusCode)
	}

	return &ForwardResult{
		StatusCode: statusCode,
		Body:       strings.TrimSpace(response.String()),
	}, nil
}
