package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

const defaultSendTimeout = 10 * time.Second

type sendRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Subject string `json:"subject,omitempty"`
	Content string `json:"content"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// WebhookNotifier delivers SMS and email through provider webhook endpoints.
// Either endpoint may be empty; sending on an unconfigured channel fails with
// a permanent error.
type WebhookNotifier struct {
	client        *resty.Client
	smsEndpoint   string
	emailEndpoint string
	logger        *zap.Logger
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(smsEndpoint, emailEndpoint string, logger *zap.Logger) (*WebhookNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewWebhookNotifierWithClient(smsEndpoint, emailEndpoint, client, logger)
}

func NewWebhookNotifierWithClient(smsEndpoint, emailEndpoint string, client *resty.Client, logger *zap.Logger) (*WebhookNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	smsEndpoint = strings.TrimSpace(smsEndpoint)
	emailEndpoint = strings.TrimSpace(emailEndpoint)
	if smsEndpoint == "" && emailEndpoint == "" {
		return nil, fmt.Errorf("at least one delivery endpoint is required")
	}
	for _, endpoint := range []string{smsEndpoint, emailEndpoint} {
		if endpoint == "" {
			continue
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid delivery endpoint: %w", err)
		}
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookNotifier{
		client:        client,
		smsEndpoint:   smsEndpoint,
		emailEndpoint: emailEndpoint,
		logger:        logger,
	}, nil
}

func (n *WebhookNotifier) SendSMS(ctx context.Context, to, body string) (*SendResult, error) {
	if n.smsEndpoint == "" {
		return nil, &SendError{Message: "sms channel is not configured", Transient: false}
	}

	normalized, err := NormalizeE164(to)
	if err != nil {
		return nil, &SendError{Message: "invalid sms recipient", Cause: err}
	}

	segments := MessageSegments(body)
	n.logger.Debug("dispatching sms",
		zap.String("to", normalized),
		zap.Int("segments", segments),
		zap.Int("chars", len([]rune(body))),
	)

	result, err := n.post(ctx, n.smsEndpoint, sendRequest{
		To:      normalized,
		Channel: domain.ChannelSMS.String(),
		Content: body,
	})
	if err != nil {
		return nil, err
	}

	result.Segments = segments
	return result, nil
}

func (n *WebhookNotifier) SendEmail(ctx context.Context, to, subject, body string) (*SendResult, error) {
	if n.emailEndpoint == "" {
		return nil, &SendError{Message: "email channel is not configured", Transient: false}
	}
	if !strings.Contains(to, "@") {
		return nil, &SendError{Message: fmt.Sprintf("invalid email recipient %q", to)}
	}

	return n.post(ctx, n.emailEndpoint, sendRequest{
		To:      to,
		Channel: domain.ChannelEmail.String(),
		Subject: subject,
		Content: body,
	})
}

// Healthy reports provider reachability for the component health check.
func (n *WebhookNotifier) Healthy(ctx context.Context) error {
	endpoint := n.smsEndpoint
	if endpoint == "" {
		endpoint = n.emailEndpoint
	}

	response, err := n.client.R().
		SetContext(ctx).
		Head(endpoint)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	if response.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("provider returned status %d", response.StatusCode())
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, endpoint string, reqBody sendRequest) (*SendResult, error) {
	response, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(endpoint)
	if err != nil {
		return nil, &SendError{
			Message:   "delivery request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &SendError{Message: "provider returned empty response", Transient: true}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResult{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageIDFromResponse(response),
		}, nil
	}

	return nil, &SendError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("provider returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func messageIDFromResponse(response *resty.Response) string {
	if response == nil {
		return ""
	}

	var parsed sendResponse
	if err := json.Unmarshal(response.Body(), &parsed); err == nil && strings.TrimSpace(parsed.MessageID) != "" {
		return strings.TrimSpace(parsed.MessageID)
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
