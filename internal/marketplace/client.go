package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

const defaultSubmitTimeout = 15 * time.Second

// Client submits lead packages to the boberdoo-style buyer marketplace over
// its form-urlencoded POST contract.
type Client struct {
	endpoint       string
	vendorID       string
	vendorPassword string
	httpClient     *http.Client
}

func NewClient(endpoint, vendorID, vendorPassword string, opts ...func(*Client)) *Client {
	c := &Client{
		endpoint:       strings.TrimSpace(endpoint),
		vendorID:       strings.TrimSpace(vendorID),
		vendorPassword: strings.TrimSpace(vendorPassword),
		httpClient:     &http.Client{Timeout: defaultSubmitTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) func(*Client) {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// Configured reports whether the integration has an endpoint and credentials.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != "" && c.vendorID != "" && c.vendorPassword != ""
}

// Submit performs one HTTP submission and decodes the reply. Transport
// failures and HTTP ≥500 come back as transient SubmitErrors; a decoded
// Rejected value is a business outcome, not an error.
func (c *Client) Submit(ctx context.Context, sub domain.LeadSubmission) (ParsedResponse, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("marketplace integration is %w", domain.ErrNotConfigured)
	}

	form := url.Values{}
	form.Set("vendor_id", c.vendorID)
	form.Set("vendor_password", c.vendorPassword)
	form.Set("first_name", sub.FirstName)
	form.Set("last_name", sub.LastName)
	form.Set("email", sub.Email)
	form.Set("phone", sub.Phone)
	form.Set("address", sub.Address)
	form.Set("city", sub.City)
	form.Set("state", sub.State)
	form.Set("zip", sub.Zip)
	form.Set("employer", sub.Employer)
	form.Set("job_title", sub.JobTitle)
	form.Set("annual_income", strconv.FormatFloat(sub.AnnualIncome, 'f', 2, 64))
	form.Set("time_on_job", strconv.Itoa(sub.TimeOnJobMonths))
	form.Set("credit_score", strconv.Itoa(sub.CreditScore))
	form.Set("loan_amount", strconv.FormatFloat(sub.LoanAmount, 'f', 2, 64))
	form.Set("source", sub.Source)
	form.Set("lead_id", sub.LeadID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &SubmitError{Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SubmitError{
			Message:   "submission request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, &SubmitError{Message: "failed to read response body", Transient: true, Cause: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &SubmitError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("marketplace returned status %d", resp.StatusCode),
			Transient:  true,
		}
	}

	return ParseResponse(body)
}
