package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/repository"
	"github.com/dealerlink/lead-recovery/internal/service"
)

type Detector interface {
	Detect(ctx context.Context) (*service.DetectResult, error)
	HealthCheck(ctx context.Context) error
}

type Outreacher interface {
	ProcessQueue(ctx context.Context) (*service.OutreachResult, error)
	HandleDeliveryStatus(ctx context.Context, providerMessageID string, status domain.AttemptStatus) error
	HealthCheck(ctx context.Context) error
}

type Submission interface {
	Configured() bool
	Stats() service.SubmissionStats
	GetDeadLetterQueue() []service.DeadLetterView
	RetryFromDeadLetter(ctx context.Context, leadID string) (*service.SubmitOutcome, error)
}

type Packager interface {
	PackageAndSubmitLead(ctx context.Context, visitorID, source string) (*service.PackageReport, error)
}

type LeadStats interface {
	GetStatusSummary(ctx context.Context) ([]repository.StatusSummary, error)
	SumAcceptedPrice(ctx context.Context) (float64, error)
}

// OpsHandler exposes the pipeline's operational surface: stats, component
// health, the dead-letter queue, and manual triggers.
type OpsHandler struct {
	detector   Detector
	outreach   Outreacher
	submission Submission
	packager   Packager
	leads      LeadStats
}

func NewOpsHandler(detector Detector, outreach Outreacher, submission Submission, packager Packager, leads LeadStats) (*OpsHandler, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if outreach == nil {
		return nil, fmt.Errorf("outreach service is required")
	}
	if submission == nil {
		return nil, fmt.Errorf("submission service is required")
	}
	if packager == nil {
		return nil, fmt.Errorf("packager is required")
	}
	if leads == nil {
		return nil, fmt.Errorf("lead stats source is required")
	}

	return &OpsHandler{
		detector:   detector,
		outreach:   outreach,
		submission: submission,
		packager:   packager,
		leads:      leads,
	}, nil
}

func RegisterOpsRoutes(router fiber.Router, detector Detector, outreach Outreacher, submission Submission, packager Packager, leads LeadStats) error {
	h, err := NewOpsHandler(detector, outreach, submission, packager, leads)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/stats", h.GetStats)
	v1.Get("/health", h.GetHealth)
	v1.Get("/dead-letters", h.ListDeadLetters)
	v1.Post("/dead-letters/:leadId/retry", h.RetryDeadLetter)
	v1.Post("/outreach/delivery-status", h.DeliveryStatus)
	v1.Post("/detect/run", h.RunDetect)
	v1.Post("/outreach/run", h.RunOutreach)
	v1.Post("/leads/:visitorId/submit", h.SubmitLead)

	return nil
}

type statsResponse struct {
	Submissions service.SubmissionStats `json:"submissions"`
	Leads       []leadStatusCountItem   `json:"leads"`
	Revenue     float64                 `json:"revenue"`
}

type leadStatusCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func (h *OpsHandler) GetStats(c *fiber.Ctx) error {
	summary, err := h.leads.GetStatusSummary(c.Context())
	if err != nil {
		return toHTTPError(err)
	}
	revenue, err := h.leads.SumAcceptedPrice(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]leadStatusCountItem, 0, len(summary))
	for _, row := range summary {
		items = append(items, leadStatusCountItem{
			Status: row.Status.String(),
			Count:  row.Count,
		})
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		Submissions: h.submission.Stats(),
		Leads:       items,
		Revenue:     revenue,
	})
}

func (h *OpsHandler) GetHealth(c *fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	if err := h.detector.HealthCheck(c.Context()); err != nil {
		checks["detector"] = err.Error()
		healthy = false
	} else {
		checks["detector"] = "ok"
	}

	if err := h.outreach.HealthCheck(c.Context()); err != nil {
		checks["outreach"] = err.Error()
		healthy = false
	} else {
		checks["outreach"] = "ok"
	}

	if h.submission.Configured() {
		checks["marketplace"] = "configured"
	} else {
		checks["marketplace"] = "not_configured"
	}

	status := "healthy"
	statusCode := fiber.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

func (h *OpsHandler) ListDeadLetters(c *fiber.Ctx) error {
	entries := h.submission.GetDeadLetterQueue()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *OpsHandler) RetryDeadLetter(c *fiber.Ctx) error {
	leadID := strings.TrimSpace(c.Params("leadId"))
	outcome, err := h.submission.RetryFromDeadLetter(c.Context(), leadID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

type deliveryStatusRequest struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

func (h *OpsHandler) DeliveryStatus(c *fiber.Ctx) error {
	var req deliveryStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	status, err := domain.ParseAttemptStatusFromString(req.Status)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.outreach.HandleDeliveryStatus(c.Context(), strings.TrimSpace(req.MessageID), status); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"messageId": req.MessageID,
		"status":    status.String(),
	})
}

func (h *OpsHandler) RunDetect(c *fiber.Ctx) error {
	result, err := h.detector.Detect(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

func (h *OpsHandler) RunOutreach(c *fiber.Ctx) error {
	result, err := h.outreach.ProcessQueue(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

type submitLeadRequest struct {
	Source string `json:"source"`
}

func (h *OpsHandler) SubmitLead(c *fiber.Ctx) error {
	visitorID := strings.TrimSpace(c.Params("visitorId"))

	var req submitLeadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "web"
	}

	report, err := h.packager.PackageAndSubmitLead(c.Context(), visitorID, source)
	if err != nil {
		return toHTTPError(err)
	}

	statusCode := fiber.StatusOK
	if !report.Success {
		statusCode = fiber.StatusBadGateway
	}
	return c.Status(statusCode).JSON(report)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		return fiber.NewError(fiber.StatusConflict, domain.ErrAlreadyRunning.Error())
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
