package marketplace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParsedResponse is the decoded marketplace reply: either an acceptance or an
// explicit rejection. Anything else surfaces as a parse error, which the
// submission client treats as transient.
type ParsedResponse interface {
	isParsedResponse()
}

// Accepted means the buyer marketplace bought the lead.
type Accepted struct {
	LeadID  string
	Status  string
	Price   float64
	BuyerID string
}

func (Accepted) isParsedResponse() {}

// Rejected is a valid business outcome, not a transport failure.
type Rejected struct {
	Code    string
	Message string
}

func (Rejected) isParsedResponse() {}

// ParseError reports an unrecognized wire shape.
type ParseError struct {
	Body string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized marketplace response: %q", truncate(e.Body, 200))
}

// ParseResponse decodes either wire shape the marketplace speaks: the
// colon-delimited text protocol or the JSON object with equivalent fields.
// The shape is sniffed from the payload itself; Content-Type headers from the
// marketplace are unreliable.
func ParseResponse(body []byte) (ParsedResponse, error) {
	trimmed := strings.TrimSpace(string(body))

	switch {
	case strings.HasPrefix(trimmed, "SUCCESS:") || strings.HasPrefix(trimmed, "ERROR:"):
		return parseText(trimmed)
	case strings.HasPrefix(trimmed, "{"):
		return parseJSON([]byte(trimmed))
	}

	return nil, &ParseError{Body: trimmed}
}

// parseText handles SUCCESS:<id>:<status>:<price>:<buyerId> and
// ERROR:<code>:<message>.
func parseText(body string) (ParsedResponse, error) {
	if rest, ok := strings.CutPrefix(body, "SUCCESS:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 4 {
			return nil, &ParseError{Body: body}
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, &ParseError{Body: body}
		}
		return Accepted{
			LeadID:  strings.TrimSpace(parts[0]),
			Status:  strings.TrimSpace(parts[1]),
			Price:   price,
			BuyerID: strings.TrimSpace(parts[3]),
		}, nil
	}

	rest, _ := strings.CutPrefix(body, "ERROR:")
	// Message may itself contain colons; only the code is positional.
	code, message, found := strings.Cut(rest, ":")
	if !found {
		return nil, &ParseError{Body: body}
	}
	return Rejected{
		Code:    strings.TrimSpace(code),
		Message: strings.TrimSpace(message),
	}, nil
}

type jsonResponse struct {
	Status     string      `json:"status"`
	Success    *bool       `json:"success"`
	LeadID     string      `json:"lead_id"`
	LeadIDAlt  string      `json:"leadId"`
	LeadStatus string      `json:"lead_status"`
	Price      json.Number `json:"price"`
	BuyerID    string      `json:"buyer_id"`
	BuyerIDAlt string      `json:"buyerId"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
}

func parseJSON(body []byte) (ParsedResponse, error) {
	var parsed jsonResponse
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()
	if err := decoder.Decode(&parsed); err != nil {
		return nil, &ParseError{Body: string(body)}
	}

	accepted := false
	switch {
	case parsed.Success != nil:
		accepted = *parsed.Success
	case parsed.Status != "":
		normalized := strings.ToLower(strings.TrimSpace(parsed.Status))
		accepted = normalized == "success" || normalized == "accepted" || normalized == "matched"
		if !accepted && normalized != "error" && normalized != "rejected" && normalized != "unmatched" {
			return nil, &ParseError{Body: string(body)}
		}
	default:
		return nil, &ParseError{Body: string(body)}
	}

	if !accepted {
		return Rejected{
			Code:    strings.TrimSpace(parsed.Code),
			Message: strings.TrimSpace(parsed.Message),
		}, nil
	}

	leadID := firstNonEmpty(parsed.LeadID, parsed.LeadIDAlt)
	status := firstNonEmpty(parsed.LeadStatus, parsed.Status)

	var price float64
	if parsed.Price != "" {
		value, err := parsed.Price.Float64()
		if err != nil {
			return nil, &ParseError{Body: string(body)}
		}
		price = value
	}

	return Accepted{
		LeadID:  leadID,
		Status:  status,
		Price:   price,
		BuyerID: firstNonEmpty(parsed.BuyerID, parsed.BuyerIDAlt),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
