package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/claimlink/internal/model"
)

// codeUnrecognized is the ID service error code for a document it cannot classify
const codeUnrecognized = 9

// APIError is an error reported in an OCR service response body
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("extractor error %d: %s", e.Code, e.Message)
}

type passportResponse struct {
	Result *struct {
		FullName string `json:"fullName"`
		DOB      string `json:"dob"`
		Sex      string `json:"sex"`
		Expiry   string `json:"expiry"`
	} `json:"result"`
	Authentication *model.Authentication `json:"authentication"`
	Error          *APIError             `json:"error"`
}

// ParsePassportResponse maps an ID service scan response to a passport
// record. An unrecognized document yields a record without authentication.
func ParsePassportResponse(data []byte) (*model.PassportRecord, error) {
	var resp passportResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode passport response: %w", err)
	}
	if resp.Error != nil {
		if resp.Error.Code == codeUnrecognized {
			return &model.PassportRecord{}, nil
		}
		return nil, resp.Error
	}

	rec := &model.PassportRecord{Authentication: resp.Authentication}
	if r := resp.Result; r != nil {
		rec.Name = optional(strings.TrimSpace(r.FullName))
		rec.DOB = optional(strings.TrimSpace(r.DOB))
		rec.Gender = optional(strings.TrimSpace(r.Sex))
		rec.Expiry = optional(strings.TrimSpace(r.Expiry))
	}
	return rec, nil
}

type ticketResponse struct {
	TicketType string            `json:"ticket_type"`
	Regions    map[string]string `json:"regions"`
	Error      *APIError         `json:"error"`
}

// ParseTicketResponse maps an OCR region response to a flight ticket record
func ParseTicketResponse(data []byte) (*model.FlightTicketRecord, error) {
	var resp ticketResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode ticket response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return ParseTicketRegions(strings.ToLower(resp.TicketType), resp.Regions), nil
}

type tagResponse struct {
	Text    string    `json:"text"`
	Barcode string    `json:"barcode"`
	Error   *APIError `json:"error"`
}
