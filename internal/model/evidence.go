package model

import "strings"

// DocumentType identifies one of the travel documents submitted with a claim
type DocumentType string

const (
	DocumentPassport     DocumentType = "passport"
	DocumentFlightTicket DocumentType = "flight_ticket"
	DocumentBaggageTag   DocumentType = "baggage_tag"
)

// DocumentTypes lists document types in the order they must be evaluated
var DocumentTypes = []DocumentType{DocumentPassport, DocumentFlightTicket, DocumentBaggageTag}

// Authentication is the extractor's authenticity block for a passport
type Authentication struct {
	Score float64 `json:"score"` // 0..1 confidence that the document is genuine
}

// PassportRecord holds fields extracted from a passport scan.
// A nil *PassportRecord means the extraction failed.
type PassportRecord struct {
	Name           *string         `json:"name"`
	DOB            *string         `json:"dob"`    // YYYY/MM/DD or YYYYMMDD
	Gender         *string         `json:"gender"` // M, F, X
	Expiry         *string         `json:"expiry"` // YYYY/MM/DD or YYYYMMDD
	Authentication *Authentication `json:"authentication,omitempty"`
}

// FlightTicketRecord holds fields extracted from a flight ticket
type FlightTicketRecord struct {
	Name             *string `json:"name"`
	Salutation       *string `json:"salutation"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	BookingReference *string `json:"booking_reference"`
	AirlineName      *string `json:"airline_name"`
	FlightNumber     *string `json:"flight_number"`
	FlightDate       *string `json:"flight_date"` // DD-MM-YYYY
}

// Fields returns the record as a field name to value mapping
func (r *FlightTicketRecord) Fields() map[string]*string {
	if r == nil {
		return nil
	}
	return map[string]*string{
		"name":              r.Name,
		"salutation":        r.Salutation,
		"first_name":        r.FirstName,
		"last_name":         r.LastName,
		"booking_reference": r.BookingReference,
		"airline_name":      r.AirlineName,
		"flight_number":     r.FlightNumber,
		"flight_date":       r.FlightDate,
	}
}

// Unreadable reports whether the ticket is missing or every field is null
func (r *FlightTicketRecord) Unreadable() bool {
	if r == nil {
		return true
	}
	for _, v := range r.Fields() {
		if v != nil {
			return false
		}
	}
	return true
}

// PassengerName returns the full passenger name, falling back to first and
// last name when the OCR produced them separately.
func (r *FlightTicketRecord) PassengerName() *string {
	if r == nil {
		return nil
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) != "" {
		return r.Name
	}
	parts := make([]string, 0, 2)
	for _, p := range []*string{r.FirstName, r.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	name := strings.Join(parts, " ")
	return &name
}

// BaggageTagRecord holds fields extracted from a baggage tag
type BaggageTagRecord struct {
	AirlineName      *string `json:"airline_name"`
	FlightNumber     *string `json:"flight_number"`
	BookingReference *string `json:"booking_reference"`
	PassengerName    *string `json:"passenger_name"`
	Barcode          *string `json:"barcode"`
}

// Documents carries records that were extracted before submission
type Documents struct {
	Passport     *PassportRecord     `json:"passport,omitempty"`
	FlightTicket *FlightTicketRecord `json:"flight_ticket,omitempty"`
	BaggageTag   *BaggageTagRecord   `json:"baggage_tag,omitempty"`
}

// Uploads carries document locations that still need extraction
// (file paths, file://, s3://bucket/key or https:// URIs).
type Uploads struct {
	Passport     string `json:"passport,omitempty"`
	FlightTicket string `json:"flight_ticket,omitempty"`
	BaggageTag   string `json:"baggage_tag,omitempty"`
}

// URI returns the upload location for a document type
func (u Uploads) URI(doc DocumentType) string {
	switch doc {
	case DocumentPassport:
		return u.Passport
	case DocumentFlightTicket:
		return u.FlightTicket
	case DocumentBaggageTag:
		return u.BaggageTag
	default:
		return ""
	}
}

// String returns a pointer to s
func String(s string) *string {
	return &s
}

// Value dereferences p, returning "" for nil
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
