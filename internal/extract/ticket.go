package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/normalize"
)

// Ticket region names returned by the OCR service
const (
	RegionName             = "name"
	RegionBookingReference = "booking_reference"
	RegionAirlineName      = "airline_name"
	RegionFlightNumber     = "flight_number"
	RegionFlightDate       = "flight_date"
)

// Known ticket layouts
const (
	TicketEmirates = "emirates"
	TicketFlynas   = "flynas"
)

var nameSplitter = regexp.MustCompile(`\s|/`)

// ParseTicketRegions builds a flight ticket record from the raw text of each
// OCR region. ticketType selects the name layout; when empty it is detected
// from the airline or flight number region. Values that fail validation are
// left null.
func ParseTicketRegions(ticketType string, regions map[string]string) *model.FlightTicketRecord {
	rec := &model.FlightTicketRecord{}
	if len(regions) == 0 {
		return rec
	}
	if ticketType == "" {
		ticketType = DetectTicketType(regions[RegionAirlineName] + " " + regions[RegionFlightNumber])
	}

	if text := strings.TrimSpace(regions[RegionName]); text != "" {
		salutation, first, last := splitTicketName(ticketType, text)
		if first == "" && last == "" {
			rec.Name = model.String(text)
		} else {
			rec.Salutation = optional(salutation)
			rec.FirstName = optional(first)
			rec.LastName = optional(last)
		}
	}
	rec.BookingReference = bookingReference(regions[RegionBookingReference])
	rec.FlightNumber = flightNumber(regions[RegionFlightNumber])
	rec.FlightDate = ticketDate(regions[RegionFlightDate])
	rec.AirlineName = optional(strings.TrimSpace(regions[RegionAirlineName]))
	return rec
}

// DetectTicketType recognises a ticket layout from free text
func DetectTicketType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "emirates"):
		return TicketEmirates
	case strings.Contains(lower, "flynas"):
		return TicketFlynas
	}
	return ""
}

// splitTicketName handles "DOE/JOHNMR" (emirates) and "MR JOHN DOE" (flynas)
func splitTicketName(ticketType, text string) (salutation, first, last string) {
	parts := nameSplitter.Split(text, -1)
	switch ticketType {
	case TicketEmirates:
		if len(parts) != 2 || len(parts[1]) < 2 {
			return "", "", ""
		}
		given := parts[1]
		return strings.ToUpper(given[len(given)-2:]), given[:len(given)-2], parts[0]
	case TicketFlynas:
		if len(parts) != 3 {
			return "", "", ""
		}
		return parts[0], parts[1], parts[2]
	}
	return "", "", ""
}

func bookingReference(text string) *string {
	text = strings.TrimSpace(text)
	if len(text) != 6 || !isAlnum(text) {
		return nil
	}
	return &text
}

func flightNumber(text string) *string {
	text = strings.TrimSpace(text)
	if len(text) < 4 || !isAlnum(text) {
		return nil
	}
	return &text
}

func ticketDate(text string) *string {
	t, ok := normalize.Date(text, normalize.TicketDateLayouts)
	if !ok {
		return nil
	}
	out := t.Format(normalize.TicketDateOutput)
	return &out
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
