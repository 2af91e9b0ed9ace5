package model

import "sort"

// ErrorKind names a category of detected inconsistency
type ErrorKind string

const (
	// Passport stage
	ErrNameMismatch    ErrorKind = "name_mismatch"    // Declared name vs passport name
	ErrDOBMismatch     ErrorKind = "dob_mismatch"     // Declared DOB vs passport DOB
	ErrGenderMismatch  ErrorKind = "gender_mismatch"  // Declared gender vs passport sex
	ErrExpiredPassport ErrorKind = "expired_passport" // Passport expired before today
	ErrNotAuthentic    ErrorKind = "not_authentic"    // Extractor authenticity at or below cutoff
	ErrUnrecognized    ErrorKind = "unrecognized"     // Passport unreadable or no authenticity block

	// Flight ticket stage
	ErrIncorrectFlightTicket      ErrorKind = "incorrect_flight_ticket"       // Ticket unreadable
	ErrPersonalTicketNameMismatch ErrorKind = "personal_ticket_name_mismatch" // Declared name vs ticket name
	ErrPassportTicketNameMismatch ErrorKind = "passport_ticket_name_mismatch" // Passport name vs ticket name

	// Baggage tag stage
	ErrIncorrectBaggageTag      ErrorKind = "incorrect_baggage_tag"      // Tag unreadable
	ErrAirlineNameMismatch      ErrorKind = "airline_name_mismatch"      // Ticket airline vs tag airline
	ErrBookingReferenceMismatch ErrorKind = "booking_reference_mismatch" // Ticket PNR vs tag PNR
	ErrPassengerNameMismatch    ErrorKind = "passenger_name_mismatch"    // Ticket name vs tag passenger
	ErrInvalidEmiratesBarcode   ErrorKind = "invalid_emirates_barcode"   // Emirates tag barcode not starting with 0
)

// ErrorKinds lists every error kind the comparators can emit
var ErrorKinds = []ErrorKind{
	ErrNameMismatch,
	ErrDOBMismatch,
	ErrGenderMismatch,
	ErrExpiredPassport,
	ErrNotAuthentic,
	ErrUnrecognized,
	ErrIncorrectFlightTicket,
	ErrPersonalTicketNameMismatch,
	ErrPassportTicketNameMismatch,
	ErrIncorrectBaggageTag,
	ErrAirlineNameMismatch,
	ErrBookingReferenceMismatch,
	ErrPassengerNameMismatch,
	ErrInvalidEmiratesBarcode,
}

const (
	MinRawScore = 0.0
	MaxRawScore = 100.0
)

// Signal is the output of one comparator invocation.
// A nil Score counts as a full violation; a present Score lies in [0,100]
// and lower means worse.
type Signal struct {
	Kind  ErrorKind `json:"error_kind"`
	Score *float64  `json:"raw_score"`
}

// NewSignal creates a scored signal, clamping the score into [0,100]
func NewSignal(kind ErrorKind, score float64) Signal {
	if score < MinRawScore {
		score = MinRawScore
	}
	if score > MaxRawScore {
		score = MaxRawScore
	}
	return Signal{Kind: kind, Score: &score}
}

// NullSignal creates a signal that always counts as a full penalty
func NullSignal(kind ErrorKind) Signal {
	return Signal{Kind: kind}
}

// ErrorScoreMap holds one entry per distinct violation found for a claim
type ErrorScoreMap map[ErrorKind]*float64

// Set records a signal, replacing any earlier entry for the same kind
func (m ErrorScoreMap) Set(s Signal) {
	if s.Score == nil {
		m[s.Kind] = nil
		return
	}
	v := *s.Score
	m[s.Kind] = &v
}

// Merge records every signal in order
func (m ErrorScoreMap) Merge(signals ...Signal) {
	for _, s := range signals {
		m.Set(s)
	}
}

// Has reports whether the map contains kind
func (m ErrorScoreMap) Has(kind ErrorKind) bool {
	_, ok := m[kind]
	return ok
}

// Kinds returns the kinds present, sorted
func (m ErrorScoreMap) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Signals returns the entries as signals sorted by kind
func (m ErrorScoreMap) Signals() []Signal {
	kinds := m.Kinds()
	out := make([]Signal, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Signal{Kind: k, Score: m[k]})
	}
	return out
}

// Clone returns an independent copy
func (m ErrorScoreMap) Clone() ErrorScoreMap {
	out := make(ErrorScoreMap, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		c := *v
		out[k] = &c
	}
	return out
}
