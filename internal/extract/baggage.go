package extract

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimlink/internal/model"
)

//go:embed configs/airlines.yaml
var defaultAirlines []byte

// AirlineConfig holds the baggage tag patterns for one airline
type AirlineConfig struct {
	Key           string `yaml:"key"`
	AirlineName   string `yaml:"airline_name"`
	FlightNumber  string `yaml:"flight_number"`
	BookingRef    string `yaml:"booking_ref"`
	PassengerName string `yaml:"passenger_name"`
}

type airlineFile struct {
	Airlines []AirlineConfig `yaml:"airlines"`
}

type airlinePatterns struct {
	key           string
	airline       *regexp.Regexp
	flightNumber  *regexp.Regexp
	bookingRef    *regexp.Regexp
	passengerName *regexp.Regexp
}

// TagParser turns baggage tag text and barcode into a record
type TagParser struct {
	airlines []airlinePatterns
}

// NewTagParser compiles the given airline configs, preserving their order
func NewTagParser(configs []AirlineConfig) (*TagParser, error) {
	p := &TagParser{}
	for _, c := range configs {
		if c.Key == "" || c.AirlineName == "" {
			return nil, fmt.Errorf("airline config requires key and airline_name")
		}
		airline, err := regexp.Compile("(?i)" + c.AirlineName)
		if err != nil {
			return nil, fmt.Errorf("airline %s: airline_name: %w", c.Key, err)
		}
		ap := airlinePatterns{key: c.Key, airline: airline}
		for _, f := range []struct {
			name string
			expr string
			dst  **regexp.Regexp
		}{
			{"flight_number", c.FlightNumber, &ap.flightNumber},
			{"booking_ref", c.BookingRef, &ap.bookingRef},
			{"passenger_name", c.PassengerName, &ap.passengerName},
		} {
			if f.expr == "" {
				continue
			}
			re, err := regexp.Compile(f.expr)
			if err != nil {
				return nil, fmt.Errorf("airline %s: %s: %w", c.Key, f.name, err)
			}
			*f.dst = re
		}
		p.airlines = append(p.airlines, ap)
	}
	return p, nil
}

// ParseAirlineConfigs decodes an airline config YAML document
func ParseAirlineConfigs(data []byte) ([]AirlineConfig, error) {
	var f airlineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse airline configs: %w", err)
	}
	if len(f.Airlines) == 0 {
		return nil, fmt.Errorf("airline configs: no airlines defined")
	}
	return f.Airlines, nil
}

// LoadTagParser loads airline configs from path, or the built-in set when
// path is empty.
func LoadTagParser(path string) (*TagParser, error) {
	data := defaultAirlines
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read airline configs: %w", err)
		}
		data = b
	}
	configs, err := ParseAirlineConfigs(data)
	if err != nil {
		return nil, err
	}
	return NewTagParser(configs)
}

// Airlines returns the configured airline keys in match order
func (p *TagParser) Airlines() []string {
	keys := make([]string, len(p.airlines))
	for i, a := range p.airlines {
		keys[i] = a.key
	}
	return keys
}

// Parse extracts a baggage tag record. It returns nil when there is no
// text, no barcode, or no configured airline matches the text.
func (p *TagParser) Parse(text, barcode string) (*model.BaggageTagRecord, string) {
	text = strings.TrimSpace(text)
	barcode = strings.TrimSpace(barcode)
	if text == "" || barcode == "" {
		return nil, ""
	}

	for _, a := range p.airlines {
		if !a.airline.MatchString(text) {
			continue
		}
		rec := &model.BaggageTagRecord{
			AirlineName:      optional(a.airline.FindString(text)),
			FlightNumber:     find(a.flightNumber, text),
			BookingReference: find(a.bookingRef, text),
			Barcode:          model.String(barcode),
		}
		if name := find(a.passengerName, text); name != nil {
			rec.PassengerName = model.String(tagName(*name))
		}
		return rec, a.key
	}
	return nil, ""
}

func find(re *regexp.Regexp, text string) *string {
	if re == nil {
		return nil
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	if len(m) > 1 && m[1] != "" {
		return optional(strings.TrimSpace(m[1]))
	}
	return optional(strings.TrimSpace(m[0]))
}

// tagName rewrites "DOE/JOHN" as "JOHN DOE"
func tagName(s string) string {
	last, first, ok := strings.Cut(s, "/")
	if !ok {
		return s
	}
	return strings.TrimSpace(first) + " " + strings.TrimSpace(last)
}
