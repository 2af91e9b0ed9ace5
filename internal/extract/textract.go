package extract

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimlink/internal/model"
)

//go:embed configs/ticket_layouts.yaml
var defaultTicketLayouts []byte

const (
	textractMaxBytes = 10 << 20 // inline document limit
	textractLimitKey = "https://textract.amazonaws.com/"
)

// ErrNoPassportReader is returned when the Textract backend has no passport extractor
var ErrNoPassportReader = errors.New("no passport extractor configured")

// printed bag tag licence plate, the digits under the barcode
var licensePlate = regexp.MustCompile(`\b\d{10}\b`)

// textractAPI is the subset of the Textract client the extractor uses
type textractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// Box is a page region in fractions of the page size
type Box struct {
	Left   float64 `yaml:"left"`
	Top    float64 `yaml:"top"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (b Box) valid() bool {
	return b.Left >= 0 && b.Top >= 0 && b.Width > 0 && b.Height > 0 &&
		b.Left+b.Width <= 1 && b.Top+b.Height <= 1
}

func (b Box) contains(x, y float64) bool {
	return x >= b.Left && x <= b.Left+b.Width && y >= b.Top && y <= b.Top+b.Height
}

// TicketLayout maps region names to their boxes for one ticket type
type TicketLayout map[string]Box

type layoutFile struct {
	Layouts map[string]TicketLayout `yaml:"layouts"`
}

// ParseTicketLayouts decodes a ticket layout YAML document
func ParseTicketLayouts(data []byte) (map[string]TicketLayout, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ticket layouts: %w", err)
	}
	if len(f.Layouts) == 0 {
		return nil, fmt.Errorf("ticket layouts: no layouts defined")
	}
	for ticketType, layout := range f.Layouts {
		for region, box := range layout {
			if !box.valid() {
				return nil, fmt.Errorf("ticket layout %s: region %s lies outside the page", ticketType, region)
			}
		}
	}
	return f.Layouts, nil
}

// LoadTicketLayouts loads layouts from path, or the built-in set when path is empty
func LoadTicketLayouts(path string) (map[string]TicketLayout, error) {
	data := defaultTicketLayouts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ticket layouts: %w", err)
		}
		data = b
	}
	return ParseTicketLayouts(data)
}

// TextractExtractor reads flight tickets and baggage tags with AWS Textract.
// Passports go to a separate extractor since Textract has no authenticity check.
type TextractExtractor struct {
	client    textractAPI
	timeout   time.Duration
	tags      *TagParser
	layouts   map[string]TicketLayout
	passports Extractor
	limiter   Waiter
	logger    *slog.Logger
}

// TextractOption configures a TextractExtractor
type TextractOption func(*TextractExtractor)

// WithPassportExtractor sets the extractor used for passports
func WithPassportExtractor(e Extractor) TextractOption {
	return func(t *TextractExtractor) { t.passports = e }
}

// WithTextractLimiter rate limits Textract calls
func WithTextractLimiter(w Waiter) TextractOption {
	return func(t *TextractExtractor) { t.limiter = w }
}

// WithTextractLogger sets the logger
func WithTextractLogger(l *slog.Logger) TextractOption {
	return func(t *TextractExtractor) { t.logger = l }
}

// NewTextractExtractor loads AWS configuration and creates a Textract-backed extractor
func NewTextractExtractor(ctx context.Context, awsCfg model.AWSConfig, cfg model.ExtractorConfig, opts ...TextractOption) (*TextractExtractor, error) {
	resolved, err := loadAWSConfig(ctx, awsCfg)
	if err != nil {
		return nil, err
	}
	client := textract.NewFromConfig(resolved, func(o *textract.Options) {
		o.RetryMaxAttempts = cfg.MaxRetries + 1
	})
	return newTextractExtractor(client, cfg, opts...)
}

func newTextractExtractor(client textractAPI, cfg model.ExtractorConfig, opts ...TextractOption) (*TextractExtractor, error) {
	tags, err := LoadTagParser(cfg.AirlineConfigPath)
	if err != nil {
		return nil, err
	}
	layouts, err := LoadTicketLayouts(cfg.TicketLayoutPath)
	if err != nil {
		return nil, err
	}
	t := &TextractExtractor{
		client:  client,
		timeout: cfg.Timeout,
		tags:    tags,
		layouts: layouts,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ExtractPassport delegates to the configured passport extractor
func (t *TextractExtractor) ExtractPassport(ctx context.Context, doc Document) (*model.PassportRecord, error) {
	if t.passports == nil {
		return nil, ErrNoPassportReader
	}
	return t.passports.ExtractPassport(ctx, doc)
}

// ExtractFlightTicket detects the ticket layout from the page text, then
// reads each region from the lines that fall inside it.
func (t *TextractExtractor) ExtractFlightTicket(ctx context.Context, doc Document) (*model.FlightTicketRecord, error) {
	lines, err := t.analyze(ctx, doc)
	if err != nil {
		return nil, err
	}
	ticketType := DetectTicketType(joinLines(lines))
	layout, ok := t.layouts[ticketType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown ticket layout", ErrUnreadable)
	}
	t.logger.Debug("ticket layout detected", "document", doc.Name, "ticket_type", ticketType)
	return ParseTicketRegions(ticketType, layout.regions(lines)), nil
}

// ExtractBaggageTag parses the tag text. The printed licence plate stands in
// for the barcode, which Textract does not decode.
func (t *TextractExtractor) ExtractBaggageTag(ctx context.Context, doc Document) (*model.BaggageTagRecord, error) {
	lines, err := t.analyze(ctx, doc)
	if err != nil {
		return nil, err
	}
	text := joinLines(lines)
	rec, airline := t.tags.Parse(text, licensePlate.FindString(text))
	if rec == nil {
		return nil, fmt.Errorf("%w: no text, licence plate or known airline", ErrUnreadable)
	}
	t.logger.Debug("baggage tag parsed", "document", doc.Name, "airline", airline)
	return rec, nil
}

type textLine struct {
	text string
	x, y float64 // centre
}

// analyze runs TABLES and FORMS analysis and keeps the LINE blocks
func (t *TextractExtractor) analyze(ctx context.Context, doc Document) ([]textLine, error) {
	if len(doc.Data) > textractMaxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrUnreadable, textractMaxBytes)
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, textractLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	out, err := t.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: doc.Data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeTables, types.FeatureTypeForms},
	})
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}

	var lines []textLine
	for _, b := range out.Blocks {
		if b.BlockType != types.BlockTypeLine {
			continue
		}
		text := strings.TrimSpace(aws.ToString(b.Text))
		if text == "" {
			continue
		}
		line := textLine{text: text}
		if b.Geometry != nil && b.Geometry.BoundingBox != nil {
			bb := b.Geometry.BoundingBox
			line.x = float64(bb.Left + bb.Width/2)
			line.y = float64(bb.Top + bb.Height/2)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no text detected", ErrUnreadable)
	}
	return lines, nil
}

// regions joins the lines inside each box, top to bottom then left to right
func (l TicketLayout) regions(lines []textLine) map[string]string {
	out := make(map[string]string, len(l))
	for name, box := range l {
		var inside []textLine
		for _, line := range lines {
			if box.contains(line.x, line.y) {
				inside = append(inside, line)
			}
		}
		sort.SliceStable(inside, func(i, j int) bool {
			if inside[i].y != inside[j].y {
				return inside[i].y < inside[j].y
			}
			return inside[i].x < inside[j].x
		})
		out[name] = joinLines(inside)
	}
	return out
}

func joinLines(lines []textLine) string {
	parts := make([]string, len(lines))
	for i, line := range lines {
		parts[i] = line.text
	}
	return strings.Join(parts, " ")
}
