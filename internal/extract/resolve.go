package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/claimlink/internal/cache"
	"github.com/ppiankov/claimlink/internal/model"
)

// Resolver obtains the record for each document of a submission: inline
// records are used as given, uploads are opened and extracted, and
// extraction results are cached by document content.
type Resolver struct {
	source    Source
	extractor Extractor
	cache     cache.Cache
	ttl       time.Duration
	logger    *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithCache caches extraction results for ttl
func WithCache(c cache.Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithResolverLogger sets the logger
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. extractor may be nil, in which case any
// upload without an inline record fails with ErrNotConfigured.
func NewResolver(source Source, extractor Extractor, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:    source,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Passport resolves the passport record
func (r *Resolver) Passport(ctx context.Context, inline *model.PassportRecord, uri string) Result[model.PassportRecord] {
	var fn func(context.Context, Document) (*model.PassportRecord, error)
	if r.extractor != nil {
		fn = r.extractor.ExtractPassport
	}
	return resolve(ctx, r, model.DocumentPassport, inline, uri, fn)
}

// FlightTicket resolves the flight ticket record
func (r *Resolver) FlightTicket(ctx context.Context, inline *model.FlightTicketRecord, uri string) Result[model.FlightTicketRecord] {
	var fn func(context.Context, Document) (*model.FlightTicketRecord, error)
	if r.extractor != nil {
		fn = r.extractor.ExtractFlightTicket
	}
	return resolve(ctx, r, model.DocumentFlightTicket, inline, uri, fn)
}

// BaggageTag resolves the baggage tag record
func (r *Resolver) BaggageTag(ctx context.Context, inline *model.BaggageTagRecord, uri string) Result[model.BaggageTagRecord] {
	var fn func(context.Context, Document) (*model.BaggageTagRecord, error)
	if r.extractor != nil {
		fn = r.extractor.ExtractBaggageTag
	}
	return resolve(ctx, r, model.DocumentBaggageTag, inline, uri, fn)
}

func resolve[T any](
	ctx context.Context,
	r *Resolver,
	docType model.DocumentType,
	inline *T,
	uri string,
	fn func(context.Context, Document) (*T, error),
) Result[T] {
	if inline != nil {
		return Inline(inline)
	}
	if uri == "" {
		return Missing[T]()
	}
	if r.source == nil {
		return Failed[T](uri, ErrUnsupportedScheme)
	}

	doc, err := r.source.Open(ctx, uri)
	if err != nil {
		r.logger.Warn("document open failed", "document", docType, "uri", uri, "error", err)
		return Failed[T](uri, err)
	}

	key := cache.Key(string(docType), doc.Data)
	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, key); ok {
			var rec T
			if err := json.Unmarshal(data, &rec); err == nil {
				return Extracted(uri, &rec, true)
			}
			_ = r.cache.Delete(ctx, key)
		}
	}

	if fn == nil {
		return Failed[T](uri, ErrNotConfigured)
	}
	rec, err := fn(ctx, doc)
	if err != nil {
		r.logger.Warn("extraction failed", "document", docType, "uri", uri, "error", err)
		return Failed[T](uri, err)
	}
	if rec == nil {
		return Failed[T](uri, ErrUnreadable)
	}

	if r.cache != nil {
		if data, err := json.Marshal(rec); err == nil {
			if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
				r.logger.Debug("cache write failed", "document", docType, "error", err)
			}
		}
	}
	return Extracted(uri, rec, false)
}
