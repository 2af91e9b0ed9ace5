package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ppiankov/claimlink/internal/assess"
	"github.com/ppiankov/claimlink/internal/cache"
	"github.com/ppiankov/claimlink/internal/extract"
	"github.com/ppiankov/claimlink/internal/ledger"
	"github.com/ppiankov/claimlink/internal/llm"
	"github.com/ppiankov/claimlink/internal/metrics"
	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/store"
	"github.com/ppiankov/claimlink/internal/util"
	"github.com/ppiankov/claimlink/internal/worker"
)

// app holds the wired components for one command run
type app struct {
	cfg      model.Config
	logger   *slog.Logger
	pipeline *assess.Pipeline
	store    store.Store
	registry *prometheus.Registry

	closers []io.Closer
}

// uploadPolicy selects which document URIs the app may open
type uploadPolicy int

const (
	uploadsLocal  uploadPolicy = iota // any path, host or bucket the operator names
	uploadsServer                     // only the directory, hosts and buckets in server.*
)

// newApp wires sources, extractor, cache, store, ledger, metrics and the
// reviewer into an assessment pipeline.
func newApp(ctx context.Context, cfg model.Config, logger *slog.Logger, policy uploadPolicy) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	httpClient := util.NewHTTPClient(cfg.HTTP.Timeout, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)

	// Document sources
	router, closers, err := newSourceRouter(ctx, cfg, httpClient, logger, policy)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closers...)

	// OCR extractor
	var extractor extract.Extractor
	if cfg.Extractor.Enabled {
		extractor, err = newExtractor(ctx, cfg, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("extractor: %w", err)
		}
	}

	// Extraction cache
	resolverOpts := []extract.ResolverOption{extract.WithResolverLogger(logger)}
	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if c != nil {
		if closer, ok := c.(io.Closer); ok {
			a.closers = append(a.closers, closer)
		}
		resolverOpts = append(resolverOpts, extract.WithCache(c, cfg.Cache.TTL))
	}
	resolver := extract.NewResolver(router, extractor, resolverOpts...)

	// Persistence and notarization
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st)

	notarizer, err := ledger.New(ctx, cfg.Ledger, ledger.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	a.closers = append(a.closers, notarizer)

	// Optional reviewer note
	provider, err := llm.NewProvider(cfg.LLM, cfg.HTTP)
	if err != nil {
		logger.Warn("reviewer note disabled", "error", err)
		provider = nil
	}

	p, err := assess.NewPipelineFromConfig(cfg, resolver,
		assess.WithLogger(logger),
		assess.WithStore(st),
		assess.WithLedger(notarizer),
		assess.WithMetrics(m),
		assess.WithReviewer(llm.NewReviewer(provider)),
	)
	if err != nil {
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

// newSourceRouter registers the document sources allowed by policy. Server
// submissions come from remote callers, so only the configured uploads
// directory, hosts and buckets are reachable; unregistered schemes fail
// extraction.
// newExtractor builds the configured OCR backend. The textract backend still
// reads passports through the ID analysis service when base_url is set.
func newExtractor(ctx context.Context, cfg model.Config, httpClient *http.Client, logger *slog.Logger) (extract.Extractor, error) {
	limiter := worker.NewLimiterFromConfig(cfg.Extractor)
	var client *extract.Client
	if cfg.Extractor.BaseURL != "" || cfg.Extractor.Backend != "textract" {
		c, err := extract.NewClient(cfg.Extractor, httpClient, cfg.HTTP.UserAgent,
			extract.WithLimiter(limiter),
			extract.WithClientLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		client = c
	}
	if cfg.Extractor.Backend != "textract" {
		return client, nil
	}

	opts := []extract.TextractOption{
		extract.WithTextractLimiter(limiter),
		extract.WithTextractLogger(logger),
	}
	if client != nil {
		opts = append(opts, extract.WithPassportExtractor(client))
	}
	tx, err := extract.NewTextractExtractor(ctx, cfg.AWS, cfg.Extractor, opts...)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func newSourceRouter(ctx context.Context, cfg model.Config, httpClient *http.Client, logger *slog.Logger, policy uploadPolicy) (*extract.Router, []io.Closer, error) {
	router := extract.NewRouter()
	var closers []io.Closer
	server := policy == uploadsServer

	switch {
	case !server:
		router.Handle("file", extract.NewFileSource(cfg.HTTP.MaxBodyBytes))
	case cfg.Server.UploadsDir != "":
		files, err := extract.NewRootedFileSource(cfg.Server.UploadsDir, cfg.HTTP.MaxBodyBytes)
		if err != nil {
			return nil, nil, err
		}
		router.Handle("file", files)
		closers = append(closers, files)
	}

	if !server || len(cfg.Server.UploadHosts) > 0 {
		var httpOpts []extract.HTTPSourceOption
		if cfg.HTTP.RespectRobots {
			httpOpts = append(httpOpts, extract.WithRobots(extract.NewRobotsChecker(httpClient, cfg.HTTP.UserAgent)))
		}
		if server {
			httpOpts = append(httpOpts, extract.WithAllowedHosts(cfg.Server.UploadHosts...))
		}
		httpSource := extract.NewHTTPSource(httpClient, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes, httpOpts...)
		router.Handle("http", httpSource).Handle("https", httpSource)
	}

	if !server || len(cfg.Server.UploadBuckets) > 0 {
		s3Source, err := extract.NewS3Source(ctx, cfg.AWS, cfg.HTTP.MaxBodyBytes)
		switch {
		case err != nil:
			logger.Warn("s3 document source unavailable", "error", err)
		case server:
			router.Handle("s3", s3Source.AllowBuckets(cfg.Server.UploadBuckets...))
		default:
			router.Handle("s3", s3Source)
		}
	}
	return router, closers, nil
}

// Close releases every component in reverse order
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
