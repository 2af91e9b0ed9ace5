package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrDisallowed is returned when robots.txt forbids fetching a document
var ErrDisallowed = errors.New("fetch disallowed by robots.txt")

// ErrHostNotAllowed is returned for hosts outside the source's allow-list
var ErrHostNotAllowed = errors.New("document host not allowed")

// HTTPSource fetches documents over HTTP(S)
type HTTPSource struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	robots    *RobotsChecker
	hosts     map[string]bool // nil allows every host
	sleep     func(context.Context, time.Duration) error
}

// HTTPSourceOption configures an HTTPSource
type HTTPSourceOption func(*HTTPSource)

// WithRobots makes the source honour robots.txt rules and crawl delays
func WithRobots(rc *RobotsChecker) HTTPSourceOption {
	return func(s *HTTPSource) { s.robots = rc }
}

// WithAllowedHosts restricts fetches to the named hosts
func WithAllowedHosts(hosts ...string) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.hosts = make(map[string]bool, len(hosts))
		for _, h := range hosts {
			s.hosts[strings.ToLower(strings.TrimSpace(h))] = true
		}
	}
}

// NewHTTPSource creates an HTTP document source
func NewHTTPSource(client *http.Client, userAgent string, maxBytes int64, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		client:    client,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open downloads the document at uri
func (s *HTTPSource) Open(ctx context.Context, uri string) (Document, error) {
	if s.hosts != nil {
		u, err := url.Parse(uri)
		if err != nil || !s.hosts[strings.ToLower(u.Hostname())] {
			return Document{}, ErrHostNotAllowed
		}
	}
	if s.robots != nil {
		allowed, delay, err := s.robots.CanFetch(ctx, uri)
		if err != nil {
			return Document{}, err
		}
		if !allowed {
			return Document{}, fmt.Errorf("%w: %s", ErrDisallowed, uri)
		}
		if delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return Document{}, err
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Document{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "image/*,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return Document{}, fmt.Errorf("read body: %w", err)
	}

	name := uri
	if u, err := url.Parse(resp.Request.URL.String()); err == nil {
		name = path.Base(u.Path)
	}
	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	} else {
		contentType = contentTypeFor(name)
	}

	return Document{URI: uri, Name: name, ContentType: contentType, Data: data}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
