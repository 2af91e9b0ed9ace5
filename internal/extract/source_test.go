package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ppiankov/claimlink/internal/cache"
	"github.com/ppiankov/claimlink/internal/model"
)

func TestRouter_FileAndUnknownScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ticket.pdf")
	if err := os.WriteFile(path, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRouter().Handle("file", NewFileSource(0))
	doc, err := r.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.Name != "ticket.pdf" || string(doc.Data) != "pdf" {
		t.Errorf("Unexpected document %+v", doc)
	}
	if doc.ContentType != "application/pdf" {
		t.Errorf("Expected application/pdf, got %q", doc.ContentType)
	}

	if _, err := r.Open(context.Background(), "file://"+path); err != nil {
		t.Errorf("Expected file:// URI to open, got %v", err)
	}
	if _, err := r.Open(context.Background(), "ftp://host/x"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("Expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestFileSource_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jpg")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 11), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource(10).Open(context.Background(), path); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestRootedFileSource(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	if err := os.Mkdir(uploads, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "tag.jpg"), []byte("tag"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "secret.txt"), filepath.Join(uploads, "link.txt")); err != nil {
		t.Fatal(err)
	}

	src, err := NewRootedFileSource(uploads, 0)
	if err != nil {
		t.Fatalf("NewRootedFileSource failed: %v", err)
	}
	defer func() { _ = src.Close() }()
	ctx := context.Background()

	for _, uri := range []string{"tag.jpg", filepath.Join(uploads, "tag.jpg"), "file://" + filepath.Join(uploads, "tag.jpg")} {
		doc, err := src.Open(ctx, uri)
		if err != nil || string(doc.Data) != "tag" {
			t.Errorf("Open(%q) = %q, %v; want tag", uri, doc.Data, err)
		}
	}

	for _, uri := range []string{
		filepath.Join(dir, "secret.txt"),
		"../secret.txt",
		"file://" + filepath.Join(dir, "secret.txt"),
		"/etc/passwd",
	} {
		if _, err := src.Open(ctx, uri); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Open(%q): expected ErrOutsideRoot, got %v", uri, err)
		}
	}

	if doc, err := src.Open(ctx, "link.txt"); err == nil {
		t.Errorf("Expected symlink escaping the directory to fail, read %q", doc.Data)
	}
}

func TestHTTPSource_AllowedHosts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, "png")
	}))
	defer server.Close()

	src := NewHTTPSource(server.Client(), "ua", 0, WithAllowedHosts("uploads.example.com"))
	if _, err := src.Open(context.Background(), server.URL+"/tag.png"); !errors.Is(err, ErrHostNotAllowed) {
		t.Errorf("Expected ErrHostNotAllowed, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("Expected no request to a host outside the allow-list, got %d", hits.Load())
	}

	allowed := NewHTTPSource(server.Client(), "ua", 0, WithAllowedHosts("127.0.0.1"))
	if _, err := allowed.Open(context.Background(), server.URL+"/tag.png"); err != nil {
		t.Errorf("Expected allowed host to be fetched, got %v", err)
	}
}

func TestHTTPSource_RespectsRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
		default:
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = fmt.Fprint(w, "png")
		}
	}))
	defer server.Close()

	client := server.Client()
	src := NewHTTPSource(client, "claimlink/0.1", 1<<20, WithRobots(NewRobotsChecker(client, "claimlink/0.1")))

	doc, err := src.Open(context.Background(), server.URL+"/uploads/tag.png")
	if err != nil {
		t.Fatalf("Expected allowed fetch, got %v", err)
	}
	if doc.ContentType != "image/png" || doc.Name != "tag.png" {
		t.Errorf("Unexpected document %+v", doc)
	}

	if _, err := src.Open(context.Background(), server.URL+"/private/tag.png"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("Expected ErrDisallowed, got %v", err)
	}
}

func TestHTTPSource_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewHTTPSource(server.Client(), "ua", 0)
	if _, err := src.Open(context.Background(), server.URL+"/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	rc := NewRobotsChecker(server.Client(), "claimlink")
	allowed, delay, err := rc.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil || !allowed || delay != 0 {
		t.Errorf("Expected allowed with no delay, got %v %v %v", allowed, delay, err)
	}
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewBufferString(f.body)),
		ContentType: aws.String("image/jpeg"),
	}, nil
}

func TestS3Source_Open(t *testing.T) {
	fake := &fakeS3{body: "jpeg"}
	src := newS3SourceWithClient(fake, 0)

	doc, err := src.Open(context.Background(), "s3://claims-uploads/2024/passport.jpg")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if fake.bucket != "claims-uploads" || fake.key != "2024/passport.jpg" {
		t.Errorf("Unexpected object %s/%s", fake.bucket, fake.key)
	}
	if doc.Name != "passport.jpg" || doc.ContentType != "image/jpeg" || string(doc.Data) != "jpeg" {
		t.Errorf("Unexpected document %+v", doc)
	}
}

func TestS3Source_AllowBuckets(t *testing.T) {
	fake := &fakeS3{body: "jpeg"}
	src := newS3SourceWithClient(fake, 0).AllowBuckets("claims-uploads")

	if _, err := src.Open(context.Background(), "s3://claims-uploads/tag.jpg"); err != nil {
		t.Errorf("Expected allowed bucket to open, got %v", err)
	}
	fake.bucket = ""
	if _, err := src.Open(context.Background(), "s3://billing/export.csv"); !errors.Is(err, ErrBucketNotAllowed) {
		t.Errorf("Expected ErrBucketNotAllowed, got %v", err)
	}
	if fake.bucket != "" {
		t.Errorf("Expected no request for a bucket outside the allow-list, got %q", fake.bucket)
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		wantErr bool
	}{
		{"s3://bucket/key.jpg", false},
		{"s3://bucket/", true},
		{"s3:///key", true},
		{"https://bucket/key", true},
	}
	for _, tt := range tests {
		_, _, err := parseS3URI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseS3URI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
		}
	}
}

type stubSource map[string]string

func (s stubSource) Open(ctx context.Context, uri string) (Document, error) {
	data, ok := s[uri]
	if !ok {
		return Document{}, os.ErrNotExist
	}
	return Document{URI: uri, Name: uri, Data: []byte(data)}, nil
}

type stubExtractor struct {
	calls atomic.Int32
	err   error
}

func (e *stubExtractor) ExtractPassport(ctx context.Context, doc Document) (*model.PassportRecord, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return &model.PassportRecord{Name: model.String(string(doc.Data))}, nil
}

func (e *stubExtractor) ExtractFlightTicket(ctx context.Context, doc Document) (*model.FlightTicketRecord, error) {
	e.calls.Add(1)
	return nil, nil
}

func (e *stubExtractor) ExtractBaggageTag(ctx context.Context, doc Document) (*model.BaggageTagRecord, error) {
	e.calls.Add(1)
	return &model.BaggageTagRecord{Barcode: model.String("1")}, nil
}

func TestResolver_States(t *testing.T) {
	ctx := context.Background()
	ex := &stubExtractor{}
	r := NewResolver(stubSource{"p.jpg": "JOHN DOE", "t.pdf": "ticket"}, ex)

	inline := r.Passport(ctx, &model.PassportRecord{Name: model.String("inline")}, "p.jpg")
	if inline.State != model.ExtractionInline || model.Value(inline.Record.Name) != "inline" {
		t.Errorf("Expected inline record to win, got %+v", inline)
	}

	if missing := r.BaggageTag(ctx, nil, ""); missing.State != model.ExtractionMissing || missing.Record != nil {
		t.Errorf("Expected missing state, got %+v", missing)
	}

	ok := r.Passport(ctx, nil, "p.jpg")
	if ok.State != model.ExtractionOK || model.Value(ok.Record.Name) != "JOHN DOE" {
		t.Errorf("Expected extracted record, got %+v", ok)
	}

	if failed := r.Passport(ctx, nil, "nope.jpg"); failed.State != model.ExtractionFailed || failed.Err == nil {
		t.Errorf("Expected open failure, got %+v", failed)
	}

	if nilRec := r.FlightTicket(ctx, nil, "t.pdf"); nilRec.State != model.ExtractionFailed || !errors.Is(nilRec.Err, ErrUnreadable) {
		t.Errorf("Expected nil record to fail as unreadable, got %+v", nilRec)
	}

	out := ok.Outcome(model.DocumentPassport)
	if out.Document != model.DocumentPassport || out.State != model.ExtractionOK || out.Source != "p.jpg" {
		t.Errorf("Unexpected outcome %+v", out)
	}
}

func TestResolver_NoExtractor(t *testing.T) {
	r := NewResolver(stubSource{"p.jpg": "x"}, nil)
	res := r.Passport(context.Background(), nil, "p.jpg")
	if !errors.Is(res.Err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", res.Err)
	}
}

func TestResolver_CachesByContent(t *testing.T) {
	ctx := context.Background()
	ex := &stubExtractor{}
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	r := NewResolver(stubSource{"a.jpg": "JOHN DOE", "b.jpg": "JOHN DOE"}, ex, WithCache(mem, time.Minute))

	first := r.Passport(ctx, nil, "a.jpg")
	second := r.Passport(ctx, nil, "b.jpg")

	if first.Cached {
		t.Error("Expected first extraction to miss the cache")
	}
	if !second.Cached || model.Value(second.Record.Name) != "JOHN DOE" {
		t.Errorf("Expected identical content to hit the cache, got %+v", second)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("Expected one extractor call, got %d", ex.calls.Load())
	}
}

func TestResolver_FailureNotCached(t *testing.T) {
	ctx := context.Background()
	ex := &stubExtractor{err: errors.New("boom")}
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	r := NewResolver(stubSource{"a.jpg": "x"}, ex, WithCache(mem, time.Minute))

	_ = r.Passport(ctx, nil, "a.jpg")
	_ = r.Passport(ctx, nil, "a.jpg")
	if ex.calls.Load() != 2 {
		t.Errorf("Expected failures not to be cached, got %d calls", ex.calls.Load())
	}
	if mem.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", mem.Len())
	}
}
