package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimlink/internal/model"
)

// Assessor assesses a single claim submission
type Assessor interface {
	Assess(ctx context.Context, sub *model.Submission) (*model.Report, error)
}

// AssessJob assesses one submission loaded from Source
type AssessJob struct {
	Source     string
	Submission *model.Submission
	Assessor   Assessor
	Timeout    time.Duration
}

// Execute runs the assessment under the job's timeout
func (j *AssessJob) Execute(ctx context.Context) *BatchResult {
	res := &BatchResult{Source: j.Source}
	if j.Submission == nil {
		res.Error = fmt.Errorf("no submission")
		return res
	}
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	res.Report, res.Error = j.Assessor.Assess(ctx, j.Submission)
	return res
}

// BatchResult is the outcome of one submission in a batch
type BatchResult struct {
	Source string
	Report *model.Report
	Error  error
}

// Summary counts batch outcomes
type Summary struct {
	Total    int
	Failed   int
	ByStatus map[model.Status]int
}

// Summarize counts results by verdict status
func Summarize(results []*BatchResult) Summary {
	s := Summary{Total: len(results), ByStatus: make(map[model.Status]int)}
	for _, r := range results {
		if r == nil || r.Error != nil || r.Report == nil {
			s.Failed++
			continue
		}
		s.ByStatus[r.Report.Verdict.Status]++
	}
	return s
}

// BatchProcessor assesses many submissions concurrently
type BatchProcessor struct {
	assessor     Assessor
	concurrency  int
	claimTimeout time.Duration
	logger       *slog.Logger
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(assessor Assessor, cfg model.ConcurrencyConfig, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		assessor:     assessor,
		concurrency:  cfg.Workers,
		claimTimeout: cfg.ClaimTimeout,
		logger:       logger,
	}
}

// ProcessSubmissions assesses submissions concurrently; results keep input order
func (b *BatchProcessor) ProcessSubmissions(ctx context.Context, subs []*model.Submission) []*BatchResult {
	jobs := make([]Job[*BatchResult], len(subs))
	for i, sub := range subs {
		source := sub.ClaimID
		if source == "" {
			source = fmt.Sprintf("#%d", i+1)
		}
		jobs[i] = &AssessJob{Source: source, Submission: sub, Assessor: b.assessor, Timeout: b.claimTimeout}
	}
	return b.run(ctx, jobs)
}

// ProcessPaths loads and assesses submission files. Unreadable files become
// failed results rather than aborting the batch.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*BatchResult {
	jobs := make([]Job[*BatchResult], len(paths))
	for i, p := range paths {
		sub, err := LoadSubmission(p)
		if err != nil {
			b.logger.Warn("skipping submission", "path", p, "error", err)
			jobs[i] = JobFunc[*BatchResult](func(context.Context) *BatchResult {
				return &BatchResult{Source: p, Error: err}
			})
			continue
		}
		jobs[i] = &AssessJob{Source: p, Submission: sub, Assessor: b.assessor, Timeout: b.claimTimeout}
	}
	return b.run(ctx, jobs)
}

// ProcessTarget resolves a directory or list file into submission paths and
// processes them
func (b *BatchProcessor) ProcessTarget(ctx context.Context, target string) ([]*BatchResult, error) {
	paths, err := SubmissionPaths(target)
	if err != nil {
		return nil, err
	}
	return b.ProcessPaths(ctx, paths), nil
}

func (b *BatchProcessor) run(ctx context.Context, jobs []Job[*BatchResult]) []*BatchResult {
	if len(jobs) == 0 {
		return []*BatchResult{}
	}
	start := time.Now()
	results := Run(ctx, b.concurrency, jobs)
	for i, r := range results {
		if r == nil {
			results[i] = &BatchResult{Error: ctx.Err()}
		}
	}
	b.logger.Info("batch complete", "submissions", len(jobs), "duration", time.Since(start))
	return results
}

// SubmissionPaths lists submission files. A directory yields its *.json,
// *.yaml and *.yml files sorted by name; any other file is read as a list of
// paths, one per line, relative to the list file.
func SubmissionPaths(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(target)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}
		var paths []string
		for _, e := range entries {
			if e.IsDir() || !isSubmissionFile(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(target, e.Name()))
		}
		sort.Strings(paths)
		return paths, nil
	}
	return ReadPathsFromFile(target)
}

// ReadPathsFromFile reads paths from a list file, skipping blanks, comments
// and duplicates
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return paths, nil
}

// LoadSubmission reads a JSON or YAML submission file
func LoadSubmission(path string) (*model.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submission: %w", err)
	}
	return DecodeSubmission(data, filepath.Ext(path))
}

// DecodeSubmission decodes a submission; ext selects YAML (".yaml", ".yml")
// or JSON (anything else). YAML keys follow the JSON field names.
func DecodeSubmission(data []byte, ext string) (*model.Submission, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse submission yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert submission yaml: %w", err)
		}
		data = converted
	}

	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("parse submission: %w", err)
	}
	return &sub, nil
}

func isSubmissionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
