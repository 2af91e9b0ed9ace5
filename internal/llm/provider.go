// Package llm drafts optional reviewer notes for claims routed to manual
// review. Notes are advisory and never change a verdict.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/claimlink/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Draft generates a reviewer note for the request
	Draft(ctx context.Context, req NoteRequest) (*NoteResponse, error)
}

// NoteRequest contains the input for a reviewer note
type NoteRequest struct {
	// Report is the assessed claim; its verdict is final
	Report model.Report

	// Prompt overrides the default prompt when set
	Prompt string
}

// NoteResponse contains the provider's output
type NoteResponse struct {
	Note       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint, e.g. a local Ollama server
	MaxTokens   int
	Temperature float32
	Timeout     int // seconds

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts the application LLM and HTTP settings
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Model:       llmCfg.Model,
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		Timeout:     int(llmCfg.Timeout.Seconds()),
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}

// BuildPrompt constructs the default reviewer note prompt
func BuildPrompt(report model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are assisting a human claims reviewer. A travel insurance claim was checked for consistency between the customer's declared details, passport, flight ticket and baggage tag. The automated verdict below is FINAL.

CRITICAL RULES:
1. Do NOT change, question or restate the verdict as your own decision.
2. Only discuss the flagged error kinds listed below. Do not invent other problems.
3. Never say the customer is lying or committing fraud. Describe inconsistencies only.
4. Suggest concrete checks the reviewer can perform for each flagged item.

Claim: %s
Verdict: %s (severity %s)
Aggregate risk score: %.3f

Flagged error kinds:
`, report.Reference, report.Verdict.Status, report.Verdict.Severity, report.Verdict.Aggregate)

	kinds := report.Verdict.Errors.Kinds()
	if len(kinds) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, kind := range kinds {
		score := report.Verdict.Errors[kind]
		if score == nil {
			fmt.Fprintf(&b, "- %s (document unreadable or missing)\n", kind)
			continue
		}
		fmt.Fprintf(&b, "- %s (similarity %.0f/100)\n", kind, *score)
	}

	if len(report.Extraction) > 0 {
		b.WriteString("\nDocument extraction:\n")
		for _, o := range report.Extraction {
			fmt.Fprintf(&b, "- %s: %s\n", o.Document, o.State)
		}
	}

	b.WriteString("\nWrite 3-5 short Markdown bullet points for the reviewer.")
	return b.String()
}
