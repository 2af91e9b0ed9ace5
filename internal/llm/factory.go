package llm

import (
	"github.com/ppiankov/claimlink/internal/model"
)

// NewProvider creates the provider described by cfg, or nil when the
// reviewer note is disabled
func NewProvider(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) (Provider, error) {
	if !llmCfg.Enabled {
		return nil, nil
	}
	p, err := NewOpenAIProvider(ConfigFromModel(llmCfg, httpCfg))
	if err != nil {
		return nil, err
	}
	return p, nil
}
