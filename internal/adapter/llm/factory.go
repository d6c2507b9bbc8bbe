package llm

import (
	"strings"

	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
)

// ModeMock selects the mock client.
const ModeMock = "MOCK"

// NewLLMClient creates a client based on cfg.LLMMode. LLM_MODE=MOCK returns a
// MockClient; anything else talks to the configured OpenAI-compatible endpoint.
func NewLLMClient(cfg *config.Config, log *logger.Logger) LLMClient {
	if strings.EqualFold(cfg.LLMMode, ModeMock) {
		log.Info("LLM_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is empty; completions will fail until it is set")
	}
	return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
}
