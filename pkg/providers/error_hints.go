package providers

import "strings"

var contextOverflowMarkers = []string{
	"maximum context length",
	"context_length_exceeded",
	"prompt is too long",
	"exceeds the context window",
	"input token count",
}

func augmentProviderError(providerName, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}
	lower := strings.ToLower(msg)

	for _, marker := range contextOverflowMarkers {
		if strings.Contains(lower, marker) {
			return msg + " Hint: the working context outgrew the model window. Set llm.token_limit (or a model catalog entry) so compaction can trigger, or lower memory.trigger_ratio."
		}
	}

	switch NormalizeProviderName(providerName) {
	case ProviderOpenAI:
		if strings.Contains(lower, "missing scopes: model.request") ||
			strings.Contains(lower, "insufficient permissions for this operation") {
			return msg + " Hint: OpenAI API calls require model.request access. If you are using a ChatGPT/Codex OAuth token, configure provider openai-codex instead."
		}
		if strings.Contains(lower, "incorrect api key provided") {
			return msg + " Hint: provider openai expects a Platform API credential. For ChatGPT/Codex OAuth, use provider openai-codex."
		}
	case ProviderOpenAICodex:
		if strings.Contains(lower, "missing scopes: model.request") ||
			strings.Contains(lower, "insufficient permissions for this operation") {
			return msg + " Hint: your OAuth token does not currently have model.request scope for this account/project."
		}
	case ProviderOllama:
		if strings.Contains(lower, "not found") && strings.Contains(lower, "model") {
			return msg + " Hint: pull the model first with `ollama pull <model>`."
		}
	}
	return msg
}

// IsContextOverflow reports whether err looks like the provider rejected the
// request for exceeding the model's context window.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range contextOverflowMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
