package core

// DefaultModelForProvider returns the default model for a provider.
var DefaultModelForProvider = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-5.2",
	"gemini":    "gemini-3-flash-preview",
	"ollama":    "llama3.3",
	"mock":      "mock-v1",
}

// DisplayNameForProvider returns the label shown to other participants
// when a provider's turns are framed into their requests.
var DisplayNameForProvider = map[string]string{
	"anthropic": "Claude",
	"openai":    "GPT",
	"gemini":    "Gemini",
	"ollama":    "Ollama",
	"mock":      "Mock",
	UserProvider: "User",
}

// KeyEnvForProvider returns the environment variable holding a provider's
// API key. Providers with an empty entry need no credential.
var KeyEnvForProvider = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"ollama":    "",
	"mock":      "",
}

// DisplayName returns the display label for a provider id, falling back to
// the raw id for providers registered without one.
func DisplayName(id string) string {
	if name, ok := DisplayNameForProvider[id]; ok {
		return name
	}
	return id
}
