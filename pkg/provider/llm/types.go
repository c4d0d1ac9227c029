package llm

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// SearchResult is a single web source consulted by a search-capable model
// (e.g. groq/compound). Providers without built-in search never populate these.
type SearchResult struct {
	// Title is the page title of the source.
	Title string

	// URL is the full source URL.
	URL string

	// Snippet is the retrieved content excerpt.
	Snippet string

	// Score is the provider-reported relevance (0.0–1.0), zero when unreported.
	Score float64
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsSearch indicates the model performs built-in web search and may
	// attach SearchResults to its responses.
	SupportsSearch bool
}
