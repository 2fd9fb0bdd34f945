package ai

// Chat roles used by mimir.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single message in the Ollama chat format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat. Field order matches the
// documented payload: model, stream, messages.
type ChatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
	Options  *Options  `json:"options,omitempty"`
}

// Options controls generation parameters. Unset fields use model defaults.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// Model is one entry of GET /api/tags.
type Model struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	Size       int64        `json:"size"`
	ModifiedAt string       `json:"modified_at"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails describes a local model.
type ModelDetails struct {
	Family            string `json:"family"`
	ParameterSize     string `json:"parameter_size"`
	QuantizationLevel string `json:"quantization_level"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
}
