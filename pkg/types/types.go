package types

// Model represents a discoverable or loadable quantized model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// GenerationConfig is the derived sampling configuration attached to a
// loaded engine. Values come from pure lookup tables keyed by tier/domain.
type GenerationConfig struct {
	// Maximum number of new tokens an engine call may produce.
	// example: 512
	MaxTokens int `json:"max_tokens" example:"512"`
	// Sampling temperature.
	// example: 0.7
	Temperature float32 `json:"temperature" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float32 `json:"top_p" example:"0.9"`
	// Top-K sampling cutoff.
	// example: 40
	TopK int `json:"top_k" example:"40"`
	// Stop sequences terminating generation.
	Stop []string `json:"stop,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of loadable models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found for tier "high"
	Error string `json:"error" example:"model not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
	// Failure classification (network, memory, gpu, timeout, ...).
	// example: timeout
	Class string `json:"class,omitempty" example:"timeout"`
}
