//go:build llama

package provider

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	llama "github.com/go-skynet/go-llama.cpp"
)

// runtimeBuilt indicates this binary was compiled with real llama support.
const runtimeBuilt = true

// llamaProvider loads gguf models in-process through go-llama.cpp.
type llamaProvider struct {
	ctxSize int
	threads int
	live    atomic.Int64
}

// NewLlama constructs the in-process llama.cpp provider.
func NewLlama(ctxSize, threads int) Provider {
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	if threads <= 0 {
		threads = 4
	}
	return &llamaProvider{ctxSize: ctxSize, threads: threads}
}

type llamaSession struct {
	model   *llama.LLama
	threads int
	owner   *llamaProvider
	closed  atomic.Bool
}

func (p *llamaProvider) Create(ctx context.Context, modelPath string, opts Options) (Session, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := progress(opts.Progress, 0); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxSize := opts.CtxSize
	if ctxSize <= 0 {
		ctxSize = p.ctxSize
	}
	m, err := llama.New(modelPath, llama.SetContext(ctxSize))
	if err != nil {
		return nil, err
	}
	threads := opts.Threads
	if threads <= 0 {
		threads = p.threads
	}
	p.live.Add(1)
	if err := progress(opts.Progress, 1); err != nil {
		// Caller aborted between native load and handoff; release now.
		m.Free()
		p.live.Add(-1)
		return nil, err
	}
	return &llamaSession{model: m, threads: threads, owner: p}, nil
}

func (p *llamaProvider) Dispose(ctx context.Context, s Session) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

func (p *llamaProvider) LiveResources() int {
	return int(p.live.Load())
}

func (s *llamaSession) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	if s.model == nil || s.closed.Load() {
		return "", errors.New("llama session closed")
	}
	s.model.SetTokenCallback(func(tok string) bool {
		return ctx.Err() == nil
	})
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, params.MaxTokens)),
		llama.SetThreads(s.threads),
	}
	if params.Temperature > 0 {
		po = append(po, llama.SetTemperature(params.Temperature))
	}
	if params.TopP > 0 {
		po = append(po, llama.SetTopP(params.TopP))
	}
	if params.TopK > 0 {
		po = append(po, llama.SetTopK(params.TopK))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	text, err := s.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return text, nil
}

func (s *llamaSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	if s.owner != nil {
		s.owner.live.Add(-1)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
