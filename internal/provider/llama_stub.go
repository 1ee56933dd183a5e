//go:build !llama

package provider

import "context"

// runtimeBuilt indicates this binary was compiled without llama support.
const runtimeBuilt = false

// llamaProvider is the no-CGO stub compiled when the 'llama' tag is not
// set. It refuses to create sessions rather than mock them, so default
// builds fail fast instead of producing fake completions.
type llamaProvider struct {
	ctxSize int
	threads int
}

// NewLlama constructs the stub provider.
func NewLlama(ctxSize, threads int) Provider {
	return &llamaProvider{ctxSize: ctxSize, threads: threads}
}

func (p *llamaProvider) Create(ctx context.Context, modelPath string, opts Options) (Session, error) {
	if err := progress(opts.Progress, 0); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

func (p *llamaProvider) Dispose(ctx context.Context, s Session) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

func (p *llamaProvider) LiveResources() int { return 0 }
