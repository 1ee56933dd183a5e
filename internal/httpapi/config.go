package httpapi

import (
	"context"

	"github.com/go-chi/cors"
)

// maxBodyBytes caps request bodies accepted by the JSON endpoints.
const maxBodyBytes = 1 << 20 // 1 MiB

var corsOptions = cors.Options{
	AllowedOrigins:   []string{"http://localhost", "http://127.0.0.1"},
	AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
	AllowedHeaders:   []string{"Accept", "Content-Type"},
	AllowCredentials: false,
	MaxAge:           300,
}

// SetCORSOptions overrides the CORS policy applied by NewMux. Call it
// before building the mux.
func SetCORSOptions(o cors.Options) { corsOptions = o }

// baseCtx, when set, bounds every request handled by the mux. The
// server installs its shutdown context here so in-flight loads observe
// process termination.
var baseCtx context.Context

// SetBaseContext installs a context joined into every request context.
func SetBaseContext(ctx context.Context) { baseCtx = ctx }

// requestContext joins the request context with the base context so a
// handler aborts when either is cancelled.
func requestContext(reqCtx context.Context) (context.Context, context.CancelFunc) {
	if baseCtx == nil {
		return context.WithCancel(reqCtx)
	}
	ctx, cancel := context.WithCancel(reqCtx)
	go func() {
		select {
		case <-baseCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
