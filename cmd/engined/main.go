// Command engined runs the model loading orchestrator daemon: it scans a
// models directory, builds the availability catalog, and serves the HTTP
// API for tiered engine loading, disposal and recreation.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"engined/internal/catalog"
	"engined/internal/config"
	"engined/internal/httpapi"
	"engined/internal/orchestrator"
	"engined/internal/provider"
)

var (
	flagConfig    string
	flagAddr      string
	flagModelsDir string
	flagLogLevel  string
)

func main() {
	root := &cobra.Command{
		Use:   "engined",
		Short: "Model loading orchestrator for quantized local inference engines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "config file (.yaml, .json or .toml)")
	root.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	root.Flags().StringVar(&flagModelsDir, "models-dir", "", "models directory (overrides config)")
	root.Flags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "engined:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.Config{}
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagModelsDir != "" {
		cfg.ModelsDir = flagModelsDir
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "./models"
	}

	logger := newLogger(cfg.LogLevel)
	httpapi.SetLogger(logger.With().Str("component", "httpapi").Logger())

	models, err := catalog.ScanDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("scan models dir %s: %w", cfg.ModelsDir, err)
	}
	logger.Info().Int("models", len(models)).Str("dir", cfg.ModelsDir).Msg("catalog built")

	orch, err := orchestrator.New(orchestrator.Config{
		Source:         catalog.New(models, cfg.Preferences),
		Provider:       provider.NewLlama(cfg.LlamaCtx, cfg.LlamaThreads),
		Logger:         logger.With().Str("component", "orchestrator").Logger(),
		GenericTTL:     seconds(cfg.GenericTTLSec),
		DomainTTL:      seconds(cfg.DomainTTLSec),
		LockWait:       seconds(cfg.LockWaitSec),
		ProtectFor:     seconds(cfg.ProtectSec),
		SettleDelay:    millis(cfg.SettleMs),
		WindowPacing:   millis(cfg.PacingMs),
		PressurePacing: millis(cfg.PressurePacingMs),
		MemThresholdMB: tierThresholds(cfg.MemThresholdMB),
		LRUPath:        cfg.LRUPath,
		LlamaCtx:       cfg.LlamaCtx,
		LlamaThreads:   cfg.LlamaThreads,
	})
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	defer func() {
		if cerr := orch.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("orchestrator shutdown")
		}
	}()

	if len(cfg.CORSOrigins) > 0 {
		httpapi.SetCORSOptions(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		})
	}
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(orch),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }
func millis(v int) time.Duration  { return time.Duration(v) * time.Millisecond }

func tierThresholds(m map[string]int) map[orchestrator.Tier]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[orchestrator.Tier]int, len(m))
	for k, v := range m {
		t := orchestrator.Tier(k)
		if t.Valid() {
			out[t] = v
		}
	}
	return out
}
