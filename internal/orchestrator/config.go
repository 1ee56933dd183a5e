package orchestrator

import (
	"time"

	"github.com/rs/zerolog"

	"engined/internal/provider"
	"engined/pkg/types"
)

// Source is the read-only availability query surface the orchestrator
// selects models from. No side effects.
type Source interface {
	Has(id string) bool
	Available() []string
	PathFor(id string) (string, bool)
	TierPreference(tier string) []string
	DomainPreference(domain string) []string
	DomainScore(id, domain string) float64
	ParamSizeB(id string) float64
	Small(id string) bool
	GenerationFor(tier, domain string) types.GenerationConfig
	Models() []types.Model
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultGenericTTL     = 10 * time.Minute
	defaultDomainTTL      = 30 * time.Minute
	defaultLockWait       = 10 * time.Second
	defaultProtectFor     = 30 * time.Second
	defaultSettleDelay    = 250 * time.Millisecond
	defaultWindowPacing   = 500 * time.Millisecond
	defaultPressurePacing = 2 * time.Second
	defaultFreshWindow    = 90 * time.Second
	defaultProbeTimeout   = 5 * time.Second
	defaultReleaseProbes  = 5
	defaultReleaseBackoff = 200 * time.Millisecond
	defaultJanitorEvery   = time.Minute
	defaultContentionMult = 1.5
)

func defaultCreateTimeouts() map[Tier]time.Duration {
	return map[Tier]time.Duration{
		TierLow:  60 * time.Second,
		TierMid:  90 * time.Second,
		TierHigh: 120 * time.Second,
	}
}

func defaultMemThresholds() map[Tier]int {
	return map[Tier]int{
		TierLow:  1024,
		TierMid:  2048,
		TierHigh: 4096,
	}
}

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	Source    Source
	Provider  provider.Provider
	Exec      ExecutionState // nil: static all-false flags
	Publisher EventPublisher // nil: events are dropped
	Logger    zerolog.Logger

	// TTLs are context-dependent: domain workflows run longer, so their
	// entries are revalidated less often.
	GenericTTL time.Duration
	DomainTTL  time.Duration

	LockWait   time.Duration
	ProtectFor time.Duration

	// SettleDelay is the pause after disposal letting native resources
	// finish releasing before the slot is reused.
	SettleDelay time.Duration

	WindowPacing   time.Duration
	PressurePacing time.Duration

	// FreshWindow bounds how recent a domain-scoped entry must be for
	// the functional probe to be skipped during validation.
	FreshWindow  time.Duration
	ProbeTimeout time.Duration
	// HealthQuorum is how many validation signals must pass; 0 means all
	// of them. Domain-scoped engines get one signal of slack.
	HealthQuorum int

	CreateTimeout map[Tier]time.Duration
	// ContentionMult scales creation timeouts while trial execution is
	// active, since resource pressure slows provider creation.
	ContentionMult float64

	ReleaseProbes  int
	ReleaseBackoff time.Duration

	MemThresholdMB map[Tier]int

	// JanitorEvery is the cleanup sweep interval; < 0 disables the sweep
	// goroutine (tests call Cleanup directly).
	JanitorEvery time.Duration

	LRUPath string
	GCHint  bool

	LlamaCtx     int
	LlamaThreads int
}

func (c *Config) applyDefaults() {
	if c.Exec == nil {
		c.Exec = NewStaticExecState()
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.GenericTTL <= 0 {
		c.GenericTTL = defaultGenericTTL
	}
	if c.DomainTTL <= 0 {
		c.DomainTTL = defaultDomainTTL
	}
	if c.LockWait <= 0 {
		c.LockWait = defaultLockWait
	}
	if c.ProtectFor <= 0 {
		c.ProtectFor = defaultProtectFor
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.WindowPacing <= 0 {
		c.WindowPacing = defaultWindowPacing
	}
	if c.PressurePacing <= 0 {
		c.PressurePacing = defaultPressurePacing
	}
	if c.FreshWindow <= 0 {
		c.FreshWindow = defaultFreshWindow
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.CreateTimeout == nil {
		c.CreateTimeout = defaultCreateTimeouts()
	}
	if c.ContentionMult <= 1 {
		c.ContentionMult = defaultContentionMult
	}
	if c.ReleaseProbes <= 0 {
		c.ReleaseProbes = defaultReleaseProbes
	}
	if c.ReleaseBackoff <= 0 {
		c.ReleaseBackoff = defaultReleaseBackoff
	}
	if c.MemThresholdMB == nil {
		c.MemThresholdMB = defaultMemThresholds()
	}
	if c.JanitorEvery == 0 {
		c.JanitorEvery = defaultJanitorEvery
	}
}
