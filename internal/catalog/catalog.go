// Package catalog is the read-only availability source consulted by the
// orchestrator: which models are loadable, in what preference order per
// tier and domain, and the pure scoring/sampling lookups derived from
// model names. It performs no side effects beyond the initial scan.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"engined/internal/common/fsutil"
	"engined/pkg/types"
)

// Preferences carries the ordered model-id lists tried before any
// heuristic kicks in. Keys are tier names ("low", "mid", "high") and
// domain names respectively.
type Preferences struct {
	Tier   map[string][]string `json:"tier" yaml:"tier" toml:"tier"`
	Domain map[string][]string `json:"domain" yaml:"domain" toml:"domain"`
}

// Catalog indexes scanned models and answers availability queries.
type Catalog struct {
	models []types.Model
	byID   map[string]types.Model
	prefs  Preferences
}

// New builds a catalog from a model list and preference orderings.
func New(models []types.Model, prefs Preferences) *Catalog {
	byID := make(map[string]types.Model, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return &Catalog{models: append([]types.Model(nil), models...), byID: byID, prefs: prefs}
}

// ScanDir scans a directory for *.gguf files and builds model entries
// from filenames. ID is the filename without extension; quantization is
// inferred from common name markers.
func ScanDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{
			ID:    id,
			Name:  id,
			Path:  filepath.Join(abs, name),
			Quant: quantFromName(id),
		})
	}
	return models, nil
}

// Models returns a copy of the scanned model list.
func (c *Catalog) Models() []types.Model {
	out := make([]types.Model, len(c.models))
	copy(out, c.models)
	return out
}

// Has reports whether a model id is currently loadable.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Available returns all loadable model ids in scan order.
func (c *Catalog) Available() []string {
	out := make([]string, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m.ID)
	}
	return out
}

// PathFor resolves a model id to its on-disk path.
func (c *Catalog) PathFor(id string) (string, bool) {
	m, ok := c.byID[id]
	if !ok {
		return "", false
	}
	return m.Path, true
}

// TierPreference returns the ordered preference list for a tier.
func (c *Catalog) TierPreference(tier string) []string {
	return c.prefs.Tier[tier]
}

// DomainPreference returns the ordered preference list for a domain.
func (c *Catalog) DomainPreference(domain string) []string {
	return c.prefs.Domain[domain]
}

var paramSizeRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*b(?:[-_.]|$)`)

// ParamSizeB estimates parameter count in billions from name markers like
// "7b" or "1.1B". Unknown sizes report 0.
func ParamSizeB(id string) float64 {
	m := paramSizeRe.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// ParamSizeB implements the orchestrator's availability interface.
func (c *Catalog) ParamSizeB(id string) float64 { return ParamSizeB(id) }

var smallMarkers = []string{"tiny", "mini", "small", "nano", "0.5b", "1b", "1.1b", "1.5b", "3b", "q2", "q3"}

// Small reports whether a model name carries a small-size marker, used by
// the lowest-tier selection heuristic.
func (c *Catalog) Small(id string) bool {
	lower := strings.ToLower(id)
	for _, m := range smallMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// domainMarkers map a domain to name fragments that indicate a model was
// tuned for it. Purely heuristic and swappable.
var domainMarkers = map[string][]string{
	"coding":    {"code", "coder", "starcoder", "deepseek"},
	"math":      {"math", "deepseek"},
	"reasoning": {"instruct", "chat", "hermes"},
	"chat":      {"chat", "instruct"},
}

// DomainScore rates how well a model fits a domain. Higher is better;
// models without a matching marker score 0.
func (c *Catalog) DomainScore(id, domain string) float64 {
	lower := strings.ToLower(id)
	score := 0.0
	for _, m := range domainMarkers[strings.ToLower(domain)] {
		if strings.Contains(lower, m) {
			score += 1.0
		}
	}
	return score
}

// GenerationFor returns the sampling configuration for a tier/domain
// combination from fixed lookup tables.
func (c *Catalog) GenerationFor(tier, domain string) types.GenerationConfig {
	g := types.GenerationConfig{MaxTokens: 256, Temperature: 0.7, TopP: 0.9, TopK: 40}
	switch tier {
	case "mid":
		g.MaxTokens = 512
	case "high":
		g.MaxTokens = 1024
		g.Temperature = 0.6
	}
	switch strings.ToLower(domain) {
	case "coding":
		g.Temperature = 0.2
		g.TopP = 0.95
		g.Stop = []string{"```"}
	case "math":
		g.Temperature = 0.1
	case "chat":
		g.Temperature = 0.8
	}
	return g
}

var quantRe = regexp.MustCompile(`(?i)(q\d(?:_[a-z0-9]+)*|f16|f32)`)

func quantFromName(id string) string {
	if m := quantRe.FindString(id); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}
