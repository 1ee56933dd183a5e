package orchestrator

import (
	"encoding/json"
	"os"
	"time"
)

// lruRecord is the persisted slice of one cache slot, enough to restore
// recency ordering across restarts.
type lruRecord struct {
	LastUsedUnix int64  `json:"last_used_unix"`
	Model        string `json:"model"`
	Tier         string `json:"tier"`
}

func (o *Orchestrator) loadLRUMetadata() {
	if o.cfg.LRUPath == "" {
		return
	}
	f, err := os.Open(o.cfg.LRUPath)
	if err != nil {
		return
	}
	defer f.Close()
	var data map[string]lruRecord
	if err := json.NewDecoder(f).Decode(&data); err == nil {
		o.lruMeta = data
	}
}

func (o *Orchestrator) saveLRUMetadata() {
	if o.cfg.LRUPath == "" {
		return
	}
	o.mu.Lock()
	snap := make(map[string]lruRecord, len(o.entries))
	for key, ent := range o.entries {
		snap[key] = lruRecord{
			LastUsedUnix: ent.lastUsed.Unix(),
			Model:        ent.Model,
			Tier:         string(ent.Tier),
		}
	}
	o.mu.Unlock()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(o.cfg.LRUPath, b, 0o644)
}

// lastUsedHint returns the persisted recency for a key, used to seed
// lastUsed on warm start so sweeps do not treat restored slots as fresh.
func (o *Orchestrator) lastUsedHint(key string) (time.Time, bool) {
	rec, ok := o.lruMeta[key]
	if !ok || rec.LastUsedUnix == 0 {
		return time.Time{}, false
	}
	return time.Unix(rec.LastUsedUnix, 0), true
}
