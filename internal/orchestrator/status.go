package orchestrator

import (
	"sort"

	"engined/pkg/types"
)

// Status builds a detailed status report for the HTTP layer.
func (o *Orchestrator) Status() types.StatusResponse {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	resp := types.StatusResponse{
		RecreateInProgress: o.recreating.Load(),
		LastTier:           string(o.lastTier),
	}
	resp.Entries = make([]types.EntryStatus, 0, len(o.entries))
	for key, ent := range o.entries {
		resp.Entries = append(resp.Entries, types.EntryStatus{
			Key:       key,
			Model:     ent.Model,
			Tier:      string(ent.Tier),
			Domain:    ent.Ctx.Domain,
			State:     string(ent.State),
			AgeSec:    int64(now.Sub(ent.createdAt).Seconds()),
			LastUsed:  ent.lastUsed.Unix(),
			TTLSec:    int64(o.ttlFor(ent.Ctx).Seconds()),
			Protected: o.isProtectedLocked(key),
		})
	}
	sort.Slice(resp.Entries, func(i, j int) bool { return resp.Entries[i].Key < resp.Entries[j].Key })
	for key, dl := range o.leases {
		if now.After(dl) {
			continue
		}
		resp.Protected = append(resp.Protected, key)
	}
	sort.Strings(resp.Protected)
	return resp
}

// Models lists the availability source's loadable models.
func (o *Orchestrator) Models() []types.Model {
	return o.cfg.Source.Models()
}
