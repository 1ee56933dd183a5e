package orchestrator

// SelectModel picks the model id to load for a tier, preferring explicit
// ordering lists over heuristics:
//
//  1. the domain-specific preference list, when a domain is given;
//  2. the tier-generic preference list;
//  3. a size-filtered heuristic over everything available: the lowest
//     tier narrows to models with small-size name markers, then ties
//     break by descending domain score (domain given) or ascending
//     estimated parameter size.
//
// An empty result is a modelNotFoundError.
func (o *Orchestrator) SelectModel(tier Tier, domain string) (string, error) {
	src := o.cfg.Source
	if domain != "" {
		for _, id := range src.DomainPreference(domain) {
			if src.Has(id) {
				return id, nil
			}
		}
	}
	for _, id := range src.TierPreference(string(tier)) {
		if src.Has(id) {
			return id, nil
		}
	}

	cands := src.Available()
	if tier == TierLow {
		small := cands[:0:0]
		for _, id := range cands {
			if src.Small(id) {
				small = append(small, id)
			}
		}
		if len(small) > 0 {
			cands = small
		}
	}
	if len(cands) == 0 {
		return "", modelNotFoundError{tier: tier, domain: domain}
	}
	best := cands[0]
	for _, id := range cands[1:] {
		if o.preferModel(id, best, domain) {
			best = id
		}
	}
	return best, nil
}

// preferModel reports whether a should replace b as the heuristic pick.
func (o *Orchestrator) preferModel(a, b, domain string) bool {
	src := o.cfg.Source
	if domain != "" {
		sa, sb := src.DomainScore(a, domain), src.DomainScore(b, domain)
		if sa != sb {
			return sa > sb
		}
		return false // stable: keep earlier candidate on ties
	}
	return sizeForOrder(src.ParamSizeB(a)) < sizeForOrder(src.ParamSizeB(b))
}

// sizeForOrder maps unknown sizes past every known one.
func sizeForOrder(s float64) float64 {
	if s > 0 {
		return s
	}
	return 1 << 20
}
