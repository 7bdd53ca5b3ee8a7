package rollout

// SelectBest picks the winning rollout of a settled batch. Judged success
// beats failure; among equals, fewer iterations win; remaining ties break on
// rollout id so selection is deterministic. Timed-out rollouts are never
// eligible. Returns nil when nothing qualifies.
func SelectBest(rollouts []*Rollout) *Rollout {
	var best *Rollout
	for _, r := range rollouts {
		if r == nil || r.TimedOut() {
			continue
		}
		if best == nil || better(r, best) {
			best = r
		}
	}
	return best
}

func better(a, b *Rollout) bool {
	if a.Succeeded() != b.Succeeded() {
		return a.Succeeded()
	}
	if a.Iterations() != b.Iterations() {
		return a.Iterations() < b.Iterations()
	}
	return a.ID < b.ID
}
