package slurm

import "strings"

// Tier is a coarse severity classification used by the render and export
// consumers. Neutral covers states matching no rule and ratios with a zero
// denominator.
type Tier int

const (
	TierNeutral Tier = iota
	TierNominal
	TierCaution
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierNominal:
		return "nominal"
	case TierCaution:
		return "caution"
	case TierCritical:
		return "critical"
	default:
		return "neutral"
	}
}

// StateTierRule maps a case-insensitive state substring onto a tier.
type StateTierRule struct {
	Substring string
	Tier      Tier
}

// StateTierRules is the classification table for node state strings,
// evaluated in order with first match winning. It is exported so consumers
// and tests can enumerate every rule pair.
var StateTierRules = []StateTierRule{
	{Substring: "idle", Tier: TierNominal},
	{Substring: "alloc", Tier: TierCaution},
	{Substring: "mix", Tier: TierCaution},
	{Substring: "down", Tier: TierCritical},
	{Substring: "drain", Tier: TierCritical},
}

// DefaultUsageThreshold is the used/total ratio at which usage turns critical.
const DefaultUsageThreshold = 0.8

// ClassifyState returns the tier of a node state string by ordered substring
// match against StateTierRules.
func ClassifyState(state string) Tier {
	lower := strings.ToLower(state)
	for _, rule := range StateTierRules {
		if strings.Contains(lower, rule.Substring) {
			return rule.Tier
		}
	}
	return TierNeutral
}

// UsageTier classifies a used/total ratio. A zero total is neutral rather
// than nominal, since no utilization statement can be made.
func UsageTier(used, total int, threshold float64) Tier {
	if total == 0 {
		return TierNeutral
	}
	if threshold <= 0 {
		threshold = DefaultUsageThreshold
	}
	ratio := float64(used) / float64(total)
	switch {
	case ratio >= threshold:
		return TierCritical
	case ratio >= 0.5:
		return TierCaution
	default:
		return TierNominal
	}
}

// JobLoadTier classifies combined running plus pending job pressure on a
// node. The table renderer does not currently color the jobs column, but the
// export and TUI consumers may invoke this directly.
func JobLoadTier(running, pending int) Tier {
	total := running + pending
	switch {
	case total >= 12:
		return TierCritical
	case total >= 6:
		return TierCaution
	default:
		return TierNominal
	}
}
