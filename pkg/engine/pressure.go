// Package engine orchestrates the hierarchical memory: extraction on every
// exchange, pressure-adaptive compression of the episodic buffer, and
// zone-sized context assembly for the next turn.
package engine

// Zone names a band of context-window utilization. Resource limits step
// down as pressure climbs.
type Zone string

const (
	ZoneLow        Zone = "low"
	ZoneMedium     Zone = "medium"
	ZoneMediumHigh Zone = "medium_high"
	ZoneHigh       Zone = "high"
	ZoneCritical   Zone = "critical"
	ZoneEmergency  Zone = "emergency"
)

// ZoneLimits are the per-zone injection and buffer budgets.
type ZoneLimits struct {
	Zone           Zone
	BufferSize     int
	SummaryTokens  int
	DocumentTokens int
	FactCount      int
}

// zoneTable maps pressure bands to their limits, highest threshold first.
// Lower bounds are inclusive: pressure exactly 60 is MediumHigh, not Medium.
var zoneTable = []struct {
	min    float64
	limits ZoneLimits
}{
	{85, ZoneLimits{ZoneEmergency, 10, 1000, 3000, 1}},
	{80, ZoneLimits{ZoneCritical, 15, 1500, 5000, 2}},
	{70, ZoneLimits{ZoneHigh, 20, 2000, 8000, 3}},
	{60, ZoneLimits{ZoneMediumHigh, 25, 3000, 12000, 4}},
	{50, ZoneLimits{ZoneMedium, 30, 4000, 15000, 5}},
	{0, ZoneLimits{ZoneLow, 35, 5000, 20000, 5}},
}

// ZoneFor selects the limits for a pressure percentage.
func ZoneFor(pressure float64) ZoneLimits {
	for _, band := range zoneTable {
		if pressure >= band.min {
			return band.limits
		}
	}
	return zoneTable[len(zoneTable)-1].limits
}
