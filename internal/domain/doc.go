// Package domain models ambient air quality telemetry for regulatory
// compliance monitoring.
//
// # Data Source
//
// Readings originate from continuous ambient air quality monitoring
// stations published through the World Air Quality Index (WAQI) feed
// API. The ingestion connector fetches each station's latest
// observation on a poll cycle and maps it into a [Reading]: up to six
// pollutant values plus meteorological context, all optional per
// station capability.
//
// # Units and Physical Bounds
//
// Pollutant concentrations are µg/m³ except carbon monoxide (mg/m³).
// Validation rejects values outside fixed physical plausibility
// ranges rather than statistical ones: PM2.5 above 1000 µg/m³ or
// relative humidity above 100% is an instrument fault, not an
// extreme episode. Bounds are inclusive at both ends.
//
// Timestamps must carry a zone; the ingestion connector treats naive
// upstream timestamps as UTC. Readings older than two hours are
// stale, and a five minute future tolerance absorbs station clock
// skew.
//
// # Confidence Scoring
//
// Single-station readings cannot be trusted for decisions with legal
// consequences, so every value is cross-validated against concurrent
// readings from neighbor stations. The score is a function of the
// deviation ratio observed/neighborAverage:
//
//	ratio in [0.5, 2.0]  → 100
//	ratio above 2.0      → 100 − ((ratio−2.0)/3.0)×80, floored at 0
//	ratio below 0.5      → 100 − ((0.5−ratio)/0.5)×60, floored at 0
//	no valid neighbors   → 70 (neutral; cannot cross-validate)
//	neighbors all zero   → 100 if observed is zero, else 20
//
// Scores below 60 quarantine the value: it is excluded from window
// aggregation and classification for that pollutant, and the reason
// distinguishes "insufficient neighbors" from "anomalous deviation".
package domain
