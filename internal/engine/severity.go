package engine

import "roadwatch/internal/models"

// SeverityContext carries optional situational inputs for severity
// scoring. Zero values mean "unknown" and apply no multiplier.
type SeverityContext struct {
	Weather         string  // clear, rainy, foggy, snowy, stormy
	VehicleSpeedKPH float64 // current vehicle speed
	TimeOfDay       string  // morning, afternoon, evening, night
}

var baseSeverity = map[string]models.Severity{
	"Pothole":       models.SeverityHigh,
	"Speed Breaker": models.SeverityMedium,
	"Debris":        models.SeverityCritical,
	"Road Crack":    models.SeverityLow,
}

var severityRank = map[models.Severity]int{
	models.SeverityLow:      1,
	models.SeverityMedium:   2,
	models.SeverityHigh:     3,
	models.SeverityCritical: 4,
}

var rankSeverity = map[int]models.Severity{
	1: models.SeverityLow,
	2: models.SeverityMedium,
	3: models.SeverityHigh,
	4: models.SeverityCritical,
}

// AssessSeverity maps a hazard class and detection confidence to a
// severity level. High-confidence detections of medium and high classes
// are upgraded one level.
func AssessSeverity(className string, confidence float64) models.Severity {
	sev, ok := baseSeverity[className]
	if !ok {
		sev = models.SeverityMedium
	}

	if confidence > 0.8 && (sev == models.SeverityMedium || sev == models.SeverityHigh) {
		rank := severityRank[sev] + 1
		if rank > 4 {
			rank = 4
		}
		return rankSeverity[rank]
	}
	return sev
}

// SeverityScore produces a 0-100 risk score combining the class
// severity, detection confidence and situational multipliers.
func SeverityScore(className string, confidence float64, ctx SeverityContext) float64 {
	sev, ok := baseSeverity[className]
	if !ok {
		sev = models.SeverityMedium
	}

	base := float64(severityRank[sev]) * 20
	base += confidence * 15

	multiplier := 1.0
	switch ctx.Weather {
	case "rainy", "snowy":
		multiplier *= 1.4
	case "stormy":
		multiplier *= 1.5
	case "foggy":
		multiplier *= 1.3
	}

	switch {
	case ctx.VehicleSpeedKPH > 80:
		multiplier *= 1.4
	case ctx.VehicleSpeedKPH > 60:
		multiplier *= 1.3
	case ctx.VehicleSpeedKPH > 40:
		multiplier *= 1.2
	case ctx.VehicleSpeedKPH > 20:
		multiplier *= 1.1
	}

	switch ctx.TimeOfDay {
	case "night":
		multiplier *= 1.2
	case "evening":
		multiplier *= 1.1
	}

	score := base * multiplier
	if score > 100 {
		return 100
	}
	return score
}
