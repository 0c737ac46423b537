// internal/refinement/confidence.go
package refinement

import (
	"fmt"

	"marketing-platform/internal/models"
)

// Final-validation heuristics. Penalties are fixed per finding and the score
// is clamped to [0, 100].
const (
	minDirectorConfigKeys = 35
	minHeroEntrySeconds   = 2.5

	directorConfigPenalty    = 10
	animationConflictPenalty = 5
	heroEntryPenalty         = 3
)

// EvaluateConfidence scores a refined scene list. Deterministic: no LLM
// involvement, same scenes always produce the same score.
func EvaluateConfidence(scenes []models.Scene) (int, []models.ConfidenceFactor) {
	score := 100
	var factors []models.ConfidenceFactor

	var incomplete []string
	for i, scene := range scenes {
		dc := directorConfig(scene)
		if len(dc) < minDirectorConfigKeys {
			score -= directorConfigPenalty
			incomplete = append(incomplete, fmt.Sprintf("scene %d director config has %d of %d expected keys", i, len(dc), minDirectorConfigKeys))
		}
	}
	if len(incomplete) > 0 {
		factors = append(factors, models.ConfidenceFactor{
			Category: "director_config_completeness",
			Score:    directorConfigPenalty * len(incomplete),
			Severity: models.SeverityMajor,
			Issues:   incomplete,
		})
	}

	var conflicts []string
	for i, scene := range scenes {
		dc := directorConfig(scene)
		if boolValue(dc["parallaxEnabled"]) && boolValue(dc["scaleOnScroll"]) {
			score -= animationConflictPenalty
			conflicts = append(conflicts, fmt.Sprintf("scene %d enables parallax and scale-on-scroll together", i))
		}
	}
	if len(conflicts) > 0 {
		factors = append(factors, models.ConfidenceFactor{
			Category: "animation_conflicts",
			Score:    animationConflictPenalty * len(conflicts),
			Severity: models.SeverityMinor,
			Issues:   conflicts,
		})
	}

	// Entry timing only matters on the hero scene, which is always first.
	if len(scenes) > 0 {
		dc := directorConfig(scenes[0])
		if d, ok := floatValue(dc["entryDuration"]); ok && d < minHeroEntrySeconds {
			score -= heroEntryPenalty
			factors = append(factors, models.ConfidenceFactor{
				Category: "hero_entry_timing",
				Score:    heroEntryPenalty,
				Severity: models.SeverityMinor,
				Issues:   []string{fmt.Sprintf("hero entry duration %.2fs is below %.1fs", d, minHeroEntrySeconds)},
			})
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, factors
}

func directorConfig(scene models.Scene) map[string]interface{} {
	dc, _ := scene["directorConfig"].(map[string]interface{})
	return dc
}

func boolValue(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
