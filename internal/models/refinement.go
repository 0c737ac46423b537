// internal/models/refinement.go
package models

import "time"

// Issue severities reported by the self-audit stage.
const (
	SeverityCritical = "CRITICAL"
	SeverityMajor    = "MAJOR"
	SeverityMinor    = "MINOR"
)

// Scene is one generated portfolio scene. The shape is LLM-produced JSON; the
// pipeline patches leaves by dot-path, so it stays schemaless.
type Scene map[string]interface{}

// Brand and Draft are the inputs to initial generation.
type Brand struct {
	Name     string   `json:"name"`
	Tagline  string   `json:"tagline,omitempty"`
	Palette  []string `json:"palette,omitempty"`
	Industry string   `json:"industry,omitempty"`
}

type Draft struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary,omitempty"`
	Sections []string `json:"sections,omitempty"`
}

// AuditIssue is one finding from the self-audit stage.
type AuditIssue struct {
	SceneIndex int    `json:"sceneIndex"`
	Issue      string `json:"issue"`
	Severity   string `json:"severity"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Improvement is one proposed fix. Field is a dot-path into the scene object.
type Improvement struct {
	SceneIndex    int         `json:"sceneIndex"`
	Field         string      `json:"field"`
	CurrentValue  interface{} `json:"currentValue,omitempty"`
	NewValue      interface{} `json:"newValue"`
	Reason        string      `json:"reason,omitempty"`
	AutoApplyable bool        `json:"autoApplyable"`
}

// ConfidenceFactor records one deduction made by final validation.
type ConfidenceFactor struct {
	Category string   `json:"category"`
	Score    int      `json:"score"` // points deducted
	Severity string   `json:"severity"`
	Issues   []string `json:"issues"`
}

// RefinementResult is produced fresh on each pipeline run; persistence is the
// caller's decision.
type RefinementResult struct {
	Scenes            []Scene                  `json:"scenes"`
	ConfidenceScore   int                      `json:"confidenceScore"` // 0-100
	ConfidenceFactors []ConfidenceFactor       `json:"confidenceFactors"`
	StageTimings      map[string]time.Duration `json:"stageTimings"`
	TotalElapsed      time.Duration            `json:"totalElapsed"`
}
