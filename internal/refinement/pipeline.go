// internal/refinement/pipeline.go
package refinement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/common/genai"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/common/metrics"
	"marketing-platform/internal/common/validation"
	"marketing-platform/internal/models"
)

// Stage names, used for timings and metrics labels.
const (
	StageInitialGeneration    = "initial_generation"
	StageSelfAudit            = "self_audit"
	StageGenerateImprovements = "generate_improvements"
	StageAutoApplyFixes       = "auto_apply_fixes"
	StageFinalRegeneration    = "final_regeneration"
	StageFinalValidation      = "final_validation"
)

// auditSchema constrains the self-audit response before it is trusted.
const auditSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["sceneIndex", "issue", "severity"],
		"properties": {
			"sceneIndex": {"type": "integer", "minimum": 0},
			"issue": {"type": "string"},
			"severity": {"type": "string", "enum": ["CRITICAL", "MAJOR", "MINOR"]},
			"suggestion": {"type": "string"}
		}
	}
}`

const improvementsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["sceneIndex", "field", "newValue"],
		"properties": {
			"sceneIndex": {"type": "integer", "minimum": 0},
			"field": {"type": "string", "minLength": 1},
			"reason": {"type": "string"},
			"autoApplyable": {"type": "boolean"}
		}
	}
}`

// Generator produces the initial scene list from brand and draft input.
type Generator interface {
	GenerateScenes(ctx context.Context, brand models.Brand, draft models.Draft) ([]models.Scene, error)
}

// Options tune the pipeline; zero values get sane defaults.
type Options struct {
	Model        string
	StageTimeout time.Duration
	Logger       logger.Logger
}

// Pipeline runs the fixed six-stage refinement workflow. Stages are strictly
// sequential and any stage error aborts the whole run with no partial result.
type Pipeline struct {
	generator    Generator
	llm          genai.ContentGenerator
	model        string
	stageTimeout time.Duration
	logger       logger.Logger
}

func NewPipeline(generator Generator, llm genai.ContentGenerator, opts Options) *Pipeline {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Pipeline{
		generator:    generator,
		llm:          llm,
		model:        opts.Model,
		stageTimeout: opts.StageTimeout,
		logger:       opts.Logger,
	}
}

// Execute runs all six stages from scratch.
func (p *Pipeline) Execute(ctx context.Context, brand models.Brand, draft models.Draft) (*models.RefinementResult, error) {
	start := time.Now()
	result := newResult()

	var scenes []models.Scene
	err := p.timeStage(result, StageInitialGeneration, func() error {
		stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
		var genErr error
		scenes, genErr = p.generator.GenerateScenes(stageCtx, brand, draft)
		return genErr
	})
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := p.refine(ctx, result, scenes); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	result.TotalElapsed = time.Since(start)
	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	return result, nil
}

// RefineV1toV2 runs stages two through six over an already-generated scene
// list, used for background refinement of existing drafts.
func (p *Pipeline) RefineV1toV2(ctx context.Context, scenes []models.Scene) (*models.RefinementResult, error) {
	start := time.Now()
	result := newResult()

	if err := p.refine(ctx, result, scenes); err != nil {
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	result.TotalElapsed = time.Since(start)
	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	return result, nil
}

func newResult() *models.RefinementResult {
	return &models.RefinementResult{StageTimings: make(map[string]time.Duration)}
}

func (p *Pipeline) refine(ctx context.Context, result *models.RefinementResult, scenes []models.Scene) error {
	var issues []models.AuditIssue
	err := p.timeStage(result, StageSelfAudit, func() error {
		var auditErr error
		issues, auditErr = p.auditScenes(ctx, scenes)
		return auditErr
	})
	if err != nil {
		return err
	}

	var improvements []models.Improvement
	err = p.timeStage(result, StageGenerateImprovements, func() error {
		var impErr error
		improvements, impErr = p.generateImprovements(ctx, scenes, issues)
		return impErr
	})
	if err != nil {
		return err
	}

	err = p.timeStage(result, StageAutoApplyFixes, func() error {
		scenes = p.applyFixes(scenes, improvements)
		return nil
	})
	if err != nil {
		return err
	}

	err = p.timeStage(result, StageFinalRegeneration, func() error {
		var regenErr error
		scenes, regenErr = p.regenerateCritical(ctx, scenes, issues)
		return regenErr
	})
	if err != nil {
		return err
	}

	return p.timeStage(result, StageFinalValidation, func() error {
		result.ConfidenceScore, result.ConfidenceFactors = EvaluateConfidence(scenes)
		result.Scenes = scenes
		return nil
	})
}

// timeStage wraps one stage with wall-clock timing and error classification.
func (p *Pipeline) timeStage(result *models.RefinementResult, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	result.StageTimings[stage] = elapsed
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())

	if err == nil {
		return nil
	}
	p.logger.Error("pipeline stage failed", map[string]interface{}{
		"stage":   stage,
		"elapsed": elapsed.String(),
		"error":   err.Error(),
	})
	if errors.Is(err, genai.ErrLLMTimeout) {
		return apperrors.NewLLMTimeoutError(stage)
	}
	return apperrors.NewPipelineStageError(stage, err)
}

func (p *Pipeline) callLLM(ctx context.Context, prompt string) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	resp, err := p.llm.GenerateContent(stageCtx, genai.Request{
		Model:            p.model,
		Contents:         prompt,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// auditScenes asks the LLM to review the scene list. A response that is not
// valid JSON of the expected shape counts as zero issues; only transport
// failures abort the pipeline.
func (p *Pipeline) auditScenes(ctx context.Context, scenes []models.Scene) ([]models.AuditIssue, error) {
	scenesJSON, err := json.Marshal(scenes)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Review the following portfolio scenes for layout, animation and content problems.
Respond with a JSON array of {"sceneIndex", "issue", "severity", "suggestion"} objects.
Severity must be one of CRITICAL, MAJOR, MINOR. Respond with [] if there are no problems.

Scenes:
%s`, scenesJSON)

	text, err := p.callLLM(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var issues []models.AuditIssue
	if err := validation.ParseValidated(auditSchema, []byte(strings.TrimSpace(text)), &issues); err != nil {
		p.logger.Warn("audit response was not a valid issue list, continuing with zero issues", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	return issues, nil
}

// generateImprovements turns audit issues into concrete dot-path fixes. With
// zero issues the LLM is not called at all. Malformed responses degrade to no
// improvements, same as the audit stage.
func (p *Pipeline) generateImprovements(ctx context.Context, scenes []models.Scene, issues []models.AuditIssue) ([]models.Improvement, error) {
	if len(issues) == 0 {
		return nil, nil
	}

	scenesJSON, err := json.Marshal(scenes)
	if err != nil {
		return nil, err
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Propose fixes for the issues below. Respond with a JSON array of
{"sceneIndex", "field", "currentValue", "newValue", "reason", "autoApplyable"} objects,
where field is a dot-path into the scene object (for example "directorConfig.entryDuration").
Mark autoApplyable true only for mechanical value changes.

Issues:
%s

Scenes:
%s`, issuesJSON, scenesJSON)

	text, err := p.callLLM(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var improvements []models.Improvement
	if err := validation.ParseValidated(improvementsSchema, []byte(strings.TrimSpace(text)), &improvements); err != nil {
		p.logger.Warn("improvements response was not a valid fix list, continuing with none", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}
	return improvements, nil
}

// applyFixes deep-clones the scenes and overwrites the leaf value of every
// auto-applyable improvement. Improvements that target a missing scene or an
// unresolvable path are skipped, never fatal.
func (p *Pipeline) applyFixes(scenes []models.Scene, improvements []models.Improvement) []models.Scene {
	cloned := cloneScenes(scenes)

	for _, imp := range improvements {
		if !imp.AutoApplyable {
			continue
		}
		if imp.SceneIndex < 0 || imp.SceneIndex >= len(cloned) {
			p.logger.Warn("improvement targets a scene that does not exist", map[string]interface{}{
				"sceneIndex": imp.SceneIndex,
				"field":      imp.Field,
			})
			continue
		}
		if err := setPath(cloned[imp.SceneIndex], imp.Field, imp.NewValue); err != nil {
			p.logger.Warn("failed to apply improvement", map[string]interface{}{
				"sceneIndex": imp.SceneIndex,
				"field":      imp.Field,
				"error":      err.Error(),
			})
		}
	}
	return cloned
}

// regenerateCritical rebuilds only the scenes flagged by CRITICAL issues.
// With no critical issues the scenes pass through untouched. A regeneration
// response that is not a JSON object keeps the original scene.
func (p *Pipeline) regenerateCritical(ctx context.Context, scenes []models.Scene, issues []models.AuditIssue) ([]models.Scene, error) {
	critical := criticalSceneIndexes(issues, len(scenes))
	if len(critical) == 0 {
		return scenes, nil
	}

	issuesByScene := make(map[int][]models.AuditIssue)
	for _, issue := range issues {
		if issue.Severity == models.SeverityCritical {
			issuesByScene[issue.SceneIndex] = append(issuesByScene[issue.SceneIndex], issue)
		}
	}

	out := cloneScenes(scenes)
	for _, idx := range critical {
		sceneJSON, err := json.Marshal(out[idx])
		if err != nil {
			return nil, err
		}
		issuesJSON, err := json.Marshal(issuesByScene[idx])
		if err != nil {
			return nil, err
		}

		prompt := fmt.Sprintf(`Regenerate this portfolio scene so the critical issues below no longer apply.
Keep the same JSON structure and respond with the single corrected scene object.

Critical issues:
%s

Scene:
%s`, issuesJSON, sceneJSON)

		text, err := p.callLLM(ctx, prompt)
		if err != nil {
			return nil, err
		}

		var regenerated models.Scene
		if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &regenerated); err != nil {
			p.logger.Warn("regeneration response was not a scene object, keeping original", map[string]interface{}{
				"sceneIndex": idx,
				"error":      err.Error(),
			})
			continue
		}
		out[idx] = regenerated
	}
	return out, nil
}

func criticalSceneIndexes(issues []models.AuditIssue, sceneCount int) []int {
	seen := make(map[int]bool)
	var indexes []int
	for _, issue := range issues {
		if issue.Severity != models.SeverityCritical {
			continue
		}
		if issue.SceneIndex < 0 || issue.SceneIndex >= sceneCount || seen[issue.SceneIndex] {
			continue
		}
		seen[issue.SceneIndex] = true
		indexes = append(indexes, issue.SceneIndex)
	}
	sort.Ints(indexes)
	return indexes
}

func cloneScenes(scenes []models.Scene) []models.Scene {
	raw, err := json.Marshal(scenes)
	if err != nil {
		// Scenes came from JSON in the first place, marshalling cannot fail.
		return scenes
	}
	var cloned []models.Scene
	if err := json.Unmarshal(raw, &cloned); err != nil {
		return scenes
	}
	return cloned
}

// setPath walks a dot-path into the scene and overwrites the leaf value.
// Intermediate objects must already exist; the paths come from audited real
// data, not user input.
func setPath(scene models.Scene, path string, value interface{}) error {
	parts := strings.Split(path, ".")
	current := map[string]interface{}(scene)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			return fmt.Errorf("path segment %q is not an object", part)
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}
