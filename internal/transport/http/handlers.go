// internal/transport/http/handlers.go
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"marketing-platform/internal/assessments"
	"marketing-platform/internal/campaigns"
	apperrors "marketing-platform/internal/common/errors"
	"marketing-platform/internal/common/logger"
	"marketing-platform/internal/common/tenant"
	"marketing-platform/internal/models"
)

// CampaignCache is the read side of the campaigns cache.
type CampaignCache interface {
	Get(ctx context.Context, tenantID string) ([]models.Campaign, error)
	Invalidate(ctx context.Context, tenantID string)
}

// CampaignWriter is the admin CRUD surface.
type CampaignWriter interface {
	Create(ctx context.Context, c *models.Campaign) error
	Update(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, tenantID, id string) error
}

// AssessmentLoader loads assessment configuration and persists results.
type AssessmentLoader interface {
	GetConfigBySlug(ctx context.Context, tenantID, slug string) (*models.AssessmentConfig, error)
	ListQuestions(ctx context.Context, configID string) ([]models.AssessmentQuestion, error)
	ListAnswers(ctx context.Context, configID string) ([]models.AssessmentAnswer, error)
	ListBuckets(ctx context.Context, configID string) ([]models.ResultBucket, error)
	SaveResult(ctx context.Context, result models.AssessmentResult) error
}

// Refiner runs the portfolio refinement pipeline.
type Refiner interface {
	Execute(ctx context.Context, brand models.Brand, draft models.Draft) (*models.RefinementResult, error)
	RefineV1toV2(ctx context.Context, scenes []models.Scene) (*models.RefinementResult, error)
}

// Handlers wires the domain services into HTTP endpoints.
type Handlers struct {
	tenants        tenant.Resolver
	cache          CampaignCache
	campaignWriter CampaignWriter
	loader         AssessmentLoader
	sessions       assessments.SessionStore
	refiner        Refiner
	completionHook assessments.CompletionHook
	logger         logger.Logger
	now            func() time.Time
}

type HandlersOptions struct {
	Tenants        tenant.Resolver
	Cache          CampaignCache
	CampaignWriter CampaignWriter
	Loader         AssessmentLoader
	Sessions       assessments.SessionStore
	Refiner        Refiner
	CompletionHook assessments.CompletionHook
	Logger         logger.Logger
	Now            func() time.Time
}

func NewHandlers(opts HandlersOptions) *Handlers {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handlers{
		tenants:        opts.Tenants,
		cache:          opts.Cache,
		campaignWriter: opts.CampaignWriter,
		loader:         opts.Loader,
		sessions:       opts.Sessions,
		refiner:        opts.Refiner,
		completionHook: opts.CompletionHook,
		logger:         opts.Logger,
		now:            opts.Now,
	}
}

// Register attaches every route to the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/public/campaigns", h.listCampaigns)
	mux.HandleFunc("POST /api/admin/campaigns", h.createCampaign)
	mux.HandleFunc("PUT /api/admin/campaigns/{id}", h.updateCampaign)
	mux.HandleFunc("DELETE /api/admin/campaigns/{id}", h.deleteCampaign)
	mux.HandleFunc("GET /api/assessment-configs/slug/{slug}", h.getAssessmentConfig)
	mux.HandleFunc("GET /api/assessment-configs/{id}/questions", h.listAssessmentQuestions)
	mux.HandleFunc("GET /api/assessment-configs/{id}/answers", h.listAssessmentAnswers)
	mux.HandleFunc("POST /api/assessments/{sessionID}/answer", h.answerAssessment)
	mux.HandleFunc("POST /api/assessments/{sessionID}/submit", h.submitAssessment)
	mux.HandleFunc("POST /api/portfolio/refine", h.refinePortfolio)
}

// ==========================
// Campaigns
// ==========================

type campaignsResponse struct {
	Campaigns    []models.Campaign    `json:"campaigns"`
	ZoneFallback *models.ZoneFallback `json:"zoneFallback,omitempty"`
	Degraded     bool                 `json:"degraded,omitempty"`
}

// listCampaigns serves the filtered campaign list for the resolved tenant.
// A fetch failure degrades to an empty list plus zone-fallback dimensions so
// the page still renders.
func (h *Handlers) listCampaigns(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenants.Resolve(r)
	query := r.URL.Query()
	zone := query.Get("zone")

	resp := campaignsResponse{Campaigns: []models.Campaign{}}
	if zone != "" {
		fb := campaigns.ZoneFallback(zone)
		resp.ZoneFallback = &fb
	}

	all, err := h.cache.Get(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("campaign fetch failed, serving degraded response", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
		resp.Degraded = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	filtered := campaigns.FilterCampaigns(all, campaigns.FilterCriteria{
		Zone:      zone,
		PageNames: query["page"],
		DisplayAs: query.Get("displayAs"),
	}, h.now())
	campaigns.SortByPriority(filtered)

	resp.Campaigns = filtered
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) createCampaign(w http.ResponseWriter, r *http.Request) {
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign payload")
		return
	}
	c.TenantID = h.tenants.Resolve(r)

	if err := h.campaignWriter.Create(r.Context(), &c); err != nil {
		h.logger.Error("campaign create failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}

	h.cache.Invalidate(r.Context(), c.TenantID)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) updateCampaign(w http.ResponseWriter, r *http.Request) {
	var c models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign payload")
		return
	}
	c.ID = r.PathValue("id")
	c.TenantID = h.tenants.Resolve(r)

	if err := h.campaignWriter.Update(r.Context(), &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		h.logger.Error("campaign update failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}

	h.cache.Invalidate(r.Context(), c.TenantID)
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenants.Resolve(r)
	id := r.PathValue("id")

	if err := h.campaignWriter.Delete(r.Context(), tenantID, id); err != nil {
		h.logger.Error("campaign delete failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to delete campaign")
		return
	}

	h.cache.Invalidate(r.Context(), tenantID)
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Assessments
// ==========================

type assessmentConfigResponse struct {
	Config        models.AssessmentConfig    `json:"config"`
	Questions     []models.AssessmentQuestion `json:"questions"`
	Answers       []models.AssessmentAnswer   `json:"answers"`
	EntryQuestion *models.AssessmentQuestion  `json:"entryQuestion,omitempty"`
	SessionID     string                      `json:"sessionId"`
}

// getAssessmentConfig loads a config with its questions and answers and
// resolves the entry question for the caller's session.
func (h *Handlers) getAssessmentConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenants.Resolve(r)
	slug := r.PathValue("slug")

	cfg, questions, answers, err := h.loadAssessment(r.Context(), tenantID, slug)
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = assessments.NewSessionID()
	}

	nav := h.buildNavigator(*cfg, questions, answers, nil)
	resp := assessmentConfigResponse{
		Config:    *cfg,
		Questions: questions,
		Answers:   answers,
		SessionID: sessionID,
	}
	if d, err := nav.Start(r.Context(), sessionID); err == nil {
		resp.EntryQuestion = d.Question
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) listAssessmentQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.loader.ListQuestions(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handlers) listAssessmentAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := h.loader.ListAnswers(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

type answerRequest struct {
	ConfigSlug        string `json:"configSlug"`
	QuestionID        string `json:"questionId"`
	AnswerID          string `json:"answerId"`
	CurrentQuestionID string `json:"currentQuestionId"`
	Revalidate        bool   `json:"revalidate"`
}

type decisionResponse struct {
	Kind      string                      `json:"kind"`
	Question  *models.AssessmentQuestion  `json:"question,omitempty"`
	BucketKey string                      `json:"bucketKey,omitempty"`
	RouteURL  string                      `json:"routeUrl,omitempty"`
	Notice    string                      `json:"notice,omitempty"`
	SessionID string                      `json:"sessionId"`
}

func decisionKindLabel(kind assessments.DecisionKind) string {
	switch kind {
	case assessments.DecisionAdvance:
		return "advance"
	case assessments.DecisionSubmitted:
		return "submitted"
	case assessments.DecisionRedirect:
		return "redirect"
	case assessments.DecisionReset:
		return "reset"
	default:
		return "none"
	}
}

// answerAssessment runs one navigation step for the session. With revalidate
// set the current question is re-checked instead of recording an answer.
func (h *Handlers) answerAssessment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid answer payload")
		return
	}
	if req.ConfigSlug == "" {
		writeError(w, http.StatusBadRequest, "configSlug is required")
		return
	}

	tenantID := h.tenants.Resolve(r)
	cfg, questions, answers, err := h.loadAssessment(r.Context(), tenantID, req.ConfigSlug)
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}

	submitter, err := h.buildSubmitter(r.Context(), *cfg, answers)
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}
	nav := h.buildNavigator(*cfg, questions, answers, submitter)

	var d assessments.Decision
	if req.Revalidate {
		nav.Resume(req.CurrentQuestionID)
		d, err = nav.Revalidate(r.Context(), sessionID)
	} else {
		if req.CurrentQuestionID != "" {
			nav.Resume(req.CurrentQuestionID)
		}
		d, err = nav.HandleAnswer(r.Context(), sessionID, req.QuestionID, req.AnswerID)
	}
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		Kind:      decisionKindLabel(d.Kind),
		Question:  d.Question,
		BucketKey: d.BucketKey,
		RouteURL:  d.RouteURL,
		Notice:    d.Notice,
		SessionID: sessionID,
	})
}

type submitRequest struct {
	ConfigSlug string `json:"configSlug"`
}

type submitResponse struct {
	Bucket string `json:"bucket"`
	Score  int    `json:"score"`
}

// submitAssessment scores a points-method session explicitly.
func (h *Handlers) submitAssessment(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submit payload")
		return
	}

	tenantID := h.tenants.Resolve(r)
	cfg, _, answers, err := h.loadAssessment(r.Context(), tenantID, req.ConfigSlug)
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}
	if cfg.ScoringMethod != models.ScoringPoints {
		writeError(w, http.StatusBadRequest, "assessment is not points-scored")
		return
	}

	scorer, err := h.buildSubmitter(r.Context(), *cfg, answers)
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}

	session, err := h.sessions.Load(r.Context(), cfg.Slug, sessionID)
	if err != nil {
		h.writeAssessmentError(w, err)
		return
	}

	bucket, err := scorer.Submit(r.Context(), sessionID, session)
	if err != nil {
		h.writeAssessmentError(w, apperrors.NewSubmissionError(sessionID, err))
		return
	}
	if err := h.sessions.Clear(r.Context(), cfg.Slug, sessionID); err != nil {
		h.logger.Warn("failed to clear session after submit", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, submitResponse{Bucket: bucket, Score: scorer.Score(session)})
}

func (h *Handlers) loadAssessment(ctx context.Context, tenantID, slug string) (*models.AssessmentConfig, []models.AssessmentQuestion, []models.AssessmentAnswer, error) {
	cfg, err := h.loader.GetConfigBySlug(ctx, tenantID, slug)
	if err != nil {
		return nil, nil, nil, err
	}
	questions, err := h.loader.ListQuestions(ctx, cfg.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	answers, err := h.loader.ListAnswers(ctx, cfg.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, questions, answers, nil
}

func (h *Handlers) buildNavigator(cfg models.AssessmentConfig, questions []models.AssessmentQuestion, answers []models.AssessmentAnswer, submitter assessments.Submitter) *assessments.Navigator {
	return assessments.NewNavigator(cfg, questions, answers, h.sessions, submitter, nil, h.logger)
}

func (h *Handlers) buildSubmitter(ctx context.Context, cfg models.AssessmentConfig, answers []models.AssessmentAnswer) (*assessments.PointsScorer, error) {
	if cfg.ScoringMethod != models.ScoringPoints {
		return nil, nil
	}
	buckets, err := h.loader.ListBuckets(ctx, cfg.ID)
	if err != nil {
		return nil, err
	}
	return assessments.NewPointsScorer(cfg, answers, buckets, h.loader, h.completionHook, h.logger), nil
}

// ==========================
// Refinement
// ==========================

type refineRequest struct {
	Brand  *models.Brand  `json:"brand,omitempty"`
	Draft  *models.Draft  `json:"draft,omitempty"`
	Scenes []models.Scene `json:"scenes,omitempty"`
}

// refinePortfolio runs the pipeline: scenes-only input refines an existing
// draft, brand plus draft generates from scratch.
func (h *Handlers) refinePortfolio(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid refine payload")
		return
	}

	var (
		result *models.RefinementResult
		err    error
	)
	switch {
	case len(req.Scenes) > 0:
		result, err = h.refiner.RefineV1toV2(r.Context(), req.Scenes)
	case req.Brand != nil && req.Draft != nil:
		result, err = h.refiner.Execute(r.Context(), *req.Brand, *req.Draft)
	default:
		writeError(w, http.StatusBadRequest, "provide either scenes or brand and draft")
		return
	}
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == apperrors.ErrCodeLLMTimeout {
			writeError(w, http.StatusGatewayTimeout, "refinement timed out")
			return
		}
		h.logger.Error("refinement failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusBadGateway, "refinement failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ==========================
// Helpers
// ==========================

func (h *Handlers) writeAssessmentError(w http.ResponseWriter, err error) {
	if errors.Is(err, assessments.ErrSubmissionInFlight) {
		writeError(w, http.StatusConflict, "submission already in progress")
		return
	}

	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		switch stdErr.Code {
		case apperrors.ErrCodeConfigNotFound:
			writeError(w, http.StatusNotFound, stdErr.Message)
			return
		case apperrors.ErrCodeSubmissionFailed, apperrors.ErrCodeSessionStoreFailed:
			writeError(w, http.StatusBadGateway, stdErr.Message)
			return
		}
	}

	h.logger.Error("assessment request failed", map[string]interface{}{"error": err.Error()})
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
