// internal/workflow/orchestrator.go
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"ethics-advisor/internal/agents/assessor"
	cerrors "ethics-advisor/internal/common/errors"
	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/common/metrics"
	"ethics-advisor/internal/common/observability"
	"ethics-advisor/internal/models"
	"ethics-advisor/internal/retrieval"
	"ethics-advisor/internal/search"

	"github.com/google/uuid"
)

// PlanCreator drafts the research strategy. It never fails; degraded
// plans come back as a usable default.
type PlanCreator interface {
	CreatePlan(ctx context.Context, question string, rc *models.RequesterContext) string
}

// Retriever pulls legal passages from the knowledge index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, strategy retrieval.Strategy, collection string, topK int, opts retrieval.Options) (*retrieval.Result, error)
}

// AssessmentGenerator synthesizes the final verdict. Its error is the
// only fatal class inside the graph.
type AssessmentGenerator interface {
	Assess(ctx context.Context, ev assessor.Evidence) (*assessor.Result, error)
}

// HistoryRecorder persists completed consultations. Best effort.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *models.ConsultationRecord) error
}

// Escalator notifies ethics officials about serious findings. Best effort.
type Escalator interface {
	Escalate(ctx context.Context, rec *models.ConsultationRecord, assessment *models.StructuredAssessment) error
}

// Orchestrator executes the fixed nine-node consultation graph exactly
// once per request: plan, retrieve, three parallel web searches behind a
// fork-join barrier, assess, finalize.
type Orchestrator struct {
	config    *Config
	planner   PlanCreator
	retriever Retriever
	searcher  search.Searcher
	assessor  AssessmentGenerator
	history   HistoryRecorder
	notifier  Escalator
	obs       *observability.Observability
	errs      *cerrors.ErrorHandler
	log       logger.Logger
}

func NewOrchestrator(cfg *Config, planner PlanCreator, retriever Retriever, searcher search.Searcher, gen AssessmentGenerator, log logger.Logger) *Orchestrator {
	scoped := log.With(map[string]interface{}{"component": "workflow"})
	return &Orchestrator{
		config:    cfg,
		planner:   planner,
		retriever: retriever,
		searcher:  searcher,
		assessor:  gen,
		errs:      cerrors.NewErrorHandler(scoped),
		log:       scoped,
	}
}

// WithHistory attaches a consultation history sink.
func (o *Orchestrator) WithHistory(h HistoryRecorder) *Orchestrator {
	o.history = h
	return o
}

// WithNotifier attaches the escalation notifier.
func (o *Orchestrator) WithNotifier(n Escalator) *Orchestrator {
	o.notifier = n
	return o
}

// WithObservability attaches span and OTel metric emission.
func (o *Orchestrator) WithObservability(obs *observability.Observability) *Orchestrator {
	o.obs = obs
	return o
}

// Stage names reported through the RunWithProgress callback, in the
// order the graph emits them.
const (
	StagePlanning   = "planning"
	StageRetrieving = "retrieving"
	StageSearching  = "searching"
	StageAssessing  = "assessing"
)

// Run executes one consultation. Only input validation errors surface;
// every downstream failure degrades into the response itself.
func (o *Orchestrator) Run(ctx context.Context, req models.ConsultationRequest) (*models.ConsultationResponse, error) {
	return o.RunWithProgress(ctx, req, nil)
}

// RunWithProgress is Run with coarse stage reporting for streaming
// callers. The callback fires on the orchestrator goroutine between
// graph phases and must return promptly.
func (o *Orchestrator) RunWithProgress(ctx context.Context, req models.ConsultationRequest, progress func(stage string)) (*models.ConsultationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	notify := func(stage string) {
		if progress != nil {
			progress(stage)
		}
	}

	consultationID := uuid.New().String()
	state := newWorkflowState(consultationID, req)
	log := o.log.With(map[string]interface{}{"consultationId": consultationID})

	metrics.ConsultationsActive.Inc()
	defer metrics.ConsultationsActive.Dec()

	ctx, endRun := o.span(ctx, "workflow.run")
	defer endRun()

	log.Info("Consultation started", map[string]interface{}{
		"questionLength": len(req.Question),
	})

	o.runNode(ctx, "collect_context", func(ctx context.Context) { o.collectContext(ctx, state) })
	notify(StagePlanning)
	o.runNode(ctx, "create_plan", func(ctx context.Context) { o.createPlan(ctx, state) })
	notify(StageRetrieving)
	o.runNode(ctx, "retrieve_knowledge", func(ctx context.Context) { o.retrieveKnowledge(ctx, state) })
	notify(StageSearching)

	// Fork: the three web searches run concurrently and write disjoint
	// state fields. The barrier below is the only synchronization.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		o.runNode(ctx, "search_general", func(ctx context.Context) {
			state.generalResults = o.searchBranch(ctx, state.consultationID, state.question, models.SearchCategoryGeneral)
		})
	}()
	go func() {
		defer wg.Done()
		o.runNode(ctx, "search_penalties", func(ctx context.Context) {
			state.penaltyResults = o.searchBranch(ctx, state.consultationID, state.question, models.SearchCategoryPenalty)
		})
	}()
	go func() {
		defer wg.Done()
		o.runNode(ctx, "search_guidance", func(ctx context.Context) {
			state.guidanceResults = o.searchBranch(ctx, state.consultationID, state.question, models.SearchCategoryPrecedents)
		})
	}()
	wg.Wait()

	o.runNode(ctx, "combine_results", func(context.Context) { o.combineResults(state) })

	notify(StageAssessing)
	var assessErr error
	o.runNode(ctx, "assess_violation", func(ctx context.Context) { assessErr = o.assessViolation(ctx, state) })
	if assessErr != nil {
		o.errs.RecordFatalFailure(consultationID, "assess_violation", assessErr)
		resp := apologyResponse(state, assessErr)
		metrics.ConsultationsFailed.WithLabelValues(failureCode(assessErr)).Inc()
		metrics.ConsultationDuration.Observe(resp.ElapsedSeconds)
		o.recordRun(ctx, resp.ElapsedSeconds, "failed")
		o.recordHistory(ctx, state, log)
		return resp, nil
	}

	o.runNode(ctx, "finalize", func(context.Context) { o.finalize(state) })

	resp := buildResponse(state)
	metrics.ConsultationsCompleted.WithLabelValues(state.assessOutcome).Inc()
	metrics.ConsultationDuration.Observe(resp.ElapsedSeconds)
	o.recordRun(ctx, resp.ElapsedSeconds, "completed")
	o.recordHistory(ctx, state, log)
	o.escalateIfNeeded(ctx, state, log)

	severity := ""
	if state.assessment != nil {
		severity = state.assessment.Severity
	}
	log.Info("Consultation completed", map[string]interface{}{
		"federalLawSources": resp.FederalLawSources,
		"webSources":        resp.WebSources,
		"severity":          severity,
		"assessOutcome":     state.assessOutcome,
		"elapsedSeconds":    resp.ElapsedSeconds,
	})
	return resp, nil
}

// --- Nodes ---

func (o *Orchestrator) collectContext(_ context.Context, s *workflowState) {
	// Identity node: request fields were copied into the state at
	// construction and arrive pre-validated.
	o.log.Debug("Context collected", map[string]interface{}{
		"consultationId": s.consultationID,
		"hasContext":     s.requesterContext != nil,
	})
}

func (o *Orchestrator) createPlan(ctx context.Context, s *workflowState) {
	ctx, cancel := context.WithTimeout(ctx, o.config.NodeTimeout)
	defer cancel()
	s.researchPlan = o.planner.CreatePlan(ctx, s.question, s.requesterContext)
}

func (o *Orchestrator) retrieveKnowledge(ctx context.Context, s *workflowState) {
	ctx, cancel := context.WithTimeout(ctx, o.config.BranchTimeout)
	defer cancel()

	result, err := o.retriever.Retrieve(ctx, s.question, o.config.RetrievalStrategy, o.config.Collection, o.config.TopK, retrieval.Options{})
	if err != nil {
		o.errs.RecordNodeFailure(s.consultationID, "retrieve_knowledge", err)
		s.legalPassages = []models.Passage{}
		return
	}
	s.legalPassages = result.Passages
	s.retrievalOutcome = string(result.Outcome)
}

func (o *Orchestrator) searchBranch(ctx context.Context, consultationID, question, category string) []models.WebHit {
	ctx, cancel := context.WithTimeout(ctx, o.config.BranchTimeout)
	defer cancel()

	hits, err := o.searcher.Search(ctx, question, category)
	if err != nil {
		o.errs.RecordNodeFailure(consultationID, branchNode(category), err)
		return []models.WebHit{}
	}
	if hits == nil {
		hits = []models.WebHit{}
	}
	return hits
}

// combineResults is the join after the parallel fan-out. Merge order is
// by branch identity, never by completion time.
func (o *Orchestrator) combineResults(s *workflowState) {
	combined := make([]models.WebHit, 0, len(s.generalResults)+len(s.penaltyResults)+len(s.guidanceResults))
	combined = append(combined, s.generalResults...)
	combined = append(combined, s.penaltyResults...)
	combined = append(combined, s.guidanceResults...)
	s.combinedResults = combined
}

func (o *Orchestrator) assessViolation(ctx context.Context, s *workflowState) error {
	ctx, cancel := context.WithTimeout(ctx, o.config.NodeTimeout)
	defer cancel()

	result, err := o.assessor.Assess(ctx, assessor.Evidence{
		Question:         s.question,
		RequesterContext: s.requesterContext,
		FederalPassages:  s.legalPassages,
		GeneralHits:      s.generalResults,
		PenaltyHits:      s.penaltyResults,
		PrecedentHits:    s.guidanceResults,
	})
	if err != nil {
		return err
	}
	s.assessment = result.Assessment
	s.narrative = result.Narrative
	s.assessOutcome = string(result.Outcome)
	return nil
}

func (o *Orchestrator) finalize(s *workflowState) {
	s.elapsedSeconds = time.Since(s.startTime).Seconds()
}

// --- Support ---

func branchNode(category string) string {
	switch category {
	case models.SearchCategoryGeneral:
		return "search_general"
	case models.SearchCategoryPenalty:
		return "search_penalties"
	case models.SearchCategoryPrecedents:
		return "search_guidance"
	}
	return "search_unknown"
}

func failureCode(err error) string {
	if errors.Is(err, assessor.ErrAssessmentFailed) {
		return string(cerrors.ErrCodeAssessmentFailed)
	}
	return "INTERNAL_ERROR"
}

func (o *Orchestrator) runNode(ctx context.Context, node string, fn func(context.Context)) {
	start := time.Now()
	ctx, end := o.span(ctx, "workflow."+node)
	defer end()
	fn(ctx)
	metrics.WorkflowNodeDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) span(ctx context.Context, name string) (context.Context, func()) {
	if o.obs == nil {
		return ctx, func() {}
	}
	ctx, sp := o.obs.StartSpan(ctx, name)
	return ctx, func() { sp.End() }
}

func (o *Orchestrator) recordRun(ctx context.Context, elapsedSeconds float64, status string) {
	if o.obs == nil {
		return
	}
	o.obs.RecordConsultation(ctx, status)
	o.obs.RecordConsultationDuration(ctx, time.Duration(elapsedSeconds*float64(time.Second)), status)
}

func (o *Orchestrator) recordHistory(ctx context.Context, s *workflowState, log logger.Logger) {
	if o.history == nil {
		return
	}
	if err := o.history.Record(ctx, buildRecord(s)); err != nil {
		log.Warn("Failed to record consultation history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) escalateIfNeeded(ctx context.Context, s *workflowState, log logger.Logger) {
	if o.notifier == nil || s.assessment == nil {
		return
	}
	if s.assessment.Severity != models.SeveritySerious || !s.assessment.ImmediateActionRequired {
		return
	}
	if err := o.notifier.Escalate(ctx, buildRecord(s), s.assessment); err != nil {
		log.Warn("Failed to send escalation notification", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
