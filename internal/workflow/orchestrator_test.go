// internal/workflow/orchestrator_test.go
package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ethics-advisor/internal/agents/assessor"
	cerrors "ethics-advisor/internal/common/errors"
	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/models"
	"ethics-advisor/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Stubs
// ==========================

type stubPlanner struct {
	plan string
}

func (s *stubPlanner) CreatePlan(_ context.Context, _ string, _ *models.RequesterContext) string {
	return s.plan
}

type stubRetriever struct {
	result *retrieval.Result
	err    error
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ retrieval.Strategy, _ string, _ int, _ retrieval.Options) (*retrieval.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubSearcher simulates per-branch latency and failure. Search blocks
// for the configured delay or until the branch context expires.
type stubSearcher struct {
	mu       sync.Mutex
	delays   map[string]time.Duration
	failures map[string]bool
	hits     map[string][]models.WebHit
	calls    []string
}

func (s *stubSearcher) Search(ctx context.Context, _ string, category string) ([]models.WebHit, error) {
	s.mu.Lock()
	s.calls = append(s.calls, category)
	delay := s.delays[category]
	fail := s.failures[category]
	hits := s.hits[category]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("branch transport down")
	}
	return hits, nil
}

type stubAssessor struct {
	result   *assessor.Result
	err      error
	evidence assessor.Evidence
	called   bool
}

func (s *stubAssessor) Assess(_ context.Context, ev assessor.Evidence) (*assessor.Result, error) {
	s.called = true
	s.evidence = ev
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubHistory struct {
	mu      sync.Mutex
	records []*models.ConsultationRecord
	err     error
}

func (s *stubHistory) Record(_ context.Context, rec *models.ConsultationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type stubNotifier struct {
	mu          sync.Mutex
	escalations int
	lastRecord  *models.ConsultationRecord
}

func (s *stubNotifier) Escalate(_ context.Context, rec *models.ConsultationRecord, _ *models.StructuredAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations++
	s.lastRecord = rec
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		RetrievalStrategy: retrieval.StrategySimilarity,
		Collection:        "federal_ethics_docs",
		TopK:              5,
		BranchTimeout:     2 * time.Second,
		NodeTimeout:       2 * time.Second,
	}
}

func webHit(category, title string) models.WebHit {
	return models.WebHit{
		Title:          title,
		URL:            "https://oge.gov/" + title,
		Content:        "content for " + title,
		SearchCategory: category,
	}
}

func defaultSearcher() *stubSearcher {
	return &stubSearcher{
		delays:   map[string]time.Duration{},
		failures: map[string]bool{},
		hits: map[string][]models.WebHit{
			models.SearchCategoryGeneral: {
				webHit(models.SearchCategoryGeneral, "general-1"),
				webHit(models.SearchCategoryGeneral, "general-2"),
			},
			models.SearchCategoryPenalty: {
				webHit(models.SearchCategoryPenalty, "penalty-1"),
			},
			models.SearchCategoryPrecedents: {
				webHit(models.SearchCategoryPrecedents, "guidance-1"),
			},
		},
	}
}

func defaultAssessorResult() *assessor.Result {
	return &assessor.Result{
		Assessment: &models.StructuredAssessment{
			DirectAnswer:     "The gift exceeds the de minimis threshold.",
			Severity:         models.SeverityModerate,
			NextStepsSummary: "Decline or return the gift.",
			DetailedAspects: []models.AssessmentAspect{
				{Title: "Legal Foundation", Icon: "⚖️", Content: "5 CFR 2635 subpart B."},
			},
		},
		Narrative: "## Ethics Assessment\n\nThe $25 gift exceeds the $20 exception.",
		Outcome:   assessor.OutcomeParsedStructured,
	}
}

func giftRequest() models.ConsultationRequest {
	return models.ConsultationRequest{
		Question: "Can I accept a gift worth $25 from a contractor?",
		RequesterContext: &models.RequesterContext{
			Role:   models.RoleFederalEmployee,
			Agency: "GSA",
		},
	}
}

func newTestOrchestrator(t *testing.T, searcher *stubSearcher, gen *stubAssessor) *Orchestrator {
	t.Helper()
	ret := &stubRetriever{result: &retrieval.Result{
		Passages: []models.Passage{
			{Text: "Gift rules for federal employees.", SourceID: "5cfr2635"},
			{Text: "The 20 dollar exception.", SourceID: "5cfr2635"},
		},
		Outcome: retrieval.OutcomeSimilarity,
	}}
	return NewOrchestrator(createTestConfig(), &stubPlanner{plan: "Research 5 CFR 2635 subpart B."}, ret, searcher, gen, logger.NewTestLogger(t))
}

// ==========================
// Happy Path Tests
// ==========================

func TestOrchestrator_Run_GiftScenario(t *testing.T) {
	searcher := defaultSearcher()
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConsultationID)
	assert.Equal(t, "Can I accept a gift worth $25 from a contractor?", resp.Question)
	assert.Greater(t, resp.FederalLawSources, 0)
	assert.Equal(t, 4, resp.WebSources)
	require.NotNil(t, resp.Assessment)
	assert.True(t, models.ValidSeverity(resp.Assessment.Severity))
	assert.GreaterOrEqual(t, resp.ElapsedSeconds, 0.0)
	assert.Equal(t, "Research 5 CFR 2635 subpart B.", resp.ResearchPlan)
	assert.Contains(t, resp.Narrative, "Ethics Assessment")
}

func TestOrchestrator_Run_CombinedOrderIsByBranchIdentity(t *testing.T) {
	// Completion order is reversed on purpose: guidance finishes first,
	// general last. The combined sequence must not care.
	searcher := defaultSearcher()
	searcher.delays[models.SearchCategoryGeneral] = 120 * time.Millisecond
	searcher.delays[models.SearchCategoryPenalty] = 60 * time.Millisecond
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	require.Len(t, resp.SearchResults, 4)
	assert.Equal(t, "general-1", resp.SearchResults[0].Title)
	assert.Equal(t, "general-2", resp.SearchResults[1].Title)
	assert.Equal(t, "penalty-1", resp.SearchResults[2].Title)
	assert.Equal(t, "guidance-1", resp.SearchResults[3].Title)
}

func TestOrchestrator_Run_BranchesRunConcurrently(t *testing.T) {
	searcher := defaultSearcher()
	searcher.delays[models.SearchCategoryGeneral] = 150 * time.Millisecond
	searcher.delays[models.SearchCategoryPenalty] = 150 * time.Millisecond
	searcher.delays[models.SearchCategoryPrecedents] = 150 * time.Millisecond
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	start := time.Now()
	_, err := o.Run(context.Background(), giftRequest())
	elapsed := time.Since(start)

	require.NoError(t, err)
	// Sequential execution would take at least 450ms.
	assert.Less(t, elapsed, 400*time.Millisecond, "the three search branches must overlap")
}

func TestOrchestrator_Run_AssessorSeesBranchesSeparately(t *testing.T) {
	searcher := defaultSearcher()
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	_, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	require.True(t, gen.called)
	assert.Equal(t, "Can I accept a gift worth $25 from a contractor?", gen.evidence.Question)
	require.Len(t, gen.evidence.FederalPassages, 2)
	assert.Equal(t, "Gift rules for federal employees.", gen.evidence.FederalPassages[0].Text)
	assert.Len(t, gen.evidence.GeneralHits, 2)
	assert.Len(t, gen.evidence.PenaltyHits, 1)
	assert.Len(t, gen.evidence.PrecedentHits, 1)
}

// ==========================
// Branch Failure Tests
// ==========================

func TestOrchestrator_Run_SingleBranchFailure(t *testing.T) {
	searcher := defaultSearcher()
	searcher.failures[models.SearchCategoryPenalty] = true
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	assert.Equal(t, 3, resp.WebSources, "count equals the sum of the surviving branches")
	for _, hit := range resp.SearchResults {
		assert.NotEqual(t, models.SearchCategoryPenalty, hit.SearchCategory)
	}
	assert.Equal(t, models.SearchCategoryGeneral, resp.SearchResults[0].SearchCategory)
	assert.Equal(t, models.SearchCategoryPrecedents, resp.SearchResults[2].SearchCategory)
}

func TestOrchestrator_Run_AllBranchesFail(t *testing.T) {
	searcher := defaultSearcher()
	searcher.failures[models.SearchCategoryGeneral] = true
	searcher.failures[models.SearchCategoryPenalty] = true
	searcher.failures[models.SearchCategoryPrecedents] = true
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	assert.Equal(t, 0, resp.WebSources)
	assert.NotNil(t, resp.SearchResults)
	assert.Empty(t, resp.SearchResults)
	assert.NotEmpty(t, resp.Narrative, "assessment still runs on an empty web evidence set")
	assert.True(t, gen.called)
	assert.GreaterOrEqual(t, resp.ElapsedSeconds, 0.0)
}

func TestOrchestrator_Run_StalledBranchHitsTimeout(t *testing.T) {
	searcher := defaultSearcher()
	searcher.delays[models.SearchCategoryGeneral] = 5 * time.Second
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)
	o.config.BranchTimeout = 50 * time.Millisecond

	start := time.Now()
	resp, err := o.Run(context.Background(), giftRequest())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second, "a stalled branch must not block the barrier past its timeout")
	assert.Equal(t, 2, resp.WebSources, "the stalled branch degrades to empty")
	for _, hit := range resp.SearchResults {
		assert.NotEqual(t, models.SearchCategoryGeneral, hit.SearchCategory)
	}
}

func TestOrchestrator_Run_RetrievalFailureDegrades(t *testing.T) {
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, defaultSearcher(), gen)
	o.retriever = &stubRetriever{err: errors.New("INVALID_RETRIEVAL_STRATEGY: \"typo\"")}

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	assert.Equal(t, 0, resp.FederalLawSources)
	assert.True(t, gen.called, "assessment proceeds without legal passages")
	assert.Empty(t, gen.evidence.FederalPassages)
}

// ==========================
// Generation Failure Tests
// ==========================

func TestOrchestrator_Run_GenerationOutageShortCircuits(t *testing.T) {
	searcher := defaultSearcher()
	gen := &stubAssessor{err: assessor.ErrAssessmentFailed}
	history := &stubHistory{}
	o := newTestOrchestrator(t, searcher, gen).WithHistory(history)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err, "generation failure degrades into the response, not an error")
	assert.Contains(t, resp.Narrative, "I apologize, but I encountered an error processing your ethics consultation")
	assert.Nil(t, resp.Assessment)
	assert.Equal(t, 2, resp.FederalLawSources, "source counts reflect what was gathered before the abort")
	assert.Equal(t, 4, resp.WebSources)
	assert.GreaterOrEqual(t, resp.ElapsedSeconds, 0.0)
	require.Len(t, history.records, 1, "aborted consultations still land in history")
	assert.Empty(t, history.records[0].Severity)
}

// ==========================
// Validation Tests
// ==========================

func TestOrchestrator_Run_EmptyQuestionRejected(t *testing.T) {
	searcher := defaultSearcher()
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, searcher, gen)

	resp, err := o.Run(context.Background(), models.ConsultationRequest{Question: "   "})

	assert.Nil(t, resp)
	require.Error(t, err)
	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeEmptyQuestion, stdErr.Code)
	assert.False(t, gen.called, "nothing downstream runs for an invalid request")
	assert.Empty(t, searcher.calls)
}

// ==========================
// History and Escalation Tests
// ==========================

func TestOrchestrator_Run_RecordsHistory(t *testing.T) {
	searcher := defaultSearcher()
	gen := &stubAssessor{result: defaultAssessorResult()}
	history := &stubHistory{}
	o := newTestOrchestrator(t, searcher, gen).WithHistory(history)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, resp.ConsultationID, rec.ID)
	assert.Equal(t, "GSA", rec.Agency)
	assert.Equal(t, models.SeverityModerate, rec.Severity)
	assert.Equal(t, 2, rec.FederalLawSources)
	assert.Equal(t, 4, rec.WebSources)
}

func TestOrchestrator_Run_HistoryFailureIsNonFatal(t *testing.T) {
	searcher := defaultSearcher()
	gen := &stubAssessor{result: defaultAssessorResult()}
	history := &stubHistory{err: errors.New("pq: connection refused")}
	o := newTestOrchestrator(t, searcher, gen).WithHistory(history)

	resp, err := o.Run(context.Background(), giftRequest())

	require.NoError(t, err)
	assert.NotNil(t, resp.Assessment)
}

func TestOrchestrator_Run_EscalatesSeriousImmediateFindings(t *testing.T) {
	tests := []struct {
		name            string
		severity        string
		immediate       bool
		wantEscalations int
	}{
		{"serious and immediate", models.SeveritySerious, true, 1},
		{"serious without immediate", models.SeveritySerious, false, 0},
		{"moderate and immediate", models.SeverityModerate, true, 0},
		{"no violation", models.SeverityNoViolation, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := defaultAssessorResult()
			result.Assessment.Severity = tt.severity
			result.Assessment.ImmediateActionRequired = tt.immediate
			notifier := &stubNotifier{}
			o := newTestOrchestrator(t, defaultSearcher(), &stubAssessor{result: result}).WithNotifier(notifier)

			resp, err := o.Run(context.Background(), giftRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.wantEscalations, notifier.escalations)
			if tt.wantEscalations > 0 {
				assert.Equal(t, resp.ConsultationID, notifier.lastRecord.ID)
			}
		})
	}
}

func TestOrchestrator_Run_UniqueConsultationIDs(t *testing.T) {
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, defaultSearcher(), gen)

	first, err := o.Run(context.Background(), giftRequest())
	require.NoError(t, err)
	second, err := o.Run(context.Background(), giftRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.ConsultationID, second.ConsultationID)
}

func TestOrchestrator_RunWithProgress_ReportsStageSequence(t *testing.T) {
	gen := &stubAssessor{result: defaultAssessorResult()}
	o := newTestOrchestrator(t, defaultSearcher(), gen)

	var stages []string
	resp, err := o.RunWithProgress(context.Background(), giftRequest(), func(stage string) {
		stages = append(stages, stage)
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, []string{StagePlanning, StageRetrieving, StageSearching, StageAssessing}, stages)
}

func TestOrchestrator_RunWithProgress_NoStagesOnValidationFailure(t *testing.T) {
	o := newTestOrchestrator(t, defaultSearcher(), &stubAssessor{result: defaultAssessorResult()})

	called := 0
	_, err := o.RunWithProgress(context.Background(), models.ConsultationRequest{Question: ""}, func(string) {
		called++
	})

	require.Error(t, err)
	assert.Zero(t, called)
}
