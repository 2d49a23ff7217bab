// internal/workflow/state.go
package workflow

import (
	"time"

	"ethics-advisor/internal/models"
)

// workflowState is the single mutable record threaded through the node
// graph. Every field has a usable zero value before its producing node
// runs. The three branch result fields are written by concurrent
// goroutines and must stay disjoint.
type workflowState struct {
	consultationID   string
	question         string
	requesterContext *models.RequesterContext

	researchPlan string

	legalPassages    []models.Passage
	generalResults   []models.WebHit
	penaltyResults   []models.WebHit
	guidanceResults  []models.WebHit
	combinedResults  []models.WebHit
	retrievalOutcome string

	assessment    *models.StructuredAssessment
	narrative     string
	assessOutcome string

	startTime      time.Time
	elapsedSeconds float64
}

func newWorkflowState(consultationID string, req models.ConsultationRequest) *workflowState {
	return &workflowState{
		consultationID:   consultationID,
		question:         req.Question,
		requesterContext: req.RequesterContext,
		legalPassages:    []models.Passage{},
		generalResults:   []models.WebHit{},
		penaltyResults:   []models.WebHit{},
		guidanceResults:  []models.WebHit{},
		combinedResults:  []models.WebHit{},
		startTime:        time.Now(),
	}
}
