// internal/workflow/assembler.go
package workflow

import (
	"fmt"
	"time"

	"ethics-advisor/internal/models"
)

// buildResponse maps the final workflow state into the external response
// shape. Built once; callers must not mutate the state afterwards.
func buildResponse(s *workflowState) *models.ConsultationResponse {
	results := s.combinedResults
	if results == nil {
		results = []models.WebHit{}
	}
	return &models.ConsultationResponse{
		ConsultationID:    s.consultationID,
		Question:          s.question,
		Narrative:         s.narrative,
		Assessment:        s.assessment,
		FederalLawSources: len(s.legalPassages),
		WebSources:        len(results),
		SearchResults:     results,
		ElapsedSeconds:    s.elapsedSeconds,
		ResearchPlan:      s.researchPlan,
	}
}

// apologyResponse is the short-circuit path after a generation failure.
// Source counts reflect whatever was gathered before the abort.
func apologyResponse(s *workflowState, err error) *models.ConsultationResponse {
	s.narrative = fmt.Sprintf("I apologize, but I encountered an error processing your ethics consultation: %v", err)
	s.assessment = nil
	s.elapsedSeconds = time.Since(s.startTime).Seconds()
	return buildResponse(s)
}

// buildRecord maps a completed consultation onto its history row.
func buildRecord(s *workflowState) *models.ConsultationRecord {
	record := &models.ConsultationRecord{
		ID:                s.consultationID,
		Question:          s.question,
		Narrative:         s.narrative,
		FederalLawSources: len(s.legalPassages),
		WebSources:        len(s.combinedResults),
		ElapsedSeconds:    s.elapsedSeconds,
		CreatedAt:         time.Now().UTC(),
	}
	if s.requesterContext != nil {
		record.Agency = s.requesterContext.Agency
	}
	if s.assessment != nil {
		record.Severity = s.assessment.Severity
	}
	return record
}
