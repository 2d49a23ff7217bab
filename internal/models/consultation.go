// internal/models/consultation.go
package models

import (
	"strings"
	"time"

	"ethics-advisor/internal/common/errors"
)

// Requester role types.
const (
	RoleFederalEmployee    = "federal_employee"
	RoleContractor         = "contractor"
	RoleSeniorExecutive    = "senior_executive"
	RoleProcurementOfficer = "procurement_officer"
	RoleEthicsOfficial     = "ethics_official"
)

// Security clearance levels.
const (
	ClearanceNone        = "none"
	ClearancePublicTrust = "public_trust"
	ClearanceSecret      = "secret"
	ClearanceTopSecret   = "top_secret"
)

// RequesterContext carries optional requester attributes used to personalize
// the consultation.
type RequesterContext struct {
	Role       string `json:"role,omitempty"`
	Agency     string `json:"agency,omitempty"`
	Seniority  string `json:"seniority,omitempty"`
	Clearance  string `json:"clearance,omitempty"`
	GradeLevel string `json:"grade_level,omitempty"`
}

// Describe renders the context as one compact line for prompt embedding.
// Safe on a nil receiver.
func (rc *RequesterContext) Describe() string {
	if rc == nil {
		return "none provided"
	}
	parts := make([]string, 0, 5)
	if rc.Role != "" {
		parts = append(parts, "role="+rc.Role)
	}
	if rc.Agency != "" {
		parts = append(parts, "agency="+rc.Agency)
	}
	if rc.Seniority != "" {
		parts = append(parts, "seniority="+rc.Seniority)
	}
	if rc.Clearance != "" {
		parts = append(parts, "clearance="+rc.Clearance)
	}
	if rc.GradeLevel != "" {
		parts = append(parts, "grade_level="+rc.GradeLevel)
	}
	if len(parts) == 0 {
		return "none provided"
	}
	return strings.Join(parts, ", ")
}

// ConsultationRequest is the immutable input to a workflow execution.
type ConsultationRequest struct {
	Question         string            `json:"question"`
	RequesterContext *RequesterContext `json:"user_context,omitempty"`
}

// Validate rejects requests the workflow must never see. This is the only
// error class surfaced to the boundary caller.
func (r ConsultationRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return errors.NewEmptyQuestionError()
	}
	return nil
}

// Passage is a chunk of the legal corpus with its source identity. The
// embedding rides along for diversity selection and never serializes.
type Passage struct {
	Text     string    `json:"text"`
	SourceID string    `json:"source_id"`
	Score    *float64  `json:"score,omitempty"`
	Vector   []float32 `json:"-"`
}

// Web search categories, one per parallel branch.
const (
	SearchCategoryGeneral    = "general_guidance"
	SearchCategoryPenalty    = "penalty_research"
	SearchCategoryPrecedents = "current_precedents"
)

// WebHit is a single web search result, tagged with the branch that produced it.
type WebHit struct {
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Content        string   `json:"content"`
	Score          *float64 `json:"score,omitempty"`
	SearchCategory string   `json:"search_category"`
}

// ConsultationResponse is the externally visible result, built once by the
// response assembler and never mutated afterwards.
type ConsultationResponse struct {
	ConsultationID    string                `json:"consultation_id,omitempty"`
	Question          string                `json:"question"`
	Narrative         string                `json:"response"`
	Assessment        *StructuredAssessment `json:"assessment,omitempty"`
	FederalLawSources int                   `json:"federal_law_sources"`
	WebSources        int                   `json:"web_sources"`
	SearchResults     []WebHit              `json:"search_results"`
	ElapsedSeconds    float64               `json:"processing_time_seconds"`
	ResearchPlan      string                `json:"search_plan,omitempty"`
}

// ConsultationRecord is the persisted history row for a completed consultation.
type ConsultationRecord struct {
	ID                string    `json:"id"`
	Question          string    `json:"question"`
	Agency            string    `json:"agency,omitempty"`
	Severity          string    `json:"severity,omitempty"`
	Narrative         string    `json:"narrative"`
	FederalLawSources int       `json:"federal_law_sources"`
	WebSources        int       `json:"web_sources"`
	ElapsedSeconds    float64   `json:"elapsed_seconds"`
	CreatedAt         time.Time `json:"created_at"`
}
