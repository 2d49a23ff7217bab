// internal/models/assessment.go
package models

// Severity levels for a structured assessment. Any other value coming out of
// the generator is a contract violation and triggers the fallback path.
const (
	SeverityNoViolation = "no_violation"
	SeverityMinor       = "minor"
	SeverityModerate    = "moderate"
	SeveritySerious     = "serious"
)

// ValidSeverity reports whether s is one of the four enumerated levels.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityNoViolation, SeverityMinor, SeverityModerate, SeveritySerious:
		return true
	}
	return false
}

// AssessmentAspect is one titled section of the detailed analysis.
type AssessmentAspect struct {
	Title   string `json:"title"`
	Icon    string `json:"icon"`
	Content string `json:"content"`
}

// StructuredAssessment is the generator's structured verdict.
type StructuredAssessment struct {
	DirectAnswer            string             `json:"direct_answer"`
	Severity                string             `json:"severity"`
	ImmediateActionRequired bool               `json:"immediate_action_required"`
	NextStepsSummary        string             `json:"next_steps_summary"`
	DetailedAspects         []AssessmentAspect `json:"detailed_aspects"`
}
