// internal/agents/assessor/parser.go
package assessor

import (
	"encoding/json"
	"strings"

	"ethics-advisor/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const assessmentSchema = `{
  "type": "object",
  "required": [
    "direct_answer",
    "severity",
    "immediate_action_required",
    "next_steps_summary",
    "detailed_aspects",
    "narrative"
  ],
  "properties": {
    "direct_answer": {"type": "string", "minLength": 1},
    "severity": {"type": "string", "enum": ["no_violation", "minor", "moderate", "serious"]},
    "immediate_action_required": {"type": "boolean"},
    "next_steps_summary": {"type": "string"},
    "detailed_aspects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "content"],
        "properties": {
          "title": {"type": "string"},
          "icon": {"type": "string"},
          "content": {"type": "string"}
        }
      }
    },
    "narrative": {"type": "string", "minLength": 1}
  }
}`

// assessmentPayload is the wire shape the model is asked to produce. The
// narrative is split off into the response body rather than stored on
// the assessment.
type assessmentPayload struct {
	DirectAnswer            string                    `json:"direct_answer"`
	Severity                string                    `json:"severity"`
	ImmediateActionRequired bool                      `json:"immediate_action_required"`
	NextStepsSummary        string                    `json:"next_steps_summary"`
	DetailedAspects         []models.AssessmentAspect `json:"detailed_aspects"`
	Narrative               string                    `json:"narrative"`
}

// parse validates the raw model output against the assessment contract.
// ok is false for malformed JSON, missing keys, or an out-of-enum
// severity; the caller then takes the heuristic fallback.
func (a *Assessor) parse(raw string) (*models.StructuredAssessment, string, bool) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, "", false
	}

	validation, err := a.schema.Validate(gojsonschema.NewStringLoader(jsonText))
	if err != nil || !validation.Valid() {
		return nil, "", false
	}

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, "", false
	}
	if !models.ValidSeverity(payload.Severity) {
		return nil, "", false
	}

	assessment := &models.StructuredAssessment{
		DirectAnswer:            payload.DirectAnswer,
		Severity:                payload.Severity,
		ImmediateActionRequired: payload.ImmediateActionRequired,
		NextStepsSummary:        payload.NextStepsSummary,
		DetailedAspects:         payload.DetailedAspects,
	}
	return assessment, payload.Narrative, true
}

// extractJSON strips markdown fences and surrounding prose, returning
// the outermost JSON object or "" if none is present.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// fallbackAssessment derives a deterministic verdict from raw model text
// that failed structured parsing. First keyword match wins; anything
// unmatched lands on moderate.
func fallbackAssessment(raw string) (*models.StructuredAssessment, string) {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)

	severity := models.SeverityModerate
	switch {
	case strings.Contains(lower, "no violation"):
		severity = models.SeverityNoViolation
	case strings.Contains(lower, "serious"):
		severity = models.SeveritySerious
	case strings.Contains(lower, "moderate"):
		severity = models.SeverityModerate
	case strings.Contains(lower, "minor"):
		severity = models.SeverityMinor
	}

	assessment := &models.StructuredAssessment{
		DirectAnswer:            "See the full assessment below.",
		Severity:                severity,
		ImmediateActionRequired: severity == models.SeveritySerious && strings.Contains(lower, "immediate action"),
		NextStepsSummary:        "Consult your designated agency ethics official before acting.",
		DetailedAspects: []models.AssessmentAspect{
			{Title: "Ethics Assessment", Icon: "📋", Content: text},
		},
	}
	return assessment, text
}
