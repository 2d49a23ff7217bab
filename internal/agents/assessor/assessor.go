// internal/agents/assessor/assessor.go
package assessor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/common/metrics"
	"ethics-advisor/internal/llm"
	"ethics-advisor/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

var ErrAssessmentFailed = errors.New("ASSESSMENT_FAILED")

// Outcome records whether the structured verdict came from the model or
// from the heuristic fallback over its raw text.
type Outcome string

const (
	OutcomeParsedStructured  Outcome = "parsed_structured"
	OutcomeFallbackHeuristic Outcome = "fallback_heuristic"
)

// Evidence is everything gathered ahead of the assessment call.
type Evidence struct {
	Question         string
	RequesterContext *models.RequesterContext
	FederalPassages  []models.Passage
	GeneralHits      []models.WebHit
	PenaltyHits      []models.WebHit
	PrecedentHits    []models.WebHit
}

// Result is the assessment plus the narrative text shown to the requester.
type Result struct {
	Assessment *models.StructuredAssessment
	Narrative  string
	Outcome    Outcome
}

// Assessor synthesizes the gathered evidence into a structured verdict.
// Parse trouble degrades to a heuristic fallback; only a failed backend
// call is an error.
type Assessor struct {
	llm    llm.Client
	schema *gojsonschema.Schema
	log    logger.Logger
}

func New(client llm.Client, log logger.Logger) (*Assessor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(assessmentSchema))
	if err != nil {
		return nil, fmt.Errorf("compile assessment schema: %w", err)
	}
	return &Assessor{
		llm:    client,
		schema: schema,
		log:    log.With(map[string]interface{}{"component": "assessor"}),
	}, nil
}

func (a *Assessor) Assess(ctx context.Context, ev Evidence) (*Result, error) {
	prompt := buildPrompt(ev)

	resp, err := a.llm.CompleteWithOptions(ctx, llm.CompletionRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssessmentFailed, err)
	}

	if assessment, narrative, ok := a.parse(resp.Content); ok {
		return &Result{
			Assessment: assessment,
			Narrative:  narrative,
			Outcome:    OutcomeParsedStructured,
		}, nil
	}

	a.log.Warn("Structured assessment parse failed, using heuristic fallback", map[string]interface{}{
		"responseLength": len(resp.Content),
	})
	metrics.AssessmentFallbacks.Inc()

	assessment, narrative := fallbackAssessment(resp.Content)
	return &Result{
		Assessment: assessment,
		Narrative:  narrative,
		Outcome:    OutcomeFallbackHeuristic,
	}, nil
}

const assessmentPromptHeader = `You are a federal ethics compliance expert. Analyze the scenario using all available sources and deliver a definitive assessment.

USER CONTEXT: %s
QUESTION: %s

FEDERAL ETHICS CONTEXT:
%s

GENERAL ETHICS GUIDANCE:
%s

PENALTY INFORMATION:
%s

CURRENT GUIDANCE & PRECEDENTS:
%s

`

const assessmentPromptInstructions = `Respond with a single JSON object and nothing else, using exactly this shape:
{
  "direct_answer": "<one-sentence verdict naming the specific laws or regulations involved>",
  "severity": "<no_violation|minor|moderate|serious>",
  "immediate_action_required": <true|false>,
  "next_steps_summary": "<short summary of the required next steps>",
  "detailed_aspects": [
    {"title": "Legal Foundation", "icon": "⚖️", "content": "<applicable statutes and standards>"},
    {"title": "Potential Penalties", "icon": "🚨", "content": "<criminal, civil, administrative consequences>"},
    {"title": "Reporting Requirements", "icon": "📋", "content": "<who to notify, deadlines, forms>"},
    {"title": "Prevention Strategy", "icon": "🛡️", "content": "<compliance measures to avoid recurrence>"}
  ],
  "narrative": "<comprehensive markdown assessment with specific citations, tailored to the user's role and agency>"
}
Prioritize federal law accuracy and provide specific citations when possible.`

func buildPrompt(ev Evidence) string {
	return fmt.Sprintf(assessmentPromptHeader,
		ev.RequesterContext.Describe(),
		ev.Question,
		formatPassages(ev.FederalPassages),
		formatHits(ev.GeneralHits),
		formatHits(ev.PenaltyHits),
		formatHits(ev.PrecedentHits),
	) + assessmentPromptInstructions
}

func formatPassages(passages []models.Passage) string {
	if len(passages) == 0 {
		return "No federal documents retrieved."
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n\n")
}

func formatHits(hits []models.WebHit) string {
	if len(hits) == 0 {
		return "No results available."
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s (%s): %s\n", h.Title, h.URL, h.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
