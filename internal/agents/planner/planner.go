// internal/agents/planner/planner.go
package planner

import (
	"context"
	"fmt"
	"strings"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/llm"
	"ethics-advisor/internal/models"
)

// DefaultPlan is returned whenever plan generation fails. The workflow
// continues with it rather than aborting.
const DefaultPlan = "Standard ethics research approach"

const planPromptTemplate = `You are a federal ethics research planning agent. Analyze the user's question to develop a comprehensive search and analysis strategy.

USER QUESTION: %s
USER CONTEXT: %s

Create a structured research plan that includes:
1. **Key Ethics Areas**: What specific federal ethics laws/regulations to focus on
2. **Search Terms**: Targeted web search terms for current guidance
3. **Risk Factors**: Potential aggravating or mitigating circumstances
4. **Analysis Focus**: What aspects need the deepest investigation

Provide a concise but thorough research plan.`

type Config struct {
	// Model is the lightweight model used for planning calls. Empty
	// means the backend default.
	Model string
}

// Planner drafts the research strategy that precedes retrieval and the
// parallel searches.
type Planner struct {
	config *Config
	llm    llm.Client
	log    logger.Logger
}

func New(cfg *Config, client llm.Client, log logger.Logger) *Planner {
	return &Planner{
		config: cfg,
		llm:    client,
		log:    log.With(map[string]interface{}{"component": "planner"}),
	}
}

// CreatePlan generates a research plan for the question. It never fails:
// any backend error yields DefaultPlan with a warning.
func (p *Planner) CreatePlan(ctx context.Context, question string, rc *models.RequesterContext) string {
	prompt := fmt.Sprintf(planPromptTemplate, question, rc.Describe())

	resp, err := p.llm.CompleteWithOptions(ctx, llm.CompletionRequest{
		Prompt: prompt,
		Model:  p.config.Model,
	})
	if err != nil {
		p.log.Warn("Plan generation failed, using default plan", map[string]interface{}{
			"error": err.Error(),
		})
		return DefaultPlan
	}

	plan := strings.TrimSpace(resp.Content)
	if plan == "" {
		p.log.Warn("Plan generation returned empty content, using default plan", nil)
		return DefaultPlan
	}

	p.log.Debug("Research plan created", map[string]interface{}{
		"planLength": len(plan),
	})
	return plan
}
