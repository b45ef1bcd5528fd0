package fiche

import (
	"math"

	"github.com/trezcool/kelasi/core"
)

// ValidationResult is the aggregated verdict of all rules on a Fiche.
// It is transient: recomputed on demand, never persisted nor cached.
type ValidationResult struct {
	IsValid bool                  `json:"is_valid"`
	Score   int                   `json:"score"` // 0 - 100
	Rules   map[string]RuleResult `json:"rules"`
}

// FailingRules returns the IDs of the rules that did not pass.
func (vr ValidationResult) FailingRules() []string {
	var ids []string
	for id, rr := range vr.Rules {
		if !rr.Valid {
			ids = append(ids, id)
		}
	}
	return ids
}

// Engine runs the full rule set over a Fiche and aggregates the verdicts into
// one ValidationResult. It never changes a fiche's status: the workflow
// consults it and decides.
type Engine struct {
	rules []Rule
}

func NewEngine(competencies CompetencyCatalog, templates TemplateCatalog, conf *core.Config) *Engine {
	return &Engine{
		rules: []Rule{
			competencyTypesRule(competencies),
			objectivesCoherenceRule(),
			mandatoryPhasesRule(templates, conf.Validation.TemplateID),
			progressionRule(),
			workflowStatusRule(),
		},
	}
}

// Evaluate runs all rules on f. It is deterministic and side-effect-free;
// the score weighs all rules equally.
func (e *Engine) Evaluate(f Fiche) ValidationResult {
	res := ValidationResult{Rules: make(map[string]RuleResult, len(e.rules))}

	var passing int
	for _, rule := range e.rules {
		rr := rule.Check(f)
		res.Rules[rule.ID] = rr
		if rr.Valid {
			passing++
		}
	}

	res.IsValid = passing == len(e.rules)
	res.Score = int(math.Round(100 * float64(passing) / float64(len(e.rules))))
	return res
}
