package fiche

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCompetency is returned by a CompetencyCatalog when an objective
// maps to no known competency type.
var ErrUnknownCompetency = errors.New("unknown competency type")

type (
	// CompetencyCatalog resolves an objective's text to a competency type.
	// Any error other than ErrUnknownCompetency means the catalog itself is
	// unavailable.
	CompetencyCatalog interface {
		Lookup(objectiveText string) (string, error)
	}

	// TemplateCatalog returns the phase markers a lesson template mandates,
	// in the order they must appear in the fiche content.
	TemplateCatalog interface {
		MandatoryPhases(templateID string) ([]string, error)
	}
)

// Rule IDs, stable across releases: they key ValidationResult.Rules.
const (
	RuleCompetencyTypes     = "competency_types"
	RuleObjectivesCoherence = "objectives_coherence"
	RuleMandatoryPhases     = "mandatory_phases"
	RuleProgression         = "pedagogical_progression"
	RuleWorkflowStatus      = "workflow_status"
)

type (
	// RuleResult is the verdict of a single rule on a Fiche.
	RuleResult struct {
		Valid       bool     `json:"is_valid"`
		Suggestions []string `json:"suggestions,omitempty"`
	}

	// Rule checks one pedagogical-quality dimension of a Fiche.
	// Check never mutates its input and never fails: internal errors degrade
	// to an invalid verdict with an explanatory suggestion.
	Rule struct {
		ID    string
		Check func(f Fiche) RuleResult
	}
)

func validResult() RuleResult {
	return RuleResult{Valid: true}
}

func invalidResult(suggestions ...string) RuleResult {
	return RuleResult{Valid: false, Suggestions: suggestions}
}

// competencyTypesRule checks that every objective maps to a recognized
// competency type. An unavailable catalog fails the rule (fail-closed) so a
// missing collaborator never silently raises the score.
func competencyTypesRule(catalog CompetencyCatalog) Rule {
	return Rule{
		ID: RuleCompetencyTypes,
		Check: func(f Fiche) RuleResult {
			var suggestions []string
			for _, obj := range f.Objectives {
				if _, err := catalog.Lookup(obj.Description); err != nil {
					if errors.Is(err, ErrUnknownCompetency) {
						suggestions = append(suggestions,
							fmt.Sprintf("objective %q does not map to a known competency type; rephrase it with an action verb from the competency catalog", obj.Description))
						continue
					}
					return invalidResult(fmt.Sprintf("competency catalog unavailable: %v; try again later", err))
				}
			}
			if suggestions != nil {
				return invalidResult(suggestions...)
			}
			return validResult()
		},
	}
}

// objectivesCoherenceRule checks that every activity references at least one
// objective, by ID or by textual linkage.
func objectivesCoherenceRule() Rule {
	return Rule{
		ID: RuleObjectivesCoherence,
		Check: func(f Fiche) RuleResult {
			var suggestions []string
			for _, act := range f.Activities {
				if !activityLinked(act, f.Objectives) {
					suggestions = append(suggestions,
						fmt.Sprintf("activity %q is not linked to any objective", act.Title))
				}
			}
			if suggestions != nil {
				return invalidResult(suggestions...)
			}
			return validResult()
		},
	}
}

func activityLinked(act Activity, objectives []Objective) bool {
	text := strings.ToLower(act.Title + " " + act.Description)
	for _, obj := range objectives {
		if obj.ID != "" && strings.Contains(text, strings.ToLower(obj.ID)) {
			return true
		}
		if desc := strings.ToLower(strings.TrimSpace(obj.Description)); desc != "" && strings.Contains(text, desc) {
			return true
		}
	}
	return false
}

// mandatoryPhasesRule checks that the content contains the template-mandated
// phase markers in order. An unavailable catalog fails the rule (fail-closed).
func mandatoryPhasesRule(catalog TemplateCatalog, templateID string) Rule {
	return Rule{
		ID: RuleMandatoryPhases,
		Check: func(f Fiche) RuleResult {
			phases, err := catalog.MandatoryPhases(templateID)
			if err != nil {
				return invalidResult(fmt.Sprintf("lesson template catalog unavailable: %v; try again later", err))
			}

			content := strings.ToLower(f.Content)
			var suggestions []string
			pos := 0
			for _, phase := range phases {
				idx := strings.Index(content[pos:], strings.ToLower(phase))
				if idx < 0 {
					suggestions = append(suggestions, fmt.Sprintf("content is missing the %q phase", phase))
					continue
				}
				pos += idx
			}
			if suggestions != nil {
				return invalidResult(suggestions...)
			}
			return validResult()
		},
	}
}

// progressionRule checks that the declared duration can accommodate all
// activities and that at least one objective is declared.
func progressionRule() Rule {
	return Rule{
		ID: RuleProgression,
		Check: func(f Fiche) RuleResult {
			var suggestions []string
			if len(f.Objectives) == 0 {
				suggestions = append(suggestions, "declare at least one objective")
			}
			if total := f.ActivitiesDuration(); total > f.Duration {
				suggestions = append(suggestions,
					fmt.Sprintf("activities add up to %d min but the planned duration is %d min; shorten activities or extend the lesson", total, f.Duration))
			}
			if suggestions != nil {
				return invalidResult(suggestions...)
			}
			return validResult()
		},
	}
}

// workflowStatusRule checks that the fiche is in a state from which forward
// progress is legal.
func workflowStatusRule() Rule {
	return Rule{
		ID: RuleWorkflowStatus,
		Check: func(f Fiche) RuleResult {
			if f.Status.IsFinal() {
				return invalidResult(fmt.Sprintf("fiche is already finalized (%s)", f.Status))
			}
			return validResult()
		},
	}
}
