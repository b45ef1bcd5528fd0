// Package catalogsvc ships the built-in pedagogical reference data: the
// competency taxonomy and the lesson templates. The data is compiled in;
// schools needing their own taxonomy swap the implementation behind the
// fiche catalog interfaces.
package catalogsvc

import (
	"strings"

	"github.com/trezcool/kelasi/core/fiche"
)

// competency types, from lowest to highest cognitive demand
const (
	CompetencyKnowledge     = "knowledge"
	CompetencyComprehension = "comprehension"
	CompetencyApplication   = "application"
	CompetencyAnalysis      = "analysis"
	CompetencySynthesis     = "synthesis"
	CompetencyEvaluation    = "evaluation"
)

// verbTaxonomy maps French action verbs (infinitive) to the competency type
// they signal in an objective.
var verbTaxonomy = map[string]string{
	// knowledge
	"citer": CompetencyKnowledge, "définir": CompetencyKnowledge, "nommer": CompetencyKnowledge,
	"réciter": CompetencyKnowledge, "énumérer": CompetencyKnowledge, "identifier": CompetencyKnowledge,
	"reconnaître": CompetencyKnowledge, "mémoriser": CompetencyKnowledge,
	// comprehension
	"expliquer": CompetencyComprehension, "décrire": CompetencyComprehension, "résumer": CompetencyComprehension,
	"illustrer": CompetencyComprehension, "interpréter": CompetencyComprehension, "reformuler": CompetencyComprehension,
	"traduire": CompetencyComprehension, "représenter": CompetencyComprehension,
	// application
	"appliquer": CompetencyApplication, "utiliser": CompetencyApplication, "calculer": CompetencyApplication,
	"résoudre": CompetencyApplication, "construire": CompetencyApplication, "mesurer": CompetencyApplication,
	"comparer": CompetencyApplication, "classer": CompetencyApplication, "tracer": CompetencyApplication,
	"conjuguer": CompetencyApplication, "accorder": CompetencyApplication,
	// analysis
	"analyser": CompetencyAnalysis, "distinguer": CompetencyAnalysis, "décomposer": CompetencyAnalysis,
	"examiner": CompetencyAnalysis, "catégoriser": CompetencyAnalysis, "déduire": CompetencyAnalysis,
	// synthesis
	"composer": CompetencySynthesis, "rédiger": CompetencySynthesis, "produire": CompetencySynthesis,
	"concevoir": CompetencySynthesis, "créer": CompetencySynthesis, "organiser": CompetencySynthesis,
	// evaluation
	"évaluer": CompetencyEvaluation, "juger": CompetencyEvaluation, "critiquer": CompetencyEvaluation,
	"justifier": CompetencyEvaluation, "argumenter": CompetencyEvaluation, "apprécier": CompetencyEvaluation,
}

type competencyCatalog struct{}

var _ fiche.CompetencyCatalog = (*competencyCatalog)(nil) // interface compliance check

func NewCompetencyCatalog() fiche.CompetencyCatalog { return competencyCatalog{} }

// Lookup scans the objective text for a known action verb and returns the
// competency type of the first one found.
func (competencyCatalog) Lookup(objectiveText string) (string, error) {
	for _, word := range strings.Fields(strings.ToLower(objectiveText)) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if typ, ok := verbTaxonomy[word]; ok {
			return typ, nil
		}
	}
	return "", fiche.ErrUnknownCompetency
}

// DefaultTemplateID is the template enforced when none is configured.
const DefaultTemplateID = "default"

// templatePhases holds, per lesson template, the phase markers a fiche's
// content must contain in order.
var templatePhases = map[string][]string{
	DefaultTemplateID: {
		"mise en situation",
		"développement",
		"synthèse",
		"évaluation",
	},
	"revision": {
		"rappel",
		"exercices",
		"évaluation",
	},
	"laboratoire": {
		"mise en situation",
		"manipulation",
		"observation",
		"synthèse",
	},
}

type templateCatalog struct{}

var _ fiche.TemplateCatalog = (*templateCatalog)(nil) // interface compliance check

func NewTemplateCatalog() fiche.TemplateCatalog { return templateCatalog{} }

func (templateCatalog) MandatoryPhases(templateID string) ([]string, error) {
	phases, ok := templatePhases[templateID]
	if !ok {
		// unknown template: fall back to the default phases rather than
		// blocking validation on a configuration typo
		phases = templatePhases[DefaultTemplateID]
	}
	return phases, nil
}
