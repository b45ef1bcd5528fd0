package fiche

import (
	"errors"
	"strings"
	"time"

	"github.com/trezcool/kelasi/core"
)

var errCatalogDown = errors.New("catalog temporarily unavailable")

// competencyCatalogStub recognizes any objective unless listed in unknown;
// a non-nil err simulates an unavailable catalog.
type competencyCatalogStub struct {
	unknown []string
	err     error
}

func (c competencyCatalogStub) Lookup(objectiveText string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	for _, u := range c.unknown {
		if strings.EqualFold(u, objectiveText) {
			return "", ErrUnknownCompetency
		}
	}
	return "application", nil
}

// templateCatalogStub returns a fixed phase list; a non-nil err simulates an
// unavailable catalog.
type templateCatalogStub struct {
	phases []string
	err    error
}

func (c templateCatalogStub) MandatoryPhases(string) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.phases, nil
}

var testPhases = []string{"mise en situation", "développement", "synthèse", "évaluation"}

func newTestConfig() *core.Config {
	return &core.Config{
		AppName: "Kelasi",
		Validation: core.ValidationConfig{
			MinScore:     100,
			RecentWindow: 7 * 24 * time.Hour,
			TemplateID:   "default",
		},
	}
}

func newTestEngine(competencies CompetencyCatalog, templates TemplateCatalog) *Engine {
	return NewEngine(competencies, templates, newTestConfig())
}

// validTestFiche returns a pending fiche that passes all rules.
func validTestFiche() Fiche {
	now := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	return Fiche{
		ID:       "f-001",
		Title:    "Les fractions",
		Subject:  "math",
		Level:    "5e",
		Duration: 60,
		Content: "Mise en situation: rappel sur les parts de gâteau.\n" +
			"Développement: comparer des fractions simples.\n" +
			"Synthèse: règles de comparaison.\n" +
			"Évaluation: exercices d'application.",
		Objectives: []Objective{
			{ID: "obj-1", Description: "comparer des fractions simples"},
			{ID: "obj-2", Description: "représenter une fraction"},
		},
		Activities: []Activity{
			{Title: "Comparer des fractions simples", Description: "travail en binômes", Duration: 25},
			{Title: "Représenter une fraction", Description: "dessins sur ardoise", Duration: 20},
		},
		Status:    StatusPending,
		CreatedBy: "u-author",
		CreatedAt: now,
		UpdatedAt: now,
	}
}
