package catalogsvc

import (
	"errors"
	"testing"

	"github.com/trezcool/kelasi/core/fiche"
)

func TestCompetencyCatalogLookup(t *testing.T) {
	catalog := NewCompetencyCatalog()

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{"knowledge verb", "Citer les provinces de la RDC", CompetencyKnowledge, nil},
		{"application verb", "comparer des fractions simples", CompetencyApplication, nil},
		{"evaluation verb", "Justifier son choix de méthode.", CompetencyEvaluation, nil},
		{"verb with punctuation", "Résoudre, par écrit, une équation", CompetencyApplication, nil},
		{"case-insensitive", "EXPLIQUER le cycle de l'eau", CompetencyComprehension, nil},
		{"no action verb", "les fractions simples", "", fiche.ErrUnknownCompetency},
		{"empty", "", "", fiche.ErrUnknownCompetency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.Lookup(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup(%q) error = %v, want %v", tt.text, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTemplateCatalogMandatoryPhases(t *testing.T) {
	catalog := NewTemplateCatalog()

	phases, err := catalog.MandatoryPhases(DefaultTemplateID)
	if err != nil {
		t.Fatalf("MandatoryPhases() failed: %v", err)
	}
	want := []string{"mise en situation", "développement", "synthèse", "évaluation"}
	if len(phases) != len(want) {
		t.Fatalf("MandatoryPhases() = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("MandatoryPhases()[%d] = %q, want %q", i, phases[i], want[i])
		}
	}

	// unknown templates fall back to the default phases
	fallback, err := catalog.MandatoryPhases("nope")
	if err != nil {
		t.Fatalf("MandatoryPhases() failed: %v", err)
	}
	if len(fallback) != len(want) {
		t.Errorf("MandatoryPhases(unknown) = %v, want default phases", fallback)
	}
}
