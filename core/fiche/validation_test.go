package fiche

import (
	"reflect"
	"testing"
)

func TestEngineEvaluate(t *testing.T) {
	t.Run("all rules pass", func(t *testing.T) {
		engine := newTestEngine(competencyCatalogStub{}, templateCatalogStub{phases: testPhases})
		res := engine.Evaluate(validTestFiche())

		if !res.IsValid {
			t.Errorf("Evaluate() IsValid = false, want true (failing: %v)", res.FailingRules())
		}
		if res.Score != 100 {
			t.Errorf("Evaluate() Score = %d, want 100", res.Score)
		}
		if len(res.Rules) != 5 {
			t.Errorf("Evaluate() ran %d rules, want 5", len(res.Rules))
		}
	})

	t.Run("one unmapped competency scores 80", func(t *testing.T) {
		engine := newTestEngine(
			competencyCatalogStub{unknown: []string{"représenter une fraction"}},
			templateCatalogStub{phases: testPhases},
		)
		res := engine.Evaluate(validTestFiche())

		if res.IsValid {
			t.Error("Evaluate() IsValid = true, want false")
		}
		if res.Score != 80 {
			t.Errorf("Evaluate() Score = %d, want 80", res.Score)
		}
		if rr := res.Rules[RuleCompetencyTypes]; rr.Valid || len(rr.Suggestions) != 1 {
			t.Errorf("Evaluate() competency_types = %+v, want invalid with 1 suggestion", rr)
		}
	})

	t.Run("unavailable catalog never raises the score", func(t *testing.T) {
		engine := newTestEngine(competencyCatalogStub{err: errCatalogDown}, templateCatalogStub{err: errCatalogDown})
		res := engine.Evaluate(validTestFiche())

		if res.IsValid {
			t.Error("Evaluate() IsValid = true, want false")
		}
		if res.Score != 60 { // 3 of 5 rules still pass
			t.Errorf("Evaluate() Score = %d, want 60", res.Score)
		}
	})

	t.Run("deterministic and side-effect-free", func(t *testing.T) {
		engine := newTestEngine(
			competencyCatalogStub{unknown: []string{"représenter une fraction"}},
			templateCatalogStub{phases: testPhases},
		)
		f := validTestFiche()

		res1 := engine.Evaluate(f)
		res2 := engine.Evaluate(f)
		if !reflect.DeepEqual(res1, res2) {
			t.Errorf("Evaluate() not deterministic:\nfirst  %+v\nsecond %+v", res1, res2)
		}
	})
}

// Flipping exactly one rule from invalid to valid never decreases the score.
func TestEngineScoreMonotonic(t *testing.T) {
	f := validTestFiche()
	templates := templateCatalogStub{phases: testPhases}

	failing := newTestEngine(competencyCatalogStub{unknown: []string{"représenter une fraction"}}, templates)
	passing := newTestEngine(competencyCatalogStub{}, templates)

	before := failing.Evaluate(f)
	after := passing.Evaluate(f)

	if after.Score < before.Score {
		t.Errorf("score decreased after a rule flipped to valid: %d -> %d", before.Score, after.Score)
	}
}
