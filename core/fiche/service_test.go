package fiche_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/kelasi/core"
	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/storage/database/dummy"
)

var (
	author   = fiche.Actor{ID: "u-author", Name: "M. Kalala"}
	reviewer = fiche.Actor{ID: "u-inspector", Name: "Mme Tshilombo"}
)

// catalogs recognizing everything / a fixed template
type (
	okCompetencyCatalog struct{ unknown string }
	okTemplateCatalog   struct{}
)

func (c okCompetencyCatalog) Lookup(text string) (string, error) {
	if c.unknown != "" && c.unknown == text {
		return "", fiche.ErrUnknownCompetency
	}
	return "application", nil
}

func (okTemplateCatalog) MandatoryPhases(string) ([]string, error) {
	return []string{"mise en situation", "développement", "synthèse", "évaluation"}, nil
}

// notifierSpy records every lifecycle event it is told about.
type notifierSpy struct {
	mu       sync.Mutex
	created  []fiche.Fiche
	statuses []string // "old->new"
	comments []fiche.Comment
	deleted  []string
}

func (s *notifierSpy) FicheCreated(f fiche.Fiche) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, f)
}

func (s *notifierSpy) FicheStatusChanged(f fiche.Fiche, oldStatus fiche.Status, _ fiche.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, string(oldStatus)+"->"+string(f.Status))
}

func (s *notifierSpy) FicheCommented(_ fiche.Fiche, c fiche.Comment, _ fiche.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, c)
}

func (s *notifierSpy) FichesDeleted(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, ids...)
}

func setup(t *testing.T, unknownObjective ...string) (fiche.ServiceInterface, *notifierSpy) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	conf := &core.Config{
		Validation: core.ValidationConfig{MinScore: 100, TemplateID: "default", RecentWindow: 7 * 24 * time.Hour},
	}

	var unknown string
	if len(unknownObjective) > 0 {
		unknown = unknownObjective[0]
	}
	engine := fiche.NewEngine(okCompetencyCatalog{unknown: unknown}, okTemplateCatalog{}, conf)

	spy := new(notifierSpy)
	return fiche.NewService(dummydb.NewFicheRepository(db), engine, spy, conf), spy
}

func newFicheData() fiche.NewFiche {
	return fiche.NewFiche{
		Title:    "Les fractions",
		Subject:  "math",
		Level:    "5e",
		Duration: 60,
		Content: "Mise en situation: rappel.\nDéveloppement: comparer des fractions simples.\n" +
			"Synthèse: règles.\nÉvaluation: exercices.",
		Objectives: []fiche.Objective{
			{Description: "comparer des fractions simples"},
			{Description: "représenter une fraction"},
		},
		Activities: []fiche.Activity{
			{Title: "Comparer des fractions simples", Duration: 25},
			{Title: "Représenter une fraction", Duration: 20},
		},
	}
}

func createFiche(t *testing.T, svc fiche.ServiceInterface) fiche.Fiche {
	t.Helper()
	f, err := svc.Create(newFicheData(), author)
	if err != nil {
		t.Fatalf("createFiche() failed: %v", err)
	}
	return f
}

func submitFiche(t *testing.T, svc fiche.ServiceInterface) fiche.Fiche {
	t.Helper()
	f := createFiche(t, svc)
	f, err := svc.Submit(f.ID, author)
	if err != nil {
		t.Fatalf("submitFiche() failed: %v", err)
	}
	return f
}

func TestServiceCreate(t *testing.T) {
	svc, spy := setup(t)

	f := createFiche(t, svc)

	if f.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if f.Status != fiche.StatusDraft {
		t.Errorf("Create() Status = %s, want %s", f.Status, fiche.StatusDraft)
	}
	if f.CreatedBy != author.ID {
		t.Errorf("Create() CreatedBy = %s, want %s", f.CreatedBy, author.ID)
	}
	if f.CreatedAt.IsZero() || !f.UpdatedAt.Equal(f.CreatedAt) {
		t.Errorf("Create() timestamps: CreatedAt = %v, UpdatedAt = %v", f.CreatedAt, f.UpdatedAt)
	}
	for _, obj := range f.Objectives {
		if obj.ID == "" {
			t.Error("Create() did not normalize objective IDs")
		}
	}
	if len(spy.created) != 1 {
		t.Errorf("Create() notified %d times, want 1", len(spy.created))
	}
}

func TestServiceSubmit(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc, spy := setup(t)
		f := createFiche(t, svc)

		f, err := svc.Submit(f.ID, author)
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if f.Status != fiche.StatusPending {
			t.Errorf("Submit() Status = %s, want %s", f.Status, fiche.StatusPending)
		}
		if want := []string{"draft->pending"}; !reflect.DeepEqual(spy.statuses, want) {
			t.Errorf("Submit() notified %v, want %v", spy.statuses, want)
		}
	})

	t.Run("empty objectives", func(t *testing.T) {
		svc, _ := setup(t)
		data := newFicheData()
		data.Objectives = nil
		f, err := svc.Create(data, author)
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}

		_, err = svc.Submit(f.ID, author)
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Submit() error = %v, want *core.ValidationError", err)
		}
		if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "objectives" {
			t.Errorf("Submit() error fields = %+v, want one on objectives", vErr.Fields)
		}
	})

	t.Run("unknown fiche", func(t *testing.T) {
		svc, _ := setup(t)
		if _, err := svc.Submit("nope", author); !errors.Is(err, fiche.ErrNotFound) {
			t.Errorf("Submit() error = %v, want %v", err, fiche.ErrNotFound)
		}
	})
}

func TestServiceApprove(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc, _ := setup(t)
		f := submitFiche(t, svc)

		f, err := svc.Approve(f.ID, reviewer)
		if err != nil {
			t.Fatalf("Approve() failed: %v", err)
		}
		if f.Status != fiche.StatusValidated {
			t.Errorf("Approve() Status = %s, want %s", f.Status, fiche.StatusValidated)
		}
		if !f.ValidatedBy.Valid || f.ValidatedBy.String != reviewer.ID {
			t.Errorf("Approve() ValidatedBy = %+v, want %s", f.ValidatedBy, reviewer.ID)
		}
		if !f.ValidatedAt.Valid {
			t.Error("Approve() did not set ValidatedAt")
		}
	})

	t.Run("draft cannot be validated directly", func(t *testing.T) {
		svc, _ := setup(t)
		f := createFiche(t, svc)

		_, err := svc.Approve(f.ID, reviewer)
		var tErr *fiche.InvalidTransitionError
		if !errors.As(err, &tErr) {
			t.Fatalf("Approve() error = %v, want *fiche.InvalidTransitionError", err)
		}
		if tErr.From != fiche.StatusDraft || tErr.To != fiche.StatusValidated {
			t.Errorf("Approve() edge = %s -> %s, want draft -> validated", tErr.From, tErr.To)
		}
	})

	t.Run("engine veto", func(t *testing.T) {
		svc, _ := setup(t, "représenter une fraction")
		f := submitFiche(t, svc)

		_, err := svc.Approve(f.ID, reviewer)
		var vErr *fiche.ValidationFailedError
		if !errors.As(err, &vErr) {
			t.Fatalf("Approve() error = %v, want *fiche.ValidationFailedError", err)
		}
		if vErr.Result.Score != 80 {
			t.Errorf("Approve() carried Score = %d, want 80", vErr.Result.Score)
		}

		// fiche untouched
		f, _ = svc.GetByID(f.ID)
		if f.Status != fiche.StatusPending || f.ValidatedBy.Valid {
			t.Errorf("Approve() veto leaked state: Status = %s, ValidatedBy = %+v", f.Status, f.ValidatedBy)
		}
	})
}

func TestServiceReject(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc, _ := setup(t)
		f := submitFiche(t, svc)

		f, err := svc.Reject(f.ID, reviewer, "manque détails")
		if err != nil {
			t.Fatalf("Reject() failed: %v", err)
		}
		if f.Status != fiche.StatusRejected {
			t.Errorf("Reject() Status = %s, want %s", f.Status, fiche.StatusRejected)
		}
		if len(f.Comments) != 1 || f.Comments[0].Text != "manque détails" || f.Comments[0].Author != reviewer.ID {
			t.Errorf("Reject() Comments = %+v, want the rejection comment", f.Comments)
		}
	})

	t.Run("comment required", func(t *testing.T) {
		svc, _ := setup(t)
		f := submitFiche(t, svc)

		_, err := svc.Reject(f.ID, reviewer, "  ")
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Reject() error = %v, want *core.ValidationError", err)
		}
	})
}

func TestServiceResubmit(t *testing.T) {
	svc, spy := setup(t)
	f := submitFiche(t, svc)

	f, err := svc.Reject(f.ID, reviewer, "manque détails")
	if err != nil {
		t.Fatalf("Reject() failed: %v", err)
	}
	f, err = svc.Resubmit(f.ID, author)
	if err != nil {
		t.Fatalf("Resubmit() failed: %v", err)
	}
	if f.Status != fiche.StatusPending {
		t.Errorf("Resubmit() Status = %s, want %s", f.Status, fiche.StatusPending)
	}
	if f.ValidatedBy.Valid || f.ValidatedAt.Valid {
		t.Error("Resubmit() left validation fields set")
	}
	want := []string{"draft->pending", "pending->rejected", "rejected->pending"}
	if !reflect.DeepEqual(spy.statuses, want) {
		t.Errorf("notified %v, want %v", spy.statuses, want)
	}
}

// (validatedBy != null) <=> (status == validated), across the whole lifecycle.
func TestValidatedByInvariant(t *testing.T) {
	svc, _ := setup(t)
	f := submitFiche(t, svc)

	check := func(f fiche.Fiche) {
		t.Helper()
		if (f.Status == fiche.StatusValidated) != f.ValidatedBy.Valid {
			t.Errorf("invariant broken: Status = %s, ValidatedBy = %+v", f.Status, f.ValidatedBy)
		}
		if f.ValidatedBy.Valid != f.ValidatedAt.Valid {
			t.Errorf("ValidatedBy/ValidatedAt out of sync: %+v / %+v", f.ValidatedBy, f.ValidatedAt)
		}
	}

	check(f)
	f, err := svc.Approve(f.ID, reviewer)
	if err != nil {
		t.Fatalf("Approve() failed: %v", err)
	}
	check(f)
}

func TestServiceUpdate(t *testing.T) {
	t.Run("refreshes UpdatedAt", func(t *testing.T) {
		svc, _ := setup(t)
		f := createFiche(t, svc)

		title := "Les fractions décimales"
		updated, err := svc.Update(f.ID, fiche.UpdateFiche{Title: title}, author)
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if updated.Title != title {
			t.Errorf("Update() Title = %q, want %q", updated.Title, title)
		}
		if updated.UpdatedAt.Before(f.CreatedAt) {
			t.Errorf("Update() UpdatedAt = %v < CreatedAt = %v", updated.UpdatedAt, f.CreatedAt)
		}
	})

	t.Run("validated fiche is frozen", func(t *testing.T) {
		svc, _ := setup(t)
		f := submitFiche(t, svc)
		if _, err := svc.Approve(f.ID, reviewer); err != nil {
			t.Fatalf("Approve() failed: %v", err)
		}

		_, err := svc.Update(f.ID, fiche.UpdateFiche{Title: "nope"}, author)
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Update() error = %v, want *core.ValidationError", err)
		}
	})
}

func TestServiceDelete(t *testing.T) {
	svc, spy := setup(t)
	f := createFiche(t, svc)
	f2 := createFiche(t, svc)

	if err := svc.Delete(f.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := svc.GetByID(f.ID); !errors.Is(err, fiche.ErrNotFound) {
		t.Errorf("GetByID() after delete: error = %v, want %v", err, fiche.ErrNotFound)
	}

	// remaining views exclude it immediately
	all, err := svc.QueryAll()
	if err != nil {
		t.Fatalf("QueryAll() failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != f2.ID {
		t.Errorf("QueryAll() = %+v, want only %s", all, f2.ID)
	}
	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Stats() Total = %d, want 1", stats.Total)
	}

	if !reflect.DeepEqual(spy.deleted, []string{f.ID}) {
		t.Errorf("Delete() notified %v, want [%s]", spy.deleted, f.ID)
	}
}

func TestServiceFilter(t *testing.T) {
	svc, _ := setup(t)

	math := createFiche(t, svc)

	frenchData := newFicheData()
	frenchData.Title = "La poésie"
	frenchData.Subject = "français"
	french, err := svc.Create(frenchData, author)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	prefs := fiche.ViewerPreferences{FavoriteIDs: []string{math.ID, french.ID}}

	t.Run("no criteria matches all", func(t *testing.T) {
		got, err := svc.Filter(fiche.QueryFilter{})
		if err != nil {
			t.Fatalf("Filter() failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Filter() returned %d fiches, want 2", len(got))
		}
	})

	t.Run("search is case-insensitive", func(t *testing.T) {
		got, err := svc.Filter(fiche.QueryFilter{Search: "POÉSIE"})
		if err != nil {
			t.Fatalf("Filter() failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != french.ID {
			t.Errorf("Filter() = %+v, want only %s", got, french.ID)
		}
	})

	t.Run("conjunction equals intersection", func(t *testing.T) {
		both, err := svc.Filter(fiche.QueryFilter{Subject: "math", FavoriteOnly: true, Prefs: prefs})
		if err != nil {
			t.Fatalf("Filter() failed: %v", err)
		}
		bySubject, _ := svc.Filter(fiche.QueryFilter{Subject: "math"})
		byFavorite, _ := svc.Filter(fiche.QueryFilter{FavoriteOnly: true, Prefs: prefs})

		if !reflect.DeepEqual(both, intersect(bySubject, byFavorite)) {
			t.Errorf("Filter() conjunction = %+v, want intersection of %+v and %+v", both, bySubject, byFavorite)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		if _, err := svc.Submit(math.ID, author); err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		got, err := svc.Filter(fiche.QueryFilter{Status: fiche.StatusPending})
		if err != nil {
			t.Fatalf("Filter() failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != math.ID {
			t.Errorf("Filter() = %+v, want only %s", got, math.ID)
		}
	})
}

func TestServiceFilterRecent(t *testing.T) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	repo := dummydb.NewFicheRepository(db)
	conf := &core.Config{
		Validation: core.ValidationConfig{MinScore: 100, TemplateID: "default", RecentWindow: 7 * 24 * time.Hour},
	}
	svc := fiche.NewService(repo, fiche.NewEngine(okCompetencyCatalog{}, okTemplateCatalog{}, conf), nil, conf)

	old := fiche.Fiche{
		Title:     "Vieille fiche",
		Subject:   "math",
		Level:     "5e",
		Status:    fiche.StatusDraft,
		CreatedBy: author.ID,
		CreatedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}
	old, err = repo.CreateFiche(old)
	if err != nil {
		t.Fatalf("CreateFiche() failed: %v", err)
	}
	fresh := createFiche(t, svc)

	t.Run("viewer history wins", func(t *testing.T) {
		got, err := svc.Filter(fiche.QueryFilter{RecentOnly: true, Prefs: fiche.ViewerPreferences{RecentIDs: []string{old.ID}}})
		if err != nil {
			t.Fatalf("Filter() failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != old.ID {
			t.Errorf("Filter() = %+v, want only %s", got, old.ID)
		}
	})

	t.Run("no history falls back to the creation window", func(t *testing.T) {
		got, err := svc.Filter(fiche.QueryFilter{RecentOnly: true})
		if err != nil {
			t.Fatalf("Filter() failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != fresh.ID {
			t.Errorf("Filter() = %+v, want only %s", got, fresh.ID)
		}
	})
}

func intersect(a, b []fiche.Fiche) []fiche.Fiche {
	var out []fiche.Fiche
	for _, fa := range a {
		for _, fb := range b {
			if fa.ID == fb.ID {
				out = append(out, fa)
				break
			}
		}
	}
	return out
}

func TestServiceStats(t *testing.T) {
	svc, _ := setup(t)

	createFiche(t, svc)
	submitFiche(t, svc)

	frenchData := newFicheData()
	frenchData.Subject = "français"
	if _, err := svc.Create(frenchData, author); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Stats() Total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[fiche.StatusDraft] != 2 || stats.ByStatus[fiche.StatusPending] != 1 {
		t.Errorf("Stats() ByStatus = %+v, want 2 drafts and 1 pending", stats.ByStatus)
	}
	if stats.BySubject["math"] != 2 || stats.BySubject["français"] != 1 {
		t.Errorf("Stats() BySubject = %+v", stats.BySubject)
	}
	month := time.Now().UTC().Format("2006-01")
	if stats.ByMonth[month] != 3 {
		t.Errorf("Stats() ByMonth[%s] = %d, want 3", month, stats.ByMonth[month])
	}
}

func TestServiceEvaluate(t *testing.T) {
	svc, _ := setup(t, "représenter une fraction")
	f := submitFiche(t, svc)

	res, err := svc.Evaluate(f.ID)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if res.IsValid || res.Score != 80 {
		t.Errorf("Evaluate() = {IsValid: %v, Score: %d}, want {false, 80}", res.IsValid, res.Score)
	}
}
