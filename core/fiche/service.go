package fiche

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kelasi/core"
)

var (
	// errors
	ErrNotFound          = errors.New("fiche not found")
	ErrMissingObjectives = errors.New("at least one objective with a description is required")
	ErrFicheFinalized    = errors.New("a validated fiche can no longer be edited")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateFiche(f Fiche) (Fiche, error)
		// QueryAllFiches returns all fiches in insertion order.
		QueryAllFiches() ([]Fiche, error)
		GetFicheByID(id string) (Fiche, error)
		// FilterFiches applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Fiche.Title or Fiche.Description.
		FilterFiches(filter QueryFilter) ([]Fiche, error)
		// UpdateFiche only saves set content fields; it never touches
		// Status, ValidatedBy, ValidatedAt or Comments.
		UpdateFiche(f Fiche) (Fiche, error)
		// UpdateFicheStatus saves the workflow fields: Status, ValidatedBy,
		// ValidatedAt, Comments and UpdatedAt. Workflow use only.
		UpdateFicheStatus(f Fiche) (Fiche, error)
		AppendFicheComment(id string, c Comment, updatedAt time.Time) (Fiche, error)
		DeleteFichesByID(ids ...string) error
	}

	// Notifier is told about every fiche lifecycle event.
	Notifier interface {
		FicheCreated(f Fiche)
		FicheStatusChanged(f Fiche, oldStatus Status, actor Actor)
		FicheCommented(f Fiche, c Comment, actor Actor)
		FichesDeleted(ids ...string)
	}

	ServiceInterface interface {
		Create(nf NewFiche, actor Actor) (Fiche, error)
		QueryAll() ([]Fiche, error)
		GetByID(id string) (Fiche, error)
		Filter(filter QueryFilter) ([]Fiche, error)
		Stats() (Stats, error)
		Update(id string, uf UpdateFiche, actor Actor) (Fiche, error)
		Delete(ids ...string) error
		AddComment(id string, actor Actor, text string) (Fiche, error)
		Evaluate(id string) (ValidationResult, error)
		Submit(id string, actor Actor) (Fiche, error)
		Approve(id string, actor Actor) (Fiche, error)
		Reject(id string, actor Actor, comment string) (Fiche, error)
		Resubmit(id string, actor Actor) (Fiche, error)
	}

	service struct {
		repo   Repository
		engine *Engine
		notif  Notifier
		conf   *core.Config
		locks  keyedMutex
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(repo Repository, engine *Engine, notif Notifier, conf *core.Config) ServiceInterface {
	if notif == nil {
		notif = nopNotifier{}
	}
	return &service{
		repo:   repo,
		engine: engine,
		notif:  notif,
		conf:   conf,
	}
}

func (svc *service) Create(nf NewFiche, actor Actor) (Fiche, error) {
	now := nowFunc().UTC()
	f := Fiche{
		Title:       nf.Title,
		Subject:     nf.Subject,
		Level:       nf.Level,
		Duration:    nf.Duration,
		PlannedDate: nf.PlannedDate,
		Description: nf.Description,
		Content:     nf.Content,
		Objectives:  normalizeObjectives(nf.Objectives),
		Resources:   normalizeResources(nf.Resources),
		Activities:  nf.Activities,
		Status:      StatusDraft,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f, err := svc.repo.CreateFiche(f)
	if err != nil {
		return Fiche{}, err
	}
	svc.notif.FicheCreated(f)
	return f, nil
}

func (svc *service) QueryAll() ([]Fiche, error) {
	return svc.repo.QueryAllFiches()
}

func (svc *service) GetByID(id string) (Fiche, error) {
	return svc.repo.GetFicheByID(id)
}

func (svc *service) Filter(filter QueryFilter) ([]Fiche, error) {
	filter.Clean()

	// without viewer history, "recent" falls back to the creation window
	windowed := filter.RecentOnly && len(filter.Prefs.RecentIDs) == 0
	if windowed {
		filter.RecentOnly = false
	}
	fiches, err := svc.repo.FilterFiches(filter)
	if err != nil || !windowed {
		return fiches, err
	}

	cutoff := nowFunc().UTC().Add(-svc.conf.Validation.RecentWindow)
	var recent []Fiche
	for _, f := range fiches {
		if f.CreatedAt.After(cutoff) {
			recent = append(recent, f)
		}
	}
	return recent, nil
}

// Stats folds over the live collection; nothing is maintained incrementally.
func (svc *service) Stats() (Stats, error) {
	fiches, err := svc.repo.QueryAllFiches()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:     len(fiches),
		ByStatus:  make(map[Status]int),
		BySubject: make(map[string]int),
		ByLevel:   make(map[string]int),
		ByMonth:   make(map[string]int),
	}
	for _, f := range fiches {
		stats.ByStatus[f.Status]++
		stats.BySubject[f.Subject]++
		stats.ByLevel[f.Level]++
		stats.ByMonth[f.CreatedAt.Format("2006-01")]++
	}
	return stats, nil
}

func (svc *service) Update(id string, uf UpdateFiche, actor Actor) (Fiche, error) {
	defer svc.locks.lock(id)()

	orig, err := svc.repo.GetFicheByID(id)
	if err != nil {
		return Fiche{}, err
	}
	if orig.Status == StatusValidated {
		return Fiche{}, core.NewValidationError(ErrFicheFinalized)
	}

	f := Fiche{
		ID:         id,
		Title:      uf.Title,
		Subject:    uf.Subject,
		Level:      uf.Level,
		Objectives: normalizeObjectives(uf.Objectives),
		Resources:  normalizeResources(uf.Resources),
		Activities: uf.Activities,
		UpdatedAt:  nowFunc().UTC(),
	}
	if uf.Duration != nil {
		f.Duration = *uf.Duration
	}
	if uf.PlannedDate != nil {
		f.PlannedDate = *uf.PlannedDate
	}
	if uf.Description != nil {
		f.Description = *uf.Description
	} else {
		f.Description = orig.Description
	}
	if uf.Content != nil {
		f.Content = *uf.Content
	} else {
		f.Content = orig.Content
	}
	return svc.repo.UpdateFiche(f)
}

func (svc *service) Delete(ids ...string) error {
	if err := svc.repo.DeleteFichesByID(ids...); err != nil {
		return err
	}
	// cascade: notifications pointing at deleted fiches are invalidated
	svc.notif.FichesDeleted(ids...)
	return nil
}

func (svc *service) AddComment(id string, actor Actor, text string) (Fiche, error) {
	if core.CleanString(text) == "" {
		return Fiche{}, core.NewValidationError(nil, core.FieldError{Field: "text", Error: "this field is required"})
	}

	defer svc.locks.lock(id)()

	c := Comment{
		ID:        uuid.New().String(),
		Author:    actor.ID,
		Text:      core.CleanString(text),
		CreatedAt: nowFunc().UTC(),
	}
	f, err := svc.repo.AppendFicheComment(id, c, c.CreatedAt)
	if err != nil {
		return Fiche{}, err
	}
	svc.notif.FicheCommented(f, c, actor)
	return f, nil
}

func (svc *service) Evaluate(id string) (ValidationResult, error) {
	f, err := svc.repo.GetFicheByID(id)
	if err != nil {
		return ValidationResult{}, err
	}
	return svc.engine.Evaluate(f), nil
}

// Submit moves an author's draft into the review queue.
func (svc *service) Submit(id string, actor Actor) (Fiche, error) {
	return svc.transitionTo(id, StatusPending, actor, func(f *Fiche) error {
		if f.Status != StatusDraft {
			return &InvalidTransitionError{From: f.Status, To: StatusPending}
		}
		if !f.HasObjectives() {
			return core.NewValidationError(ErrMissingObjectives,
				core.FieldError{Field: "objectives", Error: ErrMissingObjectives.Error()})
		}
		return nil
	})
}

// Approve validates a pending fiche. The engine has the only say on whether
// the fiche is good enough; the configured minimum score is the policy knob.
func (svc *service) Approve(id string, actor Actor) (Fiche, error) {
	return svc.transitionTo(id, StatusValidated, actor, func(f *Fiche) error {
		res := svc.engine.Evaluate(*f)
		minScore := svc.conf.Validation.MinScore
		if res.Score < minScore || (minScore >= 100 && !res.IsValid) {
			return &ValidationFailedError{Result: res}
		}
		f.ValidatedBy = null.StringFrom(actor.ID)
		f.ValidatedAt = null.TimeFrom(nowFunc().UTC())
		return nil
	})
}

// Reject sends a pending fiche back to its author with a mandatory comment.
func (svc *service) Reject(id string, actor Actor, comment string) (Fiche, error) {
	comment = core.CleanString(comment)
	if comment == "" {
		return Fiche{}, core.NewValidationError(nil, core.FieldError{Field: "comment", Error: "a rejection comment is required"})
	}
	return svc.transitionTo(id, StatusRejected, actor, func(f *Fiche) error {
		f.Comments = append(f.Comments, Comment{
			ID:        uuid.New().String(),
			Author:    actor.ID,
			Text:      comment,
			CreatedAt: nowFunc().UTC(),
		})
		return nil
	})
}

// Resubmit puts a rejected fiche back in the review queue after edits.
func (svc *service) Resubmit(id string, actor Actor) (Fiche, error) {
	return svc.transitionTo(id, StatusPending, actor, func(f *Fiche) error {
		if f.Status != StatusRejected {
			return &InvalidTransitionError{From: f.Status, To: StatusPending}
		}
		if !f.HasObjectives() {
			return core.NewValidationError(ErrMissingObjectives,
				core.FieldError{Field: "objectives", Error: ErrMissingObjectives.Error()})
		}
		f.ValidatedBy = null.String{}
		f.ValidatedAt = null.Time{}
		return nil
	})
}

// transitionTo re-reads the fiche under its write lock, checks the edge and
// the transition's preconditions, persists and notifies. A stale caller can
// therefore never skip validation.
func (svc *service) transitionTo(id string, to Status, actor Actor, precondition func(f *Fiche) error) (Fiche, error) {
	defer svc.locks.lock(id)()

	f, err := svc.repo.GetFicheByID(id)
	if err != nil {
		return Fiche{}, err
	}
	if !CanTransition(f.Status, to) {
		return Fiche{}, &InvalidTransitionError{From: f.Status, To: to}
	}
	if err = precondition(&f); err != nil {
		return Fiche{}, err
	}

	oldStatus := f.Status
	f.Status = to
	f.UpdatedAt = nowFunc().UTC()

	if f, err = svc.repo.UpdateFicheStatus(f); err != nil {
		return Fiche{}, err
	}
	svc.notif.FicheStatusChanged(f, oldStatus, actor)
	return f, nil
}

// normalizeObjectives assigns IDs to objectives coming in as plain text so
// downstream rules always see one shape.
func normalizeObjectives(objectives []Objective) []Objective {
	for i, o := range objectives {
		o.Description = core.CleanString(o.Description)
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		objectives[i] = o
	}
	return objectives
}

func normalizeResources(resources []Resource) []Resource {
	for i, r := range resources {
		r.Description = core.CleanString(r.Description)
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Type == "" {
			r.Type = "other"
		}
		resources[i] = r
	}
	return resources
}

// keyedMutex serializes writes per fiche ID: a second mutation for the same
// fiche queues strictly behind the in-flight one. Entries are never freed;
// the key space is bounded by one school's fiches.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (km *keyedMutex) lock(id string) (unlock func()) {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*sync.Mutex)
	}
	m, ok := km.locks[id]
	if !ok {
		m = new(sync.Mutex)
		km.locks[id] = m
	}
	km.mu.Unlock()

	m.Lock()
	return m.Unlock
}

type nopNotifier struct{}

func (nopNotifier) FicheCreated(Fiche)                      {}
func (nopNotifier) FicheStatusChanged(Fiche, Status, Actor) {}
func (nopNotifier) FicheCommented(Fiche, Comment, Actor)    {}
func (nopNotifier) FichesDeleted(...string)                 {}
