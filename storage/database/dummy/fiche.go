package dummydb

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kelasi/core/fiche"
)

type ficheRepository struct {
	db *ficheTable
}

var _ fiche.Repository = (*ficheRepository)(nil) // interface compliance check

func NewFicheRepository(db *DB) fiche.Repository {
	return &ficheRepository{db: db.fiche}
}

// query returns all fiches in insertion order.
func (repo *ficheRepository) query() []fiche.Fiche {
	rows := make([]*ficheRow, 0, len(repo.db.table))
	for _, row := range repo.db.table {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	fiches := make([]fiche.Fiche, 0, len(rows))
	for _, row := range rows {
		fiches = append(fiches, *row.obj)
	}
	return fiches
}

func (repo *ficheRepository) CreateFiche(f fiche.Fiche) (fiche.Fiche, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	repo.db.seq++
	repo.db.table[f.ID] = &ficheRow{seq: repo.db.seq, obj: &f}
	return f, nil
}

func (repo *ficheRepository) QueryAllFiches() ([]fiche.Fiche, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *ficheRepository) GetFicheByID(id string) (fiche.Fiche, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if row, ok := repo.db.table[id]; ok {
		return *row.obj, nil
	}
	return fiche.Fiche{}, fiche.ErrNotFound
}

func (repo *ficheRepository) FilterFiches(filter fiche.QueryFilter) ([]fiche.Fiche, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	fiches := repo.query()

	// fiches with search keyword matching Title or Description ?
	if filter.Search != "" {
		var filtered []fiche.Fiche
		for _, f := range fiches {
			if strings.Contains(strings.ToLower(f.Title), strings.ToLower(filter.Search)) ||
				strings.Contains(strings.ToLower(f.Description), strings.ToLower(filter.Search)) {
				filtered = append(filtered, f)
			}
		}
		fiches = filtered
	}
	if fiches != nil && filter.Subject != "" {
		var filtered []fiche.Fiche
		for _, f := range fiches {
			if strings.EqualFold(f.Subject, filter.Subject) {
				filtered = append(filtered, f)
			}
		}
		fiches = filtered
	}
	if fiches != nil && filter.Level != "" {
		var filtered []fiche.Fiche
		for _, f := range fiches {
			if strings.EqualFold(f.Level, filter.Level) {
				filtered = append(filtered, f)
			}
		}
		fiches = filtered
	}
	if fiches != nil && filter.Status != "" {
		var filtered []fiche.Fiche
		for _, f := range fiches {
			if f.Status == filter.Status {
				filtered = append(filtered, f)
			}
		}
		fiches = filtered
	}
	if fiches != nil && filter.FavoriteOnly {
		var filtered []fiche.Fiche
		for _, f := range fiches {
			if filter.Prefs.IsFavorite(f.ID) {
				filtered = append(filtered, f)
			}
		}
		fiches = filtered
	}
	if fiches != nil && filter.RecentOnly {
		var filtered []fiche.Fiche
		for _, f := range fiches {
			if filter.Prefs.IsRecent(f.ID) {
				filtered = append(filtered, f)
			}
		}
		fiches = filtered
	}

	return fiches, nil
}

func (repo *ficheRepository) UpdateFiche(f fiche.Fiche) (fiche.Fiche, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set content fields; workflow fields are ignored here
	row, ok := repo.db.table[f.ID]
	if !ok {
		return fiche.Fiche{}, fiche.ErrNotFound
	}
	orig := row.obj
	if f.Title != "" {
		orig.Title = f.Title
	}
	if f.Subject != "" {
		orig.Subject = f.Subject
	}
	if f.Level != "" {
		orig.Level = f.Level
	}
	if f.Duration > 0 {
		orig.Duration = f.Duration
	}
	if !f.PlannedDate.IsZero() {
		orig.PlannedDate = f.PlannedDate
	}
	orig.Description = f.Description
	orig.Content = f.Content
	if f.Objectives != nil {
		orig.Objectives = f.Objectives
	}
	if f.Resources != nil {
		orig.Resources = f.Resources
	}
	if f.Activities != nil {
		orig.Activities = f.Activities
	}
	orig.UpdatedAt = f.UpdatedAt

	return *orig, nil
}

func (repo *ficheRepository) UpdateFicheStatus(f fiche.Fiche) (fiche.Fiche, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[f.ID]
	if !ok {
		return fiche.Fiche{}, fiche.ErrNotFound
	}
	orig := row.obj
	orig.Status = f.Status
	orig.ValidatedBy = f.ValidatedBy
	orig.ValidatedAt = f.ValidatedAt
	orig.Comments = f.Comments
	orig.UpdatedAt = f.UpdatedAt

	return *orig, nil
}

func (repo *ficheRepository) AppendFicheComment(id string, c fiche.Comment, updatedAt time.Time) (fiche.Fiche, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[id]
	if !ok {
		return fiche.Fiche{}, fiche.ErrNotFound
	}
	row.obj.Comments = append(row.obj.Comments, c)
	row.obj.UpdatedAt = updatedAt
	return *row.obj, nil
}

func (repo *ficheRepository) DeleteFichesByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}
