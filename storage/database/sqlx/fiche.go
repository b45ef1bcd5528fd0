package sqlxrepos

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kelasi/core/fiche"
)

const ficheCols = `id, title, subject, level, duration, planned_date, description, content,
objectives, resources, activities, comments, status, validated_by, validated_at,
created_by, created_at, updated_at`

type ficheRepository struct {
	db *sqlx.DB
}

var _ fiche.Repository = (*ficheRepository)(nil) // interface compliance check

func NewFicheRepository(db *sqlx.DB) fiche.Repository {
	return &ficheRepository{db: db}
}

// ficheRow mirrors the fiche table; nested shapes live in JSONB columns.
type ficheRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Subject     string      `db:"subject"`
	Level       string      `db:"level"`
	Duration    int         `db:"duration"`
	PlannedDate time.Time   `db:"planned_date"`
	Description string      `db:"description"`
	Content     string      `db:"content"`
	Objectives  []byte      `db:"objectives"`
	Resources   []byte      `db:"resources"`
	Activities  []byte      `db:"activities"`
	Comments    []byte      `db:"comments"`
	Status      string      `db:"status"`
	ValidatedBy null.String `db:"validated_by"`
	ValidatedAt null.Time   `db:"validated_at"`
	CreatedBy   string      `db:"created_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func newFicheRow(f fiche.Fiche) (ficheRow, error) {
	row := ficheRow{
		ID:          f.ID,
		Title:       f.Title,
		Subject:     f.Subject,
		Level:       f.Level,
		Duration:    f.Duration,
		PlannedDate: f.PlannedDate,
		Description: f.Description,
		Content:     f.Content,
		Status:      string(f.Status),
		ValidatedBy: f.ValidatedBy,
		ValidatedAt: f.ValidatedAt,
		CreatedBy:   f.CreatedBy,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	var err error
	if row.Objectives, err = marshalList(f.Objectives); err != nil {
		return row, errors.Wrap(err, "marshalling objectives")
	}
	if row.Resources, err = marshalList(f.Resources); err != nil {
		return row, errors.Wrap(err, "marshalling resources")
	}
	if row.Activities, err = marshalList(f.Activities); err != nil {
		return row, errors.Wrap(err, "marshalling activities")
	}
	if row.Comments, err = marshalList(f.Comments); err != nil {
		return row, errors.Wrap(err, "marshalling comments")
	}
	return row, nil
}

func (row ficheRow) toFiche() (fiche.Fiche, error) {
	f := fiche.Fiche{
		ID:          row.ID,
		Title:       row.Title,
		Subject:     row.Subject,
		Level:       row.Level,
		Duration:    row.Duration,
		PlannedDate: row.PlannedDate,
		Description: row.Description,
		Content:     row.Content,
		Status:      fiche.Status(row.Status),
		ValidatedBy: row.ValidatedBy,
		ValidatedAt: row.ValidatedAt,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := unmarshalList(row.Objectives, &f.Objectives); err != nil {
		return f, errors.Wrap(err, "unmarshalling objectives")
	}
	if err := unmarshalList(row.Resources, &f.Resources); err != nil {
		return f, errors.Wrap(err, "unmarshalling resources")
	}
	if err := unmarshalList(row.Activities, &f.Activities); err != nil {
		return f, errors.Wrap(err, "unmarshalling activities")
	}
	if err := unmarshalList(row.Comments, &f.Comments); err != nil {
		return f, errors.Wrap(err, "unmarshalling comments")
	}
	return f, nil
}

func marshalList(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	return data, nil
}

func unmarshalList(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func rowsToFiches(rows []ficheRow) ([]fiche.Fiche, error) {
	fiches := make([]fiche.Fiche, 0, len(rows))
	for _, row := range rows {
		f, err := row.toFiche()
		if err != nil {
			return nil, err
		}
		fiches = append(fiches, f)
	}
	return fiches, nil
}

func (repo *ficheRepository) CreateFiche(f fiche.Fiche) (fiche.Fiche, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	row, err := newFicheRow(f)
	if err != nil {
		return fiche.Fiche{}, err
	}

	q := `INSERT INTO fiche (` + ficheCols + `) VALUES (
:id, :title, :subject, :level, :duration, :planned_date, :description, :content,
:objectives, :resources, :activities, :comments, :status, :validated_by, :validated_at,
:created_by, :created_at, :updated_at)`
	if _, err = repo.db.NamedExec(q, row); err != nil {
		return fiche.Fiche{}, errors.Wrap(err, "creating fiche")
	}
	return f, nil
}

func (repo *ficheRepository) QueryAllFiches() ([]fiche.Fiche, error) {
	var rows []ficheRow
	if err := repo.db.Select(&rows, `SELECT `+ficheCols+` FROM fiche ORDER BY seq`); err != nil {
		return nil, errors.Wrap(err, "querying fiches")
	}
	return rowsToFiches(rows)
}

func (repo *ficheRepository) GetFicheByID(id string) (fiche.Fiche, error) {
	var row ficheRow
	if err := repo.db.Get(&row, `SELECT `+ficheCols+` FROM fiche WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fiche.Fiche{}, fiche.ErrNotFound
		}
		return fiche.Fiche{}, errors.Wrap(err, "getting fiche")
	}
	return row.toFiche()
}

func (repo *ficheRepository) FilterFiches(filter fiche.QueryFilter) ([]fiche.Fiche, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filter.Subject != "" {
		clauses = append(clauses, "LOWER(subject) = LOWER("+arg(filter.Subject)+")")
	}
	if filter.Level != "" {
		clauses = append(clauses, "LOWER(level) = LOWER("+arg(filter.Level)+")")
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(string(filter.Status)))
	}
	if filter.FavoriteOnly {
		clauses = append(clauses, "id = ANY("+arg(pq.Array(filter.Prefs.FavoriteIDs))+"::uuid[])")
	}
	if filter.RecentOnly {
		clauses = append(clauses, "id = ANY("+arg(pq.Array(filter.Prefs.RecentIDs))+"::uuid[])")
	}

	q := `SELECT ` + ficheCols + ` FROM fiche`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY seq"

	var rows []ficheRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering fiches")
	}
	return rowsToFiches(rows)
}

func (repo *ficheRepository) UpdateFiche(f fiche.Fiche) (fiche.Fiche, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return fiche.Fiche{}, errors.Wrap(err, "updating fiche")
	}
	defer func() { _ = tx.Rollback() }()

	var row ficheRow
	if err = tx.Get(&row, `SELECT `+ficheCols+` FROM fiche WHERE id = $1 FOR UPDATE`, f.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fiche.Fiche{}, fiche.ErrNotFound
		}
		return fiche.Fiche{}, errors.Wrap(err, "updating fiche")
	}
	orig, err := row.toFiche()
	if err != nil {
		return fiche.Fiche{}, err
	}

	// only save set content fields; workflow fields are ignored here
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

	if row, err = newFicheRow(orig); err != nil {
		return fiche.Fiche{}, err
	}
	q := `UPDATE fiche SET
title = :title, subject = :subject, level = :level, duration = :duration,
planned_date = :planned_date, description = :description, content = :content,
objectives = :objectives, resources = :resources, activities = :activities,
updated_at = :updated_at
WHERE id = :id`
	if _, err = tx.NamedExec(q, row); err != nil {
		return fiche.Fiche{}, errors.Wrap(err, "updating fiche")
	}
	if err = tx.Commit(); err != nil {
		return fiche.Fiche{}, errors.Wrap(err, "updating fiche")
	}
	return orig, nil
}

func (repo *ficheRepository) UpdateFicheStatus(f fiche.Fiche) (fiche.Fiche, error) {
	comments, err := marshalList(f.Comments)
	if err != nil {
		return fiche.Fiche{}, errors.Wrap(err, "marshalling comments")
	}

	var row ficheRow
	q := `UPDATE fiche SET status = $2, validated_by = $3, validated_at = $4, comments = $5, updated_at = $6
WHERE id = $1 RETURNING ` + ficheCols
	err = repo.db.Get(&row, q, f.ID, string(f.Status), f.ValidatedBy, f.ValidatedAt, comments, f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fiche.Fiche{}, fiche.ErrNotFound
		}
		return fiche.Fiche{}, errors.Wrap(err, "updating fiche status")
	}
	return row.toFiche()
}

func (repo *ficheRepository) AppendFicheComment(id string, c fiche.Comment, updatedAt time.Time) (fiche.Fiche, error) {
	comment, err := json.Marshal(c)
	if err != nil {
		return fiche.Fiche{}, errors.Wrap(err, "marshalling comment")
	}

	var row ficheRow
	q := `UPDATE fiche SET comments = comments || $2::jsonb, updated_at = $3
WHERE id = $1 RETURNING ` + ficheCols
	if err = repo.db.Get(&row, q, id, comment, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fiche.Fiche{}, fiche.ErrNotFound
		}
		return fiche.Fiche{}, errors.Wrap(err, "appending fiche comment")
	}
	return row.toFiche()
}

func (repo *ficheRepository) DeleteFichesByID(ids ...string) error {
	if _, err := repo.db.Exec(`DELETE FROM fiche WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting fiches")
	}
	return nil
}
