package fiche

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kelasi/core"
)

// Status is the workflow state of a Fiche.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

// Extended review chain statuses referenced by the validation panel.
// They refine StatusPending for display purposes only and have no edges in
// the transition table.
// TODO: wire them into the transition table once the reviewer chain
//  (teacher -> collegial -> hierarchical -> pedagogical) is settled.
const (
	StatusTeacherReview      Status = "teacher_review"
	StatusCollegialReview    Status = "collegial_review"
	StatusHierarchicalReview Status = "hierarchical_review"
	StatusPedagogicalReview  Status = "pedagogical_review"
)

var Statuses = []Status{StatusDraft, StatusPending, StatusValidated, StatusRejected}

func KnownStatus(s Status) bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsFinal reports whether no forward progress is possible without an explicit
// resubmission (rejected) or an administrative override (validated).
func (s Status) IsFinal() bool {
	return s == StatusValidated || s == StatusRejected
}

// Actor identifies who triggers a repository mutation or a workflow transition.
// It is always passed explicitly; there is no ambient "current user".
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Objective is a pedagogical objective of a Fiche.
// Legacy clients send objectives either as a bare string or as an object;
// both decode into this one shape (see UnmarshalJSON).
type Objective struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

func (o *Objective) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.ID = ""
		o.Description = s
		return nil
	}

	type objective Objective // avoid recursion
	var obj objective
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*o = Objective(obj)
	return nil
}

// Resource is a teaching material referenced by a Fiche.
// Same duck-typed legacy payloads as Objective.
type Resource struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = ""
		r.Type = "other"
		r.Description = s
		return nil
	}

	type resource Resource
	var res resource
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	*r = Resource(res)
	return nil
}

// Activity is one step of the planned lesson.
type Activity struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    int    `json:"duration"` // minutes
}

// Comment is a reviewer or author remark attached to a Fiche.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"` // user ID
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Fiche is a lesson plan, the aggregate root of this subsystem.
type Fiche struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Subject     string      `json:"subject"` // subject code
	Level       string      `json:"level"`   // target class/level
	Duration    int         `json:"duration"` // planned duration, minutes
	PlannedDate time.Time   `json:"planned_date"`
	Description string      `json:"description"`
	Content     string      `json:"content"`
	Objectives  []Objective `json:"objectives"`
	Resources   []Resource  `json:"resources"`
	Activities  []Activity  `json:"activities"`
	Comments    []Comment   `json:"comments"`

	Status    Status `json:"status"`
	CreatedBy string `json:"created_by"` // user ID
	// ValidatedBy/ValidatedAt are set if and only if Status == StatusValidated.
	ValidatedBy null.String `json:"validated_by"`
	ValidatedAt null.Time   `json:"validated_at"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// ActivitiesDuration is the total declared duration of all activities.
func (f Fiche) ActivitiesDuration() int {
	var total int
	for _, a := range f.Activities {
		total += a.Duration
	}
	return total
}

func (f Fiche) HasObjectives() bool {
	if len(f.Objectives) == 0 {
		return false
	}
	for _, o := range f.Objectives {
		if core.CleanString(o.Description) == "" {
			return false
		}
	}
	return true
}

// ViewerPreferences carries per-viewer UI state. It is always passed in
// explicitly so the core holds no ambient per-viewer state.
type ViewerPreferences struct {
	FavoriteIDs []string
	RecentIDs   []string // recently opened, most recent first
}

func (vp ViewerPreferences) IsFavorite(ficheID string) bool { return contains(vp.FavoriteIDs, ficheID) }
func (vp ViewerPreferences) IsRecent(ficheID string) bool   { return contains(vp.RecentIDs, ficheID) }

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// NewFiche contains information needed to create a new Fiche.
type NewFiche struct {
	Title       string      `json:"title" validate:"required,notblank"`
	Subject     string      `json:"subject" validate:"required,notblank"`
	Level       string      `json:"level" validate:"required,notblank"`
	Duration    int         `json:"duration" validate:"required,gt=0"`
	PlannedDate time.Time   `json:"planned_date"`
	Description string      `json:"description"`
	Content     string      `json:"content"`
	Objectives  []Objective `json:"objectives"`
	Resources   []Resource  `json:"resources"`
	Activities  []Activity  `json:"activities"`
}

func (nf *NewFiche) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Subject = core.CleanString(nf.Subject, true /* lower */)
	nf.Level = core.CleanString(nf.Level, true /* lower */)
	return validate.Struct(nf)
}

// UpdateFiche defines what information may be provided to modify an existing
// Fiche. Workflow fields (status, validated_by, validated_at) are not part of
// this shape on purpose: they only change via workflow transitions.
type UpdateFiche struct {
	Title       string      `json:"title"`
	Subject     string      `json:"subject"`
	Level       string      `json:"level"`
	Duration    *int        `json:"duration" validate:"omitempty,gt=0"`
	PlannedDate *time.Time  `json:"planned_date"`
	Description *string     `json:"description"`
	Content     *string     `json:"content"`
	Objectives  []Objective `json:"objectives"`
	Resources   []Resource  `json:"resources"`
	Activities  []Activity  `json:"activities"`
}

func (uf *UpdateFiche) Validate(origFiche Fiche, validate *validator.Validate) error {
	title := core.CleanString(uf.Title)
	if title != "" {
		uf.Title = title
	} else {
		uf.Title = origFiche.Title
	}

	subject := core.CleanString(uf.Subject, true /* lower */)
	if subject != "" {
		uf.Subject = subject
	} else {
		uf.Subject = origFiche.Subject
	}

	level := core.CleanString(uf.Level, true /* lower */)
	if level != "" {
		uf.Level = level
	} else {
		uf.Level = origFiche.Level
	}

	return validate.Struct(uf)
}

func (uf *UpdateFiche) IsEmpty() bool {
	return uf.Title == "" && uf.Subject == "" && uf.Level == "" && uf.Duration == nil &&
		uf.PlannedDate == nil && uf.Description == nil && uf.Content == nil &&
		uf.Objectives == nil && uf.Resources == nil && uf.Activities == nil
}

// QueryFilter narrows down Fiche queries. All set criteria apply together.
type QueryFilter struct {
	Search       string `query:"search"` // case-insensitive match on Title or Description
	Subject      string `query:"subject"`
	Level        string `query:"level"`
	Status       Status `query:"status"`
	FavoriteOnly bool   `query:"favorite"`
	RecentOnly   bool   `query:"recent"`

	// Prefs resolves FavoriteOnly/RecentOnly for the viewing actor.
	Prefs ViewerPreferences `query:"-" json:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Subject == "" && qf.Level == "" && qf.Status == "" &&
		!qf.FavoriteOnly && !qf.RecentOnly
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
}

// Stats is a fold over the live Fiche collection; it is never stored.
type Stats struct {
	Total     int            `json:"total"`
	ByStatus  map[Status]int `json:"by_status"`
	BySubject map[string]int `json:"by_subject"`
	ByLevel   map[string]int `json:"by_level"`
	ByMonth   map[string]int `json:"by_month"` // keyed "2006-01"
}
