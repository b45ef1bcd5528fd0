package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kelasi/core/notif"
)

const notifCols = `id, type, message, recipient, link, fiche_id, read, created_at`

type notifRepository struct {
	db *sqlx.DB
}

var _ notif.Repository = (*notifRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notif.Repository {
	return &notifRepository{db: db}
}

type notifRow struct {
	ID        string      `db:"id"`
	Type      string      `db:"type"`
	Message   string      `db:"message"`
	Recipient string      `db:"recipient"`
	Link      string      `db:"link"`
	FicheID   null.String `db:"fiche_id"`
	Read      bool        `db:"read"`
	CreatedAt time.Time   `db:"created_at"`
}

func newNotifRow(n notif.Notification) notifRow {
	row := notifRow{
		ID:        n.ID,
		Type:      string(n.Type),
		Message:   n.Message,
		Recipient: n.Recipient,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.FicheID != "" {
		row.FicheID = null.StringFrom(n.FicheID)
	}
	return row
}

func (row notifRow) toNotification() notif.Notification {
	return notif.Notification{
		ID:        row.ID,
		Type:      notif.Type(row.Type),
		Message:   row.Message,
		Recipient: row.Recipient,
		Link:      row.Link,
		FicheID:   row.FicheID.String,
		Read:      row.Read,
		CreatedAt: row.CreatedAt,
	}
}

func rowsToNotifications(rows []notifRow) []notif.Notification {
	notifs := make([]notif.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, row.toNotification())
	}
	return notifs
}

func (repo *notifRepository) CreateNotification(n notif.Notification) (notif.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	q := `INSERT INTO notification (` + notifCols + `) VALUES (
:id, :type, :message, :recipient, :link, :fiche_id, :read, :created_at)`
	if _, err := repo.db.NamedExec(q, newNotifRow(n)); err != nil {
		return notif.Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

func (repo *notifRepository) QueryAllNotifications() ([]notif.Notification, error) {
	var rows []notifRow
	if err := repo.db.Select(&rows, `SELECT `+notifCols+` FROM notification ORDER BY seq`); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return rowsToNotifications(rows), nil
}

func (repo *notifRepository) QueryNotificationsByRecipient(userID string) ([]notif.Notification, error) {
	var rows []notifRow
	q := `SELECT ` + notifCols + ` FROM notification WHERE recipient = $1 ORDER BY seq`
	if err := repo.db.Select(&rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return rowsToNotifications(rows), nil
}

func (repo *notifRepository) GetNotificationByID(id string) (notif.Notification, error) {
	var row notifRow
	if err := repo.db.Get(&row, `SELECT `+notifCols+` FROM notification WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notif.Notification{}, notif.ErrNotFound
		}
		return notif.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toNotification(), nil
}

func (repo *notifRepository) MarkNotificationRead(id string) (notif.Notification, error) {
	var row notifRow
	q := `UPDATE notification SET read = TRUE WHERE id = $1 RETURNING ` + notifCols
	if err := repo.db.Get(&row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notif.Notification{}, notif.ErrNotFound
		}
		return notif.Notification{}, errors.Wrap(err, "marking notification read")
	}
	return row.toNotification(), nil
}

func (repo *notifRepository) DeleteNotificationsByFicheID(ficheIDs ...string) error {
	q := `DELETE FROM notification WHERE fiche_id = ANY($1::uuid[])`
	if _, err := repo.db.Exec(q, pq.Array(ficheIDs)); err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	return nil
}
