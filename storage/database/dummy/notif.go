package dummydb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/kelasi/core/notif"
)

type notifRepository struct {
	db *notifTable
}

var _ notif.Repository = (*notifRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notif.Repository {
	return &notifRepository{db: db.notif}
}

// query returns the whole log in event order.
func (repo *notifRepository) query() []notif.Notification {
	rows := make([]*notifRow, 0, len(repo.db.table))
	for _, row := range repo.db.table {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	notifs := make([]notif.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, *row.obj)
	}
	return notifs
}

func (repo *notifRepository) CreateNotification(n notif.Notification) (notif.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	repo.db.seq++
	repo.db.table[n.ID] = &notifRow{seq: repo.db.seq, obj: &n}
	return n, nil
}

func (repo *notifRepository) QueryAllNotifications() ([]notif.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *notifRepository) QueryNotificationsByRecipient(userID string) ([]notif.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []notif.Notification
	for _, n := range repo.query() {
		if n.Recipient == userID {
			notifs = append(notifs, n)
		}
	}
	return notifs, nil
}

func (repo *notifRepository) GetNotificationByID(id string) (notif.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if row, ok := repo.db.table[id]; ok {
		return *row.obj, nil
	}
	return notif.Notification{}, notif.ErrNotFound
}

func (repo *notifRepository) MarkNotificationRead(id string) (notif.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[id]
	if !ok {
		return notif.Notification{}, notif.ErrNotFound
	}
	row.obj.Read = true // idempotent
	return *row.obj, nil
}

func (repo *notifRepository) DeleteNotificationsByFicheID(ficheIDs ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, row := range repo.db.table {
		for _, fid := range ficheIDs {
			if row.obj.FicheID == fid {
				delete(repo.db.table, id)
				break
			}
		}
	}
	return nil
}
