package dummydb

import (
	"sync"

	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/core/notif"
	"github.com/trezcool/kelasi/core/user"
)

type (
	DB struct {
		fiche *ficheTable
		notif *notifTable
		user  *userTable
	}

	// rows keep an insertion sequence so queries can preserve insertion order.
	ficheRow struct {
		seq int
		obj *fiche.Fiche
	}
	ficheTable struct {
		sync.RWMutex
		seq   int
		table map[string]*ficheRow
	}

	notifRow struct {
		seq int
		obj *notif.Notification
	}
	notifTable struct {
		sync.RWMutex
		seq   int
		table map[string]*notifRow
	}

	userRow struct {
		seq int
		obj *user.User
	}
	userTable struct {
		sync.RWMutex
		seq   int
		table map[string]*userRow
	}
)

func Open() (*DB, error) {
	db := &DB{
		fiche: &ficheTable{table: make(map[string]*ficheRow)},
		notif: &notifTable{table: make(map[string]*notifRow)},
		user:  &userTable{table: make(map[string]*userRow)},
	}
	return db, nil
}
