package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kelasi/core/user"
)

const userCols = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    time.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    usr.LastLogin,
	}
	if usr.IsActive != nil {
		row.IsActive = *usr.IsActive
	}
	return row
}

func (row userRow) toUser() user.User {
	isActive := row.IsActive
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		IsActive:     &isActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin,
	}
}

func rowsToUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	var taken []userRow
	q := `SELECT ` + userCols + ` FROM "user"
WHERE (username = $1 AND username <> '' OR email = $2 AND email <> '') AND NOT (id = ANY($3::uuid[]))`
	if err := repo.db.Select(&taken, q, username, email, pq.Array(exclIDs)); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, row := range taken {
		if row.Username == username {
			return user.ErrUsernameExists
		}
		if row.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	q := `INSERT INTO "user" (` + userCols + `) VALUES (
:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExec(q, newUserRow(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT `+userCols+` FROM "user" ORDER BY seq`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return rowsToUsers(rows), nil
}

func (repo *userRepository) get(clause string, args ...interface{}) (user.User, error) {
	var row userRow
	q := `SELECT ` + userCols + ` FROM "user" WHERE ` + clause
	if err := repo.db.Get(&row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	return repo.get(`id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.get(`username = $1 AND username <> ''`, username)
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.get(`email = $1 AND email <> ''`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.get(`(username = $1 OR email = $1) AND $1 <> ''`, username)
}

func (repo *userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
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
		clauses = append(clauses, fmt.Sprintf("(name ILIKE %s OR username ILIKE %s OR email ILIKE %s)", p, p, p))
	}
	if len(filter.Roles) > 0 {
		// any role starting with one of the wanted prefixes
		prefixes := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			prefixes = append(prefixes, r+"%")
		}
		p := arg(pq.Array(prefixes))
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(roles) role WHERE role LIKE ANY(%s))", p))
	}
	if filter.IsActive != nil {
		clauses = append(clauses, "is_active = "+arg(*filter.IsActive))
	}

	q := `SELECT ` + userCols + ` FROM "user"`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY seq"

	var rows []userRow
	if err := repo.db.Select(&rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return rowsToUsers(rows), nil
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	defer func() { _ = tx.Rollback() }()

	var row userRow
	if err = tx.Get(&row, `SELECT `+userCols+` FROM "user" WHERE id = $1 FOR UPDATE`, usr.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}

	// only save set fields
	if usr.Name != "" {
		row.Name = usr.Name
	}
	if usr.Username != "" {
		row.Username = usr.Username
	}
	if usr.Email != "" {
		row.Email = usr.Email
	}
	if usr.Roles != nil {
		row.Roles = pq.StringArray(usr.Roles)
	}
	if usr.PasswordHash != nil {
		row.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		row.IsActive = *isActive
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = usr.LastLogin
	}
	row.UpdatedAt = usr.UpdatedAt

	q := `UPDATE "user" SET
name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
WHERE id = :id`
	if _, err = tx.NamedExec(q, row); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ids ...string) error {
	if _, err := repo.db.Exec(`DELETE FROM "user" WHERE id = ANY($1::uuid[])`, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
