package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core/user"
)

// userRow stores User.Roles as a comma separated column.
type userRow struct {
	user.User
	RolesCSV string `db:"roles"`
}

func newUserRow(usr user.User) userRow {
	return userRow{User: usr, RolesCSV: strings.Join(usr.Roles, ",")}
}

func (r userRow) user() user.User {
	usr := r.User
	usr.Roles = nil
	if r.RolesCSV != "" {
		usr.Roles = strings.Split(r.RolesCSV, ",")
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var w where
	w.add("(username = ? OR email = ?)", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("id NOT IN (?)", ids)
	}
	var rows []userRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT * FROM users", w, " LIMIT 2"); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, r := range rows {
		if r.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO users
		(name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (:name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		newUserRow(usr),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	usr.ID = id
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("id = ?", filter.ID)
	case len(filter.UsernameOrEmail) > 0:
		w.add("(username IN (?) OR email IN (?))", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}
	var r userRow
	if err := getWhere(ctx, repo.db, &r, "SELECT * FROM users", w, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return r.user(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var w where
	if len(filter.IDs) > 0 {
		w.add("id IN (?)", filter.IDs)
	}
	if filter.Search != "" {
		s := "%" + strings.ToLower(filter.Search) + "%"
		w.add("(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)", s, s, s)
	}
	if len(filter.Roles) > 0 {
		ors := make([]string, 0, len(filter.Roles))
		args := make([]interface{}, 0, len(filter.Roles)*2)
		for _, role := range filter.Roles {
			// roles are prefix matched on every entry of the list
			ors = append(ors, "(roles LIKE ? OR roles LIKE ?)")
			args = append(args, role+"%", "%,"+role+"%")
		}
		w.add("("+strings.Join(ors, " OR ")+")", args...)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	var rows []userRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT * FROM users", w, " ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	orig, err := repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	if err != nil {
		return user.User{}, err
	}
	// only save set fields
	if usr.Roles == nil {
		usr.Roles = orig.Roles
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	usr.CreatedAt = orig.CreatedAt

	err = update(ctx, repo.db, `UPDATE users SET
		name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr), user.ErrNotFound,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}
