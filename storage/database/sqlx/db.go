package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// where collects AND-ed conditions written with "?" placeholders. Slice arguments expand into IN lists.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// selectWhere runs base + conditions + suffix into dest.
func selectWhere(ctx context.Context, db *sqlx.DB, dest interface{}, base string, w where, suffix string) error {
	q, args, err := sqlx.In(base+w.String()+suffix, w.args...)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	return db.SelectContext(ctx, dest, db.Rebind(q), args...)
}

// getWhere runs base + conditions into dest and returns notFound when no row matches.
func getWhere(ctx context.Context, db *sqlx.DB, dest interface{}, base string, w where, notFound error) error {
	q, args, err := sqlx.In(base+w.String(), w.args...)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	err = db.GetContext(ctx, dest, db.Rebind(q), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func getByID(ctx context.Context, db *sqlx.DB, dest interface{}, table string, id int, notFound error) error {
	var w where
	w.add("id = ?", id)
	return getWhere(ctx, db, dest, "SELECT * FROM "+table, w, notFound)
}

// insert runs a named INSERT statement and returns the generated id.
func insert(ctx context.Context, db *sqlx.DB, q string, arg interface{}) (int, error) {
	q, args, err := db.BindNamed(q+" RETURNING id", arg)
	if err != nil {
		return 0, errors.Wrap(err, "binding insert")
	}
	var id int
	if err = db.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// update runs a named UPDATE statement and returns notFound when no row was changed.
func update(ctx context.Context, db *sqlx.DB, q string, arg interface{}, notFound error) error {
	res, err := db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func count(ctx context.Context, db *sqlx.DB, base string, w where) (int, error) {
	var n int
	q, args, err := sqlx.In(base+w.String(), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "expanding query")
	}
	err = db.GetContext(ctx, &n, db.Rebind(q), args...)
	return n, err
}
