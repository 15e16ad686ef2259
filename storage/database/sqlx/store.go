package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/roster"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the postgres roster.Store. Engines lock the section, then the user rows they
// check (SELECT ... FOR NO KEY UPDATE), so concurrent joins are serialized per section
// and per student.
type Store struct {
	db     *sqlx.DB
	logger core.Logger
}

var _ roster.Store = (*Store)(nil) // interface compliance check

func NewStore(db *sqlx.DB, logger core.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx roster.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				s.logger.Error("rolling back transaction", rbErr)
			}
		}
	}()

	if err = fn(&tx{tx: sqlTx}); err != nil {
		return err
	}
	return errors.Wrap(sqlTx.Commit(), "committing transaction")
}

type tx struct {
	tx *sqlx.Tx
}

var _ roster.Tx = (*tx)(nil) // interface compliance check

func (t *tx) get(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return t.tx.GetContext(ctx, dest, q, args...)
}

func (t *tx) selectAll(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return t.tx.SelectContext(ctx, dest, q, args...)
}

func (t *tx) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return t.tx.ExecContext(ctx, q, args...)
}

// trapNoRowsErr turns sql.ErrNoRows into notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (t *tx) ResetCourse(ctx context.Context, course string) error {
	for _, table := range []string{"attendance", "session", "user_section", "section", `"user"`} {
		if _, err := t.exec(ctx, psql.Delete(table).Where(sq.Eq{"course": course})); err != nil {
			return errors.Wrapf(err, "clearing %s", table)
		}
	}
	return nil
}
