// Package postgres implements store.Store on database/sql with lib/pq.
// Transactions run at SERIALIZABLE and are retried on serialization
// failures and deadlocks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/joao-fontenele/bookshelf-orders/internal/domain"
	"github.com/joao-fontenele/bookshelf-orders/internal/store"
)

const maxTxRetries = 5

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	return backoff.Retry(func() error {
		err := s.runTx(ctx, fn)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxTxRetries), ctx))
}

func (s *Store) runTx(ctx context.Context, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&tx{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}

// mapErr translates constraint violations into domain errors and leaves
// everything else untouched so retryable() still sees driver errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Constraint)
	case "23503", "22P02":
		// Dangling reference or malformed id: the referenced row does not exist.
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pqErr.Message)
	case "23514":
		return fmt.Errorf("%w: %s", domain.ErrValidation, pqErr.Constraint)
	}
	return err
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Orders() store.OrderRepository     { return &orderRepo{tx: t.tx} }
func (t *tx) Products() store.ProductRepository { return &productRepo{tx: t.tx} }
func (t *tx) Carts() store.CartRepository       { return &cartRepo{tx: t.tx} }
func (t *tx) Messages() store.MessageRepository { return &messageRepo{tx: t.tx} }
func (t *tx) Comments() store.CommentRepository { return &commentRepo{tx: t.tx} }
func (t *tx) Users() store.UserRepository       { return &userRepo{tx: t.tx} }
func (t *tx) Reports() store.ReportRepository   { return &reportRepo{tx: t.tx} }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
