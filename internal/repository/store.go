package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	svcErr "github.com/jeffschecter/Signal/internal/errors"
	"github.com/jeffschecter/Signal/internal/metrics"
)

// Repos bundles every repository bound to one *gorm.DB, which is either the
// base connection or an open transaction.
type Repos struct {
	Accounts      *AccountRepository
	Relationships *RelationshipRepository
	Ledger        *LedgerRepository
	Garden        *GardenRepository
	Blobs         *BlobRepository
}

func newRepos(database *gorm.DB) *Repos {
	return &Repos{
		Accounts:      NewAccountRepository(database),
		Relationships: NewRelationshipRepository(database),
		Ledger:        NewLedgerRepository(database),
		Garden:        NewGardenRepository(database),
		Blobs:         NewBlobRepository(database),
	}
}

// Store is the unit of work: callers open a transaction, read and write
// through the repositories it hands them, and the store commits or rolls
// back as a whole. A transaction may span any number of entity groups.
type Store struct {
	db         *gorm.DB
	maxRetries int
	*Repos
}

// NewStore binds a store to the database. maxRetries bounds how many times
// a transaction that hit a transient conflict is re-run.
func NewStore(database *gorm.DB, maxRetries int) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Store{db: database, maxRetries: maxRetries, Repos: newRepos(database)}
}

// Transaction runs fn inside one database transaction. Returning an error
// from fn rolls everything back. Deadlocks, serialization failures and busy
// databases re-run fn with exponential backoff; once retries are exhausted
// the error wraps ErrConflict.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Repos) error) error {
	op := func() error {
		err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(newRepos(gtx))
		})
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			metrics.TxRetries.Inc()
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)),
		ctx,
	)
	err := backoff.Retry(op, policy)
	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: %v", svcErr.ErrConflict, err)
	}
	return err
}

// isRetryable reports whether err is a transient conflict worth re-running
// the transaction for.
func isRetryable(err error) bool {
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked
	}
	return false
}

// lockingQuery starts a query that takes row locks when lock is set.
// Dialects without row locks (sqlite) drop the clause.
func lockingQuery(ctx context.Context, database *gorm.DB, lock bool) *gorm.DB {
	q := database.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// notFound translates gorm's miss into the domain error for key.
func notFound(err error, key fmt.Stringer) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound(key)
	}
	return err
}
