package pgx

import (
	"context"
	"sync"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStore implements the store.GraphStore interface using PostgreSQL
// with pgvector for vector similarity search. It serializes writes with a
// mutex so concurrent pipeline stages do not interleave transactions on a
// shared connection.
type GraphDBStore struct {
	conn   pgxIConn
	dbLock sync.Mutex
}

// NewGraphDBStoreWithConnection creates a new GraphDBStore using an existing
// database connection or pool.
func NewGraphDBStoreWithConnection(ctx context.Context, conn pgxIConn) (*GraphDBStore, error) {
	return &GraphDBStore{
		conn:   conn,
		dbLock: sync.Mutex{},
	}, nil
}

// Ping verifies database connectivity.
func (s *GraphDBStore) Ping(ctx context.Context) error {
	var one int
	return s.conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}
