package tx_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"geoattend/internal/platform/db"
	"geoattend/internal/platform/tx"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if _, err := conn.Exec(`CREATE TABLE marks (name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	return conn
}

func count(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(`SELECT count(*) FROM marks`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithinNestedJoinsAndRunsHooksAfterCommit(t *testing.T) {
	t.Parallel()
	conn := openDB(t)
	m := tx.NewSQLManager(conn)
	ctx := context.Background()

	hooks := 0
	err := m.Within(ctx, func(ctx context.Context) error {
		if _, err := tx.Conn(ctx, conn).ExecContext(ctx, `INSERT INTO marks VALUES ('outer')`); err != nil {
			return err
		}
		tx.AfterCommit(ctx, func() { hooks++ })
		return m.Within(ctx, func(ctx context.Context) error {
			tx.AfterCommit(ctx, func() { hooks++ })
			if hooks != 0 {
				t.Errorf("hooks ran before commit")
			}
			_, err := tx.Conn(ctx, conn).ExecContext(ctx, `INSERT INTO marks VALUES ('inner')`)
			return err
		})
	})
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	if hooks != 2 || count(t, conn) != 2 {
		t.Fatalf("hooks=%d rows=%d", hooks, count(t, conn))
	}
}

func TestWithinRollbackDropsHooks(t *testing.T) {
	t.Parallel()
	conn := openDB(t)
	m := tx.NewSQLManager(conn)
	boom := errors.New("boom")

	ran := false
	err := m.Within(context.Background(), func(ctx context.Context) error {
		if _, err := tx.Conn(ctx, conn).ExecContext(ctx, `INSERT INTO marks VALUES ('x')`); err != nil {
			return err
		}
		tx.AfterCommit(ctx, func() { ran = true })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ran || count(t, conn) != 0 {
		t.Fatalf("rollback leaked: hook=%t rows=%d", ran, count(t, conn))
	}
}

func TestAfterCommitOutsideTransactionRunsNow(t *testing.T) {
	t.Parallel()
	ran := false
	tx.AfterCommit(context.Background(), func() { ran = true })
	if !ran {
		t.Fatalf("hook should run immediately")
	}
	called := false
	_ = tx.NoopManager{}.Within(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !called {
		t.Fatalf("noop manager must call fn")
	}
}
