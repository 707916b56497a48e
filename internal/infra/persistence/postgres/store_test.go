package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"elwinator/internal/infra/persistence/postgres/testutil"
	"elwinator/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreCreatesTable(t *testing.T) {
	_, conn := openStub(t)
	if len(conn.Execs) == 0 || !strings.Contains(strings.ToUpper(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS NAMESPACES") {
		t.Fatalf("expected namespaces DDL, got %v", conn.Execs)
	}
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	payloads := []domain.NamespacePayload{
		{Name: "prod", Experiments: []domain.ExperimentPayload{{ID: "a", Name: "A", NumSegments: 10, Segments: domain.NewSegmentSet(0, 1, 2)}}},
		{Name: "staging", Publish: true},
	}
	if err := store.Save(ctx, payloads); err != nil {
		t.Fatalf("save: %v", err)
	}
	if rows := conn.Rows; len(rows) != 2 || rows[1].Name != "staging" || rows[1].Position != 1 {
		t.Fatalf("unexpected rows %v", rows)
	}
	if err := store.Save(ctx, payloads[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].Name != "prod" {
		t.Fatalf("expected truncate-and-rewrite, got %+v", got)
	}
	if !got[0].Experiments[0].Segments.Equal(domain.NewSegmentSet(0, 1, 2)) {
		t.Fatalf("unexpected segments %v", got[0].Experiments[0].Segments)
	}
}

func TestStoreSaveRollsBackOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	conn.FailInsert = true
	if err := store.Save(ctx, []domain.NamespacePayload{{Name: "prod"}}); err == nil {
		t.Fatalf("expected insert failure")
	}
	if conn.Rollbacks == 0 {
		t.Fatalf("expected rollback")
	}
	conn.FailQuery = true
	if _, err := store.Load(ctx); err == nil {
		t.Fatalf("expected load failure")
	}
}

func TestStoreSaveCommitAndBeginFailures(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	conn.FailCommit = true
	if err := store.Save(ctx, nil); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
	conn.FailCommit = false
	conn.FailBegin = true
	if err := store.Save(ctx, nil); err == nil || !strings.Contains(err.Error(), "begin") {
		t.Fatalf("expected begin failure, got %v", err)
	}
}

func TestStoreLoadRejectsCorruptPayload(t *testing.T) {
	store, conn := openStub(t)
	conn.Rows = []testutil.Row{{Name: "bad", Payload: []byte("{")}}
	if _, err := store.Load(context.Background()); err == nil || !strings.Contains(err.Error(), "decode namespace bad") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewStoreOpenAndPingFailures(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected open failure")
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestStoreAgainstLivePostgres(t *testing.T) {
	dsn := os.Getenv("ELWINATOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ELWINATOR_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Save(ctx, []domain.NamespacePayload{{Name: "live"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil || len(got) != 1 || got[0].Name != "live" {
		t.Fatalf("unexpected load %+v %v", got, err)
	}
}
