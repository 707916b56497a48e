package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"elwinator/pkg/domain"
)

func samplePayloads() []domain.NamespacePayload {
	return []domain.NamespacePayload{
		{
			Name:    "prod",
			Publish: true,
			Labels:  []domain.Label{{Key: "web", Enabled: true}},
			Experiments: []domain.ExperimentPayload{{
				ID:          "exp-a",
				Name:        "A",
				NumSegments: 10,
				Segments:    domain.NewSegmentSet(0, 1, 2),
				Params: []domain.ParamPayload{{
					ID:       "p1",
					Name:     "color",
					Weighted: true,
					Choices:  []domain.Choice{{Value: "red", Weight: 2}, {Value: "blue", Weight: 1}},
				}},
			}},
		},
		{Name: "staging"},
	}
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Save(ctx, samplePayloads()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	got, err := reloaded.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "prod" || got[1].Name != "staging" {
		t.Fatalf("unexpected namespaces %+v", got)
	}
	exp := got[0].Experiments[0]
	if exp.ID != "exp-a" || !exp.Segments.Equal(domain.NewSegmentSet(0, 1, 2)) {
		t.Fatalf("unexpected experiment %+v", exp)
	}
	if p := exp.Params[0]; !p.Weighted || len(p.Choices) != 2 || p.Choices[0].Weight != 2 {
		t.Fatalf("unexpected param %+v", p)
	}
}

func TestSQLiteStoreSaveReplacesAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Save(ctx, samplePayloads()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, []domain.NamespacePayload{{Name: "zeta"}, {Name: "alpha"}}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "zeta" || got[1].Name != "alpha" {
		t.Fatalf("expected replaced namespaces in saved order, got %+v", got)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM namespaces`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}

func TestSQLiteStoreEmptyLoad(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no namespaces, got %d", len(got))
	}
	if store.Path() == "" {
		t.Fatalf("expected path")
	}
}
