package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/zen-systems/ecoscan/pkg/product"
	"github.com/zen-systems/ecoscan/pkg/schema"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func item(barcode, name string) product.Product {
	return product.Product{Barcode: barcode, Name: name, Brand: "Brand", Ingredients: []string{"water"}}
}

func barcodes(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Product.Barcode
	}
	return out
}

func TestAddMovesExistingToFront(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, b := range []string{"111", "222", "333"} {
		if _, err := s.Add(ctx, item(b, "p"+b), nil); err != nil {
			t.Fatalf("add %s: %v", b, err)
		}
	}
	if _, err := s.Add(ctx, item("111", "renamed"), nil); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := fmt.Sprint(barcodes(entries))
	if got != "[111 333 222]" {
		t.Fatalf("unexpected order %s", got)
	}
	if entries[0].Product.Name != "renamed" || entries[0].UserID != DefaultUserID {
		t.Fatalf("entry not replaced: %+v", entries[0])
	}
}

func TestAddEnforcesLimit(t *testing.T) {
	s := newTestStore(t, WithLimit(3))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := s.Add(ctx, item(fmt.Sprintf("%d", i), "p"), nil); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	entries, _ := s.List(ctx)
	if got := fmt.Sprint(barcodes(entries)); got != "[5 4 3]" {
		t.Fatalf("unexpected entries %s", got)
	}
	if _, err := s.Get(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest entry should be pruned, got %v", err)
	}
}

func TestAnalysisIsStoredAndKept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	analysis := &schema.AnalysisResult{
		HealthInsight:         "x",
		SustainabilityInsight: "y",
		HealthScore:           70,
		EcoScore:              40,
		Alternative:           &schema.Suggestion{Name: "Oats", Reason: "Less sugar"},
	}
	if _, err := s.Add(ctx, item("42", "cereal"), analysis); err != nil {
		t.Fatalf("add: %v", err)
	}
	entry, err := s.Add(ctx, item("42", "cereal v2"), nil)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}

	if entry.Analysis == nil || entry.Analysis.HealthScore != 70 || entry.Analysis.Alternative.Name != "Oats" {
		t.Fatalf("analysis should survive a rescan, got %+v", entry.Analysis)
	}
	if entry.Product.Name != "cereal v2" || entry.ID == "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := newTestStore(t, WithUserID("alice"))
	ctx := context.Background()

	_, _ = s.Add(ctx, item("1", "a"), nil)
	_, _ = s.Add(ctx, item("2", "b"), nil)

	if err := s.Remove(ctx, "1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entry, err := s.Get(ctx, "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.UserID != "alice" {
		t.Fatalf("unexpected user %s", entry.UserID)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := s.List(ctx)
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %d", len(entries))
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = s.Add(ctx, item("7", "kept"), nil)
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entry, err := s.Get(ctx, "7")
	if err != nil || entry.Product.Name != "kept" {
		t.Fatalf("entry not persisted: %+v %v", entry, err)
	}
}

func TestAddRequiresBarcode(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add(context.Background(), product.Product{Name: "x"}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
