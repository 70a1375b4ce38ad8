package memory

import (
	"context"
	"sort"
	"testing"
)

func TestProgressStoreMergeNeverLoses(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	if err := store.AddMissed(ctx, "GO101", []string{"q1", "q2"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddMissed(ctx, "GO101", []string{"q2", "q3"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	missed, err := store.Missed(ctx, "GO101")
	if err != nil {
		t.Fatalf("missed: %v", err)
	}
	sort.Strings(missed)
	if len(missed) != 3 || missed[0] != "q1" || missed[2] != "q3" {
		t.Fatalf("expected union {q1,q2,q3}, got %v", missed)
	}
}

func TestProgressStoreRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	_ = store.AddMissed(ctx, "GO101", []string{"q1", "q2"})
	if err := store.RemoveMissed(ctx, "GO101", []string{"q1"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	missed, _ := store.Missed(ctx, "GO101")
	if len(missed) != 1 || missed[0] != "q2" {
		t.Fatalf("expected {q2}, got %v", missed)
	}

	if err := store.ClearMissed(ctx, "GO101"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	missed, _ = store.Missed(ctx, "GO101")
	if len(missed) != 0 {
		t.Fatalf("expected empty record, got %v", missed)
	}
}

func TestProgressStoreCoursesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	_ = store.AddMissed(ctx, "GO101", []string{"q1"})
	_ = store.AddMissed(ctx, "CS202", []string{"q9"})
	_ = store.ClearMissed(ctx, "GO101")

	missed, _ := store.Missed(ctx, "CS202")
	if len(missed) != 1 || missed[0] != "q9" {
		t.Fatalf("clearing one course touched another: %v", missed)
	}
}

func TestProgressStoreCompletionLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()

	_ = store.SetCompletion(ctx, "GO101", 40)
	_ = store.SetCompletion(ctx, "GO101", 25)

	pct, err := store.Completion(ctx, "GO101")
	if err != nil || pct != 25 {
		t.Fatalf("expected last write 25, got %d, %v", pct, err)
	}
}
