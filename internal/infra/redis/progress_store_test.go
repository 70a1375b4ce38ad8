package redis

import (
	"context"
	"sort"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestProgressStoreMissedSet(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewProgressStore(newClient(mr))
	ctx := context.Background()

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

	if err := store.RemoveMissed(ctx, "GO101", []string{"q1", "q3"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	missed, _ = store.Missed(ctx, "GO101")
	if len(missed) != 1 || missed[0] != "q2" {
		t.Fatalf("expected {q2}, got %v", missed)
	}

	if err := store.ClearMissed(ctx, "GO101"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("course:GO101:missed") {
		t.Fatalf("expected missed set key removed")
	}
}

func TestProgressStoreCompletion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewProgressStore(newClient(mr))
	ctx := context.Background()

	if pct, err := store.Completion(ctx, "GO101"); err != nil || pct != 0 {
		t.Fatalf("unset completion should read 0, got %d, %v", pct, err)
	}

	if err := store.SetCompletion(ctx, "GO101", 66); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetCompletion(ctx, "GO101", 50); err != nil {
		t.Fatalf("set: %v", err)
	}
	if pct, _ := store.Completion(ctx, "GO101"); pct != 50 {
		t.Fatalf("expected last write 50, got %d", pct)
	}
}
