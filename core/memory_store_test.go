package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token := AuthToken{
		TokenHash: HashSecret("raw"),
		PatientID: "p-1",
		Method:    MethodMagicLink,
		ExpiresAt: now.Add(15 * time.Minute),
		CreatedAt: now,
	}
	if err := store.Save(ctx, token, 15*time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, token.TokenHash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PatientID != "p-1" || got.Method != MethodMagicLink || got.Used {
		t.Fatalf("unexpected token: %+v", got)
	}

	if _, err := store.Get(ctx, HashSecret("unknown")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_MarkUsed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	hash := HashSecret("raw")

	if err := store.MarkUsed(ctx, hash); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Save(ctx, AuthToken{TokenHash: hash}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.MarkUsed(ctx, hash); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	got, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Used {
		t.Fatalf("expected token to be marked used")
	}

	// Only one caller can win the mark; a concurrent loser sees ErrUsed.
	if err := store.MarkUsed(ctx, hash); err != ErrUsed {
		t.Fatalf("expected ErrUsed on second mark, got %v", err)
	}
}

func TestMemoryStore_IncrementAttempts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	count, err := store.IncrementAttempts(ctx, HashSecret("unknown"))
	if err != nil || count != 0 {
		t.Fatalf("unknown hash: expected (0, nil), got (%d, %v)", count, err)
	}

	hash := HashSecret("raw")
	if err := store.Save(ctx, AuthToken{TokenHash: hash}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	for want := 1; want <= 3; want++ {
		count, err := store.IncrementAttempts(ctx, hash)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
	}
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	hash := HashSecret("raw")

	if err := store.Save(ctx, AuthToken{TokenHash: hash}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, hash); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, hash); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Get(ctx, hash); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := AuthToken{TokenHash: HashSecret("expired"), ExpiresAt: now.Add(-time.Minute)}
	onEdge := AuthToken{TokenHash: HashSecret("edge"), ExpiresAt: now}
	live := AuthToken{TokenHash: HashSecret("live"), ExpiresAt: now.Add(time.Minute)}
	for _, tok := range []AuthToken{expired, onEdge, live} {
		if err := store.Save(ctx, tok, time.Minute); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	removed, err := store.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := store.Get(ctx, live.TokenHash); err != nil {
		t.Fatalf("live token should survive sweep: %v", err)
	}
}
