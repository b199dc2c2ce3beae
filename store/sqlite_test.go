package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTempStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "players.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenTwiceAppliesMigrationsOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "players.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	_ = second.Close()
}

func TestInsertGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	in := Player{ID: "p1", X: 10, Y: 20, Color: "#A1B2C3", Name: "ann", Seq: 1}
	if err := s.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != in {
		t.Fatalf("get = %+v, want %+v", got, in)
	}
}

func TestInsertDuplicateReturnsAlreadyExists(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	p := Player{ID: "dup", Color: "#000000", Name: "a"}
	if err := s.Insert(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, p); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate insert error = %v, want %v", err, ErrAlreadyExists)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get error = %v, want %v", err, ErrNotFound)
	}
}

func TestUpdateIsSequenceGuarded(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	if err := s.Insert(ctx, Player{ID: "p1", X: 0, Y: 0, Color: "#111111", Name: "ann", Seq: 5}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.Update(ctx, "p1", Patch{X: intPtr(30), Y: intPtr(40), Seq: 7}); err != nil {
		t.Fatalf("update: %v", err)
	}
	// 晚到的旧写入被拒绝
	err := s.Update(ctx, "p1", Patch{X: intPtr(10), Y: intPtr(10), Seq: 6})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("stale update error = %v, want %v", err, ErrStale)
	}

	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.X != 30 || got.Y != 40 || got.Seq != 7 {
		t.Fatalf("got (%d,%d) seq=%d, want (30,40) seq=7", got.X, got.Y, got.Seq)
	}
	if got.Name != "ann" || got.Color != "#111111" {
		t.Fatalf("untouched columns changed: %+v", got)
	}
}

func TestUpdateNameOnly(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	if err := s.Insert(ctx, Player{ID: "p1", X: 3, Y: 4, Color: "#222222", Name: "old", Seq: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Update(ctx, "p1", Patch{Name: strPtr("new"), Seq: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.Get(ctx, "p1")
	if got.Name != "new" || got.X != 3 || got.Y != 4 {
		t.Fatalf("got %+v", got)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	err := s.Update(context.Background(), "ghost", Patch{X: intPtr(1), Seq: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update error = %v, want %v", err, ErrNotFound)
	}
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		if err := s.Insert(ctx, Player{ID: id, Color: "#333333", Name: id}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// 删除不存在的 id 不报错
	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete twice: %v", err)
	}

	players, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(players) != 2 || players[0].ID != "a" || players[1].ID != "c" {
		t.Fatalf("list = %+v, want [a c]", players)
	}
}
