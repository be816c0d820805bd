package sqlite

import (
	"context"
	"testing"
)

func TestUserDirectoryLookup(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedUser(t, db, 1, "bob", "Bob Stone", true)
	seedUser(t, db, 2, "alice", "Alice Kim", false)
	dir := NewUserDirectory(db)

	refs, err := dir.ByIDs(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, unknown ids silently absent, got %d", len(refs))
	}
	if refs[1].Handle != "bob" || refs[2].DisplayName != "Alice Kim" {
		t.Fatalf("unexpected refs: %+v", refs)
	}

	active, err := dir.ActiveByIDs(ctx, []int64{1, 2})
	if err != nil {
		t.Fatalf("active by ids: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected only active users, got %+v", active)
	}
	if _, ok := active[2]; ok {
		t.Fatal("inactive user must not resolve")
	}
}

func TestUserDirectoryEmptyInput(t *testing.T) {
	dir := NewUserDirectory(openTestDB(t))

	refs, err := dir.ByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected empty map, got %+v", refs)
	}
}
