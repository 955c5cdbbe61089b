package session

import (
	"context"
	"testing"
)

func TestMemoryBackend_OpenUnknownIDGetsFreshID(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	s, err := b.Open(ctx, "attacker-chosen")
	if err != nil {
		t.Fatal(err)
	}
	if s.ID() == "attacker-chosen" || s.ID() == "" {
		t.Errorf("ID = %q, want a generated id", s.ID())
	}
	again, err := b.Open(ctx, s.ID())
	if err != nil {
		t.Fatal(err)
	}
	if again.ID() != s.ID() {
		t.Errorf("reopen ID = %q, want %q", again.ID(), s.ID())
	}
}

func TestMemoryStore_GetSetRemoveClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("sid")

	if _, ok, _ := s.Get(ctx, KeyUserID); ok {
		t.Fatal("empty bag should have no user_id")
	}
	_ = s.Set(ctx, KeyUserID, "foo")
	_ = s.Set(ctx, KeyLoginName, "foo")
	if v, ok, _ := s.Get(ctx, KeyUserID); !ok || v != "foo" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	_ = s.Remove(ctx, KeyUserID)
	if _, ok, _ := s.Get(ctx, KeyUserID); ok {
		t.Error("user_id should be removed")
	}
	_ = s.Clear(ctx)
	if len(s.Keys()) != 0 {
		t.Errorf("Keys after Clear = %v", s.Keys())
	}
	if s.ID() != "sid" {
		t.Error("Clear must keep the id")
	}
}

func TestMemoryStore_RegenerateIDKeepsData(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	st, _ := b.Open(ctx, "")
	s := st.(*MemoryStore)
	_ = s.Set(ctx, "k", "v")
	old := s.ID()

	if err := s.RegenerateID(ctx); err != nil {
		t.Fatal(err)
	}
	if s.ID() == old {
		t.Fatal("id not regenerated")
	}
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("data lost on regenerate: %q, %v", v, ok)
	}
	if b.Len() != 1 {
		t.Errorf("backend holds %d bags, want 1", b.Len())
	}
	reopened, _ := b.Open(ctx, old)
	if reopened.ID() == old {
		t.Error("old id must not resolve after regenerate")
	}
}
