package interceptors

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "alice")

	userID, ok := GetUserID(ctx)
	if !ok {
		t.Fatal("GetUserID should return true")
	}
	if userID != "user-1" {
		t.Errorf("user_id = %q, want %q", userID, "user-1")
	}
	loginName, ok := GetLoginName(ctx)
	if !ok {
		t.Fatal("GetLoginName should return true")
	}
	if loginName != "alice" {
		t.Errorf("login_name = %q, want %q", loginName, "alice")
	}
}

func TestGetters_EmptyContext(t *testing.T) {
	if _, ok := GetUserID(context.Background()); ok {
		t.Error("GetUserID should return false for empty context")
	}
	if _, ok := GetLoginName(context.Background()); ok {
		t.Error("GetLoginName should return false for empty context")
	}
}
