package middleware

import (
	"context"
	"testing"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), "u1", "dev-a")

	userID, ok := GetUserID(ctx)
	if !ok || userID != "u1" {
		t.Errorf("GetUserID = %q, %v", userID, ok)
	}
	deviceID, ok := GetDeviceID(ctx)
	if !ok || deviceID != "dev-a" {
		t.Errorf("GetDeviceID = %q, %v", deviceID, ok)
	}
}

func TestIdentityUnset(t *testing.T) {
	ctx := context.Background()

	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID on empty context should report unset")
	}
	if _, ok := GetDeviceID(ctx); ok {
		t.Error("GetDeviceID on empty context should report unset")
	}
}

func TestClientIPRoundTrip(t *testing.T) {
	if got := ClientIP(context.Background()); got != "" {
		t.Errorf("ClientIP on empty context = %q, want empty", got)
	}
	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if got := ClientIP(ctx); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q", got)
	}
}
