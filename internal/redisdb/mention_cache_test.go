package redisdb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"threadline/internal/services"
)

func TestDecodeTarget(t *testing.T) {
	want := services.MentionTarget{UserID: 3, Path: "/cy", Found: true}
	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := decodeTarget(raw)
	if err != nil || got != want {
		t.Errorf("decodeTarget = %+v, %v", got, err)
	}
	if _, err := decodeTarget([]byte("nope")); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "http://not-redis", time.Minute); err == nil {
		t.Error("expected error for non-redis url")
	}
}
