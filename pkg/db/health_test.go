package db

import (
	"context"
	"testing"
	"time"
)

func TestCheckHealth_NilPool(t *testing.T) {
	h := CheckHealth(context.Background(), nil)

	if h.Healthy {
		t.Error("nil pool must not report healthy")
	}
	if h.Error != "pool is nil" {
		t.Errorf("expected 'pool is nil' error, got %q", h.Error)
	}
}

func TestWaitForReady_NilPool(t *testing.T) {
	err := WaitForReady(context.Background(), nil, time.Second)
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}
