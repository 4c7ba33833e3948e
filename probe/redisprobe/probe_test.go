package redisprobe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err != errClientRequired {
		t.Fatalf("expected errClientRequired, got %v", err)
	}
}

func TestProbeRefreshOnlineThenOffline(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	probe, err := New(Config{Client: client, TTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	if !probe.Refresh(context.Background(), 0) {
		t.Fatalf("expected online probe")
	}

	mr.Close()
	time.Sleep(20 * time.Millisecond)

	if probe.Refresh(context.Background(), 0) {
		t.Fatalf("expected offline probe after server closed")
	}
}

func TestProbeRefreshCachesWithinTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	probe, err := New(Config{Client: client, TTL: time.Minute})
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	if !probe.Refresh(context.Background(), 0) {
		t.Fatalf("expected online probe")
	}

	mr.Close()

	if !probe.Refresh(context.Background(), 1000) {
		t.Fatalf("expected cached online verdict despite server being closed")
	}
}
