package app

import (
	"context"
	"errors"
	"testing"

	"threadline/internal/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCloseRunsClosersInReverseAndJoinsErrors(t *testing.T) {
	var order []int
	errA := errors.New("broker gone")
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errA },
	}}

	err := a.Close(context.Background())
	if !errors.Is(err, errA) {
		t.Errorf("Close error = %v, want %v", err, errA)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("close order = %v, want [2 1]", order)
	}
}

func TestAbortLogsCloseFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	a := &App{closers: []func() error{func() error { return errors.New("redis close: broken pipe") }}}
	a.abort(context.Background())

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "redis close: broken pipe" {
		t.Errorf("logged error = %v", got)
	}
}

func TestAbortQuietWhenCloseSucceeds(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	(&App{}).abort(context.Background())
	if logs.Len() != 0 {
		t.Errorf("logged %d entries, want none", logs.Len())
	}
}
