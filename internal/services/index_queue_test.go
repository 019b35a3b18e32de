package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"threadline/internal/models"
	"threadline/internal/services"
	"threadline/internal/testsupport"
)

func TestIndexQueueDeliversInOrder(t *testing.T) {
	pub := &testsupport.RecordingPublisher{}
	q := services.NewIndexQueue(pub, 10)

	for id := uint(1); id <= 3; id++ {
		q.Signal(services.NewIndexEvent(services.IndexActionIndex, models.Comment{ID: id}))
	}
	q.Signal(services.NewIndexEvent(services.IndexActionRemove, models.Comment{ID: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := pub.Events()
	want := []string{"index comments-1", "index comments-2", "index comments-3", "remove comments-2"}
	if len(events) != len(want) {
		t.Fatalf("published %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if got := string(e.Action) + " " + e.Key; got != want[i] {
			t.Errorf("event %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestIndexQueueDropsAfterClose(t *testing.T) {
	pub := &testsupport.RecordingPublisher{}
	q := services.NewIndexQueue(pub, 10)
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q.Signal(services.NewIndexEvent(services.IndexActionIndex, models.Comment{ID: 1}))
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if n := len(pub.Events()); n != 0 {
		t.Errorf("published %d events after close", n)
	}
}

func TestIndexQueueSurvivesPublishErrors(t *testing.T) {
	pub := &testsupport.RecordingPublisher{Err: errors.New("broker down")}
	q := services.NewIndexQueue(pub, 10)
	q.Signal(services.NewIndexEvent(services.IndexActionIndex, models.Comment{ID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewIndexEvent(t *testing.T) {
	e := services.NewIndexEvent(services.IndexActionRemove, models.Comment{ID: 12})
	if e.Key != "comments-12" || e.CommentID != 12 || e.Action != services.IndexActionRemove {
		t.Errorf("event = %+v", e)
	}
	if e.At.IsZero() || e.ID == [16]byte{} {
		t.Errorf("event missing id or timestamp: %+v", e)
	}
}
