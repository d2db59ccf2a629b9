package sched

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/asubexec/internal/events"
	"github.com/mattjoyce/asubexec/internal/job"
	"github.com/mattjoyce/asubexec/internal/sched/mocks"
)

// NewTestSlogger creates a *slog.Logger that writes to a buffer.
func NewTestSlogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

func TestCalculateJitteredInterval(t *testing.T) {
	tests := []struct {
		name         string
		baseInterval time.Duration
		jitter       time.Duration
	}{
		{name: "No Jitter", baseInterval: 1 * time.Minute, jitter: 0},
		{name: "Positive Jitter", baseInterval: 5 * time.Minute, jitter: 30 * time.Second},
		{name: "Large Jitter", baseInterval: 1 * time.Hour, jitter: 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 100 {
				jittered := calculateJitteredInterval(tt.baseInterval, tt.jitter)
				if tt.jitter == 0 {
					assert.Equal(t, tt.baseInterval, jittered)
				} else {
					assert.GreaterOrEqual(t, jittered, tt.baseInterval)
					assert.LessOrEqual(t, jittered, tt.baseInterval+tt.jitter)
				}
			}
		})
	}
}

func TestRunDueFiresElapsedEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trigger := mocks.NewMockTriggerer(ctrl)
	logger, _ := NewTestSlogger()
	s := New(time.Second, trigger, events.NewHub(16), logger)

	s.Add("due-job", time.Minute, 0)
	s.Add("future-job", time.Minute, 0)
	// Force one entry due and the other far in the future.
	s.entries[0].nextRun = time.Now().Add(-time.Second)
	s.entries[1].nextRun = time.Now().Add(time.Hour)

	trigger.EXPECT().Trigger("due-job").Return(nil)

	s.runDue(time.Now())

	// The fired entry is pushed one interval out.
	assert.True(t, s.entries[0].nextRun.After(time.Now().Add(50*time.Second)))
}

func TestRunDueSkipsBusyJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trigger := mocks.NewMockTriggerer(ctrl)
	logger, buf := NewTestSlogger()
	hub := events.NewHub(16)
	s := New(time.Second, trigger, hub, logger)

	s.Add("busy-job", time.Minute, 0)
	s.entries[0].nextRun = time.Now().Add(-time.Second)

	trigger.EXPECT().Trigger("busy-job").Return(job.ErrBusy)

	s.runDue(time.Now())

	assert.Contains(t, buf.String(), "Skipped scheduled trigger")
	evs := hub.SnapshotSince(0)
	if assert.Len(t, evs, 1) {
		assert.Equal(t, "scheduler.skipped", evs[0].Type)
	}
}

func TestRunDueLogsTriggerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trigger := mocks.NewMockTriggerer(ctrl)
	logger, buf := NewTestSlogger()
	s := New(time.Second, trigger, events.NewHub(16), logger)

	s.Add("gone-job", time.Minute, 0)
	s.entries[0].nextRun = time.Now().Add(-time.Second)

	trigger.EXPECT().Trigger("gone-job").Return(errors.New("unknown job"))

	s.runDue(time.Now())

	assert.Contains(t, buf.String(), "Scheduled trigger failed")
}

func TestTickLoopFiresOverTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trigger := mocks.NewMockTriggerer(ctrl)
	logger, _ := NewTestSlogger()
	s := New(10*time.Millisecond, trigger, events.NewHub(16), logger)

	s.Add("fast-job", 20*time.Millisecond, 0)

	trigger.EXPECT().Trigger("fast-job").Return(nil).MinTimes(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	time.Sleep(300 * time.Millisecond)
	s.Stop()
}
