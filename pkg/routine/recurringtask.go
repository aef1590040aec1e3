// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package routine

import (
	"context"
	"time"

	"github.com/alpenlabs/alpen-sub007/pkg/lifecycle"
)

var _ lifecycle.StartStopper = (*RecurringTask)(nil)

// Task represents a task
type Task func()

// RecurringTask represents a recurring task
type RecurringTask struct {
	lifecycle.Readiness
	t        Task
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
}

// NewRecurringTask creates an instance of RecurringTask
func NewRecurringTask(t Task, i time.Duration) *RecurringTask {
	return &RecurringTask{
		t:        t,
		interval: i,
	}
}

// Start starts the timer
func (t *RecurringTask) Start(_ context.Context) error {
	t.ticker = time.NewTicker(t.interval)
	t.done = make(chan struct{})
	ready := make(chan struct{})
	go func() {
		close(ready)
		for {
			select {
			case <-t.done:
				return
			case <-t.ticker.C:
				t.t()
			}
		}
	}()
	// ensure the goroutine has been running
	<-ready
	return t.TurnOn()
}

// Stop stops the timer
func (t *RecurringTask) Stop(_ context.Context) error {
	if err := t.TurnOff(); err != nil {
		return err
	}
	if t.ticker != nil {
		t.ticker.Stop()
	}
	close(t.done)
	return nil
}
