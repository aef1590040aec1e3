// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package lifecycle provides application models' lifecycle management.
package lifecycle

import "context"

// StartStopper has both Starter and Stopper.
type StartStopper interface {
	Starter
	Stopper
}

// Starter is a model that can be started.
type Starter interface {
	Start(context.Context) error
}

// Stopper is a model that can be stopped.
type Stopper interface {
	Stop(context.Context) error
}

// Lifecycle manages the models under its scope. A dependency's lifecycle
// should start before and stop after its dependents'.
type Lifecycle struct {
	models []StartStopper
}

// Add adds a model into the lifecycle.
func (lc *Lifecycle) Add(m StartStopper) { lc.models = append(lc.models, m) }

// AddModels adds multiple models into the lifecycle.
func (lc *Lifecycle) AddModels(m ...StartStopper) { lc.models = append(lc.models, m...) }

// OnStart runs models' Start function in the order they were added. It exits
// on the first error encountered.
func (lc *Lifecycle) OnStart(ctx context.Context) error {
	for _, m := range lc.models {
		if err := m.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// OnStop runs models' Stop function in the reverse order they were added. It
// exits on the first error encountered.
func (lc *Lifecycle) OnStop(ctx context.Context) error {
	for i := len(lc.models) - 1; i >= 0; i-- {
		if err := lc.models[i].Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}
