package domain

import (
	"context"

	"apiresource/internal/core/entity"
)

// --- Hooks ---

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	AfterCreate  HookEvent = "after_create"
	BeforeUpdate HookEvent = "before_update"
	AfterUpdate  HookEvent = "after_update"
	BeforeDelete HookEvent = "before_delete"
	AfterDelete  HookEvent = "after_delete"
)

// Hook is a function that runs at specific lifecycle points.
// Hooks run inside the unit of work; an error rolls it back.
type Hook func(ctx context.Context, e entity.Entity) error

// HookRegistry stores lifecycle hooks per entity type.
// Registration happens at startup; Run is safe for concurrent use afterwards.
type HookRegistry struct {
	hooks map[string]map[HookEvent][]Hook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		hooks: make(map[string]map[HookEvent][]Hook),
	}
}

// On registers a hook for the specified entity type and event.
func (r *HookRegistry) On(entityType string, event HookEvent, hook Hook) {
	if r.hooks[entityType] == nil {
		r.hooks[entityType] = make(map[HookEvent][]Hook)
	}
	r.hooks[entityType][event] = append(r.hooks[entityType][event], hook)
}

// Run executes all hooks for the specified event in registration order.
func (r *HookRegistry) Run(ctx context.Context, entityType string, event HookEvent, e entity.Entity) error {
	if r == nil {
		return nil
	}
	for _, hook := range r.hooks[entityType][event] {
		if err := hook(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// OnBeforeCreate registers a hook to run before create.
func (r *HookRegistry) OnBeforeCreate(entityType string, hook Hook) {
	r.On(entityType, BeforeCreate, hook)
}

// OnBeforeUpdate registers a hook to run before update.
func (r *HookRegistry) OnBeforeUpdate(entityType string, hook Hook) {
	r.On(entityType, BeforeUpdate, hook)
}
