package domain

import (
	"context"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
)

// Validator checks an entity before it is persisted.
type Validator interface {
	Validate(ctx context.Context, e entity.Entity) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, e entity.Entity) error

func (f ValidatorFunc) Validate(ctx context.Context, e entity.Entity) error {
	return f(ctx, e)
}

// EntityValidator runs entity.Validatable and reports failures as
// VALIDATION_FAILED errors.
type EntityValidator struct{}

func (EntityValidator) Validate(ctx context.Context, e entity.Entity) error {
	v, ok := e.(entity.Validatable)
	if !ok {
		return nil
	}
	err := v.Validate(ctx)
	if err == nil {
		return nil
	}
	if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeValidationFailed {
		return appErr
	}
	return apperror.NewValidationFailed(entityName(e), err.Error()).WithCause(err)
}

func entityName(e entity.Entity) string {
	type named interface{ EntityName() string }
	if n, ok := e.(named); ok {
		return n.EntityName()
	}
	return "entity"
}
