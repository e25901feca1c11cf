// Package dispatcher resolves an incoming request to a resource operation
// and runs it: access control, persistence and serialization.
package dispatcher

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
	"apiresource/internal/resource"
	"apiresource/internal/security"
	"apiresource/pkg/logger"
)

// ContentType of every non-empty response body.
const ContentType = "application/ld+json"

// AccessChecker decides whether the caller in ctx may run an operation.
type AccessChecker interface {
	Decide(ctx context.Context, op *resource.Operation, phase security.Phase, object entity.Entity) security.AccessDecision
}

// Serializer renders results and maps request bodies onto entities.
type Serializer interface {
	Serialize(op *resource.Operation, result any) ([]byte, error)
	Deserialize(ctx context.Context, op *resource.Operation, body []byte, target entity.Entity) (entity.Entity, error)
}

// Request is the transport-independent form of an API request.
// Path is relative to the API base path.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Response is the outcome of a dispatched request.
type Response struct {
	Status      int
	Body        []byte
	ContentType string

	// Resource and Operation are set once a route matched.
	Resource  *resource.Resource
	Operation *resource.Operation
}

// Config wires the collaborators of a Dispatcher.
type Config struct {
	Registry   *resource.Registry
	Store      domain.Store
	Access     AccessChecker
	Serializer Serializer

	// Validator defaults to domain.EntityValidator.
	Validator  domain.Validator
	Hooks      *domain.HookRegistry
	Pagination domain.PaginationConfig

	// Logger defaults to logger.Default().
	Logger *logger.Logger
}

// Dispatcher routes requests to operations. It holds no per-request state
// and is safe for concurrent use.
type Dispatcher struct {
	registry   *resource.Registry
	store      domain.Store
	access     AccessChecker
	serializer Serializer
	validator  domain.Validator
	hooks      *domain.HookRegistry
	pagination domain.PaginationConfig
	log        *logger.Logger
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Validator == nil {
		cfg.Validator = domain.EntityValidator{}
	}
	if cfg.Pagination.PageParameter == "" {
		cfg.Pagination = domain.DefaultPaginationConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		store:      cfg.Store,
		access:     cfg.Access,
		serializer: cfg.Serializer,
		validator:  cfg.Validator,
		hooks:      cfg.Hooks,
		pagination: cfg.Pagination,
		log:        cfg.Logger.WithComponent("dispatcher"),
	}
}

// Match resolves the resource and operation of a request without running it.
func (d *Dispatcher) Match(method, path string) (*resource.Match, error) {
	return d.registry.Match(method, path)
}

// Dispatch runs the operation matching req.
// The returned response carries the matched resource even on error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	m, err := d.registry.Match(req.Method, req.Path)
	if err != nil {
		return nil, err
	}
	resp := &Response{Resource: m.Resource, Operation: m.Operation}

	var (
		status int
		result any
	)
	switch m.Operation.Kind {
	case resource.ItemOperation:
		status, result, err = d.item(ctx, m, req)
	case resource.CollectionOperation:
		status, result, err = d.collection(ctx, m, req)
	default:
		err = apperror.NewUnknownOperationKind(m.Operation.Name).
			WithDetail("kind", int(m.Operation.Kind))
		d.log.WithContext(ctx).Errorw("unknown operation kind",
			"resource", m.Resource.Name,
			"operation", m.Operation.Name,
			"kind", int(m.Operation.Kind),
		)
	}
	if err != nil {
		return resp, err
	}

	body, err := d.serializer.Serialize(m.Operation, result)
	if err != nil {
		return resp, apperror.NewInternal(err)
	}
	resp.Status = status
	resp.Body = body
	if len(body) > 0 {
		resp.ContentType = ContentType
	}
	return resp, nil
}

func (d *Dispatcher) item(ctx context.Context, m *resource.Match, req *Request) (int, any, error) {
	op := m.Operation
	switch op.Method {
	case http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete:
	default:
		return 0, nil, apperror.NewMethodNotAllowed(op.Method, op.Kind.String())
	}

	t := m.Resource.Type()
	repo, err := d.store.Repository(t)
	if err != nil {
		return 0, nil, err
	}
	obj, err := d.fetch(ctx, repo, t, m.ID())
	if err != nil {
		return 0, nil, err
	}
	if err := d.check(ctx, op, security.PreCheck, obj); err != nil {
		return 0, nil, err
	}

	switch op.Method {
	case http.MethodGet:
		return http.StatusOK, obj, nil

	case http.MethodPatch:
		err = d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			if _, err := d.serializer.Deserialize(ctx, op, req.Body, obj); err != nil {
				return err
			}
			return d.persist(ctx, op, obj, domain.BeforeUpdate, domain.AfterUpdate, repo.Update)
		})
		return http.StatusOK, obj, err

	case http.MethodPut:
		err = d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			t.ResetToDefaults(obj)
			if _, err := d.serializer.Deserialize(ctx, op, req.Body, obj); err != nil {
				return err
			}
			return d.persist(ctx, op, obj, domain.BeforeUpdate, domain.AfterUpdate, repo.Add)
		})
		return http.StatusOK, obj, err

	default: // DELETE
		err = d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := d.hooks.Run(ctx, t.Name, domain.BeforeDelete, obj); err != nil {
				return err
			}
			if err := repo.Remove(ctx, obj); err != nil {
				return err
			}
			return d.hooks.Run(ctx, t.Name, domain.AfterDelete, obj)
		})
		return http.StatusNoContent, nil, err
	}
}

func (d *Dispatcher) collection(ctx context.Context, m *resource.Match, req *Request) (int, any, error) {
	op := m.Operation
	t := m.Resource.Type()
	switch op.Method {
	case http.MethodGet:
		if err := d.check(ctx, op, security.PreCheck, nil); err != nil {
			return 0, nil, err
		}
		repo, err := d.store.Repository(t)
		if err != nil {
			return 0, nil, err
		}
		params := req.Query
		if params == nil {
			params = url.Values{}
		}
		page, err := d.pagination.PageFromParams(params, m.Resource.ItemsPerPage)
		if err != nil {
			return 0, nil, err
		}
		result, err := repo.FindFiltered(ctx, m.Resource.Filters, params, page)
		if err != nil {
			return 0, nil, err
		}
		result.Path = resource.NormalizePath(req.Path)
		result.Query = params
		return http.StatusOK, result, nil

	case http.MethodPost:
		if err := d.check(ctx, op, security.PreCheck, nil); err != nil {
			return 0, nil, err
		}
		repo, err := d.store.Repository(t)
		if err != nil {
			return 0, nil, err
		}
		var created entity.Entity
		err = d.store.RunInTransaction(ctx, func(ctx context.Context) error {
			obj, err := d.serializer.Deserialize(ctx, op, req.Body, nil)
			if err != nil {
				return err
			}
			created = obj
			return d.persist(ctx, op, obj, domain.BeforeCreate, domain.AfterCreate, repo.Add)
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, created, nil
	}
	return 0, nil, apperror.NewMethodNotAllowed(op.Method, op.Kind.String())
}

// persist runs the write pipeline that follows deserialization.
func (d *Dispatcher) persist(
	ctx context.Context,
	op *resource.Operation,
	obj entity.Entity,
	before, after domain.HookEvent,
	write func(context.Context, entity.Entity) error,
) error {
	if err := d.check(ctx, op, security.PostDenormalize, obj); err != nil {
		return err
	}
	name := op.Resource().Type().Name
	if err := d.hooks.Run(ctx, name, before, obj); err != nil {
		return err
	}
	if err := d.validator.Validate(ctx, obj); err != nil {
		return err
	}
	if err := write(ctx, obj); err != nil {
		return err
	}
	return d.hooks.Run(ctx, name, after, obj)
}

func (d *Dispatcher) fetch(ctx context.Context, repo domain.Repository, t *entity.Type, rawID string) (entity.Entity, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, apperror.NewNotFound(t.Name, rawID)
	}
	obj, err := repo.FindByIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, apperror.NewNotFound(t.Name, id)
	}
	return obj, nil
}

func (d *Dispatcher) check(ctx context.Context, op *resource.Operation, phase security.Phase, obj entity.Entity) error {
	if d.access == nil {
		return nil
	}
	decision := d.access.Decide(ctx, op, phase, obj)
	if decision.Granted {
		return nil
	}
	d.log.WithContext(ctx).Debugw("access denied",
		"operation", op.Name,
		"phase", phase.String(),
		"reason", decision.Reason,
	)
	return apperror.NewForbidden("Access Denied.").
		WithDetail("operation", op.Name).
		WithDetail("reason", decision.Reason)
}
