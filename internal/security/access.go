// Package security decides whether the caller may run an operation.
//
// Access rules are CEL expressions attached to operations. They see three
// variables:
//
//	user      {id, email, roles, admin, authenticated}
//	object    property map of the subject entity, or null
//	operation {name, method, kind, path}
//
// An empty expression grants access. Anything that does not evaluate to
// true denies it.
package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	appctx "apiresource/internal/core/context"
	"apiresource/internal/core/entity"
	"apiresource/internal/resource"
)

// Phase selects which expression of an operation is evaluated.
type Phase int

const (
	// PreCheck runs before deserialization. The object is the stored entity,
	// or nil for collection operations.
	PreCheck Phase = iota + 1
	// PostDenormalize runs after the request body has been applied.
	PostDenormalize
)

func (p Phase) String() string {
	switch p {
	case PreCheck:
		return "pre"
	case PostDenormalize:
		return "post_denormalize"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// AccessDecision is the outcome of one check.
type AccessDecision struct {
	Granted bool
	Reason  string
}

func granted() AccessDecision { return AccessDecision{Granted: true} }

func denied(format string, args ...any) AccessDecision {
	return AccessDecision{Reason: fmt.Sprintf(format, args...)}
}

// AccessChecker evaluates operation access expressions.
// Programs are compiled once and cached; safe for concurrent use.
type AccessChecker struct {
	env      *cel.Env
	catalog  *entity.Catalog
	programs sync.Map // expression -> cel.Program
}

// NewAccessChecker creates a checker. The catalog is used to expose related
// entities inside the object map.
func NewAccessChecker(catalog *entity.Catalog) (*AccessChecker, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("object", cel.DynType),
		cel.Variable("operation", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &AccessChecker{env: env, catalog: catalog}, nil
}

// Compile compiles the expressions of every registered operation so that
// configuration errors surface at startup.
func (c *AccessChecker) Compile(reg *resource.Registry) error {
	for _, res := range reg.Resources() {
		for _, op := range res.Operations {
			for _, expr := range []string{op.Security, op.SecurityPostDenormalize} {
				if expr == "" {
					continue
				}
				if _, err := c.program(expr); err != nil {
					return fmt.Errorf("resource %q operation %q: %w", res.Name, op.Name, err)
				}
			}
		}
	}
	return nil
}

// IsGranted runs the pre-check of op.
func (c *AccessChecker) IsGranted(ctx context.Context, op *resource.Operation, object entity.Entity) bool {
	return c.Decide(ctx, op, PreCheck, object).Granted
}

// IsGrantedPostDenormalize runs the post-deserialization check of op.
func (c *AccessChecker) IsGrantedPostDenormalize(ctx context.Context, op *resource.Operation, object entity.Entity) bool {
	return c.Decide(ctx, op, PostDenormalize, object).Granted
}

// Decide evaluates the expression of op for the given phase.
func (c *AccessChecker) Decide(ctx context.Context, op *resource.Operation, phase Phase, object entity.Entity) AccessDecision {
	var expr string
	switch phase {
	case PreCheck:
		expr = op.Security
	case PostDenormalize:
		expr = op.SecurityPostDenormalize
	default:
		return denied("unknown check phase %d", int(phase))
	}
	if expr == "" {
		return granted()
	}

	prg, err := c.program(expr)
	if err != nil {
		return denied("invalid expression: %v", err)
	}

	out, _, err := prg.ContextEval(ctx, map[string]any{
		"user":      userVars(ctx),
		"object":    c.objectVars(object, 1),
		"operation": operationVars(op),
	})
	if err != nil {
		return denied("evaluation failed: %v", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return denied("expression returned %s, not bool", out.Type().TypeName())
	}
	if !ok {
		return denied("%s check of %q returned false", phase, expr)
	}
	return granted()
}

func (c *AccessChecker) program(expr string) (cel.Program, error) {
	if p, ok := c.programs.Load(expr); ok {
		return p.(cel.Program), nil
	}
	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := c.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, err
	}
	p, _ := c.programs.LoadOrStore(expr, prg)
	return p.(cel.Program), nil
}

func userVars(ctx context.Context) map[string]any {
	caller := appctx.GetCaller(ctx)
	if caller == nil {
		return map[string]any{
			"id":            "",
			"email":         "",
			"roles":         []string{},
			"admin":         false,
			"authenticated": false,
		}
	}
	roles := caller.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"id":            caller.UserID,
		"email":         caller.Email,
		"roles":         roles,
		"admin":         caller.IsAdmin,
		"authenticated": true,
	}
}

func operationVars(op *resource.Operation) map[string]string {
	vars := map[string]string{
		"name":   op.Name,
		"method": op.Method,
		"kind":   op.Kind.String(),
		"path":   op.Path,
	}
	if res := op.Resource(); res != nil {
		vars["resource"] = res.Name
	}
	return vars
}

// objectVars flattens an entity into CEL-friendly values. Related entities
// are expanded depth levels deep; beyond that only their uid is kept.
func (c *AccessChecker) objectVars(e entity.Entity, depth int) any {
	if e == nil {
		return nil
	}
	t, ok := c.catalog.TypeOf(e)
	if !ok {
		return map[string]any{"uid": e.Identifier()}
	}
	vars := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		v := f.Get(e)
		switch x := v.(type) {
		case nil:
			vars[f.Name] = nil
		case entity.Entity:
			if depth > 0 {
				vars[f.Name] = c.objectVars(x, depth-1)
			} else {
				vars[f.Name] = map[string]any{"uid": x.Identifier()}
			}
		case decimal.Decimal:
			vars[f.Name] = x.String()
		default:
			vars[f.Name] = x
		}
	}
	return vars
}
