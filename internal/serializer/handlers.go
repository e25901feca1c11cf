package serializer

import (
	"fmt"
	"strings"
	"time"

	"apiresource/internal/core/entity"
)

// TypeHandler converts values of one custom type descriptor.
// params are the descriptor parameters, e.g. the layout of DateTime<"...">.
type TypeHandler interface {
	Serialize(value any, params []string) (any, error)
	Deserialize(raw any, params []string) (any, error)
}

// DateTimeHandler formats and parses DateTime<"layout"> values.
type DateTimeHandler struct{}

func (DateTimeHandler) Serialize(value any, params []string) (any, error) {
	var t time.Time
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		t = *v
	default:
		return nil, fmt.Errorf("DateTime: unsupported value %T", value)
	}
	if t.IsZero() {
		return nil, nil
	}
	return t.Format(layout(params)), nil
}

func (DateTimeHandler) Deserialize(raw any, params []string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("expected date-time string, got %T", raw)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if t, err := time.Parse(layout(params), s); err == nil {
		return t, nil
	}
	return entity.ParseTime(s)
}

func layout(params []string) string {
	if len(params) > 0 && params[0] != "" {
		return params[0]
	}
	return time.RFC3339
}
