package prebuilt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flowengine/flowengine/internal/app/usecases"
	"github.com/flowengine/flowengine/internal/core/artifact"
)

// Vertex types installed by RegisterAll.
const (
	TypeConstant = "constant"
	TypeTemplate = "template"
	TypeMerge    = "merge"
	TypeRouter   = "router"
	TypeDelay    = "delay"
)

// RegisterAll installs every prebuilt builder into the registry.
func RegisterAll(reg *usecases.Registry) error {
	builders := map[string]usecases.Builder{
		TypeConstant: usecases.BuilderFunc(buildConstant),
		TypeTemplate: usecases.BuilderFunc(buildTemplate),
		TypeMerge:    usecases.BuilderFunc(buildMerge),
		TypeRouter:   usecases.BuilderFunc(buildRouter),
		TypeDelay:    usecases.BuilderFunc(buildDelay),
	}
	for name, b := range builders {
		if err := reg.Register(name, b); err != nil {
			return err
		}
	}
	return nil
}

// buildConstant emits its "value" parameter unchanged on "out".
func buildConstant(_ context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	value, ok := params["value"]
	if !ok {
		return nil, nil, fmt.Errorf("constant: missing %q parameter", "value")
	}
	return map[string]interface{}{"out": value}, nil, nil
}

// buildTemplate renders "template", replacing {name} placeholders with the
// parameter of that name. Unmatched placeholders are left in place.
func buildTemplate(_ context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	tmpl, ok := params["template"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("template: missing or non-string %q parameter", "template")
	}
	rendered := tmpl
	for name, value := range params {
		if name == "template" {
			continue
		}
		rendered = strings.ReplaceAll(rendered, "{"+name+"}", fmt.Sprintf("%v", value))
	}
	return map[string]interface{}{"out": rendered, "text": rendered}, nil, nil
}

// buildMerge combines its "values" input into one output. Mode "concat"
// joins stringified values with "separator" (default newline); mode
// "list" (default) passes the collected list through.
func buildMerge(_ context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	values := collectValues(params["values"])
	mode, _ := params["mode"].(string)
	switch mode {
	case "concat":
		sep := "\n"
		if s, ok := params["separator"].(string); ok {
			sep = s
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%v", v)
		}
		joined := strings.Join(parts, sep)
		return map[string]interface{}{"out": joined, "text": joined}, nil, nil
	case "", "list":
		return map[string]interface{}{"out": values}, nil, nil
	default:
		return nil, nil, fmt.Errorf("merge: unknown mode %q", mode)
	}
}

func collectValues(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	default:
		return []interface{}{v}
	}
}

// buildRouter forwards "in" to the output named by "route". Declared
// outputs other than the selected one carry nil, letting downstream
// branches distinguish taken from not-taken paths.
func buildRouter(_ context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	route, ok := params["route"].(string)
	if !ok || route == "" {
		return nil, nil, fmt.Errorf("router: missing %q parameter", "route")
	}
	logs := []artifact.LogEntry{{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   "routing to " + route,
	}}
	return map[string]interface{}{route: params["in"]}, logs, nil
}

// buildDelay passes "in" through after "duration_ms" milliseconds,
// honoring context cancellation.
func buildDelay(ctx context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	ms, err := durationMS(params["duration_ms"])
	if err != nil {
		return nil, nil, fmt.Errorf("delay: %w", err)
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	return map[string]interface{}{"out": params["in"]}, nil, nil
}

func durationMS(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("invalid duration_ms %v (%T)", raw, raw)
	}
}
