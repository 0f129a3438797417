package usecases

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/reference"
)

// BindParams produces the resolved parameter map a builder receives: the
// vertex's configured params with references substituted from the result
// pool, merged with the values arriving over incoming edges, then coerced
// to the declared parameter types. Input port defaults fill inputs with no
// feeding edge.
func BindParams(f *graph.Flow, v *graph.Vertex, pool *artifact.Pool) (map[string]interface{}, error) {
	bound := make(map[string]interface{}, len(v.Params)+len(v.Inputs))

	for name, raw := range v.Params {
		resolved, err := resolveValue(raw, pool)
		if err != nil {
			return nil, &dto.ParameterBindingError{Vertex: v.ID, Param: name, Err: err}
		}
		bound[name] = resolved
	}

	// Edge-fed inputs override configured params of the same name. When
	// several edges feed one input, values arrive as a list ordered by
	// source ID.
	fed := make(map[string][]interface{})
	for _, e := range sortedIncoming(f, v.ID) {
		val, ok := pool.Output(e.Source, e.SourceOutput)
		if !ok {
			return nil, &dto.ParameterBindingError{
				Vertex: v.ID,
				Param:  e.TargetInput,
				Err:    fmt.Errorf("%w: %s.%s", dto.ErrUpstreamResultMissing, e.Source, e.SourceOutput),
			}
		}
		fed[e.TargetInput] = append(fed[e.TargetInput], val)
	}
	for input, vals := range fed {
		if len(vals) == 1 {
			bound[input] = vals[0]
		} else {
			bound[input] = vals
		}
	}

	for _, p := range v.Inputs {
		if _, ok := bound[p.Name]; !ok && p.Default != nil {
			bound[p.Name] = p.Default
		}
	}

	for name, val := range bound {
		coerced, err := coerce(val, v.ParamTypeOf(name))
		if err != nil {
			return nil, &dto.ParameterBindingError{Vertex: v.ID, Param: name, Err: err}
		}
		bound[name] = coerced
	}
	return bound, nil
}

func sortedIncoming(f *graph.Flow, id string) []*graph.Edge {
	edges := f.IncomingEdges(id)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].SourceOutput < edges[j].SourceOutput
	})
	return edges
}

// resolveValue walks a parameter value and substitutes references. Strings
// are scanned; maps and slices recurse; everything else passes through.
func resolveValue(raw interface{}, pool *artifact.Pool) (interface{}, error) {
	switch val := raw.(type) {
	case string:
		return resolveString(val, pool)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			resolved, err := resolveValue(item, pool)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			resolved, err := resolveValue(item, pool)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return raw, nil
	}
}

// resolveString substitutes references inside one string. A string that is
// exactly one reference yields the referenced value with its type intact;
// mixed text stringifies each match in place.
func resolveString(text string, pool *artifact.Pool) (interface{}, error) {
	matches := reference.Scan(text)
	if len(matches) == 0 {
		return text, nil
	}
	if len(matches) == 1 && matches[0].Start == 0 && matches[0].End == len(text) {
		return lookupRef(matches[0].Ref, pool)
	}

	var b strings.Builder
	pos := 0
	for _, m := range matches {
		b.WriteString(text[pos:m.Start])
		val, err := lookupRef(m.Ref, pool)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(val))
		pos = m.End
	}
	b.WriteString(text[pos:])
	return b.String(), nil
}

func lookupRef(ref reference.Ref, pool *artifact.Pool) (interface{}, error) {
	root, ok := pool.Output(ref.Node, ref.Output)
	if !ok {
		return nil, fmt.Errorf("%w: @%s.%s", dto.ErrUpstreamResultMissing, ref.Node, ref.Output)
	}
	val, ok := reference.Resolve(root, ref.Path)
	if !ok {
		return nil, fmt.Errorf("%w: @%s.%s%s", dto.ErrReferencePathNotFound, ref.Node, ref.Output, pathString(ref.Path))
	}
	return val, nil
}

func pathString(path []reference.Segment) string {
	var b strings.Builder
	for _, seg := range path {
		if seg.Kind == reference.SegmentIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
		} else {
			b.WriteByte('.')
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// coerce converts a bound value to its declared parameter type.
func coerce(v interface{}, t graph.ParamType) (interface{}, error) {
	if v == nil || t == graph.ParamTypeAny {
		return v, nil
	}
	switch t {
	case graph.ParamTypeString:
		return stringify(v), nil
	case graph.ParamTypeInt:
		return coerceInt(v)
	case graph.ParamTypeFloat:
		return coerceFloat(v)
	case graph.ParamTypeBool:
		return coerceBool(v)
	case graph.ParamTypeList:
		if list, ok := v.([]interface{}); ok {
			return list, nil
		}
		return []interface{}{v}, nil
	case graph.ParamTypeDict:
		if dict, ok := v.(map[string]interface{}); ok {
			return dict, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to dict", v)
	default:
		return v, nil
	}
}

func coerceInt(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return nil, fmt.Errorf("cannot coerce %v to int without truncation", val)
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to int", val)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to int", v)
	}
}

func coerceFloat(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to float", val)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to float", v)
	}
}

func coerceBool(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to bool", val)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to bool", v)
	}
}
