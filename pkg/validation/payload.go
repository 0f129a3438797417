// Package validation checks graph documents and flows before they reach
// the planner: tag-based field validation for payloads and structural
// validation for assembled flows.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flowengine/flowengine/internal/core/graph"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError describes one failed payload field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Message }

// FieldErrors aggregates payload field failures.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// ValidatePayload runs tag validation over a decoded graph document plus
// checks the tags cannot express: duplicate node IDs, duplicate parameter
// types, dangling edge endpoints.
func ValidatePayload(p *graph.Payload) error {
	if p == nil {
		return errors.New("payload is nil")
	}
	if err := validate.Struct(p); err != nil {
		return toFieldErrors(err)
	}

	seen := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", graph.ErrDuplicateVertex, n.ID)
		}
		seen[n.ID] = true
		for name, t := range n.ParamTypes {
			if !t.Valid() {
				return fmt.Errorf("%w: node %s param %q has type %q", graph.ErrInvalidParamType, n.ID, name, t)
			}
		}
	}
	for _, e := range p.Edges {
		if !seen[e.Source] {
			return fmt.Errorf("%w: %s", graph.ErrSourceNotFound, e.Source)
		}
		if !seen[e.Target] {
			return fmt.Errorf("%w: %s", graph.ErrTargetNotFound, e.Target)
		}
		if e.Source == e.Target {
			return fmt.Errorf("%w: %s", graph.ErrSelfLoop, e.Source)
		}
	}
	return nil
}

func toFieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Namespace(),
			Rule:    fe.Tag(),
			Message: fmt.Sprintf("field %s fails rule %q", fe.Namespace(), fe.Tag()),
		})
	}
	return out
}
