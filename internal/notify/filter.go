package notify

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// Filter decides per subscriber which events are pushed. The zero value
// matches everything.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles a CEL expression over the event fields
// channel_id, sequence, content_type, received_ms and now_ms. An empty
// expression yields a pass-through filter.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("channel_id", cel.StringType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("content_type", cel.StringType),
		cel.Variable("received_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return Filter{}, errFilterNotBool
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the filter. Evaluation errors count as no match.
func (f Filter) Match(ev Event) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"channel_id":   ev.ChannelID,
		"sequence":     int64(ev.Sequence),
		"content_type": ev.ContentType,
		"received_ms":  ev.Received.UnixMilli(),
		"now_ms":       time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
