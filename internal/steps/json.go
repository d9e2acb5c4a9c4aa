package steps

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"yqhp/session-engine/internal/session"
)

// jsonExtractStep pulls a value out of an object variable with a JSONPath
// expression and stores it in another variable. String and []byte sources
// are parsed as JSON first.
type jsonExtractStep struct {
	from string
	to   string
	expr string
	path jp.Expr
}

func newJSONExtractStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	from, err := RequiredParam[string](params, "from")
	if err != nil {
		return nil, err
	}
	to, err := RequiredParam[string](params, "to")
	if err != nil {
		return nil, err
	}
	expr, err := RequiredParam[string](params, "path")
	if err != nil {
		return nil, err
	}
	path, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression %q: %w", expr, err)
	}
	return &jsonExtractStep{from: from, to: to, expr: expr, path: path}, nil
}

func (st *jsonExtractStep) Reserve(s *session.Session) {
	s.DeclareObject(st.to)
}

func (st *jsonExtractStep) Invoke(s *session.Session) (bool, error) {
	raw, err := s.GetObject(st.from)
	if err != nil {
		return false, err
	}
	var data any
	switch v := raw.(type) {
	case string:
		data, err = oj.ParseString(v)
	case []byte:
		data, err = oj.Parse(v)
	default:
		data = v
	}
	if err != nil {
		return false, fmt.Errorf("variable %q does not hold valid JSON: %w", st.from, err)
	}
	results := st.path.Get(data)
	if len(results) == 0 {
		return false, fmt.Errorf("JSONPath %q returned no results", st.expr)
	}
	if err := s.SetObject(st.to, results[0]); err != nil {
		return false, err
	}
	return true, nil
}
