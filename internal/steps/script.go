package steps

import (
	"fmt"

	"github.com/dop251/goja"

	"yqhp/session-engine/internal/session"
)

// scriptStep evaluates a compiled JavaScript expression with read/write
// access to session variables. Each concurrency slot keeps its own runtime
// in a resource so the hot path never rebuilds a VM.
type scriptStep struct {
	source string
	prog   *goja.Program
	to     string
}

func newScriptStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	source, err := RequiredParam[string](params, "expr")
	if err != nil {
		return nil, err
	}
	prog, err := goja.Compile("expr", source, true)
	if err != nil {
		return nil, fmt.Errorf("invalid script %q: %w", source, err)
	}
	return &scriptStep{
		source: source,
		prog:   prog,
		to:     OptionalParam(params, "to", ""),
	}, nil
}

func (st *scriptStep) Reserve(s *session.Session) {
	if st.to != "" {
		s.DeclareObject(st.to)
	}
	s.DeclareResource(st, func() session.Resource { return &scriptRuntime{} }, false)
}

func (st *scriptStep) Invoke(s *session.Session) (bool, error) {
	rt := s.GetResource(st).(*scriptRuntime)
	rt.bind(s)
	value, err := rt.vm.RunProgram(st.prog)
	if err != nil {
		return false, fmt.Errorf("script %q: %w", st.source, err)
	}
	if st.to != "" {
		if err := s.SetObject(st.to, value.Export()); err != nil {
			return false, err
		}
	}
	return true, nil
}

type scriptRuntime struct {
	vm    *goja.Runtime
	bound bool
}

func (rt *scriptRuntime) OnSessionReset(*session.Session) {}

// bind installs the session accessors once; the runtime is owned by a single
// session, so the closures stay valid for its whole life.
func (rt *scriptRuntime) bind(s *session.Session) {
	if rt.bound {
		return
	}
	rt.vm = goja.New()
	rt.vm.Set("get", func(name string) (any, error) {
		v, ok := s.Var(name)
		if !ok {
			return nil, fmt.Errorf("variable %q was not declared", name)
		}
		if !v.IsSet() {
			return nil, fmt.Errorf("variable %q was not set yet", name)
		}
		switch slot := v.(type) {
		case *session.IntVar:
			return slot.Get(), nil
		case *session.ObjectVar:
			return slot.Get(), nil
		default:
			return nil, fmt.Errorf("variable %q has unknown kind", name)
		}
	})
	rt.vm.Set("set", func(name string, value any) error {
		v, ok := s.Var(name)
		if !ok {
			return fmt.Errorf("variable %q was not declared", name)
		}
		if v.Kind() == session.KindInt {
			switch n := value.(type) {
			case int64:
				return s.SetInt(name, int(n))
			case float64:
				return s.SetInt(name, int(n))
			default:
				return fmt.Errorf("variable %q expects an integer, got %T", name, value)
			}
		}
		return s.SetObject(name, value)
	})
	rt.vm.Set("sessionId", s.UniqueID())
	rt.bound = true
}
