package steps

import (
	"fmt"

	"yqhp/session-engine/internal/session"
	"yqhp/session-engine/pkg/logger"
)

// setIntStep writes a constant into an integer variable.
type setIntStep struct {
	key   string
	value int
}

func newSetIntStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	key, err := RequiredParam[string](params, "var")
	if err != nil {
		return nil, err
	}
	value, err := IntParam(params, "value")
	if err != nil {
		return nil, err
	}
	return &setIntStep{key: key, value: value}, nil
}

func (st *setIntStep) Reserve(s *session.Session) {
	s.DeclareInt(st.key)
}

func (st *setIntStep) Invoke(s *session.Session) (bool, error) {
	if err := s.SetInt(st.key, st.value); err != nil {
		return false, err
	}
	return true, nil
}

// addIntStep adds a constant delta to an already-set integer variable.
type addIntStep struct {
	key   string
	delta int
}

func newAddIntStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	key, err := RequiredParam[string](params, "var")
	if err != nil {
		return nil, err
	}
	delta, err := IntParam(params, "delta")
	if err != nil {
		return nil, err
	}
	return &addIntStep{key: key, delta: delta}, nil
}

func (st *addIntStep) Reserve(s *session.Session) {
	s.DeclareInt(st.key)
}

func (st *addIntStep) Invoke(s *session.Session) (bool, error) {
	if _, err := s.AddToInt(st.key, st.delta); err != nil {
		return false, err
	}
	return true, nil
}

// setObjectStep writes a constant into an object variable.
type setObjectStep struct {
	key   string
	value any
}

func newSetObjectStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	key, err := RequiredParam[string](params, "var")
	if err != nil {
		return nil, err
	}
	value, ok := params["value"]
	if !ok {
		return nil, fmt.Errorf("parameter %q is required", "value")
	}
	return &setObjectStep{key: key, value: value}, nil
}

func (st *setObjectStep) Reserve(s *session.Session) {
	s.DeclareObject(st.key)
}

func (st *setObjectStep) Invoke(s *session.Session) (bool, error) {
	if err := s.SetObject(st.key, st.value); err != nil {
		return false, err
	}
	return true, nil
}

// unsetStep clears a variable back to the unset state.
type unsetStep struct {
	key string
}

func newUnsetStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	key, err := RequiredParam[string](params, "var")
	if err != nil {
		return nil, err
	}
	return &unsetStep{key: key}, nil
}

func (st *unsetStep) Invoke(s *session.Session) (bool, error) {
	v, ok := s.Var(st.key)
	if !ok {
		return false, fmt.Errorf("variable %q was not declared", st.key)
	}
	v.Unset()
	return true, nil
}

// awaitVarStep blocks the sequence until another sequence sets the variable.
type awaitVarStep struct {
	key string
}

func newAwaitVarStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	key, err := RequiredParam[string](params, "var")
	if err != nil {
		return nil, err
	}
	return &awaitVarStep{key: key}, nil
}

func (st *awaitVarStep) Invoke(s *session.Session) (bool, error) {
	v, ok := s.Var(st.key)
	if !ok {
		return false, fmt.Errorf("variable %q was not declared", st.key)
	}
	if !v.IsSet() {
		return false, nil
	}
	return true, nil
}

// logStep logs a message with the session id and optional variable values.
type logStep struct {
	message string
	vars    []string
}

func newLogStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	message, err := RequiredParam[string](params, "message")
	if err != nil {
		return nil, err
	}
	step := &logStep{message: message}
	if raw, ok := params["vars"].([]any); ok {
		for _, v := range raw {
			name, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q must list variable names", "vars")
			}
			step.vars = append(step.vars, name)
		}
	}
	return step, nil
}

func (st *logStep) Invoke(s *session.Session) (bool, error) {
	if len(st.vars) == 0 {
		logger.Info("#%d %s", s.UniqueID(), st.message)
		return true, nil
	}
	line := st.message
	for _, name := range st.vars {
		v, ok := s.Var(name)
		if !ok || !v.IsSet() {
			line += fmt.Sprintf(" %s=<unset>", name)
			continue
		}
		switch slot := v.(type) {
		case *session.IntVar:
			line += fmt.Sprintf(" %s=%d", name, slot.Get())
		case *session.ObjectVar:
			line += fmt.Sprintf(" %s=%v", name, slot.Get())
		}
	}
	logger.Info("#%d %s", s.UniqueID(), line)
	return true, nil
}
