package session

// VarKind discriminates the two slot kinds. Keeping integers out of the
// generic slot avoids boxing on the counter hot path.
type VarKind int

const (
	KindInt VarKind = iota
	KindObject
)

// Var is a typed, resettable storage cell. A slot is declared once during
// reservation and flips between set and unset for the rest of the session's
// life.
type Var interface {
	Kind() VarKind
	IsSet() bool
	Unset()
}

// IntVar stores an integer without boxing.
type IntVar struct {
	value int
	isSet bool
}

func (v *IntVar) Kind() VarKind { return KindInt }
func (v *IntVar) IsSet() bool   { return v.isSet }
func (v *IntVar) Unset()        { v.isSet = false }

func (v *IntVar) Get() int { return v.value }

func (v *IntVar) Set(value int) {
	v.value = value
	v.isSet = true
}

// ObjectVar stores an arbitrary value.
type ObjectVar struct {
	value any
	isSet bool
}

func (v *ObjectVar) Kind() VarKind { return KindObject }
func (v *ObjectVar) IsSet() bool   { return v.isSet }

func (v *ObjectVar) Unset() {
	v.isSet = false
	v.value = nil
}

func (v *ObjectVar) Get() any { return v.value }

func (v *ObjectVar) Set(value any) {
	v.value = value
	v.isSet = true
}
