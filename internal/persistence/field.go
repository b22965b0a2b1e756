package persistence

// Field is a typed token addressing one stored field of entity E holding a V.
// Entities declare their updatable fields as package-level tokens so that
// lookups and single-field updates are checked at compile time.
type Field[E any, V any] struct {
	name string
}

// NewField declares a field token; name is the stored (bson) field name.
func NewField[E any, V any](name string) Field[E, V] {
	return Field[E, V]{name: name}
}

// Name returns the stored field name.
func (f Field[E, V]) Name() string { return f.name }

// Is binds a value to the field, for matching or assignment.
func (f Field[E, V]) Is(v V) Property[E] {
	return Property[E]{name: f.name, value: v}
}

// Property is a field of E bound to a value.
type Property[E any] struct {
	name  string
	value any
}

func (p Property[E]) Name() string { return p.name }
func (p Property[E]) Value() any   { return p.value }
