package task

// Opt models a field that may be absent from a partial update. The zero
// value is "absent"; Some marks the field as explicitly supplied.
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns an Opt carrying an explicitly supplied value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// Get returns the value and whether it was supplied.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the field was supplied.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Patch is a field-level partial update. Only supplied fields change.
// Detail distinguishes three states: absent (leave untouched), supplied
// with a nil value (clear), and supplied with a string (replace).
type Patch struct {
	Title  Opt[string]
	Detail Opt[*string]
	State  Opt[bool]
}

// Empty reports whether the patch carries no fields at all.
func (p Patch) Empty() bool {
	return !p.Title.IsSet() && !p.Detail.IsSet() && !p.State.IsSet()
}
