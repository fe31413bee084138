package diffs

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// State classifies one key of the diff result.
type State string

const (
	// StateAdded means the key is present only in the after snapshot.
	StateAdded State = "added"
	// StateRemoved means the key is present only in the before snapshot.
	StateRemoved State = "removed"
	// StateUpdated means the key is present in both and structurally different.
	StateUpdated State = "updated"
	// StateUnchanged means the key is present in both and structurally identical.
	StateUnchanged State = "unchanged"
)

// Epsilon is the default numeric tolerance. Two numbers whose absolute
// difference is below it are considered equal, which suppresses the
// floating-point rounding noise repeated arithmetic accumulates.
const Epsilon = 1e-13

// FieldDelta describes one field-level difference between two entities.
type FieldDelta struct {
	// Field is the dotted path of the differing field, e.g. "Serie.Name"
	// or "Events[2].StartAt".
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// Result is the classification of a single key.
type Result[E any] struct {
	State  State        `json:"state"`
	Before *E           `json:"before,omitempty"`
	After  *E           `json:"after,omitempty"`
	Deltas []FieldDelta `json:"deltas,omitempty"`
}

// Options tunes a diff run.
type Options struct {
	// OmitDeltas drops the field-level delta list from updated results.
	// Classification is unaffected; use it on large collections where only
	// the state matters.
	OmitDeltas bool

	// Epsilon overrides the numeric tolerance. Zero means the default.
	Epsilon float64
}

// Diff classifies every key in the union of before and after into exactly
// one of the four states. Entities present in both snapshots are compared
// structurally; differences where both sides are numbers closer than the
// tolerance are discarded, and an entity whose delta list empties out that
// way is reclassified as unchanged. Tolerance applies per field, never to
// the aggregate diff.
func Diff[K comparable, E any](before, after map[K]E, opts Options) map[K]Result[E] {
	eps := opts.Epsilon
	if eps == 0 {
		eps = Epsilon
	}

	out := make(map[K]Result[E], len(before)+len(after))

	for key, next := range after {
		prev, ok := before[key]
		if !ok {
			n := next
			out[key] = Result[E]{State: StateAdded, After: &n}
			continue
		}

		deltas := structuralDeltas(prev, next, eps)
		if len(deltas) == 0 {
			n := next
			out[key] = Result[E]{State: StateUnchanged, After: &n}
			continue
		}

		p, n := prev, next
		result := Result[E]{State: StateUpdated, Before: &p, After: &n}
		if !opts.OmitDeltas {
			result.Deltas = deltas
		}
		out[key] = result
	}

	for key, prev := range before {
		if _, ok := after[key]; ok {
			continue
		}
		p := prev
		out[key] = Result[E]{State: StateRemoved, Before: &p}
	}

	return out
}

// Summary provides aggregate counts over a diff result.
type Summary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Summarize counts the classification buckets of a diff result.
func Summarize[K comparable, E any](results map[K]Result[E]) Summary {
	var s Summary
	for _, r := range results {
		switch r.State {
		case StateAdded:
			s.Added++
		case StateRemoved:
			s.Removed++
		case StateUpdated:
			s.Updated++
		case StateUnchanged:
			s.Unchanged++
		}
	}
	return s
}

// structuralDeltas walks two entities of the same type and collects the
// field-level differences that survive the numeric tolerance.
func structuralDeltas(before, after any, eps float64) []FieldDelta {
	var deltas []FieldDelta
	walkValue("", reflect.ValueOf(before), reflect.ValueOf(after), eps, &deltas)
	return deltas
}

var timeType = reflect.TypeOf(time.Time{})

func walkValue(path string, a, b reflect.Value, eps float64, deltas *[]FieldDelta) {
	if !a.IsValid() || !b.IsValid() {
		if a.IsValid() != b.IsValid() {
			record(path, a, b, deltas)
		}
		return
	}

	switch a.Kind() {
	case reflect.Pointer, reflect.Interface:
		if a.IsNil() && b.IsNil() {
			return
		}
		if a.IsNil() != b.IsNil() {
			record(path, a, b, deltas)
			return
		}
		walkValue(path, a.Elem(), b.Elem(), eps, deltas)

	case reflect.Struct:
		if a.Type() == timeType {
			at := a.Interface().(time.Time)
			bt := b.Interface().(time.Time)
			if !at.Equal(bt) {
				record(path, a, b, deltas)
			}
			return
		}
		for i := 0; i < a.NumField(); i++ {
			field := a.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			walkValue(joinPath(path, field.Name), a.Field(i), b.Field(i), eps, deltas)
		}

	case reflect.Slice, reflect.Array:
		min := a.Len()
		if b.Len() < min {
			min = b.Len()
		}
		for i := 0; i < min; i++ {
			walkValue(fmt.Sprintf("%s[%d]", path, i), a.Index(i), b.Index(i), eps, deltas)
		}
		for i := min; i < a.Len(); i++ {
			record(fmt.Sprintf("%s[%d]", path, i), a.Index(i), reflect.Value{}, deltas)
		}
		for i := min; i < b.Len(); i++ {
			record(fmt.Sprintf("%s[%d]", path, i), reflect.Value{}, b.Index(i), deltas)
		}

	case reflect.Map:
		if !reflect.DeepEqual(a.Interface(), b.Interface()) {
			record(path, a, b, deltas)
		}

	case reflect.Float32, reflect.Float64:
		if math.Abs(a.Float()-b.Float()) >= eps {
			record(path, a, b, deltas)
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if a.Int() != b.Int() {
			record(path, a, b, deltas)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if a.Uint() != b.Uint() {
			record(path, a, b, deltas)
		}

	case reflect.String:
		if a.String() != b.String() {
			record(path, a, b, deltas)
		}

	case reflect.Bool:
		if a.Bool() != b.Bool() {
			record(path, a, b, deltas)
		}

	default:
		if !reflect.DeepEqual(a.Interface(), b.Interface()) {
			record(path, a, b, deltas)
		}
	}
}

func record(path string, a, b reflect.Value, deltas *[]FieldDelta) {
	delta := FieldDelta{Field: path}
	if a.IsValid() && a.CanInterface() {
		delta.Before = a.Interface()
	}
	if b.IsValid() && b.CanInterface() {
		delta.After = b.Interface()
	}
	*deltas = append(*deltas, delta)
}

func joinPath(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}
