// Package trump interprets declarative conflict-resolution tables.
//
// A Table maps a field name to the Strategy that decides which of two copies
// of that field survives a merge. State managers and component kinds declare
// their tables as data; this package is the single interpreter used both by
// the bundle merge engine and by anything else that needs to reconcile two
// copies of the same section.
//
// Every strategy is idempotent: Resolve(s, x, x) == x. None of them discard a
// value that is present on only one side.
package trump

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mera-platform/mera/internal/model"
)

// Strategy names a conflict-resolution rule.
type Strategy int

const (
	// NOR is "false wins": the result is true only if neither side is false.
	// For arrays of booleans it applies element-wise.
	NOR Strategy = iota + 1
	// OR is "true wins", element-wise for arrays of booleans.
	OR
	// MAX keeps the larger integer.
	MAX
	// UNION keeps the set union of two arrays.
	UNION
	// LatestTimestamp keeps the value with the larger "lastUpdated". Applied to
	// an object whose values are timestamped objects it works entry by entry.
	LatestTimestamp
	// PreferNonEmpty keeps whichever side is non-empty.
	PreferNonEmpty
	// AssertEqual requires both sides to match.
	AssertEqual
)

// Whole is the table key that applies one strategy to an entire section.
const Whole = "*"

// TimestampField is the field LatestTimestamp compares.
const TimestampField = "lastUpdated"

// CompletedField breaks LatestTimestamp ties between completion entries.
const CompletedField = "timeCompleted"

var strategyNames = map[Strategy]string{
	NOR:             "NOR",
	OR:              "OR",
	MAX:             "MAX",
	UNION:           "UNION",
	LatestTimestamp: "LATEST_TIMESTAMP",
	PreferNonEmpty:  "PREFER_NON_EMPTY",
	AssertEqual:     "ASSERT_EQUAL",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses a strategy name such as "LATEST_TIMESTAMP".
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown trump strategy %q", name)
}

// Side selects one of the two inputs when a strategy cannot tell them apart.
type Side int

const (
	SideA Side = iota
	SideB
)

// Table maps field names to strategies.
type Table map[string]Strategy

// ConflictError reports that a strategy could not reconcile two values.
type ConflictError struct {
	Field    string
	Strategy Strategy
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("trump %s: %s", e.Strategy, e.Reason)
	}
	return fmt.Sprintf("trump %s on %q: %s", e.Strategy, e.Field, e.Reason)
}

// Resolve reconciles a and b under strategy s.
func Resolve(s Strategy, a, b model.Value, prefer Side) (model.Value, error) {
	switch s {
	case OR:
		return boolwise(s, a, b, func(x, y bool) bool { return x || y })
	case NOR:
		return boolwise(s, a, b, func(x, y bool) bool { return x && y })
	case MAX:
		ai, aok := a.(model.Int)
		bi, bok := b.(model.Int)
		if !aok || !bok {
			return nil, mismatch(s, a, b)
		}
		return max(ai, bi), nil
	case UNION:
		return union(a, b)
	case LatestTimestamp:
		return latest(a, b, prefer)
	case PreferNonEmpty:
		return preferNonEmpty(a, b, prefer)
	case AssertEqual:
		if !model.Equal(a, b) {
			return nil, &ConflictError{Strategy: s, Reason: "values differ"}
		}
		return model.CloneValue(a), nil
	default:
		return nil, &ConflictError{Strategy: s, Reason: "unknown strategy"}
	}
}

// Apply merges two objects field by field using table.
//
// Fields present on one side only are kept as-is. A field present on both
// sides with no declared strategy, or whose strategy fails, is reported in
// conflicts and takes the preferred side's value; callers decide whether to
// accept that or fall back.
func Apply(table Table, a, b model.Object, prefer Side) (model.Object, []*ConflictError) {
	if s, ok := table[Whole]; ok {
		v, err := Resolve(s, a, b, prefer)
		if err != nil {
			return pick(a, b, prefer).Clone(), []*ConflictError{asConflict(Whole, s, err)}
		}
		return v.(model.Object), nil
	}

	out := make(model.Object, len(a)+len(b))
	var conflicts []*ConflictError
	for _, key := range unionKeys(a, b) {
		av, aok := a[key]
		bv, bok := b[key]
		switch {
		case !aok:
			out[key] = model.CloneValue(bv)
		case !bok:
			out[key] = model.CloneValue(av)
		default:
			s, declared := table[key]
			if !declared {
				if model.Equal(av, bv) {
					out[key] = model.CloneValue(av)
					continue
				}
				conflicts = append(conflicts, &ConflictError{Field: key, Reason: "no strategy declared"})
				out[key] = model.CloneValue(pickValue(av, bv, prefer))
				continue
			}
			v, err := Resolve(s, av, bv, prefer)
			if err != nil {
				conflicts = append(conflicts, asConflict(key, s, err))
				out[key] = model.CloneValue(pickValue(av, bv, prefer))
				continue
			}
			out[key] = v
		}
	}
	return out, conflicts
}

// MergeStruct applies table to two JSON-encodable section values and decodes
// the result into out.
func MergeStruct(table Table, a, b any, prefer Side, out any) ([]*ConflictError, error) {
	ao, err := toObject(a)
	if err != nil {
		return nil, fmt.Errorf("encode side a: %w", err)
	}
	bo, err := toObject(b)
	if err != nil {
		return nil, fmt.Errorf("encode side b: %w", err)
	}
	merged, conflicts := Apply(table, ao, bo, prefer)
	raw, err := json.Marshal(merged)
	if err != nil {
		return conflicts, fmt.Errorf("encode merged: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return conflicts, fmt.Errorf("decode merged: %w", err)
	}
	return conflicts, nil
}

func toObject(v any) (model.Object, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj model.Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Completeness scores how much progress a value holds: true booleans,
// non-zero integers, non-empty strings and non-null leaves each count once.
// It is the fallback tie-breaker when tables cannot decide.
func Completeness(v model.Value) int {
	switch val := v.(type) {
	case model.Bool:
		if val {
			return 1
		}
	case model.Int:
		if val != 0 {
			return 1
		}
	case model.String:
		if val != "" {
			return 1
		}
	case model.Array:
		n := 0
		for _, e := range val {
			n += Completeness(e)
		}
		return n
	case model.Object:
		n := 0
		for _, e := range val {
			n += Completeness(e)
		}
		return n
	}
	return 0
}

func boolwise(s Strategy, a, b model.Value, op func(x, y bool) bool) (model.Value, error) {
	switch av := a.(type) {
	case model.Bool:
		bv, ok := b.(model.Bool)
		if !ok {
			return nil, mismatch(s, a, b)
		}
		return model.Bool(op(bool(av), bool(bv))), nil
	case model.Array:
		bv, ok := b.(model.Array)
		if !ok || len(av) != len(bv) {
			return nil, mismatch(s, a, b)
		}
		out := make(model.Array, len(av))
		for i := range av {
			x, xok := av[i].(model.Bool)
			y, yok := bv[i].(model.Bool)
			if !xok || !yok {
				return nil, mismatch(s, av[i], bv[i])
			}
			out[i] = model.Bool(op(bool(x), bool(y)))
		}
		return out, nil
	default:
		return nil, mismatch(s, a, b)
	}
}

func union(a, b model.Value) (model.Value, error) {
	av, aok := a.(model.Array)
	bv, bok := b.(model.Array)
	if !aok || !bok {
		return nil, mismatch(UNION, a, b)
	}
	out := make(model.Array, 0, len(av)+len(bv))
	for _, v := range slices.Concat(av, bv) {
		if !slices.ContainsFunc(out, func(x model.Value) bool { return model.Equal(x, v) }) {
			out = append(out, model.CloneValue(v))
		}
	}
	sortScalars(out)
	return out, nil
}

// sortScalars orders arrays made only of ints or only of strings so that
// union output does not depend on argument order.
func sortScalars(arr model.Array) {
	allInt, allString := true, true
	for _, v := range arr {
		_, isInt := v.(model.Int)
		_, isString := v.(model.String)
		allInt = allInt && isInt
		allString = allString && isString
	}
	switch {
	case allInt:
		slices.SortFunc(arr, func(x, y model.Value) int { return cmp.Compare(x.(model.Int), y.(model.Int)) })
	case allString:
		slices.SortFunc(arr, func(x, y model.Value) int { return cmp.Compare(x.(model.String), y.(model.String)) })
	}
}

func latest(a, b model.Value, prefer Side) (model.Value, error) {
	ao, aok := a.(model.Object)
	bo, bok := b.(model.Object)
	if !aok || !bok {
		return nil, mismatch(LatestTimestamp, a, b)
	}

	at, aTimed := ao.Int(TimestampField)
	bt, bTimed := bo.Int(TimestampField)
	if aTimed && bTimed {
		switch {
		case at > bt:
			return ao.Clone(), nil
		case bt > at:
			return bo.Clone(), nil
		case model.Equal(ao, bo):
			return ao.Clone(), nil
		}
		// Same timestamp, different content: a completed entry beats an
		// incomplete one and the later completion wins. Otherwise more
		// progress wins.
		if v, ok := laterCompletion(ao, bo); ok {
			return v.Clone(), nil
		}
		ac, bc := Completeness(ao), Completeness(bo)
		switch {
		case ac > bc:
			return ao.Clone(), nil
		case bc > ac:
			return bo.Clone(), nil
		}
		return pick(ao, bo, prefer).Clone(), nil
	}
	if aTimed != bTimed {
		return nil, &ConflictError{Strategy: LatestTimestamp, Reason: "only one side carries " + TimestampField}
	}

	// Neither side is itself timestamped: resolve entry by entry.
	out := make(model.Object, len(ao)+len(bo))
	for _, key := range unionKeys(ao, bo) {
		av, aok := ao[key]
		bv, bok := bo[key]
		switch {
		case !aok:
			out[key] = model.CloneValue(bv)
		case !bok:
			out[key] = model.CloneValue(av)
		default:
			v, err := latest(av, bv, prefer)
			if err != nil {
				return nil, asConflict(key, LatestTimestamp, err)
			}
			out[key] = v
		}
	}
	return out, nil
}

func laterCompletion(a, b model.Object) (model.Object, bool) {
	at, aDone := a.Int(CompletedField)
	bt, bDone := b.Int(CompletedField)
	switch {
	case aDone && !bDone:
		return a, true
	case bDone && !aDone:
		return b, true
	case aDone && at > bt:
		return a, true
	case bDone && bt > at:
		return b, true
	}
	return nil, false
}

func preferNonEmpty(a, b model.Value, prefer Side) (model.Value, error) {
	empty := func(v model.Value) (bool, bool) {
		switch val := v.(type) {
		case model.String:
			return val == "", true
		case model.Array:
			return len(val) == 0, true
		case model.Object:
			return len(val) == 0, true
		case model.Null:
			return true, true
		}
		return false, false
	}
	ae, aok := empty(a)
	be, bok := empty(b)
	if !aok || !bok {
		return nil, mismatch(PreferNonEmpty, a, b)
	}
	switch {
	case ae && !be:
		return model.CloneValue(b), nil
	case be && !ae:
		return model.CloneValue(a), nil
	}
	return model.CloneValue(pickValue(a, b, prefer)), nil
}

func unionKeys(a, b model.Object) []string {
	merged := make(model.Object, len(a)+len(b))
	for k := range a {
		merged[k] = model.Null{}
	}
	for k := range b {
		merged[k] = model.Null{}
	}
	return merged.SortedKeys()
}

func pick(a, b model.Object, prefer Side) model.Object {
	if prefer == SideB {
		return b
	}
	return a
}

func pickValue(a, b model.Value, prefer Side) model.Value {
	if prefer == SideB {
		return b
	}
	return a
}

func mismatch(s Strategy, a, b model.Value) error {
	return &ConflictError{Strategy: s, Reason: fmt.Sprintf("cannot apply to %T and %T", a, b)}
}

func asConflict(field string, s Strategy, err error) *ConflictError {
	var ce *ConflictError
	if errors.As(err, &ce) {
		out := *ce
		if out.Field == "" {
			out.Field = field
		} else {
			out.Field = field + "." + out.Field
		}
		return &out
	}
	return &ConflictError{Field: field, Strategy: s, Reason: err.Error()}
}
