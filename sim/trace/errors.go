package trace

import "fmt"

// ParseError reports a malformed trace row. Line is 1-based and counts the
// header row.
type ParseError struct {
	Line   int
	Column string // empty when the whole row is malformed
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("trace line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("trace line %d: column %s: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// OrderingViolation reports a timestamp that decreases between consecutive
// records. Both annotation passes depend on time order, so the whole batch is
// rejected.
type OrderingViolation struct {
	Line     int // 1-based trace line, or record index + 1 when not loaded from a file
	Previous int64
	Current  int64
}

func (e *OrderingViolation) Error() string {
	return fmt.Sprintf("trace line %d: timestamp %d precedes previous timestamp %d", e.Line, e.Current, e.Previous)
}

// WriteError reports an export failure. The annotated trace held in memory is
// left intact so the export can be retried.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("writing annotated trace: %v", e.Err)
	}
	return fmt.Sprintf("writing annotated trace %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
