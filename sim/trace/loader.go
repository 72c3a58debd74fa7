package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var (
	errMissingHeader = errors.New("missing header row")
	errMissingColumn = errors.New("required column missing from header")
	errFieldCount    = errors.New("wrong number of fields")
	errUnknownOp     = errors.New("unknown operation; valid: read, write, subscribe")
)

// LoadFile opens path and loads it with Load.
func LoadFile(path string) (*Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // read-only file

	t, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("loading trace %s: %w", path, err)
	}
	return t, nil
}

// Load parses a comma-delimited trace with a header row. Columns are matched
// by name, so any column order is accepted as long as the object address,
// operation and timestamp columns exist. Derived columns from a previous
// export are dropped.
//
// Returns *ParseError for malformed rows and *OrderingViolation when a
// timestamp decreases. Both abort the load; no partial trace is returned.
func Load(r io.Reader) (*Trace, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // field count is checked per row for a typed error

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Line: 1, Err: errMissingHeader}
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	layout, err := newColumnLayout(header)
	if err != nil {
		return nil, err
	}
	if len(layout.derived) > 0 {
		logrus.Debugf("trace already annotated; dropping %d derived columns", len(layout.derived))
	}

	t := &Trace{
		Columns:   layout.kept,
		Annotated: len(layout.derived) > 0,
	}
	prev := int64(0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.StartLine, Err: csvErr.Err}
			}
			return nil, fmt.Errorf("reading trace row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(row) != len(header) {
			return nil, &ParseError{Line: line,
				Err: fmt.Errorf("%w: got %d, header has %d", errFieldCount, len(row), len(header))}
		}

		rec, err := layout.parse(row, line)
		if err != nil {
			return nil, err
		}
		if len(t.Records) > 0 && rec.Timestamp < prev {
			return nil, &OrderingViolation{Line: line, Previous: prev, Current: rec.Timestamp}
		}
		prev = rec.Timestamp
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// columnLayout maps header positions onto record fields.
type columnLayout struct {
	index   map[string]int // canonical column -> position in the raw row
	kept    []string       // header without derived columns
	keptPos []int          // raw positions of kept columns
	derived []int
}

func newColumnLayout(header []string) (*columnLayout, error) {
	l := &columnLayout{index: make(map[string]int)}
	for i, name := range header {
		if isDerivedColumn(name) {
			l.derived = append(l.derived, i)
			continue
		}
		l.kept = append(l.kept, name)
		l.keptPos = append(l.keptPos, i)
		if c, ok := canonicalColumn(name); ok {
			if _, dup := l.index[c]; !dup {
				l.index[c] = i
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := l.index[c]; !ok {
			return nil, &ParseError{Line: 1, Column: c, Err: errMissingColumn}
		}
	}
	return l, nil
}

func (l *columnLayout) field(row []string, column string) string {
	if i, ok := l.index[column]; ok {
		return row[i]
	}
	return ""
}

func (l *columnLayout) parse(row []string, line int) (Record, error) {
	rawOp := l.field(row, ColumnOperation)
	op, ok := ParseOperation(rawOp)
	if !ok {
		return Record{}, &ParseError{Line: line, Column: ColumnOperation, Value: rawOp, Err: errUnknownOp}
	}
	rawTs := l.field(row, ColumnTimestamp)
	ts, err := strconv.ParseInt(rawTs, 10, 64)
	if err != nil {
		return Record{}, &ParseError{Line: line, Column: ColumnTimestamp, Value: rawTs, Err: err}
	}
	if ts < 0 {
		return Record{}, &ParseError{Line: line, Column: ColumnTimestamp, Value: rawTs,
			Err: errors.New("timestamp must be non-negative")}
	}

	fields := make([]string, len(l.keptPos))
	for i, pos := range l.keptPos {
		fields[i] = row[pos]
	}
	return Record{
		SourceID:            l.field(row, ColumnSourceID),
		SourceAddress:       l.field(row, ColumnSourceAddress),
		SourceType:          l.field(row, ColumnSourceType),
		SourceLocation:      l.field(row, ColumnSourceLocation),
		DestinationAddress:  l.field(row, ColumnDestinationAddress),
		DestinationType:     l.field(row, ColumnDestinationType),
		DestinationLocation: l.field(row, ColumnDestinationLocation),
		ObjectAddress:       l.field(row, ColumnObjectAddress),
		ObjectType:          l.field(row, ColumnObjectType),
		Operation:           op,
		Value:               l.field(row, ColumnValue),
		Timestamp:           ts,
		Normality:           l.field(row, ColumnNormality),
		Fields:              fields,
		LastWrite:           NoWrite,
		NextWrite:           NoWrite,
	}, nil
}

// CheckOrder returns *OrderingViolation for the first record whose timestamp
// is lower than its predecessor's.
func CheckOrder(records []Record) error {
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp < records[i-1].Timestamp {
			return &OrderingViolation{Line: i + 1, Previous: records[i-1].Timestamp, Current: records[i].Timestamp}
		}
	}
	return nil
}
