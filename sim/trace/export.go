package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ExportFile writes the annotated trace to path. Any failure, including the
// final close, is returned as *WriteError.
func ExportFile(path string, t *Trace) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()

	if err := Export(file, t); err != nil {
		var we *WriteError
		if errors.As(err, &we) && we.Path == "" {
			we.Path = path
			return we
		}
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Export writes the trace as CSV: the original columns verbatim followed by
// version, lastWrite and nextWrite. Sentinels are written as -1. The trace is
// not modified, so a failed export can be retried.
func Export(w io.Writer, t *Trace) error {
	columns := t.Columns
	if len(columns) == 0 {
		columns = DS2OSColumns
	}

	writer := csv.NewWriter(w)
	header := make([]string, 0, len(columns)+len(derivedColumns))
	header = append(header, columns...)
	header = append(header, derivedColumns...)
	if err := writer.Write(header); err != nil {
		return &WriteError{Err: fmt.Errorf("writing CSV header: %w", err)}
	}

	for i := range t.Records {
		r := &t.Records[i]
		row := rowFields(r, columns)
		row = append(row,
			strconv.Itoa(r.Version),
			strconv.FormatInt(r.LastWrite, 10),
			strconv.FormatInt(r.NextWrite, 10),
		)
		if err := writer.Write(row); err != nil {
			return &WriteError{Err: fmt.Errorf("writing CSV row %d: %w", i, err)}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return &WriteError{Err: fmt.Errorf("flushing CSV: %w", err)}
	}
	return nil
}

// rowFields returns the raw row when it matches the column layout and
// otherwise rebuilds it from the typed fields.
func rowFields(r *Record, columns []string) []string {
	if len(r.Fields) == len(columns) {
		return append(make([]string, 0, len(columns)+len(derivedColumns)), r.Fields...)
	}
	row := make([]string, 0, len(columns)+len(derivedColumns))
	for _, name := range columns {
		c, _ := canonicalColumn(name)
		row = append(row, typedField(r, c))
	}
	return row
}

func typedField(r *Record, column string) string {
	switch column {
	case ColumnSourceID:
		return r.SourceID
	case ColumnSourceAddress:
		return r.SourceAddress
	case ColumnSourceType:
		return r.SourceType
	case ColumnSourceLocation:
		return r.SourceLocation
	case ColumnDestinationAddress:
		return r.DestinationAddress
	case ColumnDestinationType:
		return r.DestinationType
	case ColumnDestinationLocation:
		return r.DestinationLocation
	case ColumnObjectAddress:
		return r.ObjectAddress
	case ColumnObjectType:
		return r.ObjectType
	case ColumnOperation:
		return string(r.Operation)
	case ColumnValue:
		return r.Value
	case ColumnTimestamp:
		return strconv.FormatInt(r.Timestamp, 10)
	case ColumnNormality:
		return r.Normality
	default:
		return ""
	}
}
