package trace

import "strings"

// Trace is a loaded access trace: the original column layout plus the records
// in file order.
type Trace struct {
	// Columns is the original header with any derived columns removed.
	Columns []string
	Records []Record
	// Annotated is true when the input already carried derived columns. They
	// are dropped on load and recomputed by Annotate.
	Annotated bool
}

// Derived column names appended on export.
const (
	ColumnVersion   = "version"
	ColumnLastWrite = "lastWrite"
	ColumnNextWrite = "nextWrite"
)

var derivedColumns = []string{ColumnVersion, ColumnLastWrite, ColumnNextWrite}

// Canonical input column names as they appear in the DS2OS traffic dataset.
const (
	ColumnSourceID            = "sourceID"
	ColumnSourceAddress       = "sourceAddress"
	ColumnSourceType          = "sourceType"
	ColumnSourceLocation      = "sourceLocation"
	ColumnDestinationAddress  = "destinationServiceAddress"
	ColumnDestinationType     = "destinationServiceType"
	ColumnDestinationLocation = "destinationLocation"
	ColumnObjectAddress       = "accessedNodeAddress"
	ColumnObjectType          = "accessedNodeType"
	ColumnOperation           = "operation"
	ColumnValue               = "value"
	ColumnTimestamp           = "timestamp"
	ColumnNormality           = "normality"
)

// DS2OSColumns is the column order of the DS2OS traffic dataset.
var DS2OSColumns = []string{
	ColumnSourceID, ColumnSourceAddress, ColumnSourceType, ColumnSourceLocation,
	ColumnDestinationAddress, ColumnDestinationType, ColumnDestinationLocation,
	ColumnObjectAddress, ColumnObjectType, ColumnOperation, ColumnValue,
	ColumnTimestamp, ColumnNormality,
}

// columnAliases maps lower-cased header names to canonical column names.
var columnAliases = map[string]string{
	"sourceid":                  ColumnSourceID,
	"sourceaddress":             ColumnSourceAddress,
	"sourcetype":                ColumnSourceType,
	"sourcelocation":            ColumnSourceLocation,
	"destinationserviceaddress": ColumnDestinationAddress,
	"destinationaddress":        ColumnDestinationAddress,
	"destinationservicetype":    ColumnDestinationType,
	"destinationtype":           ColumnDestinationType,
	"destinationlocation":       ColumnDestinationLocation,
	"accessednodeaddress":       ColumnObjectAddress,
	"accessedobjectaddress":     ColumnObjectAddress,
	"accessednodetype":          ColumnObjectType,
	"accessedobjecttype":        ColumnObjectType,
	"operation":                 ColumnOperation,
	"value":                     ColumnValue,
	"timestamp":                 ColumnTimestamp,
	"normality":                 ColumnNormality,
}

// requiredColumns must be present for annotation.
var requiredColumns = []string{ColumnObjectAddress, ColumnOperation, ColumnTimestamp}

func canonicalColumn(name string) (string, bool) {
	c, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

func isDerivedColumn(name string) bool {
	n := strings.TrimSpace(name)
	for _, d := range derivedColumns {
		if strings.EqualFold(n, d) {
			return true
		}
	}
	return false
}

// Objects returns the distinct object addresses in first-seen order.
func (t *Trace) Objects() []string {
	seen := make(map[string]bool)
	var objects []string
	for i := range t.Records {
		addr := t.Records[i].ObjectAddress
		if !seen[addr] {
			seen[addr] = true
			objects = append(objects, addr)
		}
	}
	return objects
}

// Horizon returns the first and last timestamps of the trace, or (0, 0) for
// an empty trace.
func (t *Trace) Horizon() (first, last int64) {
	if len(t.Records) == 0 {
		return 0, 0
	}
	return t.Records[0].Timestamp, t.Records[len(t.Records)-1].Timestamp
}

// Filter returns a new trace holding the records for which keep returns true.
// Records are copied; derived fields are kept as they are and should be
// recomputed with Annotate when the filter removes writes.
func (t *Trace) Filter(keep func(*Record) bool) *Trace {
	out := &Trace{
		Columns:   append([]string(nil), t.Columns...),
		Records:   make([]Record, 0, len(t.Records)),
		Annotated: t.Annotated,
	}
	for i := range t.Records {
		if keep(&t.Records[i]) {
			out.Records = append(out.Records, t.Records[i])
		}
	}
	return out
}
