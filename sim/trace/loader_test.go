package trace

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds2os-caching/cachetrace/internal/testutil"
)

func TestLoadFile_SampleTrace_ParsesAllColumns(t *testing.T) {
	// GIVEN the DS2OS sample trace
	tr, err := LoadFile(testutil.SampleTracePath(t))
	require.NoError(t, err)

	// THEN every row is loaded in file order
	require.Len(t, tr.Records, 12)
	assert.False(t, tr.Annotated)
	assert.Equal(t, DS2OSColumns, tr.Columns)

	r := tr.Records[2]
	assert.Equal(t, "movement4", r.SourceID)
	assert.Equal(t, "/agent4/movement4", r.SourceAddress)
	assert.Equal(t, "Garage", r.SourceLocation)
	assert.Equal(t, "/agent3/tempin3", r.DestinationAddress)
	assert.Equal(t, "/sensorService", r.DestinationType)
	assert.Equal(t, testutil.SampleObject, r.ObjectAddress)
	assert.Equal(t, OpRead, r.Operation)
	assert.Equal(t, "21.5", r.Value)
	assert.Equal(t, testutil.SampleBase+1500, r.Timestamp)
	assert.True(t, r.IsNormal())
	assert.Len(t, r.Fields, len(DS2OSColumns))

	assert.False(t, tr.Records[10].IsNormal(), "DoS row must not count as normal")
}

func TestLoad_ShortAliasesAndReorderedColumns_Accepted(t *testing.T) {
	// GIVEN a trace using the short column names in a different order
	input := "timestamp,operation,accessedObjectAddress,sourceId,destinationAddress\n" +
		"10, Write ,/agent1/a/x,a,/agent1/a\n" +
		"12,READ,/agent1/a/x,b,/agent1/a\n"

	// WHEN loading
	tr, err := Load(strings.NewReader(input))

	// THEN fields are resolved by name and operations are normalized
	require.NoError(t, err)
	require.Len(t, tr.Records, 2)
	assert.Equal(t, OpWrite, tr.Records[0].Operation)
	assert.Equal(t, OpRead, tr.Records[1].Operation)
	assert.Equal(t, "/agent1/a/x", tr.Records[1].ObjectAddress)
	assert.Equal(t, "b", tr.Records[1].SourceID)
	assert.Equal(t, "/agent1/a", tr.Records[1].DestinationAddress)
}

func TestLoad_WrongFieldCount_ReturnsParseError(t *testing.T) {
	input := testutil.DS2OSHeader + "\n" +
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "write", 10) + "\n" +
		"a,/agent1/a,/svc\n"

	_, err := Load(strings.NewReader(input))

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
	assert.Equal(t, 3, pe.Line)
	assert.ErrorIs(t, err, errFieldCount)
}

func TestLoad_NonNumericTimestamp_ReturnsParseError(t *testing.T) {
	input := testutil.DS2OSHeader + "\n" +
		strings.Replace(testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "write", 10), ",10,", ",ten,", 1) + "\n"

	_, err := Load(strings.NewReader(input))

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
	assert.Equal(t, ColumnTimestamp, pe.Column)
	assert.Equal(t, "ten", pe.Value)
	assert.Equal(t, 2, pe.Line)
}

func TestLoad_UnknownOperation_ReturnsParseError(t *testing.T) {
	input := testutil.DS2OSHeader + "\n" +
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "delete", 10) + "\n"

	_, err := Load(strings.NewReader(input))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ColumnOperation, pe.Column)
	assert.Equal(t, "delete", pe.Value)
}

func TestLoad_MissingRequiredColumn_ReturnsParseError(t *testing.T) {
	_, err := Load(strings.NewReader("sourceID,operation,timestamp\na,read,1\n"))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Line)
	assert.Equal(t, ColumnObjectAddress, pe.Column)
}

func TestLoad_EmptyInput_ReturnsParseError(t *testing.T) {
	_, err := Load(strings.NewReader(""))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, errMissingHeader)
}

func TestLoad_HeaderOnly_ReturnsEmptyTrace(t *testing.T) {
	tr, err := Load(strings.NewReader(testutil.DS2OSHeader + "\n"))
	require.NoError(t, err)
	assert.Empty(t, tr.Records)
	first, last := tr.Horizon()
	assert.Zero(t, first)
	assert.Zero(t, last)
}

func TestLoad_DecreasingTimestamp_ReturnsOrderingViolation(t *testing.T) {
	// GIVEN a trace whose third row goes back in time
	input := testutil.DS2OSHeader + "\n" + strings.Join([]string{
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "write", 10),
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "read", 20),
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "read", 19),
	}, "\n") + "\n"

	// WHEN loading
	tr, err := Load(strings.NewReader(input))

	// THEN the whole batch is rejected
	assert.Nil(t, tr)
	var ov *OrderingViolation
	require.True(t, errors.As(err, &ov), "want *OrderingViolation, got %v", err)
	assert.Equal(t, 4, ov.Line)
	assert.Equal(t, int64(20), ov.Previous)
	assert.Equal(t, int64(19), ov.Current)
}

func TestLoad_EqualTimestamps_Accepted(t *testing.T) {
	input := testutil.DS2OSHeader + "\n" + strings.Join([]string{
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "write", 10),
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "read", 10),
	}, "\n") + "\n"

	tr, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, tr.Records, 2)
}

func TestLoad_QuotedFieldWithComma_PreservedVerbatim(t *testing.T) {
	input := "accessedNodeAddress,operation,value,timestamp\n" +
		"/agent1/a/x,write,\"1,5\",10\n"

	tr, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "1,5", tr.Records[0].Value)
	assert.Equal(t, []string{"/agent1/a/x", "write", "1,5", "10"}, tr.Records[0].Fields)
}

func TestLoad_AnnotatedInput_DropsDerivedColumns(t *testing.T) {
	input := "accessedNodeAddress,operation,timestamp,version,lastWrite,nextWrite\n" +
		"/agent1/a/x,write,10,7,-1,-1\n"

	tr, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	assert.True(t, tr.Annotated)
	assert.Equal(t, []string{"accessedNodeAddress", "operation", "timestamp"}, tr.Columns)
	assert.Equal(t, []string{"/agent1/a/x", "write", "10"}, tr.Records[0].Fields)
	assert.Equal(t, 0, tr.Records[0].Version, "stale derived values must not be loaded")
}

func TestCheckOrder_ReportsFirstViolation(t *testing.T) {
	records := []Record{{Timestamp: 1}, {Timestamp: 3}, {Timestamp: 2}, {Timestamp: 0}}

	err := CheckOrder(records)

	var ov *OrderingViolation
	require.True(t, errors.As(err, &ov))
	assert.Equal(t, 3, ov.Line)
}
