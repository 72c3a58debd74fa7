package trace

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ds2os-caching/cachetrace/internal/testutil"
)

func loadRows(t *testing.T, rows ...string) *Trace {
	t.Helper()
	tr, err := Load(strings.NewReader(testutil.DS2OSHeader + "\n" + strings.Join(rows, "\n") + "\n"))
	require.NoError(t, err)
	return tr
}

func versions(tr *Trace) []int {
	out := make([]int, len(tr.Records))
	for i, r := range tr.Records {
		out[i] = r.Version
	}
	return out
}

func lastWrites(tr *Trace) []int64 {
	out := make([]int64, len(tr.Records))
	for i, r := range tr.Records {
		out[i] = r.LastWrite
	}
	return out
}

func nextWrites(tr *Trace) []int64 {
	out := make([]int64, len(tr.Records))
	for i, r := range tr.Records {
		out[i] = r.NextWrite
	}
	return out
}

func TestAnnotate_ReferenceExample(t *testing.T) {
	// GIVEN write@10, read@15, write@20, read@25 on one object
	tr := loadRows(t, testutil.ExampleRows()...)

	// WHEN annotated
	require.NoError(t, Annotate(tr))

	// THEN versions and windows match the documented example
	assert.Equal(t, []int{0, 0, 1, 1}, versions(tr))
	assert.Equal(t, []int64{NoWrite, 10, 10, 20}, lastWrites(tr))
	assert.Equal(t, []int64{20, 20, NoWrite, NoWrite}, nextWrites(tr))
}

func TestAnnotate_SampleTrace_InterleavedObjects(t *testing.T) {
	tr, err := LoadFile(testutil.SampleTracePath(t))
	require.NoError(t, err)

	require.NoError(t, Annotate(tr))

	b := testutil.SampleBase
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 0, 0, 1, 2, 2, 0}, versions(tr))
	assert.Equal(t, []int64{NoWrite, NoWrite, b + 1000, b + 1000, b + 1000, b + 4000,
		NoWrite, b + 5000, b + 4000, b + 4000, b + 9000, b + 5000}, lastWrites(tr))
	assert.Equal(t, []int64{b + 5000, b + 4000, b + 4000, b + 4000, b + 9000, b + 9000,
		NoWrite, NoWrite, b + 9000, NoWrite, NoWrite, NoWrite}, nextWrites(tr))
	// the lightOn read at +0 precedes its only write; both carry version 0
	assert.Equal(t, []int{Unwritten, 0, 0, 0, 1, 1, 0, 0, 1, 2, 2, 0}, generations(tr))
}

func generations(tr *Trace) []int {
	out := make([]int, len(tr.Records))
	for i := range tr.Records {
		out[i] = tr.Records[i].Generation()
	}
	return out
}

func TestAnnotate_WriteVersionsAreGapFreePerObject(t *testing.T) {
	// GIVEN three objects with interleaved writes
	var rows []string
	objects := []string{"/agent1/a/x", "/agent2/b/y", "/agent3/c/z"}
	ts := int64(0)
	for round := 0; round < 5; round++ {
		for i, obj := range objects {
			if (round+i)%2 == 0 {
				rows = append(rows, testutil.Row("/agent1/a", "/agent1/a", obj, "write", ts))
			} else {
				rows = append(rows, testutil.Row("/agent2/b", "/agent1/a", obj, "read", ts))
			}
			ts += 3
		}
	}
	tr := loadRows(t, rows...)

	// WHEN annotated
	require.NoError(t, Annotate(tr))

	// THEN the write versions of each object are exactly 0..k-1 in time order
	seen := make(map[string][]int)
	for _, r := range tr.Records {
		if r.IsWrite() {
			seen[r.ObjectAddress] = append(seen[r.ObjectAddress], r.Version)
		}
	}
	for obj, vs := range seen {
		for i, v := range vs {
			assert.Equal(t, i, v, "object %s write %d", obj, i)
		}
	}
}

func TestAnnotate_WindowBracketsTimestamp(t *testing.T) {
	tr, err := LoadFile(testutil.SampleTracePath(t))
	require.NoError(t, err)
	require.NoError(t, Annotate(tr))

	for i, r := range tr.Records {
		if r.LastWrite != NoWrite {
			assert.LessOrEqual(t, r.LastWrite, r.Timestamp, "record %d", i)
		}
		if r.NextWrite != NoWrite {
			assert.GreaterOrEqual(t, r.NextWrite, r.Timestamp, "record %d", i)
		}
	}
}

func TestAnnotate_ReadWindowsPartitionTimeAtWrites(t *testing.T) {
	// GIVEN an object with writes at 100, 250, 400 and reads in every gap
	obj := "/agent1/a/x"
	tr := loadRows(t,
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 50),
		testutil.Row("/agent1/a", "/agent1/a", obj, "write", 100),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 120),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 200),
		testutil.Row("/agent1/a", "/agent1/a", obj, "write", 250),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 300),
		testutil.Row("/agent1/a", "/agent1/a", obj, "write", 400),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 999),
	)

	// WHEN annotated
	require.NoError(t, Annotate(tr))

	// THEN the distinct read windows are contiguous, non-overlapping and cut at
	// exactly the sorted write timestamps
	distinct := make(map[Window]bool)
	for _, r := range tr.Records {
		if !r.IsWrite() {
			distinct[r.Window()] = true
		}
	}
	var windows []Window
	for w := range distinct {
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool {
		// the -inf window sorts first
		return windows[i].LastWrite < windows[j].LastWrite
	})
	assert.Equal(t, []Window{
		{LastWrite: NoWrite, NextWrite: 100},
		{LastWrite: 100, NextWrite: 250},
		{LastWrite: 250, NextWrite: 400},
		{LastWrite: 400, NextWrite: NoWrite},
	}, windows)
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].NextWrite, windows[i].LastWrite, "gap or overlap between windows %d and %d", i-1, i)
	}
}

func TestAnnotate_SameTimestampTie_FollowsRowOrder(t *testing.T) {
	// GIVEN reads at t=20 listed before and after a write at t=20
	obj := "/agent1/a/x"
	tr := loadRows(t,
		testutil.Row("/agent1/a", "/agent1/a", obj, "write", 10),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 20),
		testutil.Row("/agent1/a", "/agent1/a", obj, "write", 20),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 20),
	)

	// WHEN annotated
	require.NoError(t, Annotate(tr))

	// THEN the earlier read sees the old version with a zero-length tail
	before := tr.Records[1]
	assert.Equal(t, 0, before.Version)
	assert.Equal(t, Window{LastWrite: 10, NextWrite: 20}, before.Window())

	// AND the later read sees the version created at t=20
	after := tr.Records[3]
	assert.Equal(t, 1, after.Version)
	assert.Equal(t, Window{LastWrite: 20, NextWrite: NoWrite}, after.Window())
}

func TestAnnotate_ReadBeforeFirstWrite_ReportsInitialVersion(t *testing.T) {
	obj := "/agent1/a/x"
	tr := loadRows(t,
		testutil.Row("/agent2/b", "/agent1/a", obj, "subscribe", 1),
		testutil.Row("/agent1/a", "/agent1/a", obj, "write", 5),
		testutil.Row("/agent2/b", "/agent1/a", obj, "read", 7),
	)

	require.NoError(t, Annotate(tr))

	// THEN the version column keeps the initial 0
	assert.Equal(t, []int{0, 0, 0}, versions(tr))
	assert.Equal(t, Window{LastWrite: NoWrite, NextWrite: 5}, tr.Records[0].Window())
	// AND the generation separates the unwritten state from the first write
	assert.Equal(t, []int{Unwritten, 0, 0}, generations(tr))
}

func TestAnnotate_NeverWrittenObject_OpenOnBothSides(t *testing.T) {
	tr := loadRows(t, testutil.Row("/agent2/b", "/agent1/a", "/agent1/a/x", "read", 1))

	require.NoError(t, Annotate(tr))

	assert.Equal(t, Window{LastWrite: NoWrite, NextWrite: NoWrite}, tr.Records[0].Window())
}

func TestAnnotate_Twice_SameResult(t *testing.T) {
	tr, err := LoadFile(testutil.SampleTracePath(t))
	require.NoError(t, err)
	require.NoError(t, Annotate(tr))
	v, l, n := versions(tr), lastWrites(tr), nextWrites(tr)

	require.NoError(t, Annotate(tr))

	assert.Equal(t, v, versions(tr))
	assert.Equal(t, l, lastWrites(tr))
	assert.Equal(t, n, nextWrites(tr))
}

func TestAnnotate_OutOfOrderRecords_ReturnsOrderingViolation(t *testing.T) {
	tr := &Trace{Records: []Record{
		{ObjectAddress: "x", Operation: OpWrite, Timestamp: 5},
		{ObjectAddress: "x", Operation: OpRead, Timestamp: 4},
	}}

	err := Annotate(tr)

	var ov *OrderingViolation
	assert.True(t, errors.As(err, &ov), "want *OrderingViolation, got %v", err)
}

func TestReannotate_ExportedTrace_ReproducesDerivedColumns(t *testing.T) {
	// GIVEN an annotated and exported sample trace
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	_, err := AnnotateFile(testutil.SampleTracePath(t), first, AnnotateOptions{})
	require.NoError(t, err)

	// WHEN the annotated output is annotated again
	_, err = AnnotateFile(first, second, AnnotateOptions{})
	require.NoError(t, err)

	// THEN both outputs are byte-identical
	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b), "re-annotation changed the output:\n%s\n---\n%s", a, b)
}

func TestAnnotateFile_MalformedRow_NoOutputCreated(t *testing.T) {
	// GIVEN a trace whose last row has too few fields
	dir := t.TempDir()
	in := testutil.WriteTrace(t, dir, "bad.csv",
		testutil.Row("/agent1/a", "/agent1/a", "/agent1/a/x", "write", 10),
		"broken,row",
	)
	out := filepath.Join(dir, "out.csv")

	// WHEN annotating
	tr, err := AnnotateFile(in, out, AnnotateOptions{HeaderPath: filepath.Join(dir, "out.yaml")})

	// THEN a ParseError aborts the batch before any output exists
	assert.Nil(t, tr)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "output must not be created")
	_, statErr = os.Stat(filepath.Join(dir, "out.yaml"))
	assert.True(t, os.IsNotExist(statErr), "header must not be created")
}

func TestAnnotateFile_NormalOnly_DropsAnomalousRows(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	headerPath := filepath.Join(dir, "out.yaml")

	tr, err := AnnotateFile(testutil.SampleTracePath(t), out, AnnotateOptions{
		NormalOnly:    true,
		HeaderPath:    headerPath,
		HorizonPolicy: HorizonObserved,
	})
	require.NoError(t, err)

	assert.Len(t, tr.Records, 11)
	for _, r := range tr.Records {
		assert.True(t, r.IsNormal())
	}
	h, err := LoadHeader(headerPath)
	require.NoError(t, err)
	assert.True(t, h.NormalOnly)
	assert.Equal(t, HorizonObserved, h.HorizonPolicy)
	assert.Equal(t, 11, h.Records)
}
