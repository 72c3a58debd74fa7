// Package testutil provides shared test fixtures for the cachetrace packages.
// It resolves the repository testdata/ directory and builds small DS2OS traces
// used across sim/trace, sim/topology, sim/analysis and sim/store tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// SampleBase is the first timestamp of testdata/ds2os_sample.csv
// (2018-03-02 23:00:00 UTC in milliseconds).
const SampleBase int64 = 1520031600000

// SampleObject and SampleLight are the two objects of the sample trace.
const (
	SampleObject = "/agent3/tempin3/temperature"
	SampleLight  = "/agent2/lightcontrol2/lightOn"
)

// DS2OSHeader is the header row of the DS2OS traffic dataset.
const DS2OSHeader = "sourceID,sourceAddress,sourceType,sourceLocation,destinationServiceAddress," +
	"destinationServiceType,destinationLocation,accessedNodeAddress,accessedNodeType,operation," +
	"value,timestamp,normality"

// SampleTracePath returns the absolute path of testdata/ds2os_sample.csv.
// The path is resolved relative to this source file: internal/testutil/ → testdata/.
func SampleTracePath(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "testdata", "ds2os_sample.csv")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Failed to locate sample trace: %v", err)
	}
	return path
}

// Row builds one DS2OS row. src and dst are service addresses of the form
// /agent<N>/<service>; the accessed node is obj.
func Row(src, dst, obj, op string, ts int64) string {
	return fmt.Sprintf("%s,%s,/svc,Room,%s,/svc,Room,%s,/svc/node,%s,0,%d,normal",
		serviceName(src), src, dst, obj, op, ts)
}

func serviceName(addr string) string {
	parts := strings.Split(strings.Trim(addr, "/"), "/")
	return parts[len(parts)-1]
}

// WriteTrace writes a DS2OS header plus rows to dir/name and returns the path.
func WriteTrace(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := DS2OSHeader + "\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write trace fixture: %v", err)
	}
	return path
}

// ExampleRows is the four-request trace used throughout the docs:
// write@10, read@15, write@20, read@25 on one object.
func ExampleRows() []string {
	const obj = "/agent1/sensor1/value"
	return []string{
		Row("/agent1/sensor1", "/agent1/sensor1", obj, "write", 10),
		Row("/agent2/reader2", "/agent1/sensor1", obj, "read", 15),
		Row("/agent1/sensor1", "/agent1/sensor1", obj, "write", 20),
		Row("/agent2/reader2", "/agent1/sensor1", obj, "read", 25),
	}
}
