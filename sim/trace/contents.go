package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// ContentsFile writes the content catalogue of t to path; see ExportContents.
func ContentsFile(path string, t *Trace, withVersions bool) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = &WriteError{Path: path, Err: cerr}
		}
	}()
	if err := ExportContents(file, t, withVersions); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// ExportContents writes the content catalogue the simulator places in its
// caches. Without versions it is one object address per line, in first-seen
// order. With versions every (address, version) pair referenced by an
// annotated record becomes a line "address,version", versions ascending within
// an object. The trace must be annotated for the versioned form.
func ExportContents(w io.Writer, t *Trace, withVersions bool) error {
	versions := make(map[string]map[int]bool)
	if withVersions {
		for i := range t.Records {
			r := &t.Records[i]
			if versions[r.ObjectAddress] == nil {
				versions[r.ObjectAddress] = make(map[int]bool)
			}
			versions[r.ObjectAddress][r.Version] = true
		}
	}

	writer := csv.NewWriter(w)
	for _, object := range t.Objects() {
		if !withVersions {
			if err := writer.Write([]string{object}); err != nil {
				return fmt.Errorf("writing content %s: %w", object, err)
			}
			continue
		}
		seen := make([]int, 0, len(versions[object]))
		for v := range versions[object] {
			seen = append(seen, v)
		}
		sort.Ints(seen)
		for _, v := range seen {
			if err := writer.Write([]string{object, strconv.Itoa(v)}); err != nil {
				return fmt.Errorf("writing content %s version %d: %w", object, v, err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing contents: %w", err)
	}
	return nil
}
