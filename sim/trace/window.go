package trace

// ComputeWindows stamps LastWrite and NextWrite on every record.
//
// The forward pass gives each record the timestamp of the latest write to its
// object that precedes it; a write only updates the running value after being
// stamped, so its own LastWrite is the write before it. The backward pass
// mirrors this for NextWrite. Missing writes leave the NoWrite sentinel.
func ComputeWindows(records []Record) error {
	if err := CheckOrder(records); err != nil {
		return err
	}
	forwardPass(records)
	backwardPass(records)
	return nil
}

func forwardPass(records []Record) {
	lastWrite := make(map[string]int64)
	for i := range records {
		r := &records[i]
		if t, ok := lastWrite[r.ObjectAddress]; ok {
			r.LastWrite = t
		} else {
			r.LastWrite = NoWrite
		}
		if r.IsWrite() {
			lastWrite[r.ObjectAddress] = r.Timestamp
		}
	}
}

func backwardPass(records []Record) {
	nextWrite := make(map[string]int64)
	for i := len(records) - 1; i >= 0; i-- {
		r := &records[i]
		if t, ok := nextWrite[r.ObjectAddress]; ok {
			r.NextWrite = t
		} else {
			r.NextWrite = NoWrite
		}
		if r.IsWrite() {
			nextWrite[r.ObjectAddress] = r.Timestamp
		}
	}
}
