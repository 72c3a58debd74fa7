package trace

// AssignVersions stamps Version on every record in a single forward pass.
//
// The n-th write to an object (0-based) creates version n and carries it.
// Reads and subscribes carry the version created by the closest preceding
// write to the same object, or 0 before the first write. Records sharing a
// timestamp are taken in slice order.
func AssignVersions(records []Record) error {
	if err := CheckOrder(records); err != nil {
		return err
	}
	writes := make(map[string]int) // object -> writes seen so far
	for i := range records {
		r := &records[i]
		n := writes[r.ObjectAddress]
		if r.IsWrite() {
			r.Version = n
			writes[r.ObjectAddress] = n + 1
			continue
		}
		if n == 0 {
			r.Version = 0
		} else {
			r.Version = n - 1
		}
	}
	return nil
}
