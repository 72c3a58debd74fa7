package experiment

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Queue is the document consumed by the simulator.
type Queue struct {
	Experiments []Descriptor `yaml:"experiments"`
}

// WriteQueue encodes descriptors as a YAML Queue.
func WriteQueue(w io.Writer, descriptors []Descriptor) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Queue{Experiments: descriptors}); err != nil {
		return fmt.Errorf("encoding experiment queue: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding experiment queue: %w", err)
	}
	return nil
}
