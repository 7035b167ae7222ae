package model

import (
	"os"

	"github.com/pkg/errors"
)

// PartReader implementors read a reference partition of a dataset's studies.
type PartReader interface {
	ReadPartition(data []byte) (*Partition, error)
}

// Partition is a reference grouping of studies, usually carried over from a
// published subgroup analysis. It is only used to score sampled clusterings
// against a known answer and plays no part in sampling itself.
type Partition struct {
	Groups map[string]string // Study ID -> group label
}

// NewPartitionFromFile reads a reference partition from the specified source.
func NewPartitionFromFile(r PartReader, filename string) (*Partition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ partition from %s", filename)
	}

	return NewPartitionFromBuffer(r, data)
}

// NewPartitionFromBuffer reads a reference partition from pre-read data.
func NewPartitionFromBuffer(r PartReader, data []byte) (*Partition, error) {
	p, err := r.ReadPartition(data)
	if err != nil {
		return nil, errors.Wrap(err, "Could not PARSE partition")
	}

	return p, nil
}

// ReadPartition implements the model.PartReader interface. The format
// matches the effects table: '#' comments, a count field, and then two
// fields per study (ID token and group label).
func (r EffectsReader) ReadPartition(data []byte) (*Partition, error) {
	text, lineCount := stripComments(data)
	if lineCount < 1 {
		return nil, errors.Errorf("No lines found in file")
	}

	// A minimal partition will have 3 fields
	fr := NewFieldReader(text)
	if len(fr.Fields) < 3 {
		return nil, errors.Errorf("Invalid data: only %d fields found (<3)", len(fr.Fields))
	}

	count, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Error reading study count")
	}
	if count < 1 {
		return nil, errors.Errorf("Invalid study count: %d", count)
	}

	p := &Partition{
		Groups: make(map[string]string, count),
	}

	for i := 0; i < count; i++ {
		id, err := fr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading ID for entry %d", i)
		}

		group, err := fr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading group for entry %d (%s)", i, id)
		}

		_, ok := p.Groups[id]
		if ok {
			return nil, errors.Errorf("Duplicate ID %s in partition", id)
		}
		p.Groups[id] = group
	}

	if fr.Remaining() > 0 {
		return nil, errors.Errorf("Found %d unexpected trailing fields after %d entries", fr.Remaining(), count)
	}

	return p, nil
}

// Align returns the partition as integer labels in dataset order. Group
// labels are numbered by first appearance, so two partitions that group the
// studies identically align to identical label vectors regardless of what
// the groups are called.
func (p *Partition) Align(ds *Dataset) ([]int, error) {
	labels := make([]int, ds.Len())
	seen := make(map[string]int)

	for i, s := range ds.Studies {
		g, ok := p.Groups[s.ID]
		if !ok {
			return nil, errors.Errorf("Study %s is missing from the partition", s.ID)
		}

		lbl, ok := seen[g]
		if !ok {
			lbl = len(seen)
			seen[g] = lbl
		}
		labels[i] = lbl
	}

	return labels, nil
}
