package model

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Reader implementors instantiate a dataset from a byte stream.
type Reader interface {
	ReadDataset(data []byte) (*Dataset, error)
}

// NewDatasetFromFile initializes and creates a dataset from the specified source.
func NewDatasetFromFile(r Reader, filename string) (*Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ dataset from %s", filename)
	}

	ds, err := NewDatasetFromBuffer(r, data)
	if err != nil {
		return nil, err
	}

	// Name the dataset from the file
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	ds.Name = base[0 : len(base)-len(ext)]

	return ds, nil
}

// NewDatasetFromBuffer creates a dataset from the given pre-read data
func NewDatasetFromBuffer(r Reader, data []byte) (*Dataset, error) {
	ds, err := r.ReadDataset(data)
	if err != nil {
		return nil, errors.Wrap(err, "Could not PARSE dataset")
	}

	err = ds.Check()
	if err != nil {
		return nil, errors.Wrap(err, "Parsed dataset is not valid")
	}

	return ds, nil
}

// EffectsReader reads our plain-text effects table. Comment lines start with
// '#'. The first field is the study count; every study then contributes
// three fields: an ID token, the effect estimate, and its sampling variance.
// For example, two studies with effects on the logit scale might be:
//
//	2
//	geneva-w4  -1.61  0.0082
//	lombardy   -1.38  0.0021
type EffectsReader struct {
}

// ReadDataset implements the model.Reader interface
func (r EffectsReader) ReadDataset(data []byte) (*Dataset, error) {
	// We counted: one study with minimal spacing takes up 10 chars
	if len(data) < 10 {
		return nil, errors.Errorf("Invalid data buffer: len=%d (<10)", len(data))
	}

	text, lineCount := stripComments(data)
	if lineCount < 1 {
		return nil, errors.Errorf("No lines found in file")
	}

	// A minimal dataset will have 4 fields
	fr := NewFieldReader(text)
	if len(fr.Fields) < 4 {
		return nil, errors.Errorf("Invalid data: only %d fields found (<4)", len(fr.Fields))
	}

	count, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Error reading study count")
	}
	if count < 1 {
		return nil, errors.Errorf("Invalid study count: %d", count)
	}

	ds := &Dataset{
		Studies: make([]*Study, count),
	}

	for i := 0; i < count; i++ {
		id, err := fr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading ID for study %d", i)
		}

		effect, err := fr.ReadFloat()
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading effect for study %d (%s)", i, id)
		}

		variance, err := fr.ReadFloat()
		if err != nil {
			return nil, errors.Wrapf(err, "Error reading variance for study %d (%s)", i, id)
		}

		ds.Studies[i] = &Study{
			ID:       id,
			Effect:   effect,
			Variance: variance,
		}
	}

	if fr.Remaining() > 0 {
		return nil, errors.Errorf("Found %d unexpected trailing fields after %d studies", fr.Remaining(), count)
	}

	// Finally all done - we leave it to our caller to perform final checking
	return ds, nil
}
