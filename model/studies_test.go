package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const effectsExample = `# Seroprevalence estimates (logit scale)
4
geneva-w1   -3.476  0.0205
geneva-w2   -2.944  0.0112
lombardy    -1.295  0.0042
nyc-spring  -1.237  0.0018
`

func TestEffectsReader(t *testing.T) {
	assert := assert.New(t)

	r := EffectsReader{}
	ds, err := NewDatasetFromBuffer(r, []byte(effectsExample))
	assert.NoError(err)
	assert.NoError(ds.Check())

	assert.Equal(4, ds.Len())
	assert.Equal([]string{"geneva-w1", "geneva-w2", "lombardy", "nyc-spring"}, ds.IDs())
	assert.Equal(-2.944, ds.Studies[1].Effect)
	assert.Equal(0.0112, ds.Studies[1].Variance)
	assert.Equal(0.0018, ds.Studies[3].Variance)
}

func TestEffectsReaderErrors(t *testing.T) {
	assert := assert.New(t)

	r := EffectsReader{}

	cases := []struct {
		name string
		data string
	}{
		{"too short", "1 a"},
		{"no lines", "# only a comment\n# and another\n"},
		{"bad count", "x geneva -1.5 0.01"},
		{"zero count", "0 geneva -1.5 0.01"},
		{"missing variance", "2\ngeneva -1.5 0.01\nnyc -1.2\n"},
		{"bad effect", "1\ngeneva oops 0.01 extra"},
		{"trailing fields", "1\ngeneva -1.5 0.01 extra\n"},
		{"dup id", "2\ngeneva -1.5 0.01\ngeneva -1.2 0.02\n"},
		{"zero variance", "1\ngeneva -1.5 0.0\n"},
	}

	for _, c := range cases {
		ds, err := NewDatasetFromBuffer(r, []byte(c.data))
		assert.Error(err, c.name)
		assert.Nil(ds, c.name)
	}
}

func TestDatasetFromFile(t *testing.T) {
	assert := assert.New(t)

	fn := filepath.Join(t.TempDir(), "sero.dat")
	assert.NoError(os.WriteFile(fn, []byte(effectsExample), 0644))

	ds, err := NewDatasetFromFile(EffectsReader{}, fn)
	assert.NoError(err)
	assert.Equal("sero", ds.Name)
	assert.Equal(4, ds.Len())

	_, err = NewDatasetFromFile(EffectsReader{}, filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(err)
}
