package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const partitionExample = `# Reference grouping from the published subgroup analysis
4
geneva-w1   low
geneva-w2   low
lombardy    high
nyc-spring  high
`

func TestPartitionReader(t *testing.T) {
	assert := assert.New(t)

	r := EffectsReader{}
	p, err := NewPartitionFromBuffer(r, []byte(partitionExample))
	assert.NoError(err)
	assert.Equal(4, len(p.Groups))
	assert.Equal("low", p.Groups["geneva-w2"])
	assert.Equal("high", p.Groups["nyc-spring"])
}

func TestPartitionReaderErrors(t *testing.T) {
	assert := assert.New(t)

	r := EffectsReader{}

	cases := []struct {
		name string
		data string
	}{
		{"no lines", "# nothing here\n"},
		{"too few fields", "1 geneva"},
		{"bad count", "x geneva low"},
		{"zero count", "0 geneva low"},
		{"missing group", "2\ngeneva low\nnyc\n"},
		{"trailing fields", "1\ngeneva low extra\n"},
		{"dup id", "2\ngeneva low\ngeneva high\n"},
	}

	for _, c := range cases {
		p, err := NewPartitionFromBuffer(r, []byte(c.data))
		assert.Error(err, c.name)
		assert.Nil(p, c.name)
	}
}

func TestPartitionAlign(t *testing.T) {
	assert := assert.New(t)

	ds, err := NewDatasetFromBuffer(EffectsReader{}, []byte(effectsExample))
	assert.NoError(err)

	p, err := NewPartitionFromBuffer(EffectsReader{}, []byte(partitionExample))
	assert.NoError(err)

	labels, err := p.Align(ds)
	assert.NoError(err)
	assert.Equal([]int{0, 0, 1, 1}, labels)

	// Renaming groups must not change the aligned labels
	p2 := &Partition{Groups: map[string]string{
		"geneva-w1": "x", "geneva-w2": "x", "lombardy": "y", "nyc-spring": "y",
	}}
	labels2, err := p2.Align(ds)
	assert.NoError(err)
	assert.Equal(labels, labels2)

	// Missing study is an error
	delete(p.Groups, "lombardy")
	_, err = p.Align(ds)
	assert.Error(err)
}
