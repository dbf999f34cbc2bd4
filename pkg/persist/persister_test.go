package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persisterState is a struct for persister round-trip testing.
type persisterState struct {
	Label string `json:"label" yaml:"label"`
	Value int    `json:"value" yaml:"value"`
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()

	codecs := []Codec{
		NewJSONCodec(),
		NewGobCodec(),
		NewYAMLCodec(),
		NewLZ4Codec(NewGobCodec()),
		NewZstdCodec(NewJSONCodec()),
	}

	for _, codec := range codecs {
		t.Run(codec.Extension(), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := NewPersister[persisterState]("mystate", codec)
			original := persisterState{Label: "hello", Value: 42}

			require.NoError(t, p.Save(dir, &original))

			restored, err := p.Load(dir)
			require.NoError(t, err)
			assert.Equal(t, original, *restored)
		})
	}
}

func TestPersister_Path(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("tree", NewLZ4Codec(NewJSONCodec()))

	assert.Equal(t, filepath.Join("out", "tree.json.lz4"), p.Path("out"))
}

func TestPersister_LoadMissing(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("nothing", NewJSONCodec())

	state, err := p.Load(t.TempDir())
	require.Error(t, err)
	assert.Nil(t, state)
}
