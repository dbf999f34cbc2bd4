package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testState is a struct for round-trip codec testing.
type testState struct {
	Name   string         `json:"name"   yaml:"name"`
	Count  int            `json:"count"  yaml:"count"`
	Values map[string]int `json:"values" yaml:"values"`
}

func sampleState() testState {
	return testState{
		Name:   "test",
		Count:  42,
		Values: map[string]int{"a": 1, "b": 2},
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	t.Parallel()

	codecs := map[string]Codec{
		"json":     NewJSONCodec(),
		"gob":      NewGobCodec(),
		"yaml":     NewYAMLCodec(),
		"json-lz4": NewLZ4Codec(NewJSONCodec()),
		"gob-lz4":  NewLZ4Codec(NewGobCodec()),
		"yaml-lz4": NewLZ4Codec(NewYAMLCodec()),
		"json-zst": NewZstdCodec(NewJSONCodec()),
		"gob-zst":  NewZstdCodec(NewGobCodec()),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			original := sampleState()

			var buf bytes.Buffer

			require.NoError(t, codec.Encode(&buf, original))

			var decoded testState

			require.NoError(t, codec.Decode(&buf, &decoded))
			assert.Equal(t, original, decoded)
		})
	}
}

func TestCodecs_Extension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".json", NewJSONCodec().Extension())
	assert.Equal(t, ".gob", NewGobCodec().Extension())
	assert.Equal(t, ".yaml", NewYAMLCodec().Extension())
	assert.Equal(t, ".json.lz4", NewLZ4Codec(NewJSONCodec()).Extension())
	assert.Equal(t, ".gob.lz4", NewLZ4Codec(NewGobCodec()).Extension())
	assert.Equal(t, ".yaml.zst", NewZstdCodec(NewYAMLCodec()).Extension())
}

func TestJSONCodec_CompactNoIndent(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{Indent: ""}

	state := testState{Name: "compact", Count: 1}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, state))

	output := buf.String()
	assert.NotContains(t, output, "\n  ")
	assert.True(t, strings.HasPrefix(output, `{"name":"compact"`))
}

func TestJSONCodec_PrettyIndent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, testState{Name: "pretty"}))
	assert.Contains(t, buf.String(), "\n  \"name\": \"pretty\"")
}

func TestYAMLCodec_Output(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewYAMLCodec().Encode(&buf, testState{Name: "plain", Count: 3}))

	output := buf.String()
	assert.Contains(t, output, "name: plain\n")
	assert.Contains(t, output, "count: 3\n")
}

func TestLZ4Codec_Compresses(t *testing.T) {
	t.Parallel()

	state := testState{Name: strings.Repeat("redblack", 512)}

	var plain, packed bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&plain, state))
	require.NoError(t, NewLZ4Codec(NewJSONCodec()).Encode(&packed, state))

	assert.Less(t, packed.Len(), plain.Len())
}

func TestLZ4Codec_RejectsPlainInput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, sampleState()))

	var decoded testState

	require.Error(t, NewLZ4Codec(NewJSONCodec()).Decode(&buf, &decoded))
}

func TestZstdCodec_Compresses(t *testing.T) {
	t.Parallel()

	state := testState{Name: strings.Repeat("redblack", 512)}

	var plain, packed bytes.Buffer

	require.NoError(t, NewGobCodec().Encode(&plain, state))
	require.NoError(t, NewZstdCodec(NewGobCodec()).Encode(&packed, state))

	assert.Less(t, packed.Len(), plain.Len())

	var decoded testState

	require.NoError(t, NewZstdCodec(NewGobCodec()).Decode(&packed, &decoded))
	assert.Equal(t, state, decoded)
}

func TestZstdCodec_RejectsPlainInput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, sampleState()))

	var decoded testState

	require.Error(t, NewZstdCodec(NewJSONCodec()).Decode(&buf, &decoded))
}

func TestCodecByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		compression string
		extension   string
	}{
		{CodecJSON, "", ".json"},
		{CodecGob, CompressionNone, ".gob"},
		{CodecYAML, "", ".yaml"},
		{CodecJSON, CompressionLZ4, ".json.lz4"},
		{CodecYAML, CompressionLZ4, ".yaml.lz4"},
		{CodecGob, CompressionZstd, ".gob.zst"},
		{CodecJSON, CompressionZstd, ".json.zst"},
	}

	for _, tt := range tests {
		codec, err := CodecByName(tt.name, tt.compression)
		require.NoError(t, err)
		assert.Equal(t, tt.extension, codec.Extension())
	}

	_, err := CodecByName("xml", "")
	require.ErrorIs(t, err, ErrUnknownCodec)

	_, err = CodecByName(CodecJSON, "brotli")
	require.ErrorIs(t, err, ErrUnknownCompression)
}

func TestSaveState_CreatesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, SaveState(dir, "state", NewJSONCodec(), sampleState()))

	_, err := os.Stat(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveState_OverwritesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewYAMLCodec()

	require.NoError(t, SaveState(dir, "state", codec, testState{Name: "first"}))
	require.NoError(t, SaveState(dir, "state", codec, testState{Name: "second"}))

	var loaded testState

	require.NoError(t, LoadState(dir, "state", codec, &loaded))
	assert.Equal(t, "second", loaded.Name)
}

func TestSaveState_InvalidDir(t *testing.T) {
	t.Parallel()

	err := SaveState(filepath.Join(t.TempDir(), "missing"), "state", NewJSONCodec(), sampleState())
	require.Error(t, err)
}

func TestSaveState_EncodeFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := SaveState(dir, "state", NewJSONCodec(), map[string]any{"ch": make(chan int)})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadState_MissingFile(t *testing.T) {
	t.Parallel()

	var state testState

	err := LoadState(t.TempDir(), "absent", NewJSONCodec(), &state)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadState_CorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600))

	var state testState

	require.Error(t, LoadState(dir, "state", NewJSONCodec(), &state))
}
