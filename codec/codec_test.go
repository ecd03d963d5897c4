package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"", "none", "zstd", "lz4"} {
		c, ok := ByName(name)
		require.True(t, ok, "codec %q", name)
		require.NotNil(t, c)
	}

	_, ok := ByName("snappy")
	require.False(t, ok)
}

func TestRoundtrip(t *testing.T) {
	payload := bytes.Repeat([]byte("ragfuse artifact payload "), 1000)

	for _, name := range []string{"none", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			c := MustByName(name)
			compressed, err := c.Compress(payload)
			require.NoError(t, err)

			got, err := c.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, got)
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	payload := bytes.Repeat([]byte("aaaaaaaa"), 4096)

	for _, name := range []string{"zstd", "lz4"} {
		c := MustByName(name)
		compressed, err := c.Compress(payload)
		require.NoError(t, err)
		require.Less(t, len(compressed), len(payload), "%s should shrink repetitive data", name)
	}
}

func TestMustByName_Panics(t *testing.T) {
	require.Panics(t, func() { MustByName("bogus") })
}
