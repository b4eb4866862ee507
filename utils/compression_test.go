package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressTextRoundTrip(t *testing.T) {
	original := strings.Repeat("structured knowledge extraction ", 50)

	compressed, algorithm, err := CompressText(original)
	require.NoError(t, err)
	assert.Equal(t, CompressionGzip, algorithm)
	assert.Less(t, len(compressed), len(original))

	restored, err := DecompressText(compressed, algorithm)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestCompressTextSmallInputStaysRaw(t *testing.T) {
	compressed, algorithm, err := CompressText("short")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, algorithm)
	assert.Equal(t, "short", string(compressed))
}

func TestDecompressDataUnknownAlgorithm(t *testing.T) {
	_, err := DecompressData([]byte("data"), "zstd")
	assert.Error(t, err)
}

func TestZlibRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("abc", 300))

	compressed, err := CompressData(data, CompressionZlib)
	require.NoError(t, err)

	restored, err := DecompressData(compressed, CompressionZlib)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}
