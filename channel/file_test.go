package channel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFileChunksAtBoundary(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, ChunkSize+10)
	chunks := SplitFile(data)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], ChunkSize)
	assert.Len(t, chunks[1], 10)
}

func TestSplitFileEmptyYieldsOneChunk(t *testing.T) {
	chunks := SplitFile(nil)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0])
}

func TestWrapUnwrapFileKeyRoundTrip(t *testing.T) {
	sessionKey := testKey(0x50)
	fileKey := bytes.Repeat([]byte{0x02}, 32)

	wrapped, err := WrapFileKey(sessionKey, fileKey)
	require.NoError(t, err)

	recovered, err := UnwrapFileKey(sessionKey, wrapped)
	require.NoError(t, err)
	assert.Equal(t, fileKey, recovered)
}

func TestUnwrapFileKeyWrongSessionKeyFails(t *testing.T) {
	fileKey := bytes.Repeat([]byte{0x03}, 32)
	wrapped, err := WrapFileKey(testKey(0x51), fileKey)
	require.NoError(t, err)

	_, err = UnwrapFileKey(testKey(0x52), wrapped)
	assert.ErrorIs(t, err, ErrAuthFailed)
}
