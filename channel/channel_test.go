package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(0x01)
	sender := New("s1", key)
	receiver := New("s1", key)

	env, err := sender.Seal([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), env.SequenceNumber)
	assert.Equal(t, MessageTypeText, env.MessageType)

	plaintext, err := receiver.Open(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plaintext)
}

func TestSealIncrementsSequenceMonotonically(t *testing.T) {
	c := New("s1", testKey(0x02))
	e1, err := c.Seal([]byte("a"))
	require.NoError(t, err)
	e2, err := c.Seal([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e1.SequenceNumber)
	assert.Equal(t, uint64(2), e2.SequenceNumber)
}

func TestOpenWrongKeyFailsWithoutAdvancingCounter(t *testing.T) {
	sender := New("s1", testKey(0x03))
	wrongReceiver := New("s1", testKey(0x04))

	env, err := sender.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = wrongReceiver.Open(env)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, uint64(0), wrongReceiver.LastSequence())
}

func TestSealMessageFileType(t *testing.T) {
	c := New("s1", testKey(0x05))
	env, err := c.SealMessage([]byte("chunk"), MessageTypeFile)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeFile, env.MessageType)
}

func TestNewResumingContinuesFromLastSequence(t *testing.T) {
	key := testKey(0x07)
	c := NewResuming("s1", key, 41)

	env, err := c.Seal([]byte("next"))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), env.SequenceNumber)
	assert.Equal(t, uint64(42), c.LastSequence())
}

func TestClosedChannelRejectsSealAndOpen(t *testing.T) {
	c := New("s1", testKey(0x06))
	c.Close()

	_, err := c.Seal([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.Open(Envelope{})
	assert.ErrorIs(t, err, ErrClosed)
}
