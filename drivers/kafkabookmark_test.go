package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaBookmarkKeyShape(t *testing.T) {
	assert.Equal(t, "kafka(mygroup).mytopic#3", KafkaBookmarkKey("mygroup", "mytopic", 3))
}

func TestKafkaOffsetRoundTrip(t *testing.T) {
	_, body := EncodeKafkaOffset(42)
	offset, ok, err := DecodeKafkaOffset(body)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 42, offset)
}

func TestKafkaOffsetZeroMeansNoCommittedOffset(t *testing.T) {
	// a never-written entry decodes as "stored=0", which must be
	// distinguished from a genuine committed offset 0.
	_, ok, err := DecodeKafkaOffset([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok)

	_, body := EncodeKafkaOffset(0)
	offset, ok, err := DecodeKafkaOffset(body)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 0, offset)
}

func TestJournalBookmarkKeyShapes(t *testing.T) {
	assert.Equal(t, "systemd-journal", JournalBookmarkKey(""))
	assert.Equal(t, "systemd_journal(ns1)", JournalBookmarkKey("ns1"))
}

func TestJournalCursorRoundTrip(t *testing.T) {
	_, body, err := EncodeJournalCursor("s=abc123;i=4")
	require.NoError(t, err)
	cursor, err := DecodeJournalCursor(body)
	require.NoError(t, err)
	assert.Equal(t, "s=abc123;i=4", cursor)
}

func TestJournalCursorTruncatesOversizedInput(t *testing.T) {
	huge := make([]byte, MaxJournalCursorLen+100)
	for i := range huge {
		huge[i] = 'x'
	}
	_, body, err := EncodeJournalCursor(string(huge))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(body), MaxJournalCursorLen+1)
}

func TestOSLogCursorRoundTrip(t *testing.T) {
	in := OSLogCursor{LogPosition: 123.456, LastMsgHash: 0xdeadbeef, LastUsedFilterPredicate: 0x1234}
	_, body := EncodeOSLogCursor(in)
	out, err := DecodeOSLogCursor(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
