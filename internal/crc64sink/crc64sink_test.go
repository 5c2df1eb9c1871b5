package crc64sink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_MatchesIndependentSum(t *testing.T) {
	var buf bytes.Buffer
	sink := New(&buf)
	data := []byte("the quick brown fox jumps over the lazy dog")

	n, err := sink.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf.Bytes(), "sink must pass bytes through unchanged")
	assert.Equal(t, Sum(data), sink.Checksum())
}

// TestSink_SplitWritesAgree exercises spec §8 property 3: splitting one
// logical write into many calls yields the same final checksum.
func TestSink_SplitWritesAgree(t *testing.T) {
	data := []byte("REDIS0011some arbitrary snapshot-shaped payload bytes")

	var whole bytes.Buffer
	wholeSink := New(&whole)
	_, err := wholeSink.Write(data)
	require.NoError(t, err)

	var split bytes.Buffer
	splitSink := New(&split)
	for i := 0; i < len(data); i += 3 {
		end := i + 3
		if end > len(data) {
			end = len(data)
		}
		_, err := splitSink.Write(data[i:end])
		require.NoError(t, err)
	}

	assert.Equal(t, wholeSink.Checksum(), splitSink.Checksum())
	assert.Equal(t, Sum(data), splitSink.Checksum())
}

// TestSum_MatchesECMA182CheckValue pins the algorithm to the
// non-reflected CRC-64/ECMA-182 definition ("crc-64" in crcmod's
// predefined table, poly 0x42F0E1EBA9EA3693, init 0, no reflection, no
// xorout) rather than the reflected CRC-64/XZ variant hash/crc64 always
// produces. check("123456789") is the standard conformance vector for
// this algorithm.
func TestSum_MatchesECMA182CheckValue(t *testing.T) {
	assert.Equal(t, uint64(0x6c40df5f0b497347), Sum([]byte("123456789")))
}

func TestSink_EmptyWrite(t *testing.T) {
	var buf bytes.Buffer
	sink := New(&buf)
	_, err := sink.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), sink.Checksum())
}
