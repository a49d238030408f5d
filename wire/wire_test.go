package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredRoundTrip(t *testing.T) {
	l, err := NewLayout(2, 2, 10)
	assert.NoError(t, err)

	cases := []Pred{
		{Level: 0, Col: 0, Row: 0, Local: 0},
		{Level: 7, Col: 3, Row: 1, Local: 1023},
		{Level: 1000, Col: 2, Row: 3, Local: 512},
	}
	for _, c := range cases {
		w := l.Encode(c.Level, c.Col, c.Row, c.Local)
		got := l.Decode(w)
		assert.Equal(t, c, got)
	}
}

func TestLayoutOverflow(t *testing.T) {
	_, err := NewLayout(30, 30, 30)
	assert.Error(t, err)
}

func TestHeaderWordsRoundTrip(t *testing.T) {
	srcs := []uint64{0, 1, 12345, 1 << 40, (1 << 48) - 1}
	for _, s := range srcs {
		hi, lo := HeaderWords(s)
		assert.Equal(t, s != 0, IsHeaderWord(hi), "src %d", s) // -0 == 0 has no sign bit
		got := DecodeHeader(hi, lo)
		assert.Equal(t, s, got)
	}
}

func TestIsHeaderWordDistinguishesTargets(t *testing.T) {
	assert.False(t, IsHeaderWord(0))
	assert.False(t, IsHeaderWord(1<<30))
	hi, _ := HeaderWords(5)
	assert.True(t, IsHeaderWord(hi))
}

func TestTwodVertexPackRoundTrip(t *testing.T) {
	const lgl = 12
	v := PackTwodVertex(7, 999, lgl)
	assert.Equal(t, uint32(7), v.Column(lgl))
	assert.Equal(t, uint32(999), v.Local(lgl))
}

func TestRunLogRecordRoundTrip(t *testing.T) {
	r := RunLogRecord{
		Scale:              10,
		EdgeFactor:         16,
		MPISize:            4,
		NumRuns:            2,
		GenerationTime:     1.5,
		ConstructionTime:   2.5,
		RedistributionTime: 0.5,
	}
	r.Times[0] = RootTiming{BFSTime: 1.1, ValidateTime: 0.2, EdgeCount: 1000}
	r.Times[1] = RootTiming{BFSTime: 1.3, ValidateTime: 0.3, EdgeCount: 2000}

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	assert.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	var got RunLogRecord
	_, err = got.ReadFrom(&buf)
	assert.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestRunLogRecordBadMagic(t *testing.T) {
	var got RunLogRecord
	bad := make([]byte, recordSize)
	_, err := got.ReadFrom(bytes.NewReader(bad))
	assert.Error(t, err)
}
