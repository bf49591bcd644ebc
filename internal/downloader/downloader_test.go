package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/gonzb/internal/nzbmodel"
)

func TestFilenameFromSubject(t *testing.T) {
	cases := []struct {
		subject string
		date    int64
		want    string
	}{
		{`[1/2] - "movie.mkv" yEnc (1/500)`, 123, "movie.mkv"},
		{`no quotes here`, 456, "unknown_file_456"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, filenameFromSubject(c.subject, c.date))
	}
}

func TestPlanBatches(t *testing.T) {
	segs := make([]nzbmodel.Segment, 250)
	for i := range segs {
		segs[i] = nzbmodel.Segment{Number: i + 1, Bytes: 100, MessageID: "id"}
	}
	batches := planBatches(segs, "alt.binaries.test", 100)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)

	for _, b := range batches {
		for _, r := range b {
			assert.Equal(t, "alt.binaries.test", r.Group)
		}
	}
}

func TestSegmentDeclaredBytes(t *testing.T) {
	segs := []nzbmodel.Segment{{Number: 1, Bytes: 10}, {Number: 2, Bytes: 20}}
	assert.EqualValues(t, 20, segmentDeclaredBytes(segs, 2))
	assert.EqualValues(t, 0, segmentDeclaredBytes(segs, 99))
}
