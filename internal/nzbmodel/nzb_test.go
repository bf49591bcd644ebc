package nzbmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleNzb = `<?xml version="1.0" encoding="iso-8859-1"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <file subject="&quot;movie.mkv&quot; yEnc (1/2)" date="1700000000">
    <groups>
      <group>alt.binaries.test</group>
    </groups>
    <segments>
      <segment bytes="500000" number="1">abc123@example</segment>
      <segment bytes="500000" number="2">def456@example</segment>
    </segments>
  </file>
</nzb>`

func TestParse(t *testing.T) {
	files, err := Parse(strings.NewReader(sampleNzb))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	require.Len(t, f.Segments, 2)
	require.Equal(t, int64(1000000), f.TotalBytes())
	require.Equal(t, []string{"alt.binaries.test"}, f.Groups)
}
