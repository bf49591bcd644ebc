package par2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	var counts Counts
	var messages []string
	onMsg := func(level MessageLevel, text string) {
		messages = append(messages, string(level)+": "+text)
	}

	classify("File data1.bin is damaged", &counts, onMsg)
	classify("Missing: data2.bin", &counts, onMsg)
	classify("Filenames appear to be obfuscated", &counts, onMsg)
	classify("Repairing block 4 of 10", &counts, onMsg)
	classify("Need 3 more recovery blocks to repair", &counts, onMsg)

	assert.Equal(t, Counts{Damaged: 1, Missing: 1, Deobfuscated: 1, Repaired: 1}, counts)
	require.Len(t, messages, 5)
	assert.Equal(t, "Error: Not enough recovery data to repair", messages[4])
}

func TestSelectIndexFile(t *testing.T) {
	files := []string{"a.vol01+02.par2", "a.par2", "a.vol00+01.par2"}
	assert.Equal(t, "a.par2", SelectIndexFile(files))
}

func TestParseProgressLine(t *testing.T) {
	op, cur, tot, ok := parseProgressLine("Verifying: 42.5%")
	require.True(t, ok)
	assert.Equal(t, OpVerifying, op)
	assert.Equal(t, 42, cur)
	assert.Equal(t, 100, tot)

	_, _, _, ok = parseProgressLine("some unrelated line")
	assert.False(t, ok)
}
