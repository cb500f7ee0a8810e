package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutputLines(t *testing.T) {
	out := "line1\r\n\r\nline2\nline3\rline4\nline5\nline6\n"

	lines := ParseOutputLines(out, 2)
	assert.Equal(t, []string{"line1", "line2"}, lines.HeadLines)
	assert.Equal(t, []string{"line5", "line6"}, lines.TailLines)

	short := ParseOutputLines("only\n", 3)
	assert.Equal(t, short.HeadLines, short.TailLines)
	assert.Equal(t, "head-lines: [only]", FormatOutputLines(short))

	assert.Empty(t, ParseOutputLines("\n\n", 3).HeadLines)
}

func TestFormatOutputLines(t *testing.T) {
	s := FormatOutputLines(OutputLines{
		HeadLines: []string{"a", "b"},
		TailLines: []string{"y", "z"},
	})
	assert.Equal(t, "head-lines: [a ⟩ b], tail-lines: [y ⟩ z]", s)
}
