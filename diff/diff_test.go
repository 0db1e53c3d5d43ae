package diff

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestLines(t *testing.T) {
	text1 := "<page#0>\n  <view#1>\n"
	text2 := "<page#0>\n  <view#1>\n  <text#2>\n"

	assert.True(t, Equal(Lines(text1, text1)))

	diffs := Lines(text1, text2)
	assert.False(t, Equal(diffs))
	assert.Len(t, diffs, 2)
	assert.Equal(t, "  <text#2>\n", diffs[1].Text)
}

func TestUnified(t *testing.T) {
	color.NoColor = true
	text1 := "<page#0>\n  <view#1>\n"
	text2 := "<page#0>\n  <text#1>\n"

	out := Unified(Lines(text1, text2))
	assert.Equal(t, "  <page#0>\n-   <view#1>\n+   <text#1>\n", out)
	assert.Equal(t, "", Unified(Lines("", "")))
}

func TestPatch(t *testing.T) {
	text1 := "<page#0>\n  <view#1>\n"
	text2 := "<page#0>\n  <view#1> id=\"target\"\n"

	patch := PatchString(text1, text2)
	assert.NotEmpty(t, patch)

	applied, err := PatchApplyString(text1, patch)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, text2, applied)

	_, err = PatchApplyString(text1, "@@ broken")
	assert.Error(t, err)
}
