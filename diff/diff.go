package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// Lines compare two texts line by line
func Lines(text1, text2 string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(text1, text2)
	diffs := dmp.DiffMain(chars1, chars2, false)
	return dmp.DiffCharsToLines(diffs, lines)
}

// Equal check if the diffs carry no change
func Equal(diffs []diffmatchpatch.Diff) bool {
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			return false
		}
	}
	return true
}

// PatchString the text patch turning text1 into text2
func PatchString(text1, text2 string) string {
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(text1, Lines(text1, text2))
	return dmp.PatchToText(patches)
}

// PatchApplyString apply a text formatted patch, every hunk must apply
func PatchApplyString(text string, patch string) (string, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", err
	}

	applied, results := dmp.PatchApply(patches, text)
	for i, ok := range results {
		if !ok {
			return "", fmt.Errorf("patch hunk %d does not apply", i)
		}
	}
	return applied, nil
}

// Unified render the line diffs, removed lines are prefixed with "- " (red), added lines with "+ " (green)
func Unified(diffs []diffmatchpatch.Diff) string {
	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)

	var builder strings.Builder
	for _, d := range diffs {
		for _, line := range split(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				builder.WriteString(removed.Sprint("- " + line))
			case diffmatchpatch.DiffInsert:
				builder.WriteString(added.Sprint("+ " + line))
			default:
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
	}
	return builder.String()
}

func split(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}
