package executor

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// maxDiffLines caps the rendered diff; beyond this the outcome omits it
// rather than flooding the transcript.
const maxDiffLines = 400

// lineDiff renders a line-oriented diff between two file contents for
// display alongside a create_update outcome. Returns "" when the contents
// are equal or the diff is too large to be useful.
func lineDiff(before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	count := 0
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			prefix = "  "
		}
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
			count++
			if count > maxDiffLines {
				return ""
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
