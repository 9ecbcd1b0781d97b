package presentation

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
)

// DiffStates returns a line diff of two encoded state documents. Removed
// lines start with "- " and added lines with "+ "; unchanged lines are
// omitted. Equal documents yield "".
func DiffStates(before, after *domain.State) (string, error) {
	a, err := domain.EncodeState(before)
	if err != nil {
		return "", fmt.Errorf("encoding previous state: %w", err)
	}
	b, err := domain.EncodeState(after)
	if err != nil {
		return "", fmt.Errorf("encoding new state: %w", err)
	}
	return diffLines(string(a), string(b)), nil
}

func diffLines(before, after string) string {
	if before == after {
		return ""
	}

	// Diff whole lines so a changed endpoint shows as one -/+ pair.
	dmp := diffmatchpatch.New()
	charsA, charsB, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(charsA, charsB, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
