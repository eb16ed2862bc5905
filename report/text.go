package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dargueta/blocksim"
)

// TextMap renders a device as rows of `width` characters, each prefixed with
// the number of its first block. Free blocks are '.', owned blocks show the
// first character of their owner's name.
func TextMap(states []blocksim.BlockState, width int) string {
	if width < 1 {
		width = BlocksPerRow
	}
	digits := len(fmt.Sprint(len(states)))

	var builder strings.Builder
	for start := 0; start < len(states); start += width {
		end := start + width
		if end > len(states) {
			end = len(states)
		}

		fmt.Fprintf(&builder, "%*d ", digits, start)
		for _, state := range states[start:end] {
			builder.WriteRune(stateRune(state))
		}
		builder.WriteByte('\n')
	}
	return builder.String()
}

func stateRune(state blocksim.BlockState) rune {
	owner, owned := state.Owner()
	if !owned {
		return '.'
	}
	r, _ := utf8.DecodeRuneInString(owner)
	return r
}
