/*
Package safety screens outgoing chat messages before they are persisted.

The pipeline applies, in order: the sensitive-word filter (rewrite and
audit), the friend gate for direct messages (with staff bypass), and service
card detection for direct messages that passed the gate.
*/
package safety

// maskRune replaces each rune of a matched sensitive term.
const maskRune = '*'

type trieNode struct {
	children map[rune]*trieNode
	terminal bool
}

// Filter matches sensitive terms against message bodies and rewrites them.
// Matching is rune-based so CJK terms work; at each position the longest
// registered term wins.
type Filter struct {
	root *trieNode
}

// NewFilter builds a filter from the given term list. Empty terms are ignored.
func NewFilter(words []string) *Filter {
	root := &trieNode{children: make(map[rune]*trieNode)}

	for _, word := range words {
		if word == "" {
			continue
		}
		node := root
		for _, r := range word {
			child, ok := node.children[r]
			if !ok {
				child = &trieNode{children: make(map[rune]*trieNode)}
				node.children[r] = child
			}
			node = child
		}
		node.terminal = true
	}

	return &Filter{root: root}
}

// Apply rewrites every sensitive term in body to mask runes and reports
// whether anything matched. The original body is not retained here; the
// pipeline hands it to the audit sink.
func (f *Filter) Apply(body string) (string, bool) {
	runes := []rune(body)
	flagged := false

	for i := 0; i < len(runes); {
		length := f.matchAt(runes[i:])
		if length == 0 {
			i++
			continue
		}

		for j := i; j < i+length; j++ {
			runes[j] = maskRune
		}
		flagged = true
		i += length
	}

	if !flagged {
		return body, false
	}
	return string(runes), true
}

// matchAt returns the length in runes of the longest term starting at the
// beginning of runes, or 0 when nothing matches.
func (f *Filter) matchAt(runes []rune) int {
	node := f.root
	longest := 0

	for i, r := range runes {
		child, ok := node.children[r]
		if !ok {
			break
		}
		node = child
		if node.terminal {
			longest = i + 1
		}
	}

	return longest
}
