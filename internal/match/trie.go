// Package match implements rule-candidate discovery (a suffix trie) and the
// regex-based matcher that turns a (rule, name) pair into a concrete set of
// captured stems (spec §4.2 "Matching").
package match

import "lmake/internal/rule"

// Trie indexes compiled rules by the literal suffix of their target
// patterns so that, given a node name, the set of rules that could
// possibly produce it is found in O(len(name)) rather than by scanning
// every rule (spec §4.2: "a suffix trie indexed by the pattern suffix
// produces a bounded set of candidate RuleTgts").
type Trie struct {
	root *trieNode
}

type trieNode struct {
	children map[byte]*trieNode
	targets  []rule.RuleTgt
}

// NewTrie returns an empty Trie.
func NewTrie() *Trie { return &Trie{root: &trieNode{}} }

// Insert registers tgt under suffix: any name ending in suffix becomes a
// candidate for tgt.
func (t *Trie) Insert(suffix string, tgt rule.RuleTgt) {
	n := t.root
	for i := len(suffix) - 1; i >= 0; i-- {
		b := suffix[i]
		if n.children == nil {
			n.children = make(map[byte]*trieNode)
		}
		child, ok := n.children[b]
		if !ok {
			child = &trieNode{}
			n.children[b] = child
		}
		n = child
	}
	n.targets = append(n.targets, tgt)
}

// CandidatesFor returns every RuleTgt registered under a suffix of name,
// in no particular order (the caller, internal/match.Matcher, applies
// priority ordering).
func (t *Trie) CandidatesFor(name string) []rule.RuleTgt {
	var out []rule.RuleTgt
	n := t.root
	out = append(out, n.targets...)
	for i := len(name) - 1; i >= 0; i-- {
		child, ok := n.children[name[i]]
		if !ok {
			break
		}
		out = append(out, child.targets...)
		n = child
	}
	return out
}
