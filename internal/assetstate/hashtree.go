package assetstate

import (
	"crypto/sha256"
	"sort"
)

// Node is one node of a labeled hash tree, following the same shape the
// replica uses for certified variables: Empty, Fork, Labeled, Leaf, and
// Pruned (a stand-in hash for a subtree a witness doesn't need to reveal).
// Domain-separated hashing (the "ic-hashtree-*" prefixes) keeps a leaf's
// hash from colliding with a fork's hash over the same bytes.
type Node interface {
	hash() [32]byte
	cbor() any
}

type emptyNode struct{}

func (emptyNode) hash() [32]byte { return domainHash("ic-hashtree-empty") }
func (emptyNode) cbor() any      { return []any{uint64(0)} }

type leafNode struct{ value []byte }

func (n leafNode) hash() [32]byte { return domainHash("ic-hashtree-leaf", n.value) }
func (n leafNode) cbor() any      { return []any{uint64(3), n.value} }

type prunedNode struct{ digest [32]byte }

func (n prunedNode) hash() [32]byte { return n.digest }
func (n prunedNode) cbor() any      { return []any{uint64(4), n.digest[:]} }

type forkNode struct{ left, right Node }

func (n forkNode) hash() [32]byte {
	l, r := n.left.hash(), n.right.hash()
	return domainHash("ic-hashtree-fork", l[:], r[:])
}
func (n forkNode) cbor() any {
	return []any{uint64(1), n.left.cbor(), n.right.cbor()}
}

type labeledNode struct {
	label []byte
	sub   Node
}

func (n labeledNode) hash() [32]byte {
	h := n.sub.hash()
	return domainHash("ic-hashtree-labeled", n.label, h[:])
}
func (n labeledNode) cbor() any {
	return []any{uint64(2), n.label, n.sub.cbor()}
}

func domainHash(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{byte(len(domain))})
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// trieNode is the mutable working representation of the tree: a path of
// string labels leads to either an internal node (more children) or a
// leaf (raw bytes). It is converted to the immutable Node shape (and
// hashed, or pruned into a witness) on demand.
type trieNode struct {
	children map[string]*trieNode
	hasLeaf  bool
	leaf     []byte
}

func newTrieNode() *trieNode {
	return &trieNode{children: map[string]*trieNode{}}
}

// Trie is a nested-key Merkle tree: AssetHashes in §3.2, shared by both
// the v1 (`http_assets`) and v2 (`http_expr`) certification layouts.
type Trie struct {
	root *trieNode
}

// NewTrie returns an empty hash tree.
func NewTrie() *Trie { return &Trie{root: newTrieNode()} }

// Set inserts or overwrites the leaf value at path, creating intermediate
// nodes as needed.
func (t *Trie) Set(path []string, value []byte) {
	n := t.root
	for _, seg := range path {
		child, ok := n.children[seg]
		if !ok {
			child = newTrieNode()
			n.children[seg] = child
		}
		n = child
	}
	n.hasLeaf = true
	n.leaf = value
	n.children = map[string]*trieNode{}
}

// Delete removes the leaf at path (a no-op if absent) and prunes any
// intermediate nodes left with no children and no leaf.
func (t *Trie) Delete(path []string) {
	deleteRec(t.root, path)
}

func deleteRec(n *trieNode, path []string) bool {
	if len(path) == 0 {
		n.hasLeaf = false
		n.leaf = nil
		return len(n.children) == 0
	}
	child, ok := n.children[path[0]]
	if !ok {
		return false
	}
	if deleteRec(child, path[1:]) {
		delete(n.children, path[0])
	}
	return len(n.children) == 0 && !n.hasLeaf
}

// RootHash returns the hash of the whole tree, equivalent to recomputing
// the certificate's tree hash after every mutation.
func (t *Trie) RootHash() [32]byte {
	return toNode(t.root, nil).hash()
}

// toNode converts a trieNode into the immutable Node shape, collapsing
// children not on any path in keep (nil keep means keep everything) into
// Pruned(hash).
func toNode(n *trieNode, keep map[string]bool) Node {
	if n.hasLeaf && len(n.children) == 0 {
		return leafNode{value: n.leaf}
	}
	labels := make([]string, 0, len(n.children))
	for l := range n.children {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var nodes []Node
	for _, l := range labels {
		child := n.children[l]
		var sub Node
		if keep == nil || keep[l] {
			sub = toNode(child, nil)
		} else {
			sub = prunedNode{digest: toNode(child, nil).hash()}
		}
		nodes = append(nodes, labeledNode{label: []byte(l), sub: sub})
	}
	if n.hasLeaf {
		nodes = append(nodes, leafNode{value: n.leaf})
	}
	if len(nodes) == 0 {
		return emptyNode{}
	}
	return foldFork(nodes)
}

func foldFork(nodes []Node) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	mid := len(nodes) / 2
	return forkNode{left: foldFork(nodes[:mid]), right: foldFork(nodes[mid:])}
}

// Witness returns a pruned copy of the tree that proves the value (or
// absence) at path while hiding the content of every sibling subtree not
// needed to verify it. Witness(paths...) proves several paths in one
// structure, reusing shared ancestors (used for the index-fallback
// witness: "no asset at requested path AND index.html present").
func (t *Trie) Witness(paths ...[]string) Node {
	return witnessRec(t.root, paths)
}

func witnessRec(n *trieNode, paths [][]string) Node {
	// Partition remaining paths by their first segment.
	byFirst := map[string][][]string{}
	wantsLeafHere := false
	for _, p := range paths {
		if len(p) == 0 {
			wantsLeafHere = true
			continue
		}
		byFirst[p[0]] = append(byFirst[p[0]], p[1:])
	}

	labels := make([]string, 0, len(n.children))
	for l := range n.children {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var nodes []Node
	for _, l := range labels {
		child := n.children[l]
		if rest, ok := byFirst[l]; ok {
			nodes = append(nodes, labeledNode{label: []byte(l), sub: witnessRec(child, rest)})
		} else {
			nodes = append(nodes, labeledNode{label: []byte(l), sub: prunedNode{digest: toNode(child, nil).hash()}})
		}
	}
	if n.hasLeaf {
		if wantsLeafHere {
			nodes = append(nodes, leafNode{value: n.leaf})
		} else {
			nodes = append(nodes, prunedNode{digest: leafNode{value: n.leaf}.hash()})
		}
	} else if wantsLeafHere && len(n.children) == 0 {
		// Proves absence: the queried position exists as an empty node.
		nodes = append(nodes, emptyNode{})
	}
	if len(nodes) == 0 {
		return emptyNode{}
	}
	return foldFork(nodes)
}
