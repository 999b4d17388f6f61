// Package anchor implements the Merkle anchorer (C11): on a periodic tick it
// builds a binary Merkle tree over a window of audit-log entry hashes,
// requests an external timestamp for the root, and persists the resulting
// MerkleAnchor. It also derives and verifies per-entry Merkle proofs.
package anchor

import (
	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/gaterr"
)

// Position identifies which side of a hash-pairing a proof step's sibling
// hash sits on, relative to the node being proven.
type Position int

const (
	// SiblingLeft means the accumulated hash must be combined as
	// H(sibling || accumulated).
	SiblingLeft Position = iota
	// SiblingRight means the accumulated hash must be combined as
	// H(accumulated || sibling).
	SiblingRight
)

// ProofStep is one level's sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Hash     string   `json:"hash"`
	Position Position `json:"position"`
}

// Proof is a Merkle inclusion proof for one leaf within a window's tree.
type Proof struct {
	LeafHash string      `json:"leaf_hash"`
	Steps    []ProofStep `json:"steps"`
	Root     string      `json:"root"`
}

// BuildLevels constructs every level of the binary Merkle tree over leaves,
// leaves first. At each level, an odd trailing node is paired with itself
// to form its parent (spec.md §4.11), rather than being promoted unpaired.
func BuildLevels(leaves []string) [][]string {
	if len(leaves) == 0 {
		return nil
	}
	levels := make([][]string, 0, 8)
	current := append([]string(nil), leaves...)
	levels = append(levels, current)
	for len(current) > 1 {
		next := make([]string, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, crypto.PairHash(current[i], current[i+1]))
			} else {
				next = append(next, crypto.PairHash(current[i], current[i]))
			}
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

// Root computes the Merkle root over leaves.
func Root(leaves []string) (string, error) {
	if len(leaves) == 0 {
		return "", gaterr.New(gaterr.KindInvariant, "cannot build a merkle tree from zero leaves")
	}
	levels := BuildLevels(leaves)
	top := levels[len(levels)-1]
	return top[0], nil
}

// GenerateProof derives the inclusion proof for leaves[index] by walking the
// tree from leaf to root, re-applying the same odd-leaf self-duplication
// rule used at construction and recording, at every level, which side the
// sibling occupies. spec.md §9 flags an observable off-by-one in the
// original proof derivation when a duplicated trailing node is involved;
// tracking sibling position explicitly (rather than assuming the sibling is
// always the node to its right) is how this implementation avoids it.
func GenerateProof(leaves []string, index int) (Proof, error) {
	if index < 0 || index >= len(leaves) {
		return Proof{}, gaterr.New(gaterr.KindInvariant, "leaf index out of range for merkle proof")
	}
	levels := BuildLevels(leaves)

	steps := make([]ProofStep, 0, len(levels)-1)
	idx := index
	for lvl := 0; lvl < len(levels)-1; lvl++ {
		level := levels[lvl]
		if idx%2 == 0 {
			siblingIdx := idx + 1
			if siblingIdx >= len(level) {
				siblingIdx = idx // odd trailing node paired with itself
			}
			steps = append(steps, ProofStep{Hash: level[siblingIdx], Position: SiblingRight})
		} else {
			steps = append(steps, ProofStep{Hash: level[idx-1], Position: SiblingLeft})
		}
		idx /= 2
	}

	return Proof{
		LeafHash: leaves[index],
		Steps:    steps,
		Root:     levels[len(levels)-1][0],
	}, nil
}

// VerifyProof recomputes the root from p.LeafHash and p.Steps and reports
// whether it matches p.Root.
func VerifyProof(p Proof) bool {
	current := p.LeafHash
	for _, step := range p.Steps {
		switch step.Position {
		case SiblingLeft:
			current = crypto.PairHash(step.Hash, current)
		default:
			current = crypto.PairHash(current, step.Hash)
		}
	}
	return current == p.Root
}
