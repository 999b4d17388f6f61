package anchor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/anchor"
	"github.com/forgepolicy/gatekeeper/crypto"
)

func leafHashes(n int) []string {
	leaves := make([]string, n)
	for i := range leaves {
		leaves[i] = crypto.HashString([]byte{byte(i)})
	}
	return leaves
}

func TestRootStableForEvenLeafCount(t *testing.T) {
	leaves := leafHashes(4)
	root1, err := anchor.Root(leaves)
	require.NoError(t, err)
	root2, err := anchor.Root(leaves)
	require.NoError(t, err)
	require.Equal(t, root1, root2)
}

func TestOddLeafCountDuplicatesTrailingNode(t *testing.T) {
	leaves := leafHashes(5)
	levels := anchor.BuildLevels(leaves)
	// level 0 has 5 leaves; level 1 must have 3 nodes (pairs 0-1, 2-3, and
	// the trailing leaf paired with itself).
	require.Len(t, levels[1], 3)
	require.Equal(t, crypto.PairHash(leaves[4], leaves[4]), levels[1][2])
}

func TestGenerateAndVerifyProofForEveryLeaf(t *testing.T) {
	leaves := leafHashes(5)
	root, err := anchor.Root(leaves)
	require.NoError(t, err)

	for i := range leaves {
		proof, err := anchor.GenerateProof(leaves, i)
		require.NoError(t, err)
		require.Equal(t, leaves[i], proof.LeafHash)
		require.Equal(t, root, proof.Root)
		require.True(t, anchor.VerifyProof(proof), "proof for leaf %d must verify", i)
	}
}

func TestVerifyProofRejectsTamperedSibling(t *testing.T) {
	leaves := leafHashes(8)
	proof, err := anchor.GenerateProof(leaves, 3)
	require.NoError(t, err)
	require.True(t, anchor.VerifyProof(proof))

	proof.Steps[0].Hash = crypto.HashString([]byte("tampered"))
	require.False(t, anchor.VerifyProof(proof))
}

func TestGenerateProofOutOfRange(t *testing.T) {
	leaves := leafHashes(3)
	_, err := anchor.GenerateProof(leaves, 5)
	require.Error(t, err)
}

func TestRootRejectsEmptyLeafSet(t *testing.T) {
	_, err := anchor.Root(nil)
	require.Error(t, err)
}
