package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Leaf derives the commitment leaf for one secret share of a partial-fill
// order: SHA-256 over the big-endian part index followed by the hashed secret.
func Leaf(index uint64, secretHash [32]byte) [32]byte {
	var packed [8 + 32]byte
	binary.BigEndian.PutUint64(packed[:8], index)
	copy(packed[8:], secretHash[:])
	return sha256.Sum256(packed[:])
}

// HashPair combines two nodes with the lexicographically smaller value first.
// The sorted ordering makes proof verification independent of which side of
// the tree a sibling came from.
func HashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var packed [64]byte
	copy(packed[:32], a[:])
	copy(packed[32:], b[:])
	return sha256.Sum256(packed[:])
}

// Verify folds the proof elements into the leaf using sorted-pair hashing and
// reports whether the accumulated hash equals the root.
func Verify(proof [][32]byte, root, leaf [32]byte) bool {
	computed := leaf
	for _, element := range proof {
		computed = HashPair(computed, element)
	}
	return computed == root
}

// Tree is a sorted-pair SHA-256 merkle tree over a fixed leaf set. Odd nodes
// are promoted to the next layer unchanged, so proofs for them carry no
// sibling at that level. Used by resolvers to commit to the secret shares of
// a partial-fill order and to produce redemption proofs.
type Tree struct {
	layers [][][32]byte
}

// NewTree builds the tree bottom-up from the supplied leaves. At least one
// leaf is required.
func NewTree(leaves [][32]byte) *Tree {
	if len(leaves) == 0 {
		return nil
	}
	layer := make([][32]byte, len(leaves))
	copy(layer, leaves)
	layers := [][][32]byte{layer}
	for len(layer) > 1 {
		next := make([][32]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, HashPair(layer[i], layer[i+1]))
			} else {
				next = append(next, layer[i])
			}
		}
		layers = append(layers, next)
		layer = next
	}
	return &Tree{layers: layers}
}

// Root returns the tree root, which doubles as the escrow's hashed-secret
// commitment for partial fills.
func (t *Tree) Root() [32]byte {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Proof returns the sibling path for the leaf at the given position.
func (t *Tree) Proof(index int) [][32]byte {
	if index < 0 || index >= len(t.layers[0]) {
		return nil
	}
	proof := make([][32]byte, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof
}
