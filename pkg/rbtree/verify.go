package rbtree

import (
	"errors"
	"fmt"
)

// Invariant violations reported by Verify.
var (
	ErrRootNotBlack = errors.New("root is not black")
	ErrRedViolation = errors.New("red node has a red child")
	ErrBlackHeight  = errors.New("unequal black-height")
	ErrOrder        = errors.New("keys out of order")
	ErrBrokenLink   = errors.New("broken parent link")
	ErrSizeMismatch = errors.New("node count does not match length")
)

// Verify checks every red-black and binary search tree invariant and
// returns the first violation found, or nil.
func (tree *Map[K, V]) Verify() error {
	if tree.root == 0 {
		if tree.count != 0 {
			return fmt.Errorf("%w: empty tree with length %d", ErrSizeMismatch, tree.count)
		}

		return nil
	}

	alloc := tree.storage()

	if alloc[tree.root].parent != 0 {
		return fmt.Errorf("%w: root has parent #%d", ErrBrokenLink, alloc[tree.root].parent)
	}

	if alloc[tree.root].color != black {
		return ErrRootNotBlack
	}

	checker := verifier[K, V]{tree: tree, alloc: alloc}

	_, err := checker.subtree(tree.root, 0, 0)
	if err != nil {
		return err
	}

	if checker.visited != tree.count {
		return fmt.Errorf("%w: reached %d nodes, length is %d", ErrSizeMismatch, checker.visited, tree.count)
	}

	return nil
}

type verifier[K, V any] struct {
	tree    *Map[K, V]
	alloc   []node[K, V]
	visited int
}

// subtree validates the subtree at nodeIdx whose keys must lie strictly
// between the keys of the lower and upper bound nodes (0 = unbounded), and
// returns its black-height counting null leaves as one.
func (checker *verifier[K, V]) subtree(nodeIdx, lower, upper uint32) (int, error) {
	if nodeIdx == 0 {
		return 1, nil
	}

	checker.visited++
	if checker.visited > checker.tree.count {
		return 0, fmt.Errorf("%w: more reachable nodes than length %d", ErrSizeMismatch, checker.tree.count)
	}

	nd := &checker.alloc[nodeIdx]
	if !nd.live {
		return 0, fmt.Errorf("%w: node #%d is not allocated", ErrBrokenLink, nodeIdx)
	}

	if lower != 0 && checker.tree.compare(checker.alloc[lower].key, nd.key) >= 0 {
		return 0, fmt.Errorf("%w: node #%d is not above node #%d", ErrOrder, nodeIdx, lower)
	}

	if upper != 0 && checker.tree.compare(nd.key, checker.alloc[upper].key) >= 0 {
		return 0, fmt.Errorf("%w: node #%d is not below node #%d", ErrOrder, nodeIdx, upper)
	}

	for _, child := range [2]uint32{nd.left, nd.right} {
		if child == 0 {
			continue
		}

		if checker.alloc[child].parent != nodeIdx {
			return 0, fmt.Errorf("%w: node #%d points to parent #%d instead of #%d",
				ErrBrokenLink, child, checker.alloc[child].parent, nodeIdx)
		}

		if nd.color == red && checker.alloc[child].color == red {
			return 0, fmt.Errorf("%w: node #%d and its child #%d", ErrRedViolation, nodeIdx, child)
		}
	}

	leftHeight, err := checker.subtree(nd.left, lower, nodeIdx)
	if err != nil {
		return 0, err
	}

	rightHeight, err := checker.subtree(nd.right, nodeIdx, upper)
	if err != nil {
		return 0, err
	}

	if leftHeight != rightHeight {
		return 0, fmt.Errorf("%w: node #%d has %d on the left and %d on the right",
			ErrBlackHeight, nodeIdx, leftHeight, rightHeight)
	}

	if nd.color == black {
		leftHeight++
	}

	return leftHeight, nil
}
