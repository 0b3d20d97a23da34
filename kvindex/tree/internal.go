package tree

import (
	"github.com/ngina/kvidx/kvindex/bloom"
	"github.com/ngina/kvidx/kvindex/page"
)

// insertInternalEntry inserts the (newKey, newRight) pair propagated from
// a child split into internal node n at position idx (the index of the
// child that split). It returns whether n itself split.
func (t *Tree) insertInternalEntry(n *page.Node, idx int, newKey int32, newRight int32) (bool, int32, int32, error) {
	if int(n.Size) < t.layout.MaxKeys {
		for i := int(n.Size); i > idx; i-- {
			n.Keys[i] = n.Keys[i-1]
		}
		n.Keys[idx] = newKey
		for i := int(n.Size) + 1; i > idx+1; i-- {
			n.Children[i] = n.Children[i-1]
		}
		n.Children[idx+1] = newRight
		n.Size++
		return false, 0, 0, nil
	}
	return t.splitInternal(n, idx, newKey, newRight)
}

// splitInternal builds the temporary MaxKeys+1 key / MaxKeys+2 child
// arrays described in spec.md, promotes the middle key, and moves the
// back half of the entries into a freshly allocated internal node.
//
// Reproduces the reference's child-copy boundary exactly (open question
// 1 in spec.md §9): the left node keeps children [0, mid] (mid+1
// entries, i.e. children[j] = tChild[j] for j < mid plus the extra
// children[mid] = tChild[mid]); the right node's children start at
// tChild[mid+1].
func (t *Tree) splitInternal(n *page.Node, idx int, newKey int32, newRight int32) (bool, int32, int32, error) {
	maxKeys := t.layout.MaxKeys
	tKeys := make([]int32, maxKeys+1)
	tChildren := make([]int32, maxKeys+2)

	for i := 0; i < idx; i++ {
		tKeys[i] = n.Keys[i]
	}
	tKeys[idx] = newKey
	for i := idx; i < int(n.Size); i++ {
		tKeys[i+1] = n.Keys[i]
	}

	for i := 0; i <= idx; i++ {
		tChildren[i] = n.Children[i]
	}
	tChildren[idx+1] = newRight
	for i := idx + 1; i <= int(n.Size); i++ {
		tChildren[i+1] = n.Children[i]
	}

	mid := (maxKeys + 1) / 2
	promoted := tKeys[mid]

	n.Size = int32(mid)
	for i := 0; i < mid; i++ {
		n.Keys[i] = tKeys[i]
	}
	for i := 0; i <= mid; i++ {
		n.Children[i] = tChildren[i]
	}
	for i := mid + 1; i < t.layout.MaxChildren; i++ {
		n.Children[i] = -1
	}

	f2, id2, err := t.pool.NewPage()
	if err != nil {
		return false, 0, 0, err
	}
	right := page.NewNode(t.layout, false)
	rightKeyCount := (maxKeys + 1) - (mid + 1)
	right.Size = int32(rightKeyCount)
	for i := 0; i < rightKeyCount; i++ {
		right.Keys[i] = tKeys[mid+1+i]
	}
	for i := 0; i <= rightKeyCount; i++ {
		right.Children[i] = tChildren[mid+1+i]
	}

	page.Encode(f2.Data, t.layout, right)
	t.pool.UnpinPage(id2, true)

	return true, promoted, int32(id2), nil
}

// repairUnderflow resolves an under-full child at parent.Children[idx] by
// borrowing from a sibling with slack, or merging with a sibling
// otherwise (preferring the left sibling when both exist), per spec.md's
// repair order. parent is already resident and pinned by the caller and
// is mutated in place; the caller is responsible for re-encoding and
// unpinning it afterward.
func (t *Tree) repairUnderflow(parent *page.Node, idx int) error {
	childID := parent.Children[idx]
	cf, err := t.pool.FetchPage(int(childID))
	if err != nil {
		return err
	}
	child := page.Decode(cf.Data, t.layout)

	if idx > 0 {
		leftID := parent.Children[idx-1]
		lf, err := t.pool.FetchPage(int(leftID))
		if err != nil {
			t.pool.UnpinPage(int(childID), false)
			return err
		}
		left := page.Decode(lf.Data, t.layout)
		if int(left.Size) > t.layout.Order {
			borrowFromLeft(left, child, parent, idx)
			page.Encode(lf.Data, t.layout, left)
			page.Encode(cf.Data, t.layout, child)
			t.pool.UnpinPage(int(leftID), true)
			t.pool.UnpinPage(int(childID), true)
			return nil
		}
		t.pool.UnpinPage(int(leftID), false)
	}

	if idx < int(parent.Size) {
		rightID := parent.Children[idx+1]
		rf, err := t.pool.FetchPage(int(rightID))
		if err != nil {
			t.pool.UnpinPage(int(childID), false)
			return err
		}
		right := page.Decode(rf.Data, t.layout)
		if int(right.Size) > t.layout.Order {
			borrowFromRight(child, right, parent, idx)
			page.Encode(rf.Data, t.layout, right)
			page.Encode(cf.Data, t.layout, child)
			t.pool.UnpinPage(int(rightID), true)
			t.pool.UnpinPage(int(childID), true)
			return nil
		}
		t.pool.UnpinPage(int(rightID), false)
	}

	if idx > 0 {
		leftID := parent.Children[idx-1]
		lf, err := t.pool.FetchPage(int(leftID))
		if err != nil {
			t.pool.UnpinPage(int(childID), false)
			return err
		}
		left := page.Decode(lf.Data, t.layout)
		mergeNodes(left, child, parent, idx-1)
		zeroPage(cf.Data)
		t.pool.UnpinPage(int(childID), true)
		page.Encode(lf.Data, t.layout, left)
		t.pool.UnpinPage(int(leftID), true)
		return nil
	}

	rightID := parent.Children[idx+1]
	rf, err := t.pool.FetchPage(int(rightID))
	if err != nil {
		t.pool.UnpinPage(int(childID), false)
		return err
	}
	right := page.Decode(rf.Data, t.layout)
	mergeNodes(child, right, parent, idx)
	zeroPage(rf.Data)
	t.pool.UnpinPage(int(rightID), true)
	page.Encode(cf.Data, t.layout, child)
	t.pool.UnpinPage(int(childID), true)
	return nil
}

func zeroPage(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// borrowFromLeft moves one entry from left across the parent separator
// at idx-1 into child (the node at parent.Children[idx]).
func borrowFromLeft(left, child, parent *page.Node, idx int) {
	if child.IsLeaf {
		lastIdx := int(left.Size) - 1
		for i := int(child.Size); i > 0; i-- {
			child.Keys[i] = child.Keys[i-1]
			copy(child.Items[i], child.Items[i-1])
		}
		child.Keys[0] = left.Keys[lastIdx]
		copy(child.Items[0], left.Items[lastIdx])
		child.Size++
		left.Size--
		parent.Keys[idx-1] = child.Keys[0]
		rebuildBloomOf(child)
		rebuildBloomOf(left)
		return
	}

	for i := int(child.Size); i > 0; i-- {
		child.Keys[i] = child.Keys[i-1]
	}
	child.Keys[0] = parent.Keys[idx-1]
	for i := int(child.Size) + 1; i > 0; i-- {
		child.Children[i] = child.Children[i-1]
	}
	child.Children[0] = left.Children[left.Size]
	child.Size++

	parent.Keys[idx-1] = left.Keys[left.Size-1]
	left.Size--
	left.Children[int(left.Size)+1] = -1
}

// borrowFromRight moves one entry from right across the parent separator
// at idx into child (the node at parent.Children[idx]).
func borrowFromRight(child, right, parent *page.Node, idx int) {
	if child.IsLeaf {
		child.Keys[child.Size] = right.Keys[0]
		copy(child.Items[child.Size], right.Items[0])
		child.Size++
		for i := 0; i < int(right.Size)-1; i++ {
			right.Keys[i] = right.Keys[i+1]
			copy(right.Items[i], right.Items[i+1])
		}
		right.Size--
		parent.Keys[idx] = right.Keys[0]
		rebuildBloomOf(child)
		rebuildBloomOf(right)
		return
	}

	child.Keys[child.Size] = parent.Keys[idx]
	child.Children[child.Size+1] = right.Children[0]
	child.Size++

	parent.Keys[idx] = right.Keys[0]
	for i := 0; i < int(right.Size)-1; i++ {
		right.Keys[i] = right.Keys[i+1]
	}
	for i := 0; i < int(right.Size); i++ {
		right.Children[i] = right.Children[i+1]
	}
	right.Size--
	right.Children[int(right.Size)+1] = -1
}

// mergeNodes merges right into left, removing the parent separator at
// sepIdx (the key between them) and the corresponding child pointer.
// right is left empty/stale; its page is zeroed by the caller.
func mergeNodes(left, right, parent *page.Node, sepIdx int) {
	if left.IsLeaf {
		base := int(left.Size)
		for i := 0; i < int(right.Size); i++ {
			left.Keys[base+i] = right.Keys[i]
			copy(left.Items[base+i], right.Items[i])
		}
		left.Size += right.Size
		left.NextLeaf = right.NextLeaf
		rebuildBloomOf(left)
	} else {
		oldLeftSize := int(left.Size)
		left.Keys[oldLeftSize] = parent.Keys[sepIdx]
		for i := 0; i < int(right.Size); i++ {
			left.Keys[oldLeftSize+1+i] = right.Keys[i]
		}
		for i := 0; i <= int(right.Size); i++ {
			left.Children[oldLeftSize+1+i] = right.Children[i]
		}
		left.Size = int32(oldLeftSize + 1 + int(right.Size))
	}

	for i := sepIdx; i < int(parent.Size)-1; i++ {
		parent.Keys[i] = parent.Keys[i+1]
	}
	for i := sepIdx + 1; i < int(parent.Size); i++ {
		parent.Children[i] = parent.Children[i+1]
	}
	parent.Size--
	parent.Children[parent.Size+1] = -1
}

func rebuildBloomOf(n *page.Node) {
	bloom.Rebuild((*bloom.Filter)(&n.Bloom), n.Keys, int(n.Size))
}
