package tree

import (
	"github.com/ngina/kvidx/kvindex/bloom"
	"github.com/ngina/kvidx/kvindex/page"
)

// insertLeaf inserts (key, item) into leaf node n, which is already
// resident and decoded. It returns whether n split and, if so, the first
// key of the freshly allocated right leaf and that leaf's page id.
func (t *Tree) insertLeaf(n *page.Node, key int32, item []byte) (bool, int32, int32, error) {
	for i := 0; i < int(n.Size); i++ {
		if n.Keys[i] == key {
			copy(n.Items[i], item)
			bloom.Rebuild((*bloom.Filter)(&n.Bloom), n.Keys, int(n.Size))
			return false, 0, 0, nil
		}
	}

	if int(n.Size) < t.layout.MaxKeys {
		pos := 0
		for pos < int(n.Size) && n.Keys[pos] < key {
			pos++
		}
		for i := int(n.Size); i > pos; i-- {
			n.Keys[i] = n.Keys[i-1]
			copy(n.Items[i], n.Items[i-1])
		}
		n.Keys[pos] = key
		copy(n.Items[pos], item)
		n.Size++
		bloom.Rebuild((*bloom.Filter)(&n.Bloom), n.Keys, int(n.Size))
		return false, 0, 0, nil
	}

	return t.splitLeaf(n, key, item)
}

// splitLeaf builds the temporary MaxKeys+1 ordered entry list described
// in spec.md's insert algorithm, keeps the first half in n, and moves the
// second half into a freshly allocated leaf spliced into the leaf chain
// right after n.
func (t *Tree) splitLeaf(n *page.Node, key int32, item []byte) (bool, int32, int32, error) {
	total := t.layout.MaxKeys + 1
	tKeys := make([]int32, total)
	tItems := make([][]byte, total)

	pos := 0
	for pos < int(n.Size) && n.Keys[pos] < key {
		pos++
	}
	for i := 0; i < pos; i++ {
		tKeys[i] = n.Keys[i]
		tItems[i] = n.Items[i]
	}
	tKeys[pos] = key
	tItems[pos] = item
	for i := pos; i < int(n.Size); i++ {
		tKeys[i+1] = n.Keys[i]
		tItems[i+1] = append([]byte(nil), n.Items[i]...)
	}

	mid := total / 2

	f2, id2, err := t.pool.NewPage()
	if err != nil {
		return false, 0, 0, err
	}
	right := page.NewNode(t.layout, true)
	rightCount := total - mid
	right.Size = int32(rightCount)
	for i := 0; i < rightCount; i++ {
		right.Keys[i] = tKeys[mid+i]
		copy(right.Items[i], tItems[mid+i])
	}
	right.NextLeaf = n.NextLeaf

	n.Size = int32(mid)
	for i := 0; i < mid; i++ {
		n.Keys[i] = tKeys[i]
		copy(n.Items[i], tItems[i])
	}
	n.NextLeaf = int32(id2)

	bloom.Rebuild((*bloom.Filter)(&n.Bloom), n.Keys, int(n.Size))
	bloom.Rebuild((*bloom.Filter)(&right.Bloom), right.Keys, int(right.Size))

	page.Encode(f2.Data, t.layout, right)
	t.pool.UnpinPage(id2, true)

	return true, right.Keys[0], int32(id2), nil
}
