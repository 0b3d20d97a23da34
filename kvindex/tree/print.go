package tree

import (
	"fmt"
	"io"

	"github.com/ngina/kvidx/kvindex/bloom"
	"github.com/ngina/kvidx/kvindex/page"
)

// PrintTree writes an indented diagnostic of the tree to w: one line per
// node, indented two spaces per level, showing its keys and — for leaves — the
// occupied Bloom bit count and the next-leaf pointer. Grounded on the
// teacher's box-drawing PrettyPrint, extended to surface Bloom occupancy
// and the leaf chain since those have no teacher analogue.
func (t *Tree) PrintTree(w io.Writer) error {
	if !t.hasRoot {
		fmt.Fprintln(w, "(empty)")
		return nil
	}
	return t.printNode(w, t.rootPageID, 0, "")
}

func (t *Tree) printNode(w io.Writer, pageID int32, depth int, prefix string) error {
	f, err := t.pool.FetchPage(int(pageID))
	if err != nil {
		return err
	}
	n := page.Decode(f.Data, t.layout)

	if n.IsLeaf {
		bits := bloomPopcount((*bloom.Filter)(&n.Bloom))
		fmt.Fprintf(w, "%sleaf[page=%d size=%d next=%d bloomBits=%d/256] keys=%v\n",
			prefix, pageID, n.Size, n.NextLeaf, bits, n.Keys[:n.Size])
		t.pool.UnpinPage(int(pageID), false)
		return nil
	}

	fmt.Fprintf(w, "%sinternal[page=%d size=%d] keys=%v\n", prefix, pageID, n.Size, n.Keys[:n.Size])
	children := make([]int32, n.Size+1)
	copy(children, n.Children[:n.Size+1])
	t.pool.UnpinPage(int(pageID), false)

	for _, c := range children {
		if err := checkChildID(c); err != nil {
			return err
		}
		if err := t.printNode(w, c, depth+1, prefix+"  "); err != nil {
			return err
		}
	}
	return nil
}

func bloomPopcount(f *bloom.Filter) int {
	count := 0
	for _, b := range f {
		for b != 0 {
			count += int(b & 1)
			b >>= 1
		}
	}
	return count
}
