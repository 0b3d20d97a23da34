// Package tree implements the disk-resident B+ tree engine: the single
// "hard part" of the index. It is single-writer and synchronous (no
// internal parallelism, no suspension points besides buffer-pool-driven
// file I/O), and every mutation acquires pages through a buffer.Pool and
// balances pins on every exit path — a fetch always has a matching unpin,
// with dirtyHint true exactly when the page's bytes were modified.
//
// The tree stores opaque, fixed-width payloads keyed by a 32-bit integer;
// the key itself is assumed pre-encoded (see kvindex/keyenc for the
// name-to-key mapping used by the facade package). Duplicate keys
// silently overwrite on insert; this is not an error.
package tree

import (
	"log"

	"github.com/ngina/kvidx/kvindex/bloom"
	"github.com/ngina/kvidx/kvindex/buffer"
	"github.com/ngina/kvidx/kvindex/errs"
	"github.com/ngina/kvidx/kvindex/page"
)

// maxSafeDepth bounds traversal depth as a corruption guard: with
// order >= 1 a real tree over any practical file could not exceed this,
// so hitting it indicates a cycle or a dangling child pointer rather than
// a legitimately deep tree.
const maxSafeDepth = 64

// Tree is a single-writer, disk-resident B+ tree keyed on 32-bit
// integers with fixed-width leaf payloads and a per-leaf Bloom filter.
type Tree struct {
	pool       *buffer.Pool
	layout     page.Layout
	rootPageID int32
	hasRoot    bool
	logger     *log.Logger
}

// Open constructs or loads a tree over pool using layout. If the backing
// file is empty, page 0 is allocated and initialized as an empty header
// (rootPageId = -1, hasRoot = false). Otherwise the existing header is
// loaded from page 0.
func Open(pool *buffer.Pool, layout page.Layout, logger *log.Logger) (*Tree, error) {
	if logger == nil {
		logger = log.Default()
	}
	t := &Tree{pool: pool, layout: layout, rootPageID: -1, logger: logger}

	if pool.NumPages() == 0 {
		f, id, err := pool.NewPage()
		if err != nil {
			return nil, err
		}
		if id != page.HeaderPageID {
			return nil, errs.NewCorruptionError("first allocated page was not the reserved header page")
		}
		page.EncodeHeader(f.Data, page.Header{RootPageID: -1, HasRoot: false})
		pool.UnpinPage(id, true)
		return t, nil
	}

	f, err := pool.FetchPage(page.HeaderPageID)
	if err != nil {
		return nil, err
	}
	h := page.DecodeHeader(f.Data)
	pool.UnpinPage(page.HeaderPageID, false)
	t.rootPageID = h.RootPageID
	t.hasRoot = h.HasRoot
	return t, nil
}

// Close flushes the underlying buffer pool.
func (t *Tree) Close() error { return t.pool.Close() }

// Stats exposes the underlying buffer pool's side-channel counters.
func (t *Tree) Stats() buffer.Stats { return t.pool.Stats() }

func (t *Tree) persistHeader() error {
	f, err := t.pool.FetchPage(page.HeaderPageID)
	if err != nil {
		return err
	}
	page.EncodeHeader(f.Data, page.Header{RootPageID: t.rootPageID, HasRoot: t.hasRoot})
	t.pool.UnpinPage(page.HeaderPageID, true)
	return nil
}

// routeIndex finds the smallest i such that key < n.Keys[i] among the
// node's size meaningful separators; if none, i = size. Equivalently:
// scan while key >= keys[idx].
func routeIndex(n *page.Node, key int32) int {
	idx := 0
	for idx < int(n.Size) && key >= n.Keys[idx] {
		idx++
	}
	return idx
}

func checkChildID(id int32) error {
	if id <= 0 {
		return errs.NewCorruptionError("encountered invalid child page id during traversal")
	}
	return nil
}

// Insert upserts (key, item) into the tree. item must be exactly
// layout.ItemSize bytes. On an existing key the payload is overwritten;
// this is not an error.
func (t *Tree) Insert(key int32, item []byte) error {
	if len(item) != t.layout.ItemSize {
		return errs.NewCorruptionError("item size does not match tree's configured item size")
	}

	if !t.hasRoot {
		f, id, err := t.pool.NewPage()
		if err != nil {
			return err
		}
		leaf := page.NewNode(t.layout, true)
		leaf.Keys[0] = key
		copy(leaf.Items[0], item)
		leaf.Size = 1
		bloom.Rebuild((*bloom.Filter)(&leaf.Bloom), leaf.Keys, int(leaf.Size))
		page.Encode(f.Data, t.layout, leaf)
		t.pool.UnpinPage(id, true)

		t.rootPageID = int32(id)
		t.hasRoot = true
		return t.persistHeader()
	}

	split, promoted, newRight, err := t.insertInto(t.rootPageID, key, item)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}

	f, id, err := t.pool.NewPage()
	if err != nil {
		return err
	}
	root := page.NewNode(t.layout, false)
	root.Keys[0] = promoted
	root.Children[0] = t.rootPageID
	root.Children[1] = newRight
	root.Size = 1
	page.Encode(f.Data, t.layout, root)
	t.pool.UnpinPage(id, true)

	t.rootPageID = int32(id)
	return t.persistHeader()
}

// insertInto recursively descends from pageID, returning whether the
// visited node split and, if so, the key promoted to the parent and the
// page id of the freshly allocated right sibling.
func (t *Tree) insertInto(pageID int32, key int32, item []byte) (bool, int32, int32, error) {
	f, err := t.pool.FetchPage(int(pageID))
	if err != nil {
		return false, 0, 0, err
	}
	n := page.Decode(f.Data, t.layout)

	if n.IsLeaf {
		split, promoted, newRight, err := t.insertLeaf(n, key, item)
		if err != nil {
			t.pool.UnpinPage(int(pageID), false)
			return false, 0, 0, err
		}
		page.Encode(f.Data, t.layout, n)
		t.pool.UnpinPage(int(pageID), true)
		return split, promoted, newRight, nil
	}

	idx := routeIndex(n, key)
	childID := n.Children[idx]
	if err := checkChildID(childID); err != nil {
		t.pool.UnpinPage(int(pageID), false)
		return false, 0, 0, err
	}

	childSplit, childPromoted, childNewRight, err := t.insertInto(childID, key, item)
	if err != nil {
		t.pool.UnpinPage(int(pageID), false)
		return false, 0, 0, err
	}
	if !childSplit {
		t.pool.UnpinPage(int(pageID), false)
		return false, 0, 0, nil
	}

	split, promoted, newRight, err := t.insertInternalEntry(n, idx, childPromoted, childNewRight)
	if err != nil {
		t.pool.UnpinPage(int(pageID), false)
		return false, 0, 0, err
	}
	page.Encode(f.Data, t.layout, n)
	t.pool.UnpinPage(int(pageID), true)
	return split, promoted, newRight, nil
}

// Search performs a point lookup. It consults the target leaf's Bloom
// filter first and skips the linear scan on a negative result.
func (t *Tree) Search(key int32) ([]byte, bool, error) {
	return t.search(key, true)
}

// SearchWithoutBloom performs the same lookup but skips the Bloom
// filter, for A/B measurement against Search.
func (t *Tree) SearchWithoutBloom(key int32) ([]byte, bool, error) {
	return t.search(key, false)
}

func (t *Tree) search(key int32, useBloom bool) ([]byte, bool, error) {
	if !t.hasRoot {
		return nil, false, nil
	}
	pid := t.rootPageID
	depth := 0
	for {
		depth++
		if depth > maxSafeDepth {
			return nil, false, errs.NewCorruptionError("traversal exceeded safety depth bound")
		}
		f, err := t.pool.FetchPage(int(pid))
		if err != nil {
			return nil, false, err
		}
		n := page.Decode(f.Data, t.layout)

		if n.IsLeaf {
			if useBloom {
				bf := (*bloom.Filter)(&n.Bloom)
				if !bf.PossiblyContains(key) {
					t.pool.UnpinPage(int(pid), false)
					return nil, false, nil
				}
			}
			var found bool
			var out []byte
			for i := 0; i < int(n.Size); i++ {
				if n.Keys[i] == key {
					out = append([]byte(nil), n.Items[i]...)
					found = true
					break
				}
			}
			t.pool.UnpinPage(int(pid), false)
			return out, found, nil
		}

		idx := routeIndex(n, key)
		child := n.Children[idx]
		t.pool.UnpinPage(int(pid), false)
		if err := checkChildID(child); err != nil {
			return nil, false, err
		}
		pid = child
	}
}

// leafFor returns the page id of the leaf that would contain key.
func (t *Tree) leafFor(key int32) (int32, error) {
	pid := t.rootPageID
	depth := 0
	for {
		depth++
		if depth > maxSafeDepth {
			return 0, errs.NewCorruptionError("traversal exceeded safety depth bound")
		}
		f, err := t.pool.FetchPage(int(pid))
		if err != nil {
			return 0, err
		}
		n := page.Decode(f.Data, t.layout)
		if n.IsLeaf {
			t.pool.UnpinPage(int(pid), false)
			return pid, nil
		}
		idx := routeIndex(n, key)
		child := n.Children[idx]
		t.pool.UnpinPage(int(pid), false)
		if err := checkChildID(child); err != nil {
			return 0, err
		}
		pid = child
	}
}

// FirstLeaf walks the leftmost child chain from the root and returns the
// page id of the leftmost leaf. Used to start an in-order leaf scan.
func (t *Tree) FirstLeaf() (int32, error) {
	if !t.hasRoot {
		return -1, nil
	}
	pid := t.rootPageID
	depth := 0
	for {
		depth++
		if depth > maxSafeDepth {
			return 0, errs.NewCorruptionError("traversal exceeded safety depth bound")
		}
		f, err := t.pool.FetchPage(int(pid))
		if err != nil {
			return 0, err
		}
		n := page.Decode(f.Data, t.layout)
		if n.IsLeaf {
			t.pool.UnpinPage(int(pid), false)
			return pid, nil
		}
		child := n.Children[0]
		t.pool.UnpinPage(int(pid), false)
		if err := checkChildID(child); err != nil {
			return 0, err
		}
		pid = child
	}
}

// RangeSearch returns every (key, item) pair with k1 <= key <= k2. A
// reversed range (k1 > k2) is treated as if the bounds were swapped.
func (t *Tree) RangeSearch(k1, k2 int32) (map[int32][]byte, error) {
	if k1 > k2 {
		k1, k2 = k2, k1
	}
	result := make(map[int32][]byte)
	if !t.hasRoot {
		return result, nil
	}

	pid, err := t.leafFor(k1)
	if err != nil {
		return nil, err
	}

	visited := 0
	for pid != -1 {
		visited++
		if visited > maxSafeDepth*maxSafeDepth {
			return nil, errs.NewCorruptionError("leaf chain traversal did not terminate (possible cycle)")
		}
		f, err := t.pool.FetchPage(int(pid))
		if err != nil {
			return nil, err
		}
		n := page.Decode(f.Data, t.layout)

		stop := false
		for i := 0; i < int(n.Size); i++ {
			k := n.Keys[i]
			if k > k2 {
				stop = true
				break
			}
			if k >= k1 {
				result[k] = append([]byte(nil), n.Items[i]...)
			}
		}
		next := n.NextLeaf
		t.pool.UnpinPage(int(pid), false)
		if stop {
			break
		}
		pid = next
	}
	return result, nil
}

// AllInOrder walks the full leaf chain from the leftmost leaf, yielding
// every (key, item) pair in increasing order. Used by leaf-chain
// integrity checks (spec invariant I3) and by the facade's AllRecords.
func (t *Tree) AllInOrder() ([]int32, [][]byte, error) {
	first, err := t.FirstLeaf()
	if err != nil {
		return nil, nil, err
	}
	var keys []int32
	var items [][]byte
	pid := first
	visited := 0
	for pid != -1 {
		visited++
		if visited > maxSafeDepth*maxSafeDepth {
			return nil, nil, errs.NewCorruptionError("leaf chain traversal did not terminate (possible cycle)")
		}
		f, err := t.pool.FetchPage(int(pid))
		if err != nil {
			return nil, nil, err
		}
		n := page.Decode(f.Data, t.layout)
		for i := 0; i < int(n.Size); i++ {
			keys = append(keys, n.Keys[i])
			items = append(items, append([]byte(nil), n.Items[i]...))
		}
		next := n.NextLeaf
		t.pool.UnpinPage(int(pid), false)
		pid = next
	}
	return keys, items, nil
}

// ComputeDepth walks the leftmost child chain from the root, counting
// nodes until a leaf is reached. Returns 0 for an empty tree.
func (t *Tree) ComputeDepth() (int, error) {
	if !t.hasRoot {
		return 0, nil
	}
	depth := 0
	pid := t.rootPageID
	for {
		f, err := t.pool.FetchPage(int(pid))
		if err != nil {
			return 0, err
		}
		n := page.Decode(f.Data, t.layout)
		depth++
		isLeaf := n.IsLeaf
		var child int32
		if !isLeaf {
			child = n.Children[0]
		}
		t.pool.UnpinPage(int(pid), false)
		if isLeaf {
			return depth, nil
		}
		if depth > maxSafeDepth {
			return 0, errs.NewCorruptionError("tree depth exceeded safety bound")
		}
		if err := checkChildID(child); err != nil {
			return 0, err
		}
		pid = child
	}
}

// Remove deletes key if present, repairing underflow on the path back to
// the root and collapsing the root when it becomes empty. Returns true
// iff a matching entry was found and removed.
func (t *Tree) Remove(key int32) (bool, error) {
	if !t.hasRoot {
		return false, nil
	}
	found, _, err := t.removeRecursive(t.rootPageID, true, key)
	if err != nil || !found {
		return found, err
	}
	if err := t.collapseRootIfNeeded(); err != nil {
		return true, err
	}
	return true, nil
}

func (t *Tree) collapseRootIfNeeded() error {
	f, err := t.pool.FetchPage(int(t.rootPageID))
	if err != nil {
		return err
	}
	n := page.Decode(f.Data, t.layout)

	if !n.IsLeaf && n.Size == 0 {
		newRoot := n.Children[0]
		t.pool.UnpinPage(int(t.rootPageID), false)
		t.rootPageID = newRoot
		return t.persistHeader()
	}
	if n.IsLeaf && n.Size == 0 {
		t.pool.UnpinPage(int(t.rootPageID), false)
		t.rootPageID = -1
		t.hasRoot = false
		return t.persistHeader()
	}
	t.pool.UnpinPage(int(t.rootPageID), false)
	return nil
}

// removeRecursive deletes key from the subtree rooted at pageID. It
// returns whether the key was found, and whether the visited node is now
// under-full (size < order) — which is always false when isRoot, since
// the root is exempt from the occupancy invariant.
func (t *Tree) removeRecursive(pageID int32, isRoot bool, key int32) (bool, bool, error) {
	f, err := t.pool.FetchPage(int(pageID))
	if err != nil {
		return false, false, err
	}
	n := page.Decode(f.Data, t.layout)

	if n.IsLeaf {
		pos := -1
		for i := 0; i < int(n.Size); i++ {
			if n.Keys[i] == key {
				pos = i
				break
			}
		}
		if pos < 0 {
			t.pool.UnpinPage(int(pageID), false)
			return false, false, nil
		}
		for i := pos; i < int(n.Size)-1; i++ {
			n.Keys[i] = n.Keys[i+1]
			copy(n.Items[i], n.Items[i+1])
		}
		n.Size--
		bloom.Rebuild((*bloom.Filter)(&n.Bloom), n.Keys, int(n.Size))
		page.Encode(f.Data, t.layout, n)
		t.pool.UnpinPage(int(pageID), true)
		return true, !isRoot && int(n.Size) < t.layout.Order, nil
	}

	idx := routeIndex(n, key)
	childID := n.Children[idx]
	if err := checkChildID(childID); err != nil {
		t.pool.UnpinPage(int(pageID), false)
		return false, false, err
	}

	found, childUnderflow, err := t.removeRecursive(childID, false, key)
	if err != nil {
		t.pool.UnpinPage(int(pageID), false)
		return false, false, err
	}
	if !found {
		t.pool.UnpinPage(int(pageID), false)
		return false, false, nil
	}
	if !childUnderflow {
		t.pool.UnpinPage(int(pageID), false)
		return true, false, nil
	}

	if err := t.repairUnderflow(n, idx); err != nil {
		t.pool.UnpinPage(int(pageID), false)
		return false, false, err
	}
	page.Encode(f.Data, t.layout, n)
	t.pool.UnpinPage(int(pageID), true)
	return true, !isRoot && int(n.Size) < t.layout.Order, nil
}
