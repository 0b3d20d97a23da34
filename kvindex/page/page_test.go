package page

import "testing"

func Test_NewLayoutRejectsOversizedNode(t *testing.T) {
	_, err := NewLayout(1, Size)
	if err == nil {
		t.Errorf("expected oversized layout to be rejected")
	}
}

func Test_NewLayoutDerivesFanout(t *testing.T) {
	l, err := NewLayout(4, 16)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	assertEqual(t, 8, l.MaxKeys, "MaxKeys should be 2*order")
	assertEqual(t, 9, l.MaxChildren, "MaxChildren should be 2*order+1")
}

func Test_EncodeDecodeRoundTripsLeaf(t *testing.T) {
	l, err := NewLayout(4, 16)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	n := NewNode(l, true)
	n.Size = 2
	n.Keys[0], n.Keys[1] = 10, 20
	copy(n.Items[0], []byte("first-item-bytes"))
	copy(n.Items[1], []byte("second-item-byte"))
	n.NextLeaf = 7
	n.Bloom[0] = 0xAB

	buf := make([]byte, Size)
	Encode(buf, l, n)
	got := Decode(buf, l)

	assertEqual(t, n.Size, got.Size, "size should round-trip")
	assertEqual(t, n.Keys[0], got.Keys[0], "key 0 should round-trip")
	assertEqual(t, n.Keys[1], got.Keys[1], "key 1 should round-trip")
	assertEqual(t, n.NextLeaf, got.NextLeaf, "nextLeaf should round-trip")
	assertEqual(t, n.Bloom[0], got.Bloom[0], "bloom bytes should round-trip")
	if string(got.Items[0]) != "first-item-bytes" {
		t.Errorf("item 0 did not round-trip, got %q", got.Items[0])
	}
}

func Test_EncodeDecodeRoundTripsInternal(t *testing.T) {
	l, err := NewLayout(4, 16)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	n := NewNode(l, false)
	n.Size = 1
	n.Keys[0] = 42
	n.Children[0] = 1
	n.Children[1] = 2

	buf := make([]byte, Size)
	Encode(buf, l, n)
	got := Decode(buf, l)

	assertEqual(t, n.Keys[0], got.Keys[0], "key should round-trip")
	assertEqual(t, n.Children[0], got.Children[0], "child 0 should round-trip")
	assertEqual(t, n.Children[1], got.Children[1], "child 1 should round-trip")
}

func Test_HeaderRoundTrips(t *testing.T) {
	buf := make([]byte, Size)
	EncodeHeader(buf, Header{RootPageID: 5, HasRoot: true})
	h := DecodeHeader(buf)
	assertEqual(t, int32(5), h.RootPageID, "root page id should round-trip")
	assertEqual(t, true, h.HasRoot, "hasRoot should round-trip")
}

func assertEqual[T comparable](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected (%+v) is not equal to actual (%+v): %s", expected, actual, msg)
	}
}
