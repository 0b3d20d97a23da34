package bloom

import "testing"

func Test_AddAndContains(t *testing.T) {
	var f Filter
	keys := []int32{7, 19, 1001, -42}
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		assertTrue(t, f.PossiblyContains(k), "expected key to be a member after Add")
	}
}

func Test_NeverFalseNegative(t *testing.T) {
	var f Filter
	for k := int32(0); k < 500; k++ {
		f.Add(k)
	}
	for k := int32(0); k < 500; k++ {
		assertTrue(t, f.PossiblyContains(k), "bloom filter reported a false negative")
	}
}

func Test_RebuildClearsStaleBits(t *testing.T) {
	var f Filter
	f.Add(5)
	f.Add(77)
	Rebuild(&f, []int32{5}, 1)
	assertTrue(t, f.PossiblyContains(5), "rebuilt filter should still contain the surviving key")
	var want Filter
	want.Add(5)
	assertEqual(t, want, f, "rebuilt filter should hold only the surviving key's bits")
}

func Test_ClearEmptiesFilter(t *testing.T) {
	var f Filter
	f.Add(3)
	f.Clear()
	for _, b := range f {
		assertEqual(t, byte(0), b, "cleared filter should be all zero bytes")
	}
}

func assertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Errorf("%s", msg)
	}
}

func assertEqual[T comparable](t *testing.T, expected, actual T, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected (%+v) is not equal to actual (%+v): %s", expected, actual, msg)
	}
}
