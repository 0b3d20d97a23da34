package kvindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	opts := DefaultOptions()
	opts.Order = 3
	opts.PoolFrames = 32
	idx, err := Open(filepath.Join(t.TempDir(), "idx.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func Test_InsertAndSearchByName(t *testing.T) {
	idx := openTestIndex(t)

	require.NoError(t, idx.Insert(Record{Name: "apple", A: 1, B: 2, Value: 3.5}))

	got, found, err := idx.Search("apple")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, Record{Name: "apple", A: 1, B: 2, Value: 3.5}, got)
}

func Test_SearchMissingNameNotFound(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Insert(Record{Name: "apple"}))

	_, found, err := idx.Search("banana")
	require.NoError(t, err)
	require.False(t, found)
}

func Test_InsertOverwritesExistingName(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Insert(Record{Name: "apple", Value: 1}))
	require.NoError(t, idx.Insert(Record{Name: "apple", Value: 2}))

	got, found, err := idx.Search("apple")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2.0, got.Value)
}

func Test_RemoveDeletesRecord(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Insert(Record{Name: "apple"}))

	removed, err := idx.Remove("apple")
	require.NoError(t, err)
	require.True(t, removed)

	_, found, err := idx.Search("apple")
	require.NoError(t, err)
	require.False(t, found)
}

func Test_PrefixSearchMatchesCaseInsensitively(t *testing.T) {
	idx := openTestIndex(t)
	names := []string{"Mango", "mandarin", "Melon", "kiwi", "Mulberry"}
	for _, n := range names {
		require.NoError(t, idx.Insert(Record{Name: n}))
	}

	got, err := idx.PrefixSearch("m")
	require.NoError(t, err)

	var gotNames []string
	for _, r := range got {
		gotNames = append(gotNames, r.Name)
	}
	require.ElementsMatch(t, []string{"Mango", "mandarin", "Melon", "Mulberry"}, gotNames)
}

func Test_RangeSearchByCharCoversBoundaryLetters(t *testing.T) {
	idx := openTestIndex(t)
	names := []string{"apple", "banana", "cherry", "date", "elderberry"}
	for _, n := range names {
		require.NoError(t, idx.Insert(Record{Name: n}))
	}

	got, err := idx.RangeSearchByChar('a', 'c')
	require.NoError(t, err)

	var gotNames []string
	for _, r := range got {
		gotNames = append(gotNames, r.Name)
	}
	require.ElementsMatch(t, []string{"apple", "banana", "cherry"}, gotNames)
}

func Test_AllRecordsReturnsEveryInsertedRecord(t *testing.T) {
	idx := openTestIndex(t)
	names := []string{"apple", "banana", "cherry", "date"}
	for _, n := range names {
		require.NoError(t, idx.Insert(Record{Name: n}))
	}

	got, err := idx.AllRecords()
	require.NoError(t, err)
	require.Len(t, got, len(names))
}

func Test_ComputeTreeDepthGrowsWithInserts(t *testing.T) {
	idx := openTestIndex(t)
	depth0, err := idx.ComputeTreeDepth()
	require.NoError(t, err)
	require.Equal(t, 0, depth0)

	for i := 0; i < 300; i++ {
		require.NoError(t, idx.Insert(Record{Name: randomishName(i)}))
	}
	depthN, err := idx.ComputeTreeDepth()
	require.NoError(t, err)
	require.Greater(t, depthN, 0)
}

func Test_SearchWithoutBloomAgreesWithSearch(t *testing.T) {
	idx := openTestIndex(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Insert(Record{Name: randomishName(i), Value: float64(i)}))
	}
	for i := 0; i < 60; i++ {
		name := randomishName(i)
		a, foundA, err := idx.Search(name)
		require.NoError(t, err)
		b, foundB, err := idx.SearchWithoutBloom(name)
		require.NoError(t, err)
		require.Equal(t, foundA, foundB)
		if foundA {
			require.Equal(t, a, b)
		}
	}
}

func Test_LongNameTruncatesToFixedWidth(t *testing.T) {
	idx := openTestIndex(t)
	long := ""
	for i := 0; i < RecordNameLen+20; i++ {
		long += "x"
	}
	require.NoError(t, idx.Insert(Record{Name: long}))

	got, found, err := idx.Search(long)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Name, RecordNameLen)
}

func randomishName(i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%26]) + string(letters[(i/26)%26]) + string(rune('0'+i%10))
}
