package hast_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treematch/pkg/hast"
)

func TestStore_LeafStats(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()
	id := store.Leaf("identifier", "x")

	n, ok := store.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, "identifier", n.Type)
	assert.Equal(t, "x", n.Label)
	assert.True(t, n.HasLabel)
	assert.Equal(t, 1, n.Size)
	assert.Equal(t, 1, n.Height)
	assert.True(t, n.IsLeaf())
}

func TestStore_TreeStats(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()
	a := store.Leaf("id", "a")
	b := store.Leaf("id", "b")
	g := store.Tree("g", a)
	f := store.Tree("f", g, b)

	n, ok := store.Resolve(f)
	require.True(t, ok)
	assert.Equal(t, 4, n.Size)
	assert.Equal(t, 3, n.Height)
	assert.Equal(t, 2, n.ChildCount())
	assert.False(t, n.HasLabel)
}

func TestStore_Deduplicates(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()
	first := store.Tree("g", store.Leaf("id", "x"))
	second := store.Tree("g", store.Leaf("id", "x"))

	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, store.Deduplicated())
}

func TestStore_HashesSeparateLabelsFromShape(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()
	fa := store.Tree("f", store.Leaf("id", "a"))
	fb := store.Tree("f", store.Leaf("id", "b"))

	na, _ := store.Resolve(fa)
	nb, _ := store.Resolve(fb)

	assert.NotEqual(t, fa, fb)
	assert.Equal(t, na.StructHash, nb.StructHash)
	assert.NotEqual(t, na.LabelHash, nb.LabelHash)
}

func TestStore_EmptyLabelDiffersFromNoLabel(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()
	empty := store.Leaf("str", "")
	none := store.Tree("str")

	assert.NotEqual(t, empty, none)

	ne, _ := store.Resolve(empty)
	nn, _ := store.Resolve(none)
	assert.False(t, ne.SameLabel(nn))
}

func TestStore_InsertUnknownChild(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()

	_, err := store.Insert("f", "", false, []hast.NodeID{42})
	require.ErrorIs(t, err, hast.ErrUnknownNode)
}

func TestStore_ConcurrentInsert(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()

	var wg sync.WaitGroup

	ids := make([]hast.NodeID, 16)

	for i := range ids {
		wg.Add(1)

		go func(slot int) {
			defer wg.Done()

			ids[slot] = store.Tree("block", store.Leaf("stmt", "x"), store.Leaf("stmt", "y"))
		}(i)
	}

	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	assert.Equal(t, 3, store.Len())
}

func TestStore_LoadYAML(t *testing.T) {
	t.Parallel()

	doc := `
type: f
children:
  - type: id
    label: a
  - type: g
    children:
      - type: id
        label: b
`
	store := hast.NewStore()

	root, err := store.LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)

	want := store.Tree("f", store.Leaf("id", "a"), store.Tree("g", store.Leaf("id", "b")))
	assert.Equal(t, want, root)
}

func TestStore_ParseYAMLMissingType(t *testing.T) {
	t.Parallel()

	store := hast.NewStore()

	_, err := store.ParseYAML([]byte("type: f\nchildren:\n  - label: a\n"))
	require.ErrorIs(t, err, hast.ErrEmptyTree)
	assert.Contains(t, err.Error(), "/0/")
}
