package vpclient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-vptree/engine"
	"github.com/viant/sqlite-vptree/sqlhost"
)

func newTree(t *testing.T) *Tree {
	t.Helper()
	db, err := engine.Open(filepath.Join(t.TempDir(), "vpclient.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = sqlhost.Register(db)
	require.NoError(t, err)
	require.NoError(t, engine.Configure(db, 4))

	tree, err := Create(context.Background(), db, "vec_l2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Destroy(context.Background()) })
	return tree
}

func TestTree_Queries(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t)
	require.NoError(t, tree.Add(ctx, []float32{0, 0}))
	require.NoError(t, tree.AddMany(ctx, []any{[]float32{1, 0}, []float32{4, 0}, []float32{9, 0}}))

	n, err := tree.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	items, err := tree.NearestNeighbor(ctx, []float32{3.5, 0}, 2)
	require.NoError(t, err)
	got, err := DecodeEmbeddings(items)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4, 0}, {1, 0}}, got)

	items, err = tree.Neighborhood(ctx, []float32{0, 0}, 1.5)
	require.NoError(t, err)
	got, err = DecodeEmbeddings(items)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 0}, {1, 0}}, got)

	items, err = tree.NearestNeighborApprox(ctx, []float32{0, 0}, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTree_Walk(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t)
	require.NoError(t, tree.AddMany(ctx, []any{[]float32{5, 0}, []float32{1, 0}, []float32{3, 0}}))

	var walked []any
	err := tree.Walk(ctx, []float32{0, 0}, 0, func(element any) bool {
		walked = append(walked, element)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"[1,0]", "[3,0]", "[5,0]"}, walked)

	walked = nil
	err = tree.Walk(ctx, []float32{0, 0}, 2, func(element any) bool {
		walked = append(walked, element)
		return true
	})
	require.NoError(t, err)
	assert.Len(t, walked, 2)
}

func TestTree_Text(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t)
	_, err := tree.NearestText(ctx, "hello", 1)
	require.Error(t, err)

	tree.Embed = func(_ context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text)), 0}, nil
	}
	require.NoError(t, tree.AddText(ctx, "a"))
	require.NoError(t, tree.AddText(ctx, "abcdef"))
	items, err := tree.NearestText(ctx, "abcde", 1)
	require.NoError(t, err)
	got, err := DecodeEmbeddings(items)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{6, 0}}, got)
}
