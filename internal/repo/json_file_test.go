package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

func TestJSONFileRepo_CreatesEmptyArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "products.json")
	_, err := NewJSONFileRepo(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestJSONFileRepo_PrettyPrinted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	r, err := NewJSONFileRepo(path)
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), product("a", "Lamp")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"id\": \"a\""), string(data))
}

func TestJSONFileRepo_PicksUpExternalEdits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	r, err := NewJSONFileRepo(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","title":"Hand edited","link":"https://x.example"}]`), 0o644))

	got, err := r.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Hand edited", got.Title)
}

func TestJSONFileRepo_BlankOrNullFile(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "  \n", "null"} {
		path := filepath.Join(t.TempDir(), "products.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		r, err := NewJSONFileRepo(path)
		require.NoError(t, err)
		list, err := r.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, list)
	}
}

func TestJSONFileRepo_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte("{not an array"), 0o644))

	r, err := NewJSONFileRepo(path)
	require.NoError(t, err)
	_, err = r.List(context.Background())
	assert.Error(t, err)
}

func TestJSONFileRepo_ConcurrentInserts(t *testing.T) {
	t.Parallel()

	r, err := NewJSONFileRepo(filepath.Join(t.TempDir(), "products.json"))
	require.NoError(t, err)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			errs <- r.Insert(context.Background(), product(string(rune('a'+i)), "item"))
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	list, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, n)
}

func TestJSONFileRepo_KeepsLegacyRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	legacy := `[{
		"id": "old",
		"title": "Kettle",
		"link": "https://k.example",
		"image": "k1.png",
		"image2": "k2.png",
		"image3": "k3.png",
		"price": "19.99",
		"affiliateSite": "amazon",
		"mode": "featured",
		"buy_link": "https://buy.example/k"
	}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	r, err := NewJSONFileRepo(path)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := r.Get(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, 19.99, *got.Price)
	assert.Equal(t, "k2.png", got.Image2)
	assert.Equal(t, "k3.png", got.Image3)

	require.NoError(t, r.Insert(ctx, product("new", "Lamp")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "0001-01-01")

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	old := raw[1]
	assert.JSONEq(t, `"amazon"`, string(old["affiliateSite"]))
	assert.JSONEq(t, `"featured"`, string(old["mode"]))
	assert.JSONEq(t, `"https://buy.example/k"`, string(old["buy_link"]))
	assert.JSONEq(t, `"k2.png"`, string(old["image2"]))
	assert.JSONEq(t, `"k3.png"`, string(old["image3"]))
	assert.JSONEq(t, `19.99`, string(old["price"]))
	assert.NotContains(t, old, "createdAt")
	assert.NotContains(t, old, "updatedAt")

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids(list))
}

func TestJSONFileRepo_UnparsablePriceSurvives(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","title":"T","link":"https://x.example","price":"call us"}]`), 0o644))

	r, err := NewJSONFileRepo(path)
	require.NoError(t, err)
	got, err := r.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, got.Price)

	_, err = r.Update(context.Background(), "x", func(p *models.Product) error {
		p.Title = "T2"
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price": "call us"`)
}

func TestJSONFileRepo_FileMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	r, err := NewJSONFileRepo(path)
	require.NoError(t, err)
	require.NoError(t, r.Insert(context.Background(), product("a", "Lamp")))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())

	require.NoError(t, os.Chmod(path, 0o664))
	require.NoError(t, r.Insert(context.Background(), product("b", "Chair")))
	fi, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o664), fi.Mode().Perm())
}
