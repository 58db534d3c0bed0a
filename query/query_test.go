package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flinch/flinchdb"
)

func openDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	db, errs := flinchdb.Open(filepath.Join(t.TempDir(), "db.bolt"))
	require.Empty(t, errs)
	t.Cleanup(db.Close)
	return New(db)
}

func TestNewCollectionThenPutAndGet(t *testing.T) {
	d := openDispatcher(t)

	res := d.Execute(`new({"name":"widgets"});`)
	require.Empty(t, res.Error)

	res = d.Execute(`put({"v":1}).pointer('p1').into('widgets');`)
	require.Empty(t, res.Error)
	require.Equal(t, []interface{}{"p1"}, res.Data)

	res = d.Execute(`get.pointer('p1').from('widgets');`)
	require.Empty(t, res.Error)
	require.Len(t, res.Data, 1)
	doc := res.Data[0].(map[string]interface{})
	assert.Equal(t, float64(1), doc["v"])
	assert.Equal(t, "p1", doc["_pointer"])
}

func TestAutoGeneratedPointer(t *testing.T) {
	d := openDispatcher(t)
	require.Empty(t, d.Execute(`new({"name":"widgets"});`).Error)

	res := d.Execute(`put({"v":1}).into('widgets');`)
	require.Empty(t, res.Error)
	require.Len(t, res.Data, 1)
	assert.NotEmpty(t, res.Data[0])
}

func TestGetSortAndPage(t *testing.T) {
	d := openDispatcher(t)
	require.Empty(t, d.Execute(`new({"name":"widgets"});`).Error)

	for _, p := range []string{"c", "a", "b"} {
		res := d.Execute(`put({"name":"` + p + `"}).pointer('` + p + `').into('widgets');`)
		require.Empty(t, res.Error)
	}

	res := d.Execute(`get.from('widgets').sort('name,ASC').page('0,2');`)
	require.Empty(t, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "a", res.Data[0].(map[string]interface{})["name"])
	assert.Equal(t, "b", res.Data[1].(map[string]interface{})["name"])
}

func TestDeleteWhenExpression(t *testing.T) {
	d := openDispatcher(t)
	require.Empty(t, d.Execute(`new({"name":"widgets"});`).Error)
	require.Empty(t, d.Execute(`put({"age":18}).pointer('p1').into('widgets');`).Error)
	require.Empty(t, d.Execute(`put({"age":30}).pointer('p2').into('widgets');`).Error)

	res := d.Execute(`delete.when('age < 20').from('widgets');`)
	require.Empty(t, res.Error)

	res = d.Execute(`length('widgets');`)
	require.Empty(t, res.Error)
	assert.Equal(t, []interface{}{1}, res.Data)
}

func TestUnknownCollectionSurfacesError(t *testing.T) {
	d := openDispatcher(t)
	res := d.Execute(`get.pointer('p1').from('ghost');`)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Data)
}

func TestMalformedStatementSurfacesParseError(t *testing.T) {
	d := openDispatcher(t)
	res := d.Execute(`nonsense(`)
	assert.NotEmpty(t, res.Error)
}
