package flql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePutIntoWithPointer(t *testing.T) {
	stmt, err := Parse(`put({"a":1}).pointer('p1').into('widgets');`)
	require.NoError(t, err)
	assert.Equal(t, KindPut, stmt.Kind)
	assert.Equal(t, `{"a":1}`, stmt.JSON)
	assert.Equal(t, "p1", stmt.Pointer)
	assert.Equal(t, "widgets", stmt.Collection)
}

func TestParsePutWhenOverwrite(t *testing.T) {
	stmt, err := Parse(`put({"a":2}).when('a == 1').into('widgets');`)
	require.NoError(t, err)
	assert.Equal(t, "a == 1", stmt.When)
}

func TestParseGetSortPage(t *testing.T) {
	stmt, err := Parse(`get.from('widgets').sort('name,DESC').page('0,10');`)
	require.NoError(t, err)
	assert.Equal(t, KindGet, stmt.Kind)
	require.NotNil(t, stmt.Sort)
	assert.Equal(t, "name", stmt.Sort.Field)
	assert.True(t, stmt.Sort.Desc)
	require.NotNil(t, stmt.Page)
	assert.Equal(t, 0, stmt.Page.Offset)
	assert.Equal(t, 10, stmt.Page.Count)
}

func TestParseGetRange(t *testing.T) {
	stmt, err := Parse(`get.range('03','07','age').from('widgets');`)
	require.NoError(t, err)
	assert.Equal(t, "03", stmt.RangeFrom)
	assert.Equal(t, "07", stmt.RangeTo)
	assert.Equal(t, "age", stmt.RangeOn)
	assert.Equal(t, "widgets", stmt.Collection)
}

func TestParseDeleteClip(t *testing.T) {
	stmt, err := Parse(`delete.clip('red').from('widgets');`)
	require.NoError(t, err)
	assert.Equal(t, KindDelete, stmt.Kind)
	assert.Equal(t, "red", stmt.ClipName)
}

func TestParseDBNew(t *testing.T) {
	stmt, err := Parse(`db.new({"name":"shop"});`)
	require.NoError(t, err)
	assert.Equal(t, KindDBNew, stmt.Kind)
	assert.Equal(t, `{"name":"shop"}`, stmt.JSON)
}

func TestParseTTL(t *testing.T) {
	stmt, err := Parse(`ttl(60).if('a == 1').into('widgets');`)
	require.NoError(t, err)
	assert.Equal(t, KindTTL, stmt.Kind)
	assert.EqualValues(t, 60, stmt.Seconds)
	assert.Equal(t, "a == 1", stmt.If)
}

func TestParseUnknownVerbFails(t *testing.T) {
	_, err := Parse(`frobnicate('x');`)
	assert.Error(t, err)
}

func TestParseExists(t *testing.T) {
	stmt, err := Parse(`exists('p1').in('widgets');`)
	require.NoError(t, err)
	assert.Equal(t, KindExists, stmt.Kind)
	assert.Equal(t, "p1", stmt.Pointer)
	assert.Equal(t, "widgets", stmt.Collection)
}
