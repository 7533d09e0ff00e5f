package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONPreservesKeyOrder(t *testing.T) {
	raw := []byte(`{"zeta":1,"alpha":{"b":true,"a":null},"list":[1,"two",false]}`)

	v, err := ParseValue(raw)
	require.NoError(t, err)

	obj, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "list"}, obj.Keys())

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(out))
}

func TestValue_ParseScalars(t *testing.T) {
	v, err := ParseValue([]byte(`"hello"`))
	require.NoError(t, err)
	s, ok := v.AsString()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	v, err = ParseValue([]byte(`42.5`))
	require.NoError(t, err)
	n, ok := v.AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 42.5, n)

	v, err = ParseValue([]byte(`null`))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = ParseValue([]byte(`{"a":1} trailing`))
	assert.Error(t, err)
}

func TestValue_CloneIsDeep(t *testing.T) {
	orig := ObjectValue(NewObject().Set("nested", ObjectValue(NewObject().Set("a", Number(1)))))
	clone := orig.Clone()

	obj, _ := clone.AsObject()
	nested, _ := obj.Get("nested")
	nestedObj, _ := nested.AsObject()
	nestedObj.Set("a", Number(2))

	origObj, _ := orig.AsObject()
	origNested, _ := origObj.Get("nested")
	origNestedObj, _ := origNested.AsObject()
	a, _ := origNestedObj.Get("a")
	assert.True(t, a.Equal(Number(1)))
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, String("x").Equal(String("x")))
	assert.False(t, String("x").Equal(Number(1)))
	assert.True(t, Array(Number(1), Bool(true)).Equal(Array(Number(1), Bool(true))))
	assert.False(t, Array(Number(1)).Equal(Array(Number(2))))

	a := ObjectValue(NewObject().Set("a", Number(1)).Set("b", Number(2)))
	b := ObjectValue(NewObject().Set("b", Number(2)).Set("a", Number(1)))
	assert.False(t, a.Equal(b), "key order is part of object identity")
}

func TestObject_DeletePreservesOrder(t *testing.T) {
	o := NewObject().Set("a", Number(1)).Set("b", Number(2)).Set("c", Number(3))
	o.Delete("b")
	assert.Equal(t, []string{"a", "c"}, o.Keys())

	// Re-adding goes to the end.
	o.Set("b", Number(4))
	assert.Equal(t, []string{"a", "c", "b"}, o.Keys())
}

func TestValue_Interface(t *testing.T) {
	v := ObjectValue(NewObject().Set("n", Number(1)).Set("s", String("x")))
	got, ok := v.Interface().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.0, got["n"])
	assert.Equal(t, "x", got["s"])
}
