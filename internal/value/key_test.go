package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeKeyOrderIndependent(t *testing.T) {
	a := map[string]any{
		"channel": "general",
		"paging":  map[string]any{"limit": 10, "cursor": "abc"},
	}
	b := map[string]any{
		"paging":  map[string]any{"cursor": "abc", "limit": 10},
		"channel": "general",
	}

	keyA, err := Canonicalize("messages:list", a)
	require.NoError(t, err)
	keyB, err := Canonicalize("messages:list", b)
	require.NoError(t, err)

	assert.Equal(t, keyA, keyB)
	assert.Len(t, keyA.String(), 64)
}

func TestCanonicalizeDistinguishes(t *testing.T) {
	base := MustCanonicalize("messages:list", map[string]any{"channel": "general"})

	tests := []struct {
		name  string
		query string
		args  map[string]any
	}{
		{"different name", "messages:count", map[string]any{"channel": "general"}},
		{"different value", "messages:list", map[string]any{"channel": "random"}},
		{"extra key", "messages:list", map[string]any{"channel": "general", "limit": 1}},
		{"string vs number", "messages:list", map[string]any{"channel": 1}},
		{"array order", "messages:list", map[string]any{"channel": []any{"b", "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Canonicalize(tt.query, tt.args)
			require.NoError(t, err)
			assert.NotEqual(t, base, key)
		})
	}
}

func TestCanonicalizeNilArgsEqualsEmpty(t *testing.T) {
	assert.Equal(t,
		MustCanonicalize("q", nil),
		MustCanonicalize("q", map[string]any{}),
	)
}

func TestCanonicalizeNumericCollapse(t *testing.T) {
	assert.Equal(t,
		MustCanonicalize("q", map[string]any{"n": 1}),
		MustCanonicalize("q", map[string]any{"n": 1.0}),
	)
}

func TestCanonicalizeInvalidArguments(t *testing.T) {
	args := map[string]any{}
	args["loop"] = args

	_, err := Canonicalize("q", args)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Contains(t, err.Error(), "args.loop")
}

func TestCanonicalArgs(t *testing.T) {
	s, err := CanonicalArgs(map[string]any{"b": 2, "a": []any{true}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true],"b":2}`, s)

	empty, err := CanonicalArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}

func TestQueryKeyShort(t *testing.T) {
	key := MustCanonicalize("q", nil)
	assert.Equal(t, key.String()[:12], key.Short())
	assert.Equal(t, "abc", QueryKey("abc").Short())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(map[string]any{"a": 1, "b": []any{"x"}}, map[string]any{"b": []any{"x"}, "a": 1.0}))
	assert.False(t, Equal("result", "other"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, "x"))

	fn := func() {}
	assert.False(t, Equal(fn, "x"))
}

func TestDecode(t *testing.T) {
	got, err := Decode([]byte(`{"n":3,"f":1.5,"list":[1,"a"]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":    int64(3),
		"f":    1.5,
		"list": []any{int64(1), "a"},
	}, got)

	_, err = Decode([]byte(`{`))
	assert.Error(t, err)
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	a, err := Decode([]byte("{\"name\":\"\xff\"}"))
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Nil(t, a)

	_, err = Decode([]byte("{\"name\":\"\xfe\"}"))
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestCanonicalizeNormalizationFormsAreDistinct(t *testing.T) {
	precomposed, err := Canonicalize("user", map[string]any{"name": "caf\u00e9"})
	require.NoError(t, err)
	decomposed, err := Canonicalize("user", map[string]any{"name": "cafe\u0301"})
	require.NoError(t, err)

	assert.NotEqual(t, precomposed, decomposed)
}

func TestCanonicalizeInvalidUTF8(t *testing.T) {
	for _, s := range []string{"\xff", "\xfe", "ok\xc3"} {
		_, err := Canonicalize("user", map[string]any{"name": s})
		require.Error(t, err, "%q", s)
		assert.ErrorIs(t, err, ErrInvalidArguments)

		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "args.name", verr.Path)
	}
}
