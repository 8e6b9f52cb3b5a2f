package sexp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAtoms(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"1.5", Value{Kind: KindFloat, Float: 1.5}},
		{":docid", Keyword("docid")},
		{"t", Symbol("t")},
		{"nil", Nil},
		{"seen", Symbol("seen")},
		{`"hi \"there\""`, String(`hi "there"`)},
		{`"a\\b"`, String(`a\b`)},
		{`"line\nbreak"`, String("line\nbreak")},
		{`"héllo"`, String("héllo")},
		{"()", List()},
		{"'foo", List(Symbol("quote"), Symbol("foo"))},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseNilDistinctFromEmptyList(t *testing.T) {
	n, err := Parse("nil")
	require.NoError(t, err)
	e, err := Parse("()")
	require.NoError(t, err)

	assert.Equal(t, KindNil, n.Kind)
	assert.Equal(t, KindList, e.Kind)
	assert.False(t, n.Equal(e))
}

func TestParseNested(t *testing.T) {
	v, err := Parse(`(:headers ((:docid 1 :subject "a") (:docid 2)) ; trailing comment
	)`)
	require.NoError(t, err)

	headers, ok := Get(v, "headers")
	require.True(t, ok)
	items, ok := headers.AsList()
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "(", `"open`, ")", "(a) b"} {
		_, err := Parse(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, IsSyntaxError(err))
	}
}

func TestPlistAccessorsIgnoreOrder(t *testing.T) {
	a, err := Parse("(:b 2 :a 1)")
	require.NoError(t, err)
	b, err := Parse("(:a 1 :b 2)")
	require.NoError(t, err)

	for _, key := range []string{"a", "b"} {
		va, oka := GetUint(a, key)
		vb, okb := GetUint(b, key)
		assert.True(t, oka)
		assert.True(t, okb)
		assert.Equal(t, va, vb, key)
	}
}

func TestGetString(t *testing.T) {
	v, _ := Parse(`(:pong "mu" :n 3)`)

	s, ok := GetString(v, "pong")
	assert.True(t, ok)
	assert.Equal(t, "mu", s)

	_, ok = GetString(v, "n")
	assert.False(t, ok, "non-string value")
	_, ok = GetString(v, "missing")
	assert.False(t, ok)
}

func TestGetUintRejectsNegative(t *testing.T) {
	v, _ := Parse(`(:a -1 :b "3")`)
	_, ok := GetUint(v, "a")
	assert.False(t, ok)
	_, ok = GetUint(v, "b")
	assert.False(t, ok)
}

func TestGetBool(t *testing.T) {
	v, _ := Parse(`(:yes t :no nil :other foo :str "x" :num 0)`)

	cases := map[string]bool{
		"yes":   true,
		"no":    false,
		"other": false,
		"str":   true,
		"num":   true,
	}
	for key, want := range cases {
		got, ok := GetBool(v, key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	_, ok := GetBool(v, "absent")
	assert.False(t, ok)
}

func TestGetFirstOccurrenceWins(t *testing.T) {
	v, _ := Parse(`(:a 1 :a 2)`)
	n, ok := GetUint(v, "a")
	assert.True(t, ok)
	assert.Equal(t, uint32(1), n)
}

func TestGetOnNonList(t *testing.T) {
	_, ok := Get(String("x"), "a")
	assert.False(t, ok)
	_, ok = Get(List(Keyword("dangling")), "dangling")
	assert.False(t, ok)
}

func TestEmacsTime(t *testing.T) {
	v, err := Parse("(27028 6999 0)")
	require.NoError(t, err)

	got, ok := EmacsTime(v)
	require.True(t, ok)
	assert.Equal(t, int64(27028*65536+6999), got.Unix())
	assert.Equal(t, time.UTC, got.Location())

	_, ok = EmacsTime(List(Int(1)))
	assert.False(t, ok)
	_, ok = EmacsTime(List(String("a"), Int(1)))
	assert.False(t, ok)
}

func TestStringRoundTrip(t *testing.T) {
	in := `(:query "say \"hi\" \\ bye" :n 3 :flag t :k nil (a b))`
	v, err := Parse(in)
	require.NoError(t, err)

	again, err := Parse(v.String())
	require.NoError(t, err)
	assert.True(t, v.Equal(again))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `plain`, Escape("plain"))
	assert.Equal(t, `a\\b\"c`, Escape(`a\b"c`))
}
