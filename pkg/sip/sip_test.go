package sip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

func TestAnnotations(t *testing.T) {
	t.Parallel()

	a := sip.NewAnnotations("Abstract")
	a.Add("TransferThis")
	a.Add("Abstract")

	assert.Equal(t, " /Abstract,TransferThis/", a.Render())

	a.Remove("Abstract")
	assert.Equal(t, []string{"TransferThis"}, a.Items())
	assert.Empty(t, sip.NewAnnotations().Render())
}

func TestCodeMapUpdateReplaces(t *testing.T) {
	t.Parallel()

	m := sip.NewCodeMap()
	m.Set("QList<int>", "a")
	m.Set("QMap<int, int>", "b")

	other := sip.NewCodeMap()
	other.Set("QList<int>", "c")

	m.Update(other)

	v, ok := m.Get("QList<int>")
	require.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, []string{"QList<int>", "QMap<int, int>"}, m.Keys())
}

func TestCodeMapMerge(t *testing.T) {
	t.Parallel()

	m := sip.NewCodeMap()
	m.Set("B", "one\n")
	m.Set("A", "x\n")

	other := sip.NewCodeMap()
	other.Set("B", "two\n")
	other.Set("A", "x\n")
	other.Set("C", "y\n")

	m.Merge(other)

	b, _ := m.Get("B")
	a, _ := m.Get("A")

	assert.Equal(t, "one\ntwo\n", b)
	assert.Equal(t, "x\n", a)
	assert.Equal(t, []string{"A", "B", "C"}, m.SortedKeys())

	m.Delete("B")
	assert.Equal(t, 2, m.Len())
}

func TestRecordCloneAndEqual(t *testing.T) {
	t.Parallel()

	r := sip.NewRecord("encode")
	r.Parameters = []string{"char &x"}

	c := r.Clone()
	assert.True(t, r.Equal(c))

	c.Annotations.Add("Out")
	assert.False(t, r.Equal(c))
	assert.Zero(t, r.Annotations.Len())

	c.Discard()
	assert.True(t, c.Discarded())
}

func TestDedent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "common prefix", in: "\n    a;\n      b;\n", want: "a;\n  b;\n"},
		{name: "blank lines", in: "  a;\n\n  b;", want: "a;\n\nb;\n"},
		{name: "empty", in: "  \n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sip.Dedent(tt.in))
		})
	}
}

func TestDecomposeTemplate(t *testing.T) {
	t.Parallel()

	name, args := sip.DecomposeTemplate("const QMap<QString, QList<int>> &")
	assert.Equal(t, "QMap", name)
	assert.Equal(t, []string{"QString", "QList<int>"}, args)

	name, args = sip.DecomposeTemplate("QString")
	assert.Equal(t, "QString", name)
	assert.Nil(t, args)
}

func TestTraces(t *testing.T) {
	t.Parallel()

	item := "CXX_METHOD on line 3 'Foo::bar'"

	assert.Equal(t, "// Modified CXX_METHOD on line 3 'Foo::bar' (by [0,noop]):\n", sip.ModifiedBy(item, "[0,noop]"))
	assert.Equal(t, "// Discarded CXX_METHOD on line 3 'Foo::bar' (by [1,x])\n", sip.DiscardedBy(item, "[1,x]"))
	assert.Equal(t, "%MethodCode\nsipRes = 0;\n%End\n", sip.Block("%MethodCode", "sipRes = 0;"))
}

func TestDecomposeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		decl                     string
		prefixes, typ, ops, dims string
	}{
		{decl: "int", typ: "int"},
		{decl: "static const char *[5]", prefixes: "static const ", typ: "char", ops: "*", dims: "[5]"},
		{decl: "QMap<int, int[2]> &", typ: "QMap<int, int[2]>", ops: "&"},
		{decl: "unsigned char [2] [3]", typ: "unsigned char", dims: "[2][3]"},
	}

	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			t.Parallel()

			prefixes, typ, ops, dims := sip.DecomposeType(tt.decl)
			assert.Equal(t, tt.prefixes, prefixes)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.ops, ops)
			assert.Equal(t, tt.dims, dims)
		})
	}
}
