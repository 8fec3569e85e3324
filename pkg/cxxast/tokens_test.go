package cxxast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
)

func TestNormalizeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "reference", in: "const QString&", want: "const QString &"},
		{name: "template args", in: "QMap<QString,int>", want: "QMap<QString, int>"},
		{name: "nested templates", in: "QList< QPair<int,int> >", want: "QList<QPair<int, int>>"},
		{name: "function pointer", in: "void(*)(int)", want: "void (*)(int)"},
		{name: "const pointer", in: "char * const", want: "char *const"},
		{name: "flags", in: "A|B", want: "A | B"},
		{name: "negative", in: "- 1", want: "-1"},
		{name: "assignment", in: "x=-1", want: "x = -1"},
		{name: "scope", in: "KCodecs :: Codec", want: "KCodecs::Codec"},
		{name: "destructor", in: "~ Foo", want: "~Foo"},
		{name: "string", in: `QLatin1String( "a b" )`, want: `QLatin1String("a b")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, cxxast.NormalizeType(tt.in))
		})
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tokens := cxxast.Tokenize("a->b::c<<=1")

	texts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}

	assert.Equal(t, []string{"a", "->", "b", "::", "c", "<<=", "1"}, texts)
	assert.True(t, tokens[0].IsWord())
	assert.False(t, tokens[1].IsWord())
}
