package cxxast_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
)

func TestPreprocessorProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		defines map[string]string
		want    string
	}{
		{
			name: "object macro",
			in:   "class Foo {\n    Q_OBJECT\n};",
			want: "class Foo {\n" + blanks(12) + "\n};",
		},
		{
			name: "export macro",
			in:   "class KCODECS_EXPORT Codec;",
			want: "class" + blanks(16) + "Codec;",
		},
		{
			name: "function macro with semicolon",
			in:   "Q_DECLARE_PRIVATE(Foo);\nint x;",
			want: blanks(23) + "\nint x;",
		},
		{
			name: "longest function macro wins",
			in:   "Q_DECLARE_PRIVATE_D(d, Foo)",
			want: blanks(27),
		},
		{
			name: "signals",
			in:   "Q_SIGNALS:\n    void a();",
			want: "public   :\n    void a();",
		},
		{
			name: "signals keyword",
			in:   "signals :",
			want: "public  :",
		},
		{
			name: "scoped signals untouched",
			in:   "Foo::signals::x",
			want: "Foo::signals::x",
		},
		{
			name: "slots",
			in:   "public Q_SLOTS:",
			want: "public" + blanks(8) + ":",
		},
		{
			name: "declare flags",
			in:   "Q_DECLARE_FLAGS(Options, Option)",
			want: "typedef QFlags<Option> Options; ",
		},
		{
			name: "deprecated version",
			in:   "KCOREADDONS_DEPRECATED_VERSION(5, 0, \"x\") void f();",
			want: blanks(42) + "void f();",
		},
		{
			name:    "empty define",
			in:      "MY_INLINE void f();",
			defines: map[string]string{"MY_INLINE": ""},
			want:    blanks(10) + "void f();",
		},
	}

	pp := cxxast.NewPreprocessor(nil, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := pp.Process([]byte(tt.in), tt.defines)

			assert.Equal(t, tt.want, string(src.Parsed))
			assert.Equal(t, tt.in, string(src.Original))
			assert.Len(t, src.Parsed, len(src.Original))
		})
	}
}

func TestPreprocessorExtraMacros(t *testing.T) {
	t.Parallel()

	pp := cxxast.NewPreprocessor([]string{"MY_MACRO"}, []string{"MY_CALL"})
	src := pp.Process([]byte("MY_MACRO MY_CALL(a, (b)) int x;"), nil)

	assert.Equal(t, blanks(25)+"int x;", string(src.Parsed))
	assert.Equal(t, "MY_CALL", src.Text(9, 16))
}

func blanks(n int) string {
	return strings.Repeat(" ", n)
}
