package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, raw string, opts ...LoadOption) *Handle {
	t.Helper()
	h, err := Load([]byte(raw), opts...)
	require.NoError(t, err)
	return h
}

func TestLoad_Basics(t *testing.T) {
	h := mustLoad(t, "age,city\n25,NY\n,LA\n40,NY\n")

	assert.Equal(t, []string{"age", "city"}, h.Columns())
	assert.Equal(t, 3, h.RowCount())
	assert.Equal(t, 2, h.ColumnCount())
	assert.Equal(t, []string{"", "LA"}, h.Row(1))

	age, ok := h.Column("age")
	require.True(t, ok)
	assert.Equal(t, TypeNumeric, age.Type())
	assert.Equal(t, 1, age.MissingCount())
	_, ok = age.Float(1)
	assert.False(t, ok, "missing cell must not yield a value")
	v, ok := age.Float(2)
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)

	city, _ := h.Column("city")
	assert.Equal(t, TypeCategorical, city.Type())
}

func TestLoad_TypeInference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ColumnType
	}{
		{"integers", "v\n1\n2\n-3\n", TypeNumeric},
		{"decimals and exponents", "v\n1.5\n.25\n1e3\n+2E-2\n", TypeNumeric},
		{"padded numbers", "v\n 1 \n2\n", TypeNumeric},
		{"missing tokens ignored", "v\n1\nNA\nnull\n", TypeNumeric},
		{"currency is text", "v\n$5\n6\n", TypeCategorical},
		{"words", "v\nred\nblue\n", TypeCategorical},
		{"all missing", "v\nNA\n\"\"\nNaN\n", TypeOther},
		{"no rows", "v\n", TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mustLoad(t, tt.raw)
			assert.Equal(t, tt.want, h.ColumnAt(0).Type())
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantLine int
	}{
		{"empty input", "", 0},
		{"blank header", "\n\n", 0},
		{"ragged row", "a,b\n1,2\n3\n", 3},
		{"bare quote", "a,b\n1,\"x\n", 2},
		{"duplicate column", "a,a\n1,2\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.raw))
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %T, want *ParseError", err)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, pe.Line)
			}
		})
	}
}

func TestLoad_BOMAndInvalidUTF8(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name\nab\xffc\n")...)
	h, err := Load(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, h.Columns())
	assert.Equal(t, "ab�c", h.Row(0)[0])
}

func TestLoad_Options(t *testing.T) {
	h := mustLoad(t, "a;b\n1;x\n-;y\n", WithDelimiter(';'), WithMissingTokens([]string{"-"}))

	assert.Equal(t, []string{"a", "b"}, h.Columns())
	a, _ := h.Column("a")
	assert.Equal(t, 1, a.MissingCount())
	assert.Equal(t, ';', h.Delimiter())

	out, err := h.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "a;b\n1;x\n-;y\n", string(out))
}

func TestBytes_RoundTrip(t *testing.T) {
	inputs := map[string]string{
		"mixed":          "age,city,note\n25,NY,\"hello, world\"\n,LA,NA\n40,NY,\"say \"\"hi\"\"\"\n",
		"missing tokens": "a,b\nNA,null\nN/A,\n",
		"single column":  "a\n1\n\"\"\n2\n",
		"header only":    "a,b\n",
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			h := mustLoad(t, raw)
			out, err := h.Bytes()
			require.NoError(t, err)

			again := mustLoad(t, string(out))
			assert.Equal(t, h.Columns(), again.Columns())
			assert.Equal(t, h.Schema(), again.Schema())
			require.Equal(t, h.RowCount(), again.RowCount())
			for i := 0; i < h.RowCount(); i++ {
				assert.Equal(t, h.Row(i), again.Row(i), "row %d", i)
			}
		})
	}
}

func TestBytes_PreservesText(t *testing.T) {
	raw := "age,city\n25,NY\nNA,LA\n40.0,NY\n"
	h := mustLoad(t, raw)

	out, err := h.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, string(out))
}

func TestHead(t *testing.T) {
	h := mustLoad(t, "a\n1\n2\n3\n")

	assert.Len(t, h.Head(2), 2)
	assert.Len(t, h.Head(10), 3)
	assert.Empty(t, h.Head(0))
}

func TestSchema_EqualAndFingerprint(t *testing.T) {
	a := mustLoad(t, "x,y\n1,a\n").Schema()
	b := mustLoad(t, "x,y\n2,b\n").Schema()
	c := mustLoad(t, "x,y\na,b\n").Schema()
	d := mustLoad(t, "y,x\n1,a\n").Schema()

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	assert.False(t, a.Equal(c), "type change must differ")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	assert.False(t, a.Equal(d), "column order must differ")
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}
