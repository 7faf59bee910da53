package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Dispatch(t *testing.T) {
	h := mustLoad(t, withGaps)

	tests := []struct {
		name    string
		op      Operation
		columns []string
		rows    int
	}{
		{"drop rows", Operation{Kind: OpDropRows}, []string{"age", "city", "score"}, 2},
		{"drop column", Operation{Kind: OpDropColumn, Column: "score"}, []string{"age", "city"}, 3},
		{"fill mean all", Operation{Kind: OpFillMean, Column: AllColumnsTarget}, []string{"age", "city", "score"}, 3},
		{"fill zero one", Operation{Kind: OpFillZero, Column: "age"}, []string{"age", "city", "score"}, 3},
		{"fill mode", Operation{Kind: OpFillMode}, []string{"age", "city", "score"}, 3},
		{"rename", Operation{Kind: OpRename, Column: "city", NewName: "town"}, []string{"age", "town", "score"}, 3},
		{"encode onehot", Operation{Kind: OpEncode, Column: "city", Method: EncodeOneHot}, []string{"age", "score", "city_NY"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(h, tt.op, h.Schema())
			require.NoError(t, err)
			assert.Equal(t, tt.columns, out.Columns())
			assert.Equal(t, tt.rows, out.RowCount())
			assertRectangular(t, out)
		})
	}
}

func TestApply_SchemaMismatch(t *testing.T) {
	h := mustLoad(t, ageCity)
	stale := mustLoad(t, "age,town\n1,x\n").Schema()

	_, err := Apply(h, Operation{Kind: OpDropRows}, stale)

	var sme *SchemaMismatchError
	require.True(t, errors.As(err, &sme), "got %v", err)
	assert.Equal(t, stale, sme.Expected)
	assert.Equal(t, h.Schema(), sme.Actual)
	assert.Contains(t, sme.Error(), "town")
}

func TestApply_TypeChangeIsMismatch(t *testing.T) {
	h := mustLoad(t, "v\n1\n")
	expected := Schema{{Name: "v", Type: TypeCategorical}}

	_, err := Apply(h, Operation{Kind: OpDropRows}, expected)
	var sme *SchemaMismatchError
	assert.True(t, errors.As(err, &sme))
}

func TestApply_InvalidOperation(t *testing.T) {
	h := mustLoad(t, ageCity)

	for _, op := range []Operation{
		{Kind: "explode"},
		{},
		{Kind: OpRename, Column: "age", NewName: "city"},
		{Kind: OpRename, Column: "age", NewName: " "},
		{Kind: OpMapValues, Column: "missing"},
		{Kind: OpEncode, Column: "city", Method: "binary"},
	} {
		t.Run(op.String(), func(t *testing.T) {
			_, err := Apply(h, op, nil)
			var ioe *InvalidOperationError
			assert.True(t, errors.As(err, &ioe), "got %v", err)
		})
	}
}

func TestMapValues(t *testing.T) {
	h := mustLoad(t, "answer,n\nyes,1\nno,2\n,3\nmaybe,4\n")

	out, err := MapValues(h, "answer", map[string]string{"yes": "1", "no": "0", "maybe": ""})
	require.NoError(t, err)

	answer, _ := out.Column("answer")
	assert.Equal(t, "1", answer.Cell(0).Text)
	assert.Equal(t, "0", answer.Cell(1).Text)
	assert.True(t, answer.Cell(2).Missing, "missing cells are not mapped")
	assert.Equal(t, "maybe", answer.Cell(3).Text, "empty targets are ignored")
	assert.Equal(t, TypeCategorical, answer.Type())

	numeric, err := MapValues(out, "answer", map[string]string{"maybe": "0.5"})
	require.NoError(t, err)
	answer, _ = numeric.Column("answer")
	assert.Equal(t, TypeNumeric, answer.Type(), "type must be re-derived")
}

func TestUniqueValues(t *testing.T) {
	h := mustLoad(t, "c\nb\na\n\nb\nc\n")

	vals, err := UniqueValues(h, "c", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, vals)

	vals, err = UniqueValues(h, "c", 2)
	require.NoError(t, err)
	assert.Empty(t, vals)

	_, err = UniqueValues(h, "x", 0)
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	h := mustLoad(t, "age,city\n25,NY\n30,\n40,LA\n")

	t.Run("label", func(t *testing.T) {
		out, err := Encode(h, "city", EncodeLabel)
		require.NoError(t, err)
		city, _ := out.Column("city")
		// sorted distinct: LA, NY, nan
		assert.Equal(t, "1", city.Cell(0).Text)
		assert.Equal(t, "2", city.Cell(1).Text)
		assert.Equal(t, "0", city.Cell(2).Text)
		assert.Equal(t, TypeNumeric, city.Type())
		assert.Equal(t, 0, city.MissingCount())
	})

	t.Run("ordinal", func(t *testing.T) {
		out, err := Encode(h, "city", EncodeOrdinal)
		require.NoError(t, err)
		city, _ := out.Column("city")
		assert.Equal(t, "1", city.Cell(0).Text)
		assert.Equal(t, "-1", city.Cell(1).Text)
		assert.Equal(t, "0", city.Cell(2).Text)
	})

	t.Run("ordinal numeric by value", func(t *testing.T) {
		nums := mustLoad(t, "n,k\n9,a\n10,b\n2,c\n,d\n10.0,e\n")
		out, err := Encode(nums, "n", EncodeOrdinal)
		require.NoError(t, err)
		n, _ := out.Column("n")
		var got []string
		for i := 0; i < out.RowCount(); i++ {
			got = append(got, n.Cell(i).Text)
		}
		assert.Equal(t, []string{"1", "2", "0", "-1", "2"}, got)
	})

	t.Run("onehot", func(t *testing.T) {
		out, err := Encode(h, "city", EncodeOneHot)
		require.NoError(t, err)
		assert.Equal(t, []string{"age", "city_LA", "city_NY"}, out.Columns())
		assert.Equal(t, []string{"25", "0", "1"}, out.Row(0))
		assert.Equal(t, []string{"30", "0", "0"}, out.Row(1))
		assert.Equal(t, []string{"40", "1", "0"}, out.Row(2))
	})

	t.Run("onehot name clash", func(t *testing.T) {
		clash := mustLoad(t, "city,city_NY\nNY,1\n")
		_, err := Encode(clash, "city", EncodeOneHot)
		var ioe *InvalidOperationError
		assert.True(t, errors.As(err, &ioe))
	})
}

func TestSummarize(t *testing.T) {
	h := mustLoad(t, withGaps)

	tests := []struct {
		op   Operation
		want string
	}{
		{Operation{Kind: OpDropRows}, "Dropped 1 rows with missing values."},
		{Operation{Kind: OpFillZero}, "Filled 2 missing numeric values with 0."},
		{Operation{Kind: OpFillMode}, "Filled 1 missing categorical values with the column mode."},
		{Operation{Kind: OpDropColumn, Column: "age"}, "Dropped column 'age'."},
		{Operation{Kind: OpRename, Column: "age", NewName: "years"}, "Renamed column 'age' to 'years'."},
		{Operation{Kind: OpEncode, Column: "city", Method: EncodeOneHot}, "One-hot encoded column 'city' into 1 column."},
	}

	for _, tt := range tests {
		t.Run(string(tt.op.Kind), func(t *testing.T) {
			out, err := Apply(h, tt.op, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Summarize(tt.op, h, out))
		})
	}
}
