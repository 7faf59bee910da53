package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyColumn(t *testing.T) {
	tests := []struct {
		name string
		cp   ColumnProfile
		rows int
		want []Flag
	}{
		{
			name: "clean low cardinality",
			cp:   ColumnProfile{Missing: 0, Unique: 2},
			rows: 10,
			want: []Flag{},
		},
		{
			name: "some missing",
			cp:   ColumnProfile{Missing: 2, Unique: 3},
			rows: 10,
			want: []Flag{FlagHasMissing},
		},
		{
			name: "all missing is also constant",
			cp:   ColumnProfile{Missing: 4, Unique: 0},
			rows: 4,
			want: []Flag{FlagHasMissing, FlagAllMissing, FlagConstant},
		},
		{
			name: "single value",
			cp:   ColumnProfile{Unique: 1},
			rows: 5,
			want: []Flag{FlagConstant},
		},
		{
			name: "every value distinct",
			cp:   ColumnProfile{Unique: 10},
			rows: 10,
			want: []Flag{FlagHighCardinality},
		},
		{
			name: "ratio at threshold is not high",
			cp:   ColumnProfile{Unique: 9},
			rows: 10,
			want: []Flag{},
		},
		{
			name: "one row is never high cardinality",
			cp:   ColumnProfile{Unique: 1},
			rows: 1,
			want: []Flag{FlagConstant},
		},
		{
			name: "zero rows has no flags",
			cp:   ColumnProfile{},
			rows: 0,
			want: []Flag{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyColumn(tt.cp, tt.rows, ClassifyOptions{})
			assert.Equal(t, tt.want, got.Flags())
		})
	}
}

func TestClassifyColumn_Threshold(t *testing.T) {
	cp := ColumnProfile{Unique: 6}

	assert.False(t, ClassifyColumn(cp, 10, ClassifyOptions{}).Has(FlagHighCardinality))
	assert.True(t, ClassifyColumn(cp, 10, ClassifyOptions{HighCardinalityThreshold: 0.5}).Has(FlagHighCardinality))
}

func TestClassify_Dataset(t *testing.T) {
	h := mustLoad(t, "id,age,city,blank\n1,25,NY,\n2,,LA,\n3,40,NY,\n")
	flags := Classify(Profile(h), ClassifyOptions{})

	require.Len(t, flags, 4)
	assert.Equal(t, "high_cardinality", flags["id"].String())
	assert.True(t, flags["age"].Has(FlagHasMissing))
	assert.False(t, flags["age"].Has(FlagAllMissing))
	assert.Equal(t, FlagSet(0), flags["city"])
	assert.True(t, flags["blank"].Has(FlagAllMissing))
	assert.True(t, flags["blank"].Has(FlagConstant))
}

func TestFlagSet_MarshalJSON(t *testing.T) {
	var empty FlagSet
	b, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	s := empty.With(FlagConstant).With(FlagHasMissing)
	b, err = json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["has_missing","constant"]`, string(b))
}
