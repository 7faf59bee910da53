package engine

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ageCity = "age,city\n25,NY\n,LA\n40,NY\n"

func TestProfile_AgeCity(t *testing.T) {
	p := Profile(mustLoad(t, ageCity))

	assert.Equal(t, 3, p.Rows)
	assert.Equal(t, 2, p.Cols)
	require.Len(t, p.Columns, 2)

	age := p.Columns[0]
	assert.Equal(t, "age", age.Name)
	assert.Equal(t, TypeNumeric, age.Type)
	assert.Equal(t, 1, age.Missing)
	assert.InDelta(t, 33.33, age.MissingPct, 0.01)
	assert.Equal(t, 2, age.Unique)
	assert.Equal(t, "25", age.Sample)
	require.NotNil(t, age.Mean)
	assert.Equal(t, 32.5, *age.Mean)
	assert.Equal(t, 25.0, *age.Min)
	assert.Equal(t, 40.0, *age.Max)
	assert.Equal(t, 32.5, *age.Median)
	assert.InDelta(t, math.Sqrt(112.5), *age.Std, 1e-9)
	assert.Nil(t, age.Mode)

	city := p.Columns[1]
	assert.Equal(t, TypeCategorical, city.Type)
	assert.Equal(t, 0, city.Missing)
	assert.Equal(t, 2, city.Unique)
	require.NotNil(t, city.Mode)
	assert.Equal(t, "NY", *city.Mode)
	assert.Nil(t, city.Mean)

	assert.Equal(t, mustLoad(t, ageCity).Schema(), p.Schema)
}

func TestProfile_UndefinedStatistics(t *testing.T) {
	p := Profile(mustLoad(t, "empty,one,tie\nNA,5,b\n,,a\n"))

	empty, ok := p.Column("empty")
	require.True(t, ok)
	assert.Equal(t, TypeOther, empty.Type)
	assert.Equal(t, 100.0, empty.MissingPct)
	assert.Nil(t, empty.Mean, "all-missing column has no mean")
	assert.Nil(t, empty.Mode)
	assert.Empty(t, empty.Sample)

	one, _ := p.Column("one")
	require.NotNil(t, one.Mean)
	assert.Equal(t, 5.0, *one.Mean)
	assert.Nil(t, one.Std, "std needs two values")

	tie, _ := p.Column("tie")
	require.NotNil(t, tie.Mode)
	assert.Equal(t, "b", *tie.Mode, "ties go to the first value")
}

func TestProfile_Quartiles(t *testing.T) {
	p := Profile(mustLoad(t, "v\n1\n2\n3\n4\n5\n"))
	v := p.Columns[0]
	require.NotNil(t, v.Q1)
	require.NotNil(t, v.Q3)
	assert.Equal(t, 2.0, *v.Q1)
	assert.Equal(t, 3.0, *v.Median)
	assert.Equal(t, 4.0, *v.Q3)
}

func TestProfile_ExtremeValues(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		wantMean float64
		wantStd  bool
	}{
		{"same large values", "big,label\n1e308,a\n1e308,b\n,c\n", 1e308, true},
		{"opposite large values", "big\n1.7e308\n-1.7e308\n", 0, false},
		{"near max", "big\n1.5e308\n1.7e308\n", 1.6e308, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Profile(mustLoad(t, tt.csv))
			big := p.Columns[0]
			require.NotNil(t, big.Mean)
			if tt.wantMean == 0 {
				assert.Zero(t, *big.Mean)
			} else {
				assert.InEpsilon(t, tt.wantMean, *big.Mean, 1e-9)
			}
			assert.False(t, math.IsInf(*big.Median, 0))
			if tt.wantStd {
				require.NotNil(t, big.Std)
				assert.False(t, math.IsInf(*big.Std, 0))
			} else {
				assert.Nil(t, big.Std, "a deviation beyond float64 range is undefined")
			}

			_, err := json.Marshal(p)
			assert.NoError(t, err)
		})
	}
}

func TestProfile_NumericUniqueByValue(t *testing.T) {
	p := Profile(mustLoad(t, "v\n1\n1.0\n1e0\n2\n"))
	assert.Equal(t, 2, p.Columns[0].Unique)
}

func TestProfile_ZeroRows(t *testing.T) {
	p := Profile(mustLoad(t, "a,b\n"))

	assert.Equal(t, 0, p.Rows)
	for _, c := range p.Columns {
		assert.Equal(t, 0.0, c.MissingPct)
	}
}

func TestProfile_MemoryEstimate(t *testing.T) {
	// age: 3+16 header, 3 numeric cells of 8 bytes
	// city: 4+16 header, 3 cells of 2+16 bytes
	p := Profile(mustLoad(t, ageCity))
	assert.Equal(t, int64(19+24+20+54), p.MemoryBytes)

	var small, large strings.Builder
	small.WriteString("a,b\n")
	large.WriteString("a,b\n")
	for i := 0; i < 10; i++ {
		small.WriteString("1,x\n")
	}
	for i := 0; i < 20; i++ {
		large.WriteString("1,x\n")
	}
	ps := Profile(mustLoad(t, small.String()))
	pl := Profile(mustLoad(t, large.String()))
	assert.Less(t, ps.MemoryBytes, pl.MemoryBytes)
}

func TestProfile_MemoryMonotonicInColumns(t *testing.T) {
	narrow := Profile(mustLoad(t, "a\n1\n2\n"))
	wide := Profile(mustLoad(t, "a,b\n1,2\n2,3\n"))
	assert.Less(t, narrow.MemoryBytes, wide.MemoryBytes)
}

func TestProfile_ReadOnly(t *testing.T) {
	h := mustLoad(t, ageCity)
	before, err := h.Bytes()
	require.NoError(t, err)

	Profile(h)

	after, err := h.Bytes()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
