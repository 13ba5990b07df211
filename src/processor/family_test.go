package processor

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastName(t *testing.T) {
	cases := map[string]string{
		"Braund, Mr. Owen Harris":   "Braund",
		"  de Messemaeker , Mrs.":   "de Messemaeker",
		"O'Brien, Mr. Thomas, Jr.":  "O'Brien",
		"Nobody":                    "Nobody",
		"":                          "",
		", Mr. Without Family Name": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, LastName(in), "name %q", in)
	}
}

func TestFamilySize(t *testing.T) {
	assert.Equal(t, 1, FamilySize(0, 0))
	assert.Equal(t, 6, FamilySize(3, 2))
}

func TestFamilySummary(t *testing.T) {
	df := loadTable(t,
		[]string{"1", "1", "3", "Smith, Mr. A", "male", "30", "0", "0", "1"},
		[]string{"2", "0", "3", "Smith, Mrs. B", "female", "31", "0", "0", "1"},
		[]string{"3", "1", "1", "Jones, Miss. C", "female", "", "0", "0", "1"},
		[]string{"4", "1", "2", "Adams, Mr. D", "male", "40", "0", "0", "1"},
		[]string{"5", "0", "2", "Brown, Mr. E", "male", "50", "0", "0", "1"},
		[]string{"6", "0", "2", "Brown, Mrs. F", "female", "48", "0", "0", "1"},
	)

	summary, err := FamilySummary(df)
	require.NoError(t, err)

	assert.Equal(t, []string{ColLastName, ColFamilySizeAgg, ColSurvivalRate}, summary.Names())
	// 人数相同的家庭按姓氏升序
	want := []string{"Brown", "Smith", "Adams", "Jones"}
	if diff := cmp.Diff(want, summary.Col(ColLastName).Records()); diff != "" {
		t.Errorf("family order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"2", "2", "1", "1"}, summary.Col(ColFamilySizeAgg).Records())
	assert.Equal(t, []float64{0, 0.5, 1, 1}, summary.Col(ColSurvivalRate).Float())

	sizes, err := summary.Col(ColFamilySizeAgg).Int()
	require.NoError(t, err)
	total := 0
	for _, s := range sizes {
		total += s
	}
	assert.Equal(t, df.Nrow(), total)
}

func TestTopFamilies(t *testing.T) {
	df := sampleTable(t)

	top, err := TopFamilies(df, 2)
	require.NoError(t, err)
	require.Equal(t, 2, top.Nrow())
	assert.Equal(t, "Palsson", top.Col(ColLastName).Elem(0).String())
	assert.Equal(t, 3, int(top.Col(ColFamilySizeAgg).Elem(0).Float()))

	distinct, err := CountLastNames(df)
	require.NoError(t, err)
	assert.Equal(t, 16, distinct)

	all, err := TopFamilies(df, 100)
	require.NoError(t, err)
	assert.Equal(t, distinct, all.Nrow())

	def, err := TopFamilies(df, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopN, def.Nrow())
}

func TestLastNames_FirstSeenOrder(t *testing.T) {
	df := loadTable(t,
		[]string{"1", "1", "3", "Smith, Mr. A", "male", "30", "0", "0", "1"},
		[]string{"2", "0", "3", "Jones, Mrs. B", "female", "31", "0", "0", "1"},
		[]string{"3", "1", "1", "Smith, Miss. C", "female", "", "0", "0", "1"},
	)

	names, err := LastNames(df)
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith", "Jones"}, names.Col(ColLastName).Records())
	assert.Equal(t, []string{"2", "1"}, names.Col(ColCount).Records())
}

func TestLastNames_LiteralNAIsAFamily(t *testing.T) {
	df := loadTable(t,
		[]string{"1", "1", "3", "NA", "male", "30", "0", "0", "1"},
		[]string{"2", "0", "3", "NaN", "female", "31", "0", "0", "1"},
		[]string{"3", "1", "1", "NA, Mrs. B", "female", "", "0", "0", "1"},
	)

	names, err := LastNames(df)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA", "NaN"}, names.Col(ColLastName).Records())
	assert.Equal(t, []string{"2", "1"}, names.Col(ColCount).Records())

	summary, err := FamilySummary(df)
	require.NoError(t, err)
	assert.Equal(t, []string{"NA", "NaN"}, summary.Col(ColLastName).Records())
	assert.Equal(t, []float64{1, 0}, summary.Col(ColSurvivalRate).Float())
}

func TestAddFamilySize(t *testing.T) {
	df := loadTable(t,
		[]string{"1", "1", "3", "Smith, Mr. A", "male", "30", "1", "2", "1"},
		[]string{"2", "0", "3", "Jones, Mrs. B", "female", "31", "0", "0", "1"},
	)

	withSize, err := AddFamilySize(df)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "1"}, withSize.Col(ColFamilySize).Records())
	assert.NotContains(t, df.Names(), ColFamilySize)
}

func TestFamilyFareSummary(t *testing.T) {
	df := loadTable(t,
		[]string{"1", "1", "3", "A, X", "male", "30", "0", "0", "10"},
		[]string{"2", "0", "3", "B, X", "female", "31", "0", "0", "20"},
		[]string{"3", "1", "1", "C, X", "female", "", "1", "0", ""},
		[]string{"4", "1", "3", "D, X", "female", "", "1", "0", "5"},
	)

	summary, err := FamilyFareSummary(df)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "2"}, summary.Col(ColFamilySize).Records())
	assert.Equal(t, []string{"3", "1", "3"}, summary.Col(ColPclass).Records())
	assert.Equal(t, []string{"2", "1", "1"}, summary.Col(ColNPassengers).Records())

	avg := summary.Col(ColAvgFare).Float()
	assert.Equal(t, 15.0, avg[0])
	assert.True(t, math.IsNaN(avg[1]))
	assert.Equal(t, 5.0, avg[2])
	assert.Equal(t, 10.0, summary.Col(ColMinFare).Float()[0])
	assert.Equal(t, 20.0, summary.Col(ColMaxFare).Float()[0])
}

func TestFamilyFareSummary_EmptyTable(t *testing.T) {
	summary, err := FamilyFareSummary(emptyTable())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Nrow())
	assert.Equal(t, []string{ColFamilySize, ColPclass, ColNPassengers, ColAvgFare, ColMinFare, ColMaxFare}, summary.Names())
}

func TestDataProcessor_Metrics(t *testing.T) {
	raw := loadTable(t,
		[]string{"1", "1", "3", "Smith, Mr. A", "male", "30", "0", "0", "1"},
		[]string{"2", "0", "3", "Smith, Mrs. B", "female", "", "0", "0", "1"},
		[]string{"3", "1", "1", "Jones, Miss. C", "female", "4", "0", "0", "1"},
		[]string{"4", "0", "1", "Adams, Mr. D", "male", "60", "0", "0", "1"},
	)

	p := NewDataProcessor(raw)
	require.NoError(t, p.CleanData(nil))

	m, err := p.CalculateMetrics()
	require.NoError(t, err)
	want := Metrics{
		TotalPassengers: 4,
		WithAge:         3,
		Survivors:       2,
		SurvivalRate:    0.5,
		UniqueLastNames: 3,
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("CalculateMetrics mismatch (-want +got):\n%s", diff)
	}
}
