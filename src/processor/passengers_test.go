package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTable(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	require.NoError(t, df.Err)
	return df
}

func TestNormalizePassengers_Types(t *testing.T) {
	df := loadTable(t,
		[]string{"1", "true", "3", "A, X", " male ", "22.5", "0", "0", ""},
	)

	assert.Equal(t, series.Int, df.Col(ColSurvived).Type())
	assert.Equal(t, series.Int, df.Col(ColPclass).Type())
	assert.Equal(t, series.Float, df.Col(ColAge).Type())
	assert.Equal(t, series.Float, df.Col(ColFare).Type())
	assert.Equal(t, series.String, df.Col(ColSex).Type())

	assert.Equal(t, 1, int(df.Col(ColSurvived).Elem(0).Float()))
	assert.Equal(t, 22.5, df.Col(ColAge).Elem(0).Float())
	assert.Equal(t, "male", df.Col(ColSex).Elem(0).String())
	assert.True(t, df.Col(ColFare).Elem(0).IsNA())
}

func TestNormalizePassengers_ColumnMapping(t *testing.T) {
	raw := rawTable(t, [][]string{
		{"survived", "class", "full_name", "gender", "age"},
		{"0", "2", "Smith, Mr. A", "male", "40"},
	})

	df, err := NormalizePassengers(raw, map[string]string{
		ColSurvived: "survived",
		ColPclass:   "class",
		ColName:     "full_name",
		ColSex:      "gender",
		ColAge:      "age",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ColSurvived, ColPclass, ColName, ColSex, ColAge}, df.Names())

	summary, err := OrderSummaryTable(df)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Nrow())
}

func TestNormalizePassengers_MissingColumn(t *testing.T) {
	raw := rawTable(t, [][]string{
		{"Survived", "Pclass", "Name", "Sex"},
		{"0", "2", "Smith, Mr. A", "male"},
	})

	_, err := NormalizePassengers(raw, nil)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColAge)
}

func TestNormalizePassengers_TypeMismatch(t *testing.T) {
	cases := map[string][]string{
		"non-numeric age":    {"1", "0", "3", "A, X", "male", "old", "0", "0", "1"},
		"fractional class":   {"1", "0", "2.5", "A, X", "male", "30", "0", "0", "1"},
		"missing pclass":     {"1", "0", "", "A, X", "male", "30", "0", "0", "1"},
		"non-numeric parch":  {"1", "0", "3", "A, X", "male", "30", "0", "two", "1"},
		"text survival flag": {"1", "maybe", "3", "A, X", "male", "30", "0", "0", "1"},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			raw := rawTable(t, [][]string{header, row})
			_, err := NormalizePassengers(raw, nil)
			assert.ErrorIs(t, err, ErrTypeMismatch)
		})
	}
}

func TestNormalizePassengers_KeepsUnknownColumns(t *testing.T) {
	raw := rawTable(t, [][]string{
		{"Survived", "Pclass", "Name", "Sex", "Age", "Embarked"},
		{"0", "2", "Smith, Mr. A", "male", "40", "S"},
	})

	df, err := NormalizePassengers(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, df.Col("Embarked").Records())
	// 原表不受影响
	assert.Equal(t, series.String, raw.Col(ColAge).Type())
}
