package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"TitanicInsight/src/chart"
	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const passengersCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Fare
1,0,3,"Palsson, Master. Gosta Leonard",male,2,3,1,21.075
2,0,3,"Palsson, Miss. Torborg Danira",female,8,3,1,21.075
3,1,3,"Palsson, Mrs. Nils",female,29,0,4,21.075
4,0,2,"Smith, Mr. John",male,30,0,0,13
5,1,2,"Jones, Mr. Tom",male,45,1,0,26
6,1,1,"Cumings, Mrs. John Bradley",female,38,1,0,71.2833
7,0,1,"Allison, Mr. Hudson",male,,1,2,151.55
`

func loadPassengers(t *testing.T, csv string) dataframe.DataFrame {
	t.Helper()
	raw, err := file.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	df, err := processor.NormalizePassengers(raw, nil)
	require.NoError(t, err)
	return df
}

func TestBuild(t *testing.T) {
	r, err := Build(loadPassengers(t, passengersCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, processor.DefaultTopN, r.TopN)
	assert.Equal(t, 7, r.Metrics.TotalPassengers)
	assert.Equal(t, 6, r.Metrics.WithAge)
	assert.Equal(t, 5, r.Metrics.UniqueLastNames)

	var names []string
	for _, tbl := range r.Tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{TableDemographic, TableCounts, TableFamilies,
		TableAgeDivision, TableLastNames, TableFamilyFares}, names)

	families, err := r.Table(TableFamilies)
	require.NoError(t, err)
	assert.Equal(t, "Palsson", families.Col(processor.ColLastName).Records()[0])

	for _, kind := range chart.Kinds {
		spec, err := r.Chart(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, spec.Kind)
		assert.False(t, spec.Empty())
	}

	_, err = r.Table("nope")
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = r.Chart("nope")
	assert.ErrorIs(t, err, chart.ErrUnknownKind)
}

func TestBuild_WithoutFareColumns(t *testing.T) {
	csv := "PassengerId,Survived,Pclass,Name,Sex,Age\n" +
		"1,0,3,\"Braund, Mr. Owen Harris\",male,22\n" +
		"2,1,1,\"Cumings, Mrs. John Bradley\",female,38\n"
	r, err := Build(loadPassengers(t, csv), 5)
	require.NoError(t, err)

	_, err = r.Table(TableFamilyFares)
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Len(t, r.Tables, 5)
}

func TestWrite(t *testing.T) {
	r, err := Build(loadPassengers(t, passengersCSV), 3)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	files, err := r.Write(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1+2*len(chart.Kinds))

	f, err := excelize.OpenFile(filepath.Join(dir, WorkbookName))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{TableDemographic, TableCounts, TableFamilies,
		TableAgeDivision, TableLastNames, TableFamilyFares}, f.GetSheetList())
	top, err := f.GetCellValue(TableFamilies, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Palsson", top)

	png, err := os.ReadFile(filepath.Join(dir, "families.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	data, err := os.ReadFile(filepath.Join(dir, "families.json"))
	require.NoError(t, err)
	var spec chart.Spec
	require.NoError(t, json.Unmarshal(data, &spec))
	assert.Len(t, spec.Bars, 3)
}

func TestWrite_EmptyTable(t *testing.T) {
	r, err := Build(loadPassengers(t, "PassengerId,Survived,Pclass,Name,Sex,Age\n"), 0)
	require.NoError(t, err)

	files, err := r.Write(t.TempDir())
	require.NoError(t, err)
	// 空图表只写 JSON
	for _, f := range files {
		assert.NotEqual(t, ".png", filepath.Ext(f))
	}
	assert.Len(t, files, 1+len(chart.Kinds))
}

func TestWriteText(t *testing.T) {
	r, err := Build(loadPassengers(t, passengersCSV), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "There are 5 unique last names in the dataset.")
	for _, kind := range chart.Kinds {
		assert.Contains(t, out, kind.Question())
	}
	assert.Contains(t, out, "Palsson")
}
