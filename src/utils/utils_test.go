package utils

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseSize(t *testing.T) {
	n, err := ParseSize("10 * 1024 * 1024")
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), n)

	n, err = ParseSize("512")
	require.NoError(t, err)
	assert.Equal(t, int64(512), n)

	_, err = ParseSize("10 MB")
	assert.Error(t, err)
	_, err = ParseSize("")
	assert.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"Smith", "Jones"}, series.String, "LastName"),
		series.New([]float64{0.5, 0}, series.Float, "survival_rate"),
	)
	df = df.Mutate(series.New([]string{"NaN", "1"}, series.Float, "avg_fare"))

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf,
		Sheet{Name: "families", Data: df},
		Sheet{Name: "empty", Data: dataframe.New(series.New([]int{}, series.Int, "n"))},
	))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"families", "empty"}, f.GetSheetList())
	rows, err := f.GetRows("families")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"LastName", "survival_rate", "avg_fare"}, rows[0])
	assert.Equal(t, "Smith", rows[1][0])
	assert.Equal(t, "0.5", rows[1][1])
	// 缺失值写为空单元格
	missing, err := f.GetCellValue("families", "C2")
	require.NoError(t, err)
	assert.Equal(t, "", missing)
	fare, err := f.GetCellValue("families", "C3")
	require.NoError(t, err)
	assert.Equal(t, "1", fare)

	header, err := f.GetRows("empty")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"n"}}, header)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return Permanent(boom)
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)

	err = Retry(context.Background(), 2, time.Millisecond, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(ctx, 3, time.Hour, func() error { return boom })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]int{1, 2}, 3))
}
