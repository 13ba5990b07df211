// render.go
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
)

var ErrEmptyChart = errors.New("图表没有数据")

const (
	barWidth   = 40
	barSpacing = 16
	minWidth   = 800
	height     = 520
)

// Render 将图表描述绘制为 PNG 写入 w
func Render(spec Spec, w io.Writer) error {
	if spec.Empty() {
		return fmt.Errorf("%s: %w", spec.Kind, ErrEmptyChart)
	}

	bars := make([]gochart.Value, 0, len(spec.Bars))
	maxValue := 0.0
	for _, b := range spec.Bars {
		color := hexColor(b.Color)
		if b.Color == "" {
			color = hexColor(missingColor)
		}
		bars = append(bars, gochart.Value{
			Label: b.Label,
			Value: b.Value,
			Style: gochart.Style{
				FillColor:   color,
				StrokeColor: color,
				StrokeWidth: 1,
			},
		})
		maxValue = math.Max(maxValue, b.Value)
	}

	yRange := &gochart.ContinuousRange{Min: 0, Max: 1}
	formatter := percentFormatter
	if !spec.Percent {
		yRange.Max = math.Max(1, math.Ceil(maxValue*1.1))
		formatter = integerFormatter
	}

	width := len(bars)*(barWidth+barSpacing) + 160
	if width < minWidth {
		width = minWidth
	}

	graph := gochart.BarChart{
		Title: spec.Title,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 120},
		},
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis: gochart.Style{
			TextRotationDegrees: 45,
		},
		YAxis: gochart.YAxis{
			Name:           spec.YAxis,
			Range:          yRange,
			ValueFormatter: formatter,
		},
		Bars: bars,
	}
	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("绘制图表 %s 失败: %w", spec.Kind, err)
	}
	return nil
}

func percentFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f%%", f*100)
	}
	return ""
}

func integerFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%d", int(f))
	}
	return ""
}
