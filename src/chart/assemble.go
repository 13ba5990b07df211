// assemble.go
package chart

import (
	"fmt"
	"math"
	"strings"

	"TitanicInsight/src/processor"
	"TitanicInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// 高亮分类配色
var highlightColors = map[string]string{
	processor.HighlightChildren3rd: "#2a9d8f",
	processor.HighlightAdultMen2nd: "#e76f51",
	processor.HighlightOther:       "#b8b8b8",
}

// 连续色阶: 幸存率 0 -> 1
const (
	scaleLow     = "#d7191c"
	scaleHigh    = "#2c7bb6"
	missingColor = "#999999"
)

type Options struct {
	TopN int
}

// Build 根据图表类型从标准乘客表生成图表描述
func Build(kind Kind, passengers dataframe.DataFrame, opts Options) (Spec, error) {
	switch kind {
	case KindDemographic:
		summary, err := processor.OrderSummaryTable(passengers)
		if err != nil {
			return Spec{}, fmt.Errorf("生成人口统计汇总失败: %w", err)
		}
		return Demographic(summary)
	case KindFamilies:
		top, err := processor.TopFamilies(passengers, opts.TopN)
		if err != nil {
			return Spec{}, fmt.Errorf("生成家庭汇总失败: %w", err)
		}
		return Families(top)
	case KindAgeDivision:
		division, err := processor.AgeDivision(passengers)
		if err != nil {
			return Spec{}, fmt.Errorf("生成年龄划分汇总失败: %w", err)
		}
		return AgeDivision(division)
	}
	return Spec{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
}

// Demographic 每个 (舱位, 性别, 年龄段) 一根柱子, 按 Highlight 着色
func Demographic(summary dataframe.DataFrame) (Spec, error) {
	if err := requireColumns(summary, processor.ColPclass, processor.ColSex, processor.ColAgeCategory,
		processor.ColSurvivalRate, processor.ColHighlight); err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Kind:    KindDemographic,
		Title:   "Survival rate by class, sex and age group",
		XAxis:   "Class · Sex · Age group",
		YAxis:   "Survival rate",
		ColorBy: processor.ColHighlight,
		Percent: true,
	}
	pclass := summary.Col(processor.ColPclass)
	sex := summary.Col(processor.ColSex)
	cat := summary.Col(processor.ColAgeCategory)
	rate := summary.Col(processor.ColSurvivalRate)
	hl := summary.Col(processor.ColHighlight)

	for i := 0; i < summary.Nrow(); i++ {
		category := hl.Elem(i).String()
		value, text := rateValue(rate.Elem(i).Float())
		spec.Bars = append(spec.Bars, Bar{
			Label:    fmt.Sprintf("Class %s · %s · %s", pclass.Elem(i).String(), sex.Elem(i).String(), cat.Elem(i).String()),
			Value:    value,
			Text:     text,
			Color:    highlightColors[category],
			Category: category,
		})
	}
	for _, l := range []string{processor.HighlightChildren3rd, processor.HighlightAdultMen2nd, processor.HighlightOther} {
		spec.Legend = append(spec.Legend, LegendEntry{Label: l, Color: highlightColors[l]})
	}
	return spec, nil
}

// Families 每个姓氏一根柱子, 高度为家庭人数, 颜色为幸存率
func Families(summary dataframe.DataFrame) (Spec, error) {
	if err := requireColumns(summary, processor.ColLastName, processor.ColFamilySizeAgg,
		processor.ColSurvivalRate); err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Kind:    KindFamilies,
		Title:   "Largest families on board",
		XAxis:   "Last name",
		YAxis:   "Family size",
		ColorBy: processor.ColSurvivalRate,
		Legend:  scaleLegend(),
	}
	names := summary.Col(processor.ColLastName)
	sizes := summary.Col(processor.ColFamilySizeAgg)
	rate := summary.Col(processor.ColSurvivalRate)

	for i := 0; i < summary.Nrow(); i++ {
		size := sizes.Elem(i).Float()
		r := rate.Elem(i).Float()
		_, rateText := rateValue(r)
		spec.Bars = append(spec.Bars, Bar{
			Label:    names.Elem(i).String(),
			Value:    size,
			Text:     fmt.Sprintf("%d", int(size)),
			Color:    scaleColor(r),
			Category: rateText,
		})
	}
	return spec, nil
}

// AgeDivision 每个 (舱位, 是否年长) 一根柱子, 颜色为幸存率
func AgeDivision(summary dataframe.DataFrame) (Spec, error) {
	if err := requireColumns(summary, processor.ColPclass, processor.ColOlderPassenger,
		processor.ColSurvivalRate); err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Kind:    KindAgeDivision,
		Title:   "Survival rate of passengers older vs younger than their class median age",
		XAxis:   "Class · Age relative to class median",
		YAxis:   "Survival rate",
		ColorBy: processor.ColSurvivalRate,
		Percent: true,
		Legend:  scaleLegend(),
	}
	pclass := summary.Col(processor.ColPclass)
	older := summary.Col(processor.ColOlderPassenger)
	rate := summary.Col(processor.ColSurvivalRate)

	for i := 0; i < summary.Nrow(); i++ {
		group := "Younger"
		if b, err := older.Elem(i).Bool(); err == nil && b {
			group = "Older"
		}
		r := rate.Elem(i).Float()
		value, text := rateValue(r)
		spec.Bars = append(spec.Bars, Bar{
			Label:    fmt.Sprintf("Class %s · %s", pclass.Elem(i).String(), group),
			Value:    value,
			Text:     text,
			Color:    scaleColor(r),
			Category: group,
		})
	}
	return spec, nil
}

// rateValue 比例的柱高和文本, 缺失时柱高为 0
func rateValue(r float64) (float64, string) {
	if math.IsNaN(r) {
		return 0, "n/a"
	}
	return r, fmt.Sprintf("%.1f%%", r*100)
}

func scaleLegend() []LegendEntry {
	return []LegendEntry{
		{Label: "0%", Color: scaleLow},
		{Label: "50%", Color: scaleColor(0.5)},
		{Label: "100%", Color: scaleHigh},
		{Label: "n/a", Color: missingColor},
	}
}

// scaleColor 在 scaleLow 和 scaleHigh 之间线性插值
func scaleColor(r float64) string {
	if math.IsNaN(r) {
		return missingColor
	}
	r = math.Max(0, math.Min(1, r))
	lo, hi := parseHex(scaleLow), parseHex(scaleHigh)
	var mixed [3]uint8
	for i := range mixed {
		mixed[i] = uint8(math.Round(float64(lo[i]) + r*(float64(hi[i])-float64(lo[i]))))
	}
	return fmt.Sprintf("#%02x%02x%02x", mixed[0], mixed[1], mixed[2])
}

func parseHex(hex string) [3]uint8 {
	c := hexColor(hex)
	return [3]uint8{c.R, c.G, c.B}
}

// hexColor 将 #rrggbb 转为绘图颜色
func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func requireColumns(df dataframe.DataFrame, cols ...string) error {
	for _, col := range cols {
		if !utils.HasColumn(df, col) {
			return fmt.Errorf("%w: %s", processor.ErrMissingColumn, col)
		}
	}
	return nil
}
