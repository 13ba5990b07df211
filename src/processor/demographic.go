package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// AgeCategory 年龄段, 按声明顺序排序
type AgeCategory int

const (
	Child AgeCategory = iota
	Teen
	Adult
	Senior
)

// 年龄段下界, 区间左闭右开: [0,12) [12,19) [19,59) [59,∞)
var ageBins = []float64{0, 12, 19, 59}

var ageLabels = []string{"Child", "Teen", "Adult", "Senior"}

func (c AgeCategory) String() string {
	if c < Child || c > Senior {
		return "Unknown"
	}
	return ageLabels[c]
}

// ParseAgeCategory 将标签解析为年龄段
func ParseAgeCategory(s string) (AgeCategory, error) {
	for i, l := range ageLabels {
		if l == s {
			return AgeCategory(i), nil
		}
	}
	return 0, fmt.Errorf("未知的年龄段: %q", s)
}

// CategorizeAge 返回年龄所属的年龄段
// 年龄缺失(NaN)或为负数时 ok 为 false
func CategorizeAge(age float64) (AgeCategory, bool) {
	if math.IsNaN(age) || age < ageBins[0] {
		return 0, false
	}
	cat := Child
	for i, lower := range ageBins {
		if age >= lower {
			cat = AgeCategory(i)
		}
	}
	return cat, true
}

// 高亮标签
const (
	HighlightChildren3rd = "Children 3rd Class"
	HighlightAdultMen2nd = "Adult Men 2nd Class"
	HighlightOther       = "Other"
)

// HighlightLabel 图表着色用的展示标签, 不参与数值聚合
func HighlightLabel(pclass int, sex string, cat AgeCategory) string {
	switch {
	case pclass == 3 && cat == Child:
		return HighlightChildren3rd
	case pclass == 2 && cat == Adult && sex == "male":
		return HighlightAdultMen2nd
	default:
		return HighlightOther
	}
}

// AddAgeCategory 返回添加 AgeCategory 列后的副本
// 年龄缺失的行被移除, 原表不受影响
func AddAgeCategory(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(data, ColAge); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireNumeric(data, ColAge); err != nil {
		return dataframe.DataFrame{}, err
	}

	df := data.Copy()
	if df.Nrow() == 0 {
		return df.Mutate(series.New([]string{}, series.String, ColAgeCategory)), nil
	}
	df = df.Filter(
		dataframe.F{
			Colname:    ColAge,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				if el.IsNA() {
					return false
				}
				_, ok := CategorizeAge(el.Float())
				return ok
			},
		},
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("过滤缺失年龄失败: %w", df.Err)
	}

	ages := df.Col(ColAge)
	labels := make([]string, df.Nrow())
	for i := range labels {
		cat, _ := CategorizeAge(ages.Elem(i).Float())
		labels[i] = cat.String()
	}
	return df.Mutate(series.New(labels, series.String, ColAgeCategory)), nil
}

// demographicColumns 汇总表的列顺序
var demographicColumns = []string{
	ColPclass, ColSex, ColAgeCategory,
	ColCount, ColNPassengers, ColNSurvivors, ColSurvivalRate,
}

func emptyDemographics() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{}, series.Int, ColPclass),
		series.New([]string{}, series.String, ColSex),
		series.New([]string{}, series.String, ColAgeCategory),
		series.New([]int{}, series.Int, ColCount),
		series.New([]int{}, series.Int, ColNPassengers),
		series.New([]int{}, series.Int, ColNSurvivors),
		series.New([]float64{}, series.Float, ColSurvivalRate),
	)
}

// groupDemographics 按 (Pclass, Sex, AgeCategory) 分组聚合
// 只输出实际出现的组合; 排序: Pclass 升序, Sex 字母序, AgeCategory 按年龄段顺序
func groupDemographics(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(data, ColAge, ColPclass, ColSex, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireNumeric(data, ColAge, ColPclass, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}
	df, err := AddAgeCategory(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if df.Nrow() == 0 {
		return emptyDemographics(), nil
	}

	// 分组键不能含缺失值, 先统一舱位和性别
	pcCol, sexCol := df.Col(ColPclass), df.Col(ColSex)
	pclass := make([]int, df.Nrow())
	sexes := make([]string, df.Nrow())
	for i := range pclass {
		pclass[i], _ = intAt(pcCol, i)
		sexes[i] = sexAt(sexCol, i)
	}
	surv, obs := survivalFlags(df.Col(ColSurvived))
	keyed := dataframe.New(
		series.New(pclass, series.Int, ColPclass),
		series.New(sexes, series.String, ColSex),
		df.Col(ColAgeCategory),
		surv,
		obs,
	)

	agg, err := groupAggregate(keyed,
		[]string{ColPclass, ColSex, ColAgeCategory},
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT, dataframe.Aggregation_SUM, dataframe.Aggregation_SUM},
		[]string{colObserved, colObserved, colSurvivedFlag},
	)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	cats := agg.Col(ColAgeCategory).Records()
	ranks := make([]int, len(cats))
	for i, c := range cats {
		cat, err := ParseAgeCategory(c)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		ranks[i] = int(cat)
	}
	nPass := agg.Col(aggColumn(colObserved, dataframe.Aggregation_SUM))
	nSurv := agg.Col(aggColumn(colSurvivedFlag, dataframe.Aggregation_SUM))

	out := dataframe.New(
		intColumn(agg.Col(ColPclass), ColPclass),
		agg.Col(ColSex),
		agg.Col(ColAgeCategory),
		intColumn(agg.Col(aggColumn(colObserved, dataframe.Aggregation_COUNT)), ColCount),
		intColumn(nPass, ColNPassengers),
		intColumn(nSurv, ColNSurvivors),
		ratio(nSurv, nPass, ColSurvivalRate),
		series.New(ranks, series.Int, colRank),
	).Arrange(
		dataframe.Sort(ColPclass),
		dataframe.Sort(ColSex),
		dataframe.Sort(colRank),
	).Select(demographicColumns)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("生成人口统计汇总失败: %w", out.Err)
	}
	return out, nil
}

// GroupPassengers 统计每个 (Pclass, Sex, AgeCategory) 组合的乘客数
func GroupPassengers(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	groups, err := groupDemographics(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return groups.Select([]string{ColPclass, ColSex, ColAgeCategory, ColCount}), nil
}

// CalculateSurvivalStats 计算每组的乘客数、幸存数和幸存率
func CalculateSurvivalStats(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	groups, err := groupDemographics(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return groups.Select([]string{ColPclass, ColSex, ColAgeCategory, ColNPassengers, ColNSurvivors, ColSurvivalRate}), nil
}

// GenerateSummaryTable 合并乘客计数和幸存统计
func GenerateSummaryTable(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	return groupDemographics(data)
}

// OrderSummaryTable 返回排序后的汇总表
// 排序: Pclass 升序, Sex 字母序, AgeCategory 按 Child < Teen < Adult < Senior;
// 附加 Highlight 列供图表着色
func OrderSummaryTable(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	summary, err := GenerateSummaryTable(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	highlights := make([]string, summary.Nrow())
	pclass := summary.Col(ColPclass)
	sex := summary.Col(ColSex)
	cat := summary.Col(ColAgeCategory)
	for i := range highlights {
		pc, _ := intAt(pclass, i)
		c, err := ParseAgeCategory(cat.Elem(i).String())
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		highlights[i] = HighlightLabel(pc, sex.Elem(i).String(), c)
	}
	return summary.Mutate(series.New(highlights, series.String, ColHighlight)), nil
}
