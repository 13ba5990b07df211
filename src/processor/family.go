package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultTopN 默认展示的家庭数量
const DefaultTopN = 10

// LastName 取姓名中第一个逗号之前的部分并去掉首尾空白
// 没有逗号时返回整个姓名。同姓不一定同一家庭, 这里不做大小写或变音符归一化。
func LastName(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// FamilySize 兄弟姐妹/配偶数 + 父母/子女数 + 本人
func FamilySize(sibsp, parch int) int {
	return sibsp + parch + 1
}

// familyIDs 按姓氏首次出现的顺序为每行分配家庭编号
// 用整数编号分组, 避免 "NA" 一类的姓氏在 gota 分组时被当作缺失值
func familyIDs(names []string) (order []string, ids []int) {
	index := make(map[string]int)
	ids = make([]int, len(names))
	for i, name := range names {
		ln := LastName(name)
		id, ok := index[ln]
		if !ok {
			id = len(order)
			index[ln] = id
			order = append(order, ln)
		}
		ids[i] = id
	}
	return order, ids
}

// aggregateFamilies 按姓氏分组, 结果按姓氏首次出现的顺序排列
// withSurvival 为 true 时附加 survival_rate 列
func aggregateFamilies(data dataframe.DataFrame, withSurvival bool) (dataframe.DataFrame, error) {
	order, ids := familyIDs(data.Col(ColName).Records())

	cols := []series.Series{series.New(ids, series.Int, colFamilyID)}
	aggs := []dataframe.AggregationType{dataframe.Aggregation_COUNT}
	targets := []string{colFamilyID}
	if withSurvival {
		surv, obs := survivalFlags(data.Col(ColSurvived))
		cols = append(cols, surv, obs)
		aggs = append(aggs, dataframe.Aggregation_SUM, dataframe.Aggregation_SUM)
		targets = append(targets, colSurvivedFlag, colObserved)
	}

	agg, err := groupAggregate(dataframe.New(cols...), []string{colFamilyID}, aggs, targets)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	agg = agg.Arrange(dataframe.Sort(colFamilyID))
	if agg.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("家庭排序失败: %w", agg.Err)
	}

	famIDs := agg.Col(colFamilyID).Float()
	names := make([]string, len(famIDs))
	for i, id := range famIDs {
		names[i] = order[int(id)]
	}
	out := []series.Series{
		series.New(names, series.String, ColLastName),
		intColumn(agg.Col(aggColumn(colFamilyID, dataframe.Aggregation_COUNT)), ColFamilySizeAgg),
	}
	if withSurvival {
		out = append(out, ratio(
			agg.Col(aggColumn(colSurvivedFlag, dataframe.Aggregation_SUM)),
			agg.Col(aggColumn(colObserved, dataframe.Aggregation_SUM)),
			ColSurvivalRate,
		))
	}
	return dataframe.New(out...), nil
}

// LastNames 每个姓氏出现的次数(频数表), 按首次出现顺序排列
func LastNames(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(data, ColName); err != nil {
		return dataframe.DataFrame{}, err
	}
	if data.Nrow() == 0 {
		return dataframe.New(
			series.New([]string{}, series.String, ColLastName),
			series.New([]int{}, series.Int, ColCount),
		), nil
	}
	families, err := aggregateFamilies(data, false)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return families.Rename(ColCount, ColFamilySizeAgg), nil
}

// CountLastNames 不同姓氏的数量
func CountLastNames(data dataframe.DataFrame) (int, error) {
	names, err := LastNames(data)
	if err != nil {
		return 0, err
	}
	return names.Nrow(), nil
}

// FamilySummary 按姓氏汇总家庭人数和幸存率
// 排序: family_size 降序, 人数相同时按姓氏升序
func FamilySummary(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(data, ColName, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireNumeric(data, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}
	if data.Nrow() == 0 {
		return dataframe.New(
			series.New([]string{}, series.String, ColLastName),
			series.New([]int{}, series.Int, ColFamilySizeAgg),
			series.New([]float64{}, series.Float, ColSurvivalRate),
		), nil
	}

	families, err := aggregateFamilies(data, true)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	families = families.Arrange(
		dataframe.RevSort(ColFamilySizeAgg),
		dataframe.Sort(ColLastName),
	)
	if families.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("家庭排序失败: %w", families.Err)
	}
	return families, nil
}

// TopFamilies 返回人数最多的前 n 个家庭, 不足 n 个时全部返回
// n <= 0 时使用 DefaultTopN
func TopFamilies(data dataframe.DataFrame, n int) (dataframe.DataFrame, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	summary, err := FamilySummary(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if summary.Nrow() <= n {
		return summary, nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return summary.Subset(idx), nil
}

// AddFamilySize 返回添加 FamilySize 列后的副本
func AddFamilySize(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	rows, err := readPassengers(data, ColSibSp, ColParch)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	sizes := make([]int, len(rows))
	for i, p := range rows {
		sizes[i] = FamilySize(p.sibsp, p.parch)
	}
	df := data.Copy()
	return df.Mutate(series.New(sizes, series.Int, ColFamilySize)), nil
}

func emptyFareSummary() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{}, series.Int, ColFamilySize),
		series.New([]int{}, series.Int, ColPclass),
		series.New([]int{}, series.Int, ColNPassengers),
		series.New([]float64{}, series.Float, ColAvgFare),
		series.New([]float64{}, series.Float, ColMinFare),
		series.New([]float64{}, series.Float, ColMaxFare),
	)
}

// FamilyFareSummary 按 (FamilySize, Pclass) 汇总乘客数和票价均值/最小/最大值
// 组内没有有效票价时统计值为 NaN
func FamilyFareSummary(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(data, ColSibSp, ColParch, ColPclass, ColFare); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireNumeric(data, ColPclass, ColFare); err != nil {
		return dataframe.DataFrame{}, err
	}
	if data.Nrow() == 0 {
		return emptyFareSummary(), nil
	}
	withSize, err := AddFamilySize(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	pcCol := withSize.Col(ColPclass)
	pclass := make([]int, withSize.Nrow())
	for i := range pclass {
		pclass[i], _ = intAt(pcCol, i)
	}
	keyed := dataframe.New(
		withSize.Col(ColFamilySize),
		series.New(pclass, series.Int, ColPclass),
		withSize.Col(ColFare),
	)
	groups := keyed.GroupBy(ColFamilySize, ColPclass)
	if groups.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("按家庭规模分组失败: %w", groups.Err)
	}

	// gota 的 MEAN/MIN/MAX 聚合遇到缺失票价会得到 NaN, 这里逐组去掉缺失值再统计
	var sizes, pcs, ns []int
	var avg, lo, hi []float64
	for _, g := range groups.GetGroups() {
		size, _ := intAt(g.Col(ColFamilySize), 0)
		pc, _ := intAt(g.Col(ColPclass), 0)
		sizes = append(sizes, size)
		pcs = append(pcs, pc)
		ns = append(ns, g.Nrow())

		fareCol := g.Col(ColFare)
		var xs []float64
		for i := 0; i < fareCol.Len(); i++ {
			if f, ok := floatAt(fareCol, i); ok {
				xs = append(xs, f)
			}
		}
		if len(xs) == 0 {
			avg, lo, hi = append(avg, math.NaN()), append(lo, math.NaN()), append(hi, math.NaN())
			continue
		}
		avg = append(avg, stat.Mean(xs, nil))
		lo = append(lo, floats.Min(xs))
		hi = append(hi, floats.Max(xs))
	}

	out := dataframe.New(
		series.New(sizes, series.Int, ColFamilySize),
		series.New(pcs, series.Int, ColPclass),
		series.New(ns, series.Int, ColNPassengers),
		series.New(avg, series.Float, ColAvgFare),
		series.New(lo, series.Float, ColMinFare),
		series.New(hi, series.Float, ColMaxFare),
	).Arrange(
		dataframe.Sort(ColFamilySize),
		dataframe.Sort(ColPclass),
	)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("家庭票价排序失败: %w", out.Err)
	}
	return out, nil
}
