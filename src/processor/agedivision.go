package processor

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// median 返回样本中位数, 样本为空时返回 NaN
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := stats.Sample{Xs: append([]float64(nil), xs...)}
	s.Sort()
	return s.Quantile(0.5)
}

// ClassMedianAges 计算每个舱位等级的年龄中位数
// 年龄缺失或为负数的乘客不参与计算
func ClassMedianAges(data dataframe.DataFrame) (map[int]float64, error) {
	if err := requireColumns(data, ColAge, ColPclass); err != nil {
		return nil, err
	}
	if err := requireNumeric(data, ColAge, ColPclass); err != nil {
		return nil, err
	}
	medians := make(map[int]float64)
	if data.Nrow() == 0 {
		return medians, nil
	}
	df, err := filterValidAge(data.Select([]string{ColPclass, ColAge}))
	if err != nil {
		return nil, err
	}
	if df.Nrow() == 0 {
		return medians, nil
	}

	pcCol := df.Col(ColPclass)
	pclass := make([]int, df.Nrow())
	for i := range pclass {
		pclass[i], _ = intAt(pcCol, i)
	}
	df = df.Mutate(series.New(pclass, series.Int, ColPclass))

	groups := df.GroupBy(ColPclass)
	if groups.Err != nil {
		return nil, fmt.Errorf("按舱位分组失败: %w", groups.Err)
	}
	for _, g := range groups.GetGroups() {
		pc, _ := intAt(g.Col(ColPclass), 0)
		medians[pc] = median(g.Col(ColAge).Float())
	}
	return medians, nil
}

// AddOlderPassenger 返回带 older_passenger 列的副本
// older_passenger = Age > 所在舱位的年龄中位数(相等不算); 年龄缺失或为负数的行被移除
func AddOlderPassenger(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	medians, err := ClassMedianAges(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df := data.Copy()
	if df.Nrow() == 0 {
		return df.Mutate(series.New([]bool{}, series.Bool, ColOlderPassenger)), nil
	}
	if df, err = filterValidAge(df); err != nil {
		return dataframe.DataFrame{}, err
	}

	ages := df.Col(ColAge)
	pclass := df.Col(ColPclass)
	older := make([]bool, df.Nrow())
	for i := range older {
		pc, _ := intAt(pclass, i)
		age, _ := floatAt(ages, i)
		older[i] = age > medians[pc]
	}
	return df.Mutate(series.New(older, series.Bool, ColOlderPassenger)), nil
}

func emptyAgeDivision() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{}, series.Int, ColPclass),
		series.New([]bool{}, series.Bool, ColOlderPassenger),
		series.New([]int{}, series.Int, ColNPassengers),
		series.New([]float64{}, series.Float, ColSurvivalRate),
	)
}

// AgeDivision 按 (Pclass, older_passenger) 汇总乘客数与幸存率
// 结果按 Pclass 升序, 同一舱位中 false 在前
func AgeDivision(data dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(data, ColAge, ColPclass, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := requireNumeric(data, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}
	df, err := AddOlderPassenger(data)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if df.Nrow() == 0 {
		return emptyAgeDivision(), nil
	}

	// gota 聚合不保留布尔类型的分组键, 这里用 0/1 分组
	pcCol, olderCol := df.Col(ColPclass), df.Col(ColOlderPassenger)
	pclass := make([]int, df.Nrow())
	older := make([]int, df.Nrow())
	for i := range pclass {
		pclass[i], _ = intAt(pcCol, i)
		older[i], _ = intAt(olderCol, i)
	}
	surv, obs := survivalFlags(df.Col(ColSurvived))
	keyed := dataframe.New(
		series.New(pclass, series.Int, ColPclass),
		series.New(older, series.Int, colRank),
		surv,
		obs,
	)

	agg, err := groupAggregate(keyed,
		[]string{ColPclass, colRank},
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT, dataframe.Aggregation_SUM, dataframe.Aggregation_SUM},
		[]string{colObserved, colObserved, colSurvivedFlag},
	)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	ranks := agg.Col(colRank).Float()
	olders := make([]bool, len(ranks))
	for i, r := range ranks {
		olders[i] = r != 0
	}
	out := dataframe.New(
		intColumn(agg.Col(ColPclass), ColPclass),
		series.New(olders, series.Bool, ColOlderPassenger),
		intColumn(agg.Col(aggColumn(colObserved, dataframe.Aggregation_COUNT)), ColNPassengers),
		ratio(
			agg.Col(aggColumn(colSurvivedFlag, dataframe.Aggregation_SUM)),
			agg.Col(aggColumn(colObserved, dataframe.Aggregation_SUM)),
			ColSurvivalRate,
		),
		intColumn(agg.Col(colRank), colRank),
	).Arrange(
		dataframe.Sort(ColPclass),
		dataframe.Sort(colRank),
	).Select([]string{ColPclass, ColOlderPassenger, ColNPassengers, ColSurvivalRate})
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("生成年龄划分汇总失败: %w", out.Err)
	}
	return out, nil
}
