// group.go
package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 分组时使用的辅助列
const (
	colObserved     = "observed_flag"
	colSurvivedFlag = "survived_flag"
	colRank         = "sort_rank"
	colFamilyID     = "family_id"
)

// groupAggregate 按 keys 分组后对 cols 依次执行 aggs 聚合
// 聚合结果列名为 <列名>_<聚合方式>, 如 observed_flag_COUNT。
// gota 在没有任何分组时会 panic, 调用方需先处理空表。
func groupAggregate(df dataframe.DataFrame, keys []string, aggs []dataframe.AggregationType, cols []string) (dataframe.DataFrame, error) {
	groups := df.GroupBy(keys...)
	if groups.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("分组失败: %w", groups.Err)
	}
	out := groups.Aggregation(aggs, cols)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("聚合失败: %w", out.Err)
	}
	return out, nil
}

func aggColumn(col string, typ dataframe.AggregationType) string {
	return fmt.Sprintf("%s_%s", col, typ)
}

// survivalFlags 将 Survived 列拆成两列 0/1 标记:
// observed_flag 表示幸存值已知, survived_flag 表示已知且幸存
func survivalFlags(s series.Series) (survived, observed series.Series) {
	surv := make([]float64, s.Len())
	obs := make([]float64, s.Len())
	for i := range surv {
		v, ok := floatAt(s, i)
		if !ok {
			continue
		}
		obs[i] = 1
		if v != 0 {
			surv[i] = 1
		}
	}
	return series.New(surv, series.Float, colSurvivedFlag),
		series.New(obs, series.Float, colObserved)
}

// intColumn 将聚合得到的浮点列转为整数
func intColumn(s series.Series, name string) series.Series {
	fs := s.Float()
	ns := make([]int, len(fs))
	for i, f := range fs {
		ns[i] = int(math.Round(f))
	}
	return series.New(ns, series.Int, name)
}

// ratio 逐行计算 num/den, 分母为 0 时为 NaN
func ratio(num, den series.Series, name string) series.Series {
	n, d := num.Float(), den.Float()
	rates := make([]float64, len(n))
	for i := range rates {
		rates[i] = math.NaN()
		if d[i] > 0 {
			rates[i] = n[i] / d[i]
		}
	}
	return series.New(rates, series.Float, name)
}

// validAge 年龄已知且不为负数
func validAge(el series.Element) bool {
	if el.IsNA() {
		return false
	}
	f := el.Float()
	return !math.IsNaN(f) && f >= 0
}

// filterValidAge 移除年龄缺失或为负数的行
func filterValidAge(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	df = df.Filter(
		dataframe.F{
			Colname:    ColAge,
			Comparator: series.CompFunc,
			Comparando: validAge,
		},
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("过滤缺失年龄失败: %w", df.Err)
	}
	return df, nil
}
