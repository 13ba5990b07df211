// passengers.go
package processor

import (
	"TitanicInsight/src/utils"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 乘客表的标准列名
const (
	ColPassengerID = "PassengerId"
	ColName        = "Name"
	ColSex         = "Sex"
	ColAge         = "Age"
	ColPclass      = "Pclass"
	ColSibSp       = "SibSp"
	ColParch       = "Parch"
	ColFare        = "Fare"
	ColSurvived    = "Survived"
)

// 派生列与汇总表列名
const (
	ColAgeCategory    = "AgeCategory"
	ColLastName       = "LastName"
	ColFamilySize     = "FamilySize"
	ColOlderPassenger = "older_passenger"
	ColCount          = "Count"
	ColNPassengers    = "n_passengers"
	ColNSurvivors     = "n_survivors"
	ColSurvivalRate   = "survival_rate"
	ColFamilySizeAgg  = "family_size"
	ColHighlight      = "Highlight"
	ColAvgFare        = "avg_fare"
	ColMinFare        = "min_fare"
	ColMaxFare        = "max_fare"
)

// UnknownSex 性别缺失时使用的分组值
const UnknownSex = "unknown"

var (
	ErrMissingColumn = errors.New("缺少必需的列")
	ErrTypeMismatch  = errors.New("列类型不匹配")
)

// 缺失值的文本表示
var naValues = []string{"", "NA", "NaN", "nan", "<nil>", "null"}

func isNA(s string) bool {
	return utils.Contains(naValues, strings.TrimSpace(s))
}

// requireColumns 检查表中是否包含所有列
func requireColumns(df dataframe.DataFrame, cols ...string) error {
	for _, col := range cols {
		if !utils.HasColumn(df, col) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return nil
}

// requireNumeric 检查列是否为数值类型(Int/Float/Bool)
func requireNumeric(df dataframe.DataFrame, cols ...string) error {
	for _, col := range cols {
		switch t := df.Col(col).Type(); t {
		case series.Int, series.Float, series.Bool:
		default:
			return fmt.Errorf("%w: %s 为 %s, 需要数值类型", ErrTypeMismatch, col, t)
		}
	}
	return nil
}

// floatAt 读取数值单元格, 缺失时 ok 为 false
func floatAt(s series.Series, i int) (float64, bool) {
	el := s.Elem(i)
	if el.IsNA() {
		return 0, false
	}
	f := el.Float()
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// intAt 读取整数单元格
func intAt(s series.Series, i int) (int, bool) {
	f, ok := floatAt(s, i)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// sexAt 读取性别, 不校验取值范围
func sexAt(s series.Series, i int) string {
	el := s.Elem(i)
	if el.IsNA() {
		return UnknownSex
	}
	v := strings.TrimSpace(el.String())
	if isNA(v) {
		return UnknownSex
	}
	return v
}

// NormalizePassengers 将原始字符串表转换为标准类型的乘客表
// 参数:
//
//	raw: 读取自CSV/XLSX的原始表(所有列都可以是字符串)
//	columns: 标准列名 -> 数据集列名 的映射, 为空时按原名处理
//
// 必需列为 Name, Sex, Age, Pclass, Survived; 其余已知列存在时一并转换,
// 未知列原样保留。
func NormalizePassengers(raw dataframe.DataFrame, columns map[string]string) (dataframe.DataFrame, error) {
	if raw.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("原始数据读取失败: %w", raw.Err)
	}
	df := raw.Copy()

	// 1. 按映射重命名为标准列名
	for canonical, source := range columns {
		if source == "" || source == canonical || !utils.HasColumn(df, source) {
			continue
		}
		df = df.Rename(canonical, source)
		if df.Err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("重命名列 %s 失败: %w", source, df.Err)
		}
	}

	if err := requireColumns(df, ColName, ColSex, ColAge, ColPclass, ColSurvived); err != nil {
		return dataframe.DataFrame{}, err
	}

	// 2. 逐列转换类型
	conversions := []struct {
		name     string
		typ      series.Type
		optional bool // 允许缺失值
	}{
		{ColPassengerID, series.Int, false},
		{ColSurvived, series.Int, false},
		{ColPclass, series.Int, false},
		{ColAge, series.Float, true},
		{ColSibSp, series.Int, false},
		{ColParch, series.Int, false},
		{ColFare, series.Float, true},
	}
	for _, c := range conversions {
		if !utils.HasColumn(df, c.name) {
			continue
		}
		s, err := convertColumn(df.Col(c.name), c.typ, c.optional)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		df = df.Mutate(s)
	}

	names := df.Col(ColName).Records()
	df = df.Mutate(series.New(names, series.String, ColName))

	sexes := make([]string, df.Nrow())
	sexCol := df.Col(ColSex)
	for i := range sexes {
		sexes[i] = sexAt(sexCol, i)
	}
	df = df.Mutate(series.New(sexes, series.String, ColSex))

	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("乘客表转换失败: %w", df.Err)
	}
	return df, nil
}

// convertColumn 将任意类型的列解析为目标数值类型
// 缺失值在 optional 列中写为 NaN, 否则报错
func convertColumn(s series.Series, typ series.Type, optional bool) (series.Series, error) {
	records := s.Records()
	values := make([]string, len(records))

	for i, rec := range records {
		rec = strings.TrimSpace(rec)
		if isNA(rec) {
			if !optional {
				return series.Series{}, fmt.Errorf("%w: %s 第%d行缺失", ErrTypeMismatch, s.Name, i+1)
			}
			values[i] = "NaN"
			continue
		}

		f, err := strconv.ParseFloat(rec, 64)
		if err != nil {
			if b, berr := strconv.ParseBool(rec); berr == nil && typ == series.Int {
				f = 0
				if b {
					f = 1
				}
			} else {
				return series.Series{}, fmt.Errorf("%w: %s 第%d行 %q 不是数值", ErrTypeMismatch, s.Name, i+1, rec)
			}
		}

		switch typ {
		case series.Int:
			if f != math.Trunc(f) {
				return series.Series{}, fmt.Errorf("%w: %s 第%d行 %q 不是整数", ErrTypeMismatch, s.Name, i+1, rec)
			}
			values[i] = strconv.Itoa(int(f))
		default:
			values[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}

	return series.New(values, typ, s.Name), nil
}

// passenger 聚合时使用的单行视图
type passenger struct {
	name     string
	sex      string
	age      float64
	hasAge   bool
	pclass   int
	sibsp    int
	parch    int
	fare     float64
	hasFare  bool
	survived float64
	hasSurv  bool
}

// readPassengers 读取聚合所需的列, 并校验列类型
// 只有 need 中列出的列会被读取, 其余字段保持零值
func readPassengers(df dataframe.DataFrame, need ...string) ([]passenger, error) {
	if err := requireColumns(df, need...); err != nil {
		return nil, err
	}
	var numeric []string
	for _, col := range need {
		if col != ColName && col != ColSex {
			numeric = append(numeric, col)
		}
	}
	if err := requireNumeric(df, numeric...); err != nil {
		return nil, err
	}

	rows := make([]passenger, df.Nrow())
	for _, col := range need {
		s := df.Col(col)
		for i := range rows {
			p := &rows[i]
			switch col {
			case ColName:
				p.name = s.Elem(i).String()
			case ColSex:
				p.sex = sexAt(s, i)
			case ColAge:
				p.age, p.hasAge = floatAt(s, i)
			case ColPclass:
				p.pclass, _ = intAt(s, i)
			case ColSibSp:
				p.sibsp, _ = intAt(s, i)
			case ColParch:
				p.parch, _ = intAt(s, i)
			case ColFare:
				p.fare, p.hasFare = floatAt(s, i)
			case ColSurvived:
				p.survived, p.hasSurv = floatAt(s, i)
			}
		}
	}
	return rows, nil
}
