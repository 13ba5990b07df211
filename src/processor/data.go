// data.go
package processor

import (
	"github.com/go-gota/gota/dataframe"
)

type DataProcessor struct {
	df dataframe.DataFrame
}

func NewDataProcessor(df dataframe.DataFrame) *DataProcessor {
	return &DataProcessor{df: df}
}

// Metrics 数据集总体指标
type Metrics struct {
	TotalPassengers int     `json:"total_passengers"`
	WithAge         int     `json:"with_age"`
	Survivors       int     `json:"survivors"`
	SurvivalRate    float64 `json:"survival_rate"`
	UniqueLastNames int     `json:"unique_last_names"`
}

// CleanData 将原始表转换为标准乘客表
func (p *DataProcessor) CleanData(columns map[string]string) error {
	df, err := NormalizePassengers(p.df, columns)
	if err != nil {
		return err
	}
	p.df = df
	return nil
}

// DataFrame 返回当前乘客表的副本
func (p *DataProcessor) DataFrame() dataframe.DataFrame {
	return p.df.Copy()
}

func (p *DataProcessor) CalculateMetrics() (Metrics, error) {
	rows, err := readPassengers(p.df, ColName, ColAge, ColSurvived)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{TotalPassengers: len(rows)}
	observed := 0
	for _, r := range rows {
		if r.hasAge {
			m.WithAge++
		}
		if r.hasSurv {
			observed++
			if r.survived != 0 {
				m.Survivors++
			}
		}
	}
	if observed > 0 {
		m.SurvivalRate = float64(m.Survivors) / float64(observed)
	}

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.name
	}
	order, _ := familyIDs(names)
	m.UniqueLastNames = len(order)
	return m, nil
}
