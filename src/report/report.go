// report.go
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"TitanicInsight/src/chart"
	"TitanicInsight/src/processor"
	"TitanicInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
)

// 汇总表名称, 同时作为工作表名和 /api/tables/{name} 的路径
const (
	TableDemographic = "demographic"
	TableCounts      = "counts"
	TableFamilies    = "families"
	TableAgeDivision = "age_division"
	TableLastNames   = "last_names"
	TableFamilyFares = "family_fares"
)

const WorkbookName = "summary.xlsx"

var ErrUnknownTable = errors.New("未知的汇总表")

// Table 一个命名的汇总表
type Table struct {
	Name string
	Data dataframe.DataFrame
}

// Report 一次完整计算的结果
type Report struct {
	GeneratedAt time.Time
	TopN        int
	Metrics     processor.Metrics
	Tables      []Table
	Charts      map[chart.Kind]chart.Spec

	passengers dataframe.DataFrame
}

// Build 从标准乘客表计算全部汇总表和图表
// 缺少 SibSp/Parch/Fare 时跳过票价汇总, 其余表照常生成
func Build(passengers dataframe.DataFrame, topN int) (*Report, error) {
	if topN <= 0 {
		topN = processor.DefaultTopN
	}

	metrics, err := processor.NewDataProcessor(passengers).CalculateMetrics()
	if err != nil {
		return nil, fmt.Errorf("计算总体指标失败: %w", err)
	}

	r := &Report{
		GeneratedAt: time.Now(),
		TopN:        topN,
		Metrics:     metrics,
		Charts:      make(map[chart.Kind]chart.Spec, len(chart.Kinds)),
		passengers:  passengers,
	}

	demographic, err := processor.OrderSummaryTable(passengers)
	if err != nil {
		return nil, fmt.Errorf("生成人口统计汇总失败: %w", err)
	}
	counts, err := processor.GroupPassengers(passengers)
	if err != nil {
		return nil, fmt.Errorf("生成乘客计数失败: %w", err)
	}
	families, err := processor.TopFamilies(passengers, topN)
	if err != nil {
		return nil, fmt.Errorf("生成家庭汇总失败: %w", err)
	}
	division, err := processor.AgeDivision(passengers)
	if err != nil {
		return nil, fmt.Errorf("生成年龄划分汇总失败: %w", err)
	}
	lastNames, err := processor.LastNames(passengers)
	if err != nil {
		return nil, fmt.Errorf("生成姓氏频数失败: %w", err)
	}

	r.Tables = []Table{
		{Name: TableDemographic, Data: demographic},
		{Name: TableCounts, Data: counts},
		{Name: TableFamilies, Data: families},
		{Name: TableAgeDivision, Data: division},
		{Name: TableLastNames, Data: lastNames},
	}

	fares, err := processor.FamilyFareSummary(passengers)
	switch {
	case err == nil:
		r.Tables = append(r.Tables, Table{Name: TableFamilyFares, Data: fares})
	case !errors.Is(err, processor.ErrMissingColumn):
		return nil, fmt.Errorf("生成票价汇总失败: %w", err)
	}

	for _, kind := range chart.Kinds {
		spec, err := chart.Build(kind, passengers, chart.Options{TopN: topN})
		if err != nil {
			return nil, err
		}
		r.Charts[kind] = spec
	}
	return r, nil
}

// Table 按名称查找汇总表
func (r *Report) Table(name string) (dataframe.DataFrame, error) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t.Data, nil
		}
	}
	return dataframe.DataFrame{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// Chart 按类型返回图表描述
func (r *Report) Chart(kind chart.Kind) (chart.Spec, error) {
	spec, ok := r.Charts[kind]
	if !ok {
		return chart.Spec{}, fmt.Errorf("%w: %q", chart.ErrUnknownKind, string(kind))
	}
	return spec, nil
}

// ChartTop 按指定的展示数量重新生成图表, topN <= 0 时返回报告中的图表
func (r *Report) ChartTop(kind chart.Kind, topN int) (chart.Spec, error) {
	if topN <= 0 || topN == r.TopN {
		return r.Chart(kind)
	}
	return chart.Build(kind, r.passengers, chart.Options{TopN: topN})
}

// Write 将工作簿、图表 PNG 和图表 JSON 写入 dir, 返回写出的文件路径
// 没有数据的图表只写 JSON
func (r *Report) Write(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	sheets := make([]utils.Sheet, len(r.Tables))
	for i, t := range r.Tables {
		sheets[i] = utils.Sheet{Name: t.Name, Data: t.Data}
	}
	xlsxPath := filepath.Join(dir, WorkbookName)
	if err := utils.SaveWorkbook(xlsxPath, sheets...); err != nil {
		return nil, err
	}
	files := []string{xlsxPath}

	for _, kind := range chart.Kinds {
		spec := r.Charts[kind]

		jsonPath := filepath.Join(dir, string(kind)+".json")
		data, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return files, fmt.Errorf("序列化图表 %s 失败: %w", kind, err)
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			return files, fmt.Errorf("写入 %s 失败: %w", jsonPath, err)
		}
		files = append(files, jsonPath)

		if spec.Empty() {
			continue
		}
		pngPath := filepath.Join(dir, string(kind)+".png")
		if err := writePNG(pngPath, spec); err != nil {
			return files, err
		}
		files = append(files, pngPath)
	}
	return files, nil
}

func writePNG(path string, spec chart.Spec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建图片文件失败: %w", err)
	}
	if err := chart.Render(spec, f); err != nil {
		f.Close()
		return fmt.Errorf("渲染图表 %s 失败: %w", spec.Kind, err)
	}
	return f.Close()
}

// WriteText 输出文本摘要
func (r *Report) WriteText(w io.Writer) error {
	m := r.Metrics
	lines := []string{
		fmt.Sprintf("生成时间: %s", r.GeneratedAt.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("乘客总数: %d (有年龄 %d), 幸存 %d, 幸存率 %.1f%%",
			m.TotalPassengers, m.WithAge, m.Survivors, m.SurvivalRate*100),
		fmt.Sprintf("There are %d unique last names in the dataset.", m.UniqueLastNames),
		"",
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}

	for _, kind := range chart.Kinds {
		spec := r.Charts[kind]
		if _, err := fmt.Fprintf(w, "%s\n", kind.Question()); err != nil {
			return err
		}
		for _, b := range spec.Bars {
			if _, err := fmt.Fprintf(w, "  %-40s %s\n", b.Label, b.Text); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
