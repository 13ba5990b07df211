package utils

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ParseSize 解析形如 "10 * 1024 * 1024" 的大小表达式
func ParseSize(expr string) (int64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, fmt.Errorf("大小表达式为空")
	}
	var result int64 = 1
	for _, part := range strings.Split(expr, "*") {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无法解析大小表达式 %q: %w", expr, err)
		}
		result *= num
	}
	return result, nil
}

// Sheet 工作簿中的一个工作表
type Sheet struct {
	Name string
	Data dataframe.DataFrame
}

// NewWorkbook 将多个DataFrame分别写入同一工作簿的不同工作表
func NewWorkbook(sheets ...Sheet) (*excelize.File, error) {
	f := excelize.NewFile()

	for i, sh := range sheets {
		if i == 0 {
			// 复用默认工作表
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				f.Close()
				return nil, fmt.Errorf("重命名工作表失败: %w", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			f.Close()
			return nil, fmt.Errorf("创建工作表 %s 失败: %w", sh.Name, err)
		}
		if err := writeSheet(f, sh.Name, sh.Data); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// writeSheet 写入列名和数据, 数值列保持数值类型
func writeSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}

	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			el := col.Elem(rowIdx)
			var val interface{}
			if !el.IsNA() {
				val = el.Val()
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return fmt.Errorf("写入单元格 %s 失败: %w", cell, err)
			}
		}
	}
	return nil
}

// SaveWorkbook 保存工作簿到文件
func SaveWorkbook(filePath string, sheets ...Sheet) error {
	f, err := NewWorkbook(sheets...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

// WriteWorkbook 将工作簿写入任意 io.Writer
func WriteWorkbook(w io.Writer, sheets ...Sheet) error {
	f, err := NewWorkbook(sheets...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("写入Excel数据失败: %w", err)
	}
	return nil
}
