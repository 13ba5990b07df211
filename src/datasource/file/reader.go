// reader.go
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	ErrNoData            = errors.New("文件中没有数据")
)

// FileInfo 文件信息结构体
type FileInfo struct {
	Name     string
	FullPath string
	ModTime  time.Time
}

// EnsureDir 确保目录存在
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}

// GetTargetFolder 获取可执行文件向上 level 级目录下的 folderName
func GetTargetFolder(folderName string, level int) (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	path := exePath
	for i := 0; i < level; i++ {
		path = filepath.Dir(path)
	}

	return filepath.Join(path, folderName), nil
}

// IsDataFile 判断是否为可读取的数据文件
func IsDataFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return !strings.HasPrefix(filepath.Base(name), "~$")
	}
	return false
}

// FindLatest 查找目录中名称包含 keyword 的最新数据文件
func FindLatest(dir, keyword string) (*FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var latest *FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsDataFile(entry.Name()) || !strings.Contains(entry.Name(), keyword) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime) {
			latest = &FileInfo{
				Name:     info.Name(),
				FullPath: filepath.Join(dir, info.Name()),
				ModTime:  info.ModTime(),
			}
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("%s 中没有匹配 %q 的数据文件: %w", dir, keyword, os.ErrNotExist)
	}
	return latest, nil
}

// SetupSignalHandler 收到 SIGINT/SIGTERM 时取消 context
func SetupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal: %v, shutting down...\n", sig)
		cancel()
	}()
}

// ReadFile 按扩展名读取 CSV 或 XLSX 文件
func ReadFile(filePath, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return ReadCSVFile(filePath)
	case ".xlsx":
		return ReadXLSX(filePath, sheetName)
	}
	return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
}

// ReadBytes 按文件名扩展名解析内存中的数据
func ReadBytes(name string, data []byte, sheetName string) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ReadCSV(strings.NewReader(string(data)))
	case ".xlsx":
		return ReadXLSXBytes(data, sheetName)
	}
	return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

func ReadCSVFile(filePath string) (dataframe.DataFrame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("打开CSV文件失败: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV 读取带表头的CSV, 所有列读为字符串, 由调用方决定类型
// 自动去掉 UTF-8 BOM, UTF-16 BOM 会被转换为 UTF-8
func ReadCSV(r io.Reader) (dataframe.DataFrame, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", err)
	}
	return recordsToDataFrame(records)
}

func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

func ReadXLSXBytes(data []byte, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析xlsx数据失败: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

// sheetToDataFrame 取指定工作表, sheetName 为空时取第一个
func sheetToDataFrame(xlFile *xlsx.File, sheetName string) (dataframe.DataFrame, error) {
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %w", ErrNoData)
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在: %w", sheetName, ErrNoData)
		}
		sheet = s
	}

	var records [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rec := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			rec[i] = strings.TrimSpace(cell.Value)
		}
		records = append(records, rec)
	}
	return recordsToDataFrame(records)
}

// recordsToDataFrame 第一个非空行为表头, 之后的行按表头宽度补齐或截断
// 只有表头时返回零行的表
func recordsToDataFrame(records [][]string) (dataframe.DataFrame, error) {
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return dataframe.DataFrame{}, ErrNoData
	}

	headers := records[start]
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}

	rows := make([][]string, 0, len(records)-start)
	rows = append(rows, headers)
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		rows = append(rows, row)
	}

	if len(rows) == 1 {
		cols := make([]series.Series, len(headers))
		for i, h := range headers {
			cols[i] = series.New([]string{}, series.String, h)
		}
		return dataframe.New(cols...), nil
	}

	// 缺失值由 processor 按列判断, 这里保留原文, 否则姓名 "NA" 会被当作缺失
	df := dataframe.LoadRecords(rows,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("构建DataFrame失败: %w", df.Err)
	}
	return df, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
