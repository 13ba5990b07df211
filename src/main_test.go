package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"TitanicInsight/src/chart"
	"TitanicInsight/src/config"
	"TitanicInsight/src/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passengersCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Fare
1,0,3,"Palsson, Master. Gosta Leonard",male,2,3,1,21.075
2,0,3,"Palsson, Miss. Torborg Danira",female,8,3,1,21.075
3,1,3,"Palsson, Mrs. Nils",female,29,0,4,21.075
4,0,2,"Smith, Mr. John",male,30,0,0,13
5,1,2,"Jones, Mr. Tom",male,45,1,0,26
6,1,2,"Jones, Mrs. Tom",female,44,1,0,26
7,1,1,"Cumings, Mrs. John Bradley",female,38,1,0,71.2833
`

// writeFixture 生成配置目录和数据文件
func writeFixture(t *testing.T) (configDir, outDir string) {
	t.Helper()
	root := t.TempDir()
	configDir = filepath.Join(root, "config")
	outDir = filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	dataPath := filepath.Join(root, "titanic.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(passengersCSV), 0644))

	appConfig := map[string]any{
		"source":           map[string]any{"kind": "file", "path": dataPath},
		"top_n":            10,
		"output_dir":       outDir,
		"log_name":         filepath.Join(root, "logs", "app.log"),
		"log_max_size":     "1024 * 1024",
		"refresh_interval": "1h",
	}
	data, err := json.Marshal(appConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.json"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "dataconfig.json"),
		[]byte(`{"columns": {"Name": "Name", "Sex": "Sex"}}`), 0644))
	return configDir, outDir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

// 配置只加载一次, 子测试按顺序共用同一份配置
func TestCommands(t *testing.T) {
	dir, outDir := writeFixture(t)

	t.Run("summary", func(t *testing.T) {
		out := execute(t, "--config-dir", dir, "summary")
		assert.Contains(t, out, "There are 4 unique last names in the dataset.")
		for _, kind := range chart.Kinds {
			assert.Contains(t, out, kind.Question())
		}
	})

	t.Run("report", func(t *testing.T) {
		out := execute(t, "--config-dir", dir, "report", "--top-n", "2")
		assert.Contains(t, out, report.WorkbookName)

		assert.FileExists(t, filepath.Join(outDir, report.WorkbookName))
		for _, kind := range chart.Kinds {
			assert.FileExists(t, filepath.Join(outDir, string(kind)+".png"))
		}

		data, err := os.ReadFile(filepath.Join(outDir, "families.json"))
		require.NoError(t, err)
		var spec chart.Spec
		require.NoError(t, json.Unmarshal(data, &spec))
		require.Len(t, spec.Bars, 2)
		assert.Equal(t, "Palsson", spec.Bars[0].Label)
		assert.Equal(t, "Jones", spec.Bars[1].Label)
	})
}

func TestRefreshInterval(t *testing.T) {
	saved := cfg
	defer func() { cfg = saved }()

	cfg = config.Default()
	cfg.RefreshInterval = config.Duration(time.Hour)
	cfg.Email.CheckInterval = config.Duration(5 * time.Minute)

	cfg.Source.Kind = config.SourceFile
	assert.Equal(t, time.Hour, refreshInterval())

	cfg.Source.Kind = config.SourceEmail
	assert.Equal(t, 5*time.Minute, refreshInterval())
	assert.LessOrEqual(t, jobTimeout(), 5*time.Minute)

	cfg.Email.CheckInterval = 0
	assert.Equal(t, time.Hour, refreshInterval())
}

func TestResolveConfigDir(t *testing.T) {
	dir, err := resolveConfigDir("/etc/titanic")
	require.NoError(t, err)
	assert.Equal(t, "/etc/titanic", dir)
}
