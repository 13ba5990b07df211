package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TitanicInsight/src/config"
	"TitanicInsight/src/datasource"
	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/report"
	"TitanicInsight/src/storage"

	"github.com/go-gota/gota/dataframe"
	"github.com/spf13/cobra"
)

var (
	// 全局参数
	configDir      string
	configFile     string
	dataConfigFile string
	topN           int

	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
)

var rootCmd = &cobra.Command{
	Use:   "titanic",
	Short: "Titanic passenger survival insight",
	Long: `titanic 读取泰坦尼克号乘客数据集, 按舱位/性别/年龄段和家庭汇总幸存率,
生成图表、Excel 汇总和仪表盘。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(cmd); err != nil {
			return err
		}
		if err := logger.CheckRotate(cfg.LogMaxBytes()); err != nil {
			logger.Warning("日志轮转失败: " + err.Error())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "配置目录 (默认 ./config, 其次为可执行文件旁的 config)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.json", "应用配置文件 (.json/.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataConfigFile, "data-config", "dataconfig.json", "列映射配置文件, 为空时按标准列名读取")
	rootCmd.PersistentFlags().IntVar(&topN, "top-n", 0, "家庭图表展示数量, 覆盖配置中的 top_n")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup 加载配置并初始化日志系统
func setup(cmd *cobra.Command) error {
	dir, err := resolveConfigDir(configDir)
	if err != nil {
		return err
	}

	cfg, dcfg, err = config.LoadConfig(dir, configFile, dataConfigFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if cmd.Flags().Changed("top-n") {
		cfg.TopN = topN
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err = storage.NewLogger(cfg.LogName)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	return nil
}

func resolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	if info, err := os.Stat("config"); err == nil && info.IsDir() {
		return "config", nil
	}
	return file.GetTargetFolder("config", 1)
}

// loadPassengers 按配置读取一份标准乘客表
func loadPassengers(ctx context.Context) (dataframe.DataFrame, error) {
	return datasource.Load(ctx, cfg, dcfg, logger)
}

// buildReport 读取数据并计算报告
func buildReport(ctx context.Context) (*report.Report, error) {
	df, err := loadPassengers(ctx)
	if err != nil {
		return nil, err
	}
	return report.Build(df, cfg.TopN)
}

// signalContext 收到 SIGINT/SIGTERM 时取消, 收到 SIGHUP 时重新打开日志文件
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	file.SetupSignalHandler(cancel)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := logger.Reopen(logger.Path()); err != nil {
					fmt.Fprintln(os.Stderr, "重新打开日志失败:", err)
					continue
				}
				logger.Info("收到 SIGHUP, 日志文件已重新打开")
			}
		}
	}()
	return ctx, cancel
}
