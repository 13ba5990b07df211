package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TitanicInsight/src/config"
	"TitanicInsight/src/dashboard"
	"TitanicInsight/src/datapush"
	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/processor"
	"TitanicInsight/src/report"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

var (
	outputDir  string
	sendReport bool
	watchDir   string
	keyword    string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "输出文本摘要",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildReport(cmd.Context())
		if err != nil {
			return err
		}
		return r.WriteText(cmd.OutOrStdout())
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "生成 Excel 汇总和图表文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildReport(cmd.Context())
		if err != nil {
			return err
		}
		files, err := publish(cmd.Context(), r, sendReport)
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动仪表盘",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		srv := dashboard.New(loadPassengers, cfg.TopN, logger)
		if err := srv.Refresh(ctx); err != nil {
			// 数据源暂不可用时仍启动, 等待下次刷新
			logger.Warning("首次加载数据失败: " + err.Error())
		}

		c, err := startCron(refreshInterval(), func() {
			if err := logger.CheckRotate(cfg.LogMaxBytes()); err != nil {
				logger.Warning("日志轮转失败: " + err.Error())
			}
			refreshCtx, cancel := context.WithTimeout(ctx, jobTimeout())
			defer cancel()
			srv.Refresh(refreshCtx)
		})
		if err != nil {
			return err
		}
		defer c.Stop()

		return srv.ListenAndServe(ctx, cfg.Listen)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监控目录, 数据文件更新后重新生成报告",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		dir := watchDir
		if dir == "" {
			dir = defaultWatchDir()
		}
		if err := file.EnsureDir(dir); err != nil {
			return fmt.Errorf("创建监控目录失败: %w", err)
		}

		monitor, err := file.NewFileMonitor(dir, keyword)
		if err != nil {
			return err
		}
		defer monitor.Close()

		logger.Info(fmt.Sprintf("开始监控目录: %s (关键字: %q)，按Ctrl+C退出", monitor.Dir(), keyword))
		return monitor.Watch(ctx, func(path string) {
			t1 := time.Now()
			if err := reportFromFile(ctx, path); err != nil {
				logger.Error(fmt.Sprintf("处理文件 %s 失败: %v", path, err))
				return
			}
			logger.Info(fmt.Sprintf("文件 %s 处理完成，耗时: %v", filepath.Base(path), time.Since(t1)))
		})
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "定时生成报告(间隔为 refresh_interval, 邮件数据源为 email.check_interval)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		send := sendReport || cfg.SendEmail.Enabled
		job := func() {
			if err := logger.CheckRotate(cfg.LogMaxBytes()); err != nil {
				logger.Warning("日志轮转失败: " + err.Error())
			}
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout())
			defer cancel()

			t1 := time.Now()
			r, err := buildReport(jobCtx)
			if err != nil {
				logger.Error("生成报告失败: " + err.Error())
				return
			}
			if _, err := publish(jobCtx, r, send); err != nil {
				logger.Error("发布报告失败: " + err.Error())
				return
			}
			logger.Info(fmt.Sprintf("定时报告完成，耗时: %v", time.Since(t1)))
		}

		c, err := startCron(refreshInterval(), job)
		if err != nil {
			return err
		}
		defer c.Stop()

		// 启动后先执行一次
		go job()

		<-ctx.Done()
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&outputDir, "out", "o", "", "输出目录, 默认为配置中的 output_dir")
	reportCmd.Flags().BoolVar(&sendReport, "send", false, "生成后通过邮件发送")
	scheduleCmd.Flags().StringVarP(&outputDir, "out", "o", "", "输出目录, 默认为配置中的 output_dir")
	scheduleCmd.Flags().BoolVar(&sendReport, "send", false, "每次生成后通过邮件发送(send_email.enabled 为 true 时默认发送)")
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "监控目录, 默认为 source.path 所在目录或 data_dir")
	watchCmd.Flags().StringVar(&keyword, "keyword", "", "只处理文件名包含该关键字的文件")
}

// startCron 按固定间隔执行 fn
func startCron(interval time.Duration, fn func()) (*cron.Cron, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("定时任务间隔必须大于 0")
	}
	cronSpec := fmt.Sprintf("@every %s", interval)

	c := cron.New()
	if err := c.AddFunc(cronSpec, fn); err != nil {
		return nil, fmt.Errorf("创建定时任务失败: %w", err)
	}
	c.Start()
	logger.Info(fmt.Sprintf("定时任务已启动(间隔: %v)", interval))
	return c, nil
}

// refreshInterval 定时任务间隔
// 数据来自邮件时按 email.check_interval 检查新邮件, 否则使用 refresh_interval
func refreshInterval() time.Duration {
	if cfg.Source.Kind == config.SourceEmail && cfg.Email.CheckInterval > 0 {
		return cfg.Email.CheckInterval.Std()
	}
	return cfg.RefreshInterval.Std()
}

// jobTimeout 单次任务超时, 不超过刷新间隔
func jobTimeout() time.Duration {
	timeout := cfg.Source.Timeout.Std() * 4
	if interval := refreshInterval(); timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return timeout
}

func reportDir() string {
	if outputDir != "" {
		return outputDir
	}
	return cfg.OutputDir
}

// publish 写出报告文件, send 为 true 时将工作簿和图表通过邮件发送
func publish(ctx context.Context, r *report.Report, send bool) ([]string, error) {
	files, err := r.Write(reportDir())
	if err != nil {
		return files, err
	}
	logger.Info(fmt.Sprintf("报告已写入 %s (%d 个文件)", reportDir(), len(files)))
	if !send {
		return files, nil
	}

	var attachments []string
	for _, f := range files {
		if ext := strings.ToLower(filepath.Ext(f)); ext == ".xlsx" || ext == ".png" {
			attachments = append(attachments, f)
		}
	}
	if err := datapush.NewMailReport(cfg).Send(ctx, r, attachments); err != nil {
		return files, err
	}
	logger.Info("报告邮件发送成功")
	return files, nil
}

// reportFromFile 从单个数据文件生成报告
func reportFromFile(ctx context.Context, path string) error {
	raw, err := file.ReadFile(path, cfg.Source.SheetName)
	if err != nil {
		return err
	}
	df, err := processor.NormalizePassengers(raw, dcfg.ColumnMap())
	if err != nil {
		return err
	}
	r, err := report.Build(df, cfg.TopN)
	if err != nil {
		return err
	}
	_, err = publish(ctx, r, cfg.SendEmail.Enabled)
	return err
}

func defaultWatchDir() string {
	if cfg.Source.Kind == config.SourceFile && cfg.Source.Path != "" {
		if info, err := os.Stat(cfg.Source.Path); err == nil && info.IsDir() {
			return cfg.Source.Path
		}
		return filepath.Dir(cfg.Source.Path)
	}
	return cfg.DataDir
}
