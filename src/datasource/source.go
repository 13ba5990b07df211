// source.go
package datasource

import (
	"context"
	"fmt"
	"os"
	"time"

	"TitanicInsight/src/config"
	"TitanicInsight/src/datasource/email"
	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/datasource/web"
	"TitanicInsight/src/processor"
	"TitanicInsight/src/storage"

	"github.com/go-gota/gota/dataframe"
)

// Load 按 source.kind 读取数据集并转换为标准乘客表
func Load(ctx context.Context, cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (dataframe.DataFrame, error) {
	var mail email.MailService
	if cfg.Source.Kind == config.SourceEmail {
		mail = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password, cfg.Email.Mailbox)
	}
	return load(ctx, cfg, dcfg, logger, mail)
}

func load(ctx context.Context, cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger, mail email.MailService) (dataframe.DataFrame, error) {
	t1 := time.Now()

	raw, origin, err := readRaw(ctx, cfg, logger, mail)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	p := processor.NewDataProcessor(raw)
	if err := p.CleanData(dcfg.ColumnMap()); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("数据集 %s 格式错误: %w", origin, err)
	}
	df := p.DataFrame()

	logger.Info(fmt.Sprintf("已加载 %s: %d 行, 耗时: %v", origin, df.Nrow(), time.Since(t1)))
	return df, nil
}

func readRaw(ctx context.Context, cfg *config.Config, logger *storage.Logger, mail email.MailService) (dataframe.DataFrame, string, error) {
	switch cfg.Source.Kind {
	case config.SourceWeb:
		df, err := web.Fetch(ctx, cfg.Source.URL, cfg.Source.Timeout.Std())
		if err != nil {
			return dataframe.DataFrame{}, "", fmt.Errorf("下载数据集失败: %w", err)
		}
		return df, cfg.Source.URL, nil

	case config.SourceFile:
		path := cfg.Source.Path
		// 目录时取其中最新的数据文件
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			latest, err := file.FindLatest(path, "")
			if err != nil {
				return dataframe.DataFrame{}, "", err
			}
			path = latest.FullPath
		}
		df, err := file.ReadFile(path, cfg.Source.SheetName)
		if err != nil {
			return dataframe.DataFrame{}, "", fmt.Errorf("读取数据文件失败: %w", err)
		}
		return df, path, nil

	case config.SourceEmail:
		if mail == nil {
			return dataframe.DataFrame{}, "", fmt.Errorf("未配置邮件服务")
		}
		handler := email.NewAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir, logger)
		df, msg, err := email.FetchDataset(ctx, mail, cfg.Email.TargetSubject, cfg.Source.SheetName, handler, logger)
		if err != nil {
			return dataframe.DataFrame{}, "", fmt.Errorf("读取邮件数据集失败: %w", err)
		}
		return df, fmt.Sprintf("邮件 %q", msg.Subject), nil
	}
	return dataframe.DataFrame{}, "", fmt.Errorf("未知的数据源类型: %q", cfg.Source.Kind)
}
