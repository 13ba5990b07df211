// fetch.go
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/utils"

	"github.com/go-gota/gota/dataframe"
)

const (
	RetryTimes    = 3
	RetryInterval = 2 * time.Second
	// 数据集大小上限
	MaxBodySize = 64 << 20
)

var ErrHTTPStatus = errors.New("下载数据集返回非成功状态码")

// Fetch 下载远程 CSV/XLSX 数据集并读取为字符串表
// 网络错误和 5xx 会重试, 4xx 立即返回
func Fetch(ctx context.Context, rawURL string, timeout time.Duration) (dataframe.DataFrame, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("无效的数据集地址 %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if !file.IsDataFile(name) {
		name = "dataset.csv"
	}

	client := &http.Client{Timeout: timeout}
	var body []byte
	err = utils.Retry(ctx, RetryTimes, RetryInterval, func() error {
		var derr error
		body, derr = download(ctx, client, u.String())
		return derr
	})
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	df, err := file.ReadBytes(name, body, "")
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("解析数据集 %s 失败: %w", rawURL, err)
	}
	return df, nil
}

func download(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, utils.Permanent(err)
	}
	req.Header.Set("User-Agent", "TitanicInsight/1.0")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("请求 %s 失败: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: %s %d", ErrHTTPStatus, target, resp.StatusCode)
		if resp.StatusCode < 500 {
			return nil, utils.Permanent(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}
