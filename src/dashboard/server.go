// server.go
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"TitanicInsight/src/chart"
	"TitanicInsight/src/report"
	"TitanicInsight/src/storage"

	"github.com/go-gota/gota/dataframe"
)

var ErrNotReady = errors.New("数据尚未加载")

// LoadFunc 读取一份新的标准乘客表
type LoadFunc func(ctx context.Context) (dataframe.DataFrame, error)

// Server 仪表盘 HTTP 服务
// 每次刷新生成新的 Report, 读请求只访问当前 Report
type Server struct {
	load   LoadFunc
	topN   int
	logger *storage.Logger

	mu        sync.RWMutex
	report    *report.Report
	lastErr   error
	refreshed time.Time

	mux *http.ServeMux
}

func New(load LoadFunc, topN int, logger *storage.Logger) *Server {
	s := &Server{
		load:   load,
		topN:   topN,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /charts/{file}", s.handleChartPNG)
	s.mux.HandleFunc("GET /api/charts/{kind}", s.handleChartJSON)
	s.mux.HandleFunc("GET /api/tables/{name}", s.handleTable)
	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /logs", s.handleLogs)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Refresh 重新加载数据并计算报告
// 失败时保留上一次的报告
func (s *Server) Refresh(ctx context.Context) error {
	t1 := time.Now()
	df, err := s.load(ctx)
	var rep *report.Report
	if err == nil {
		rep, err = report.Build(df, s.topN)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		s.logger.Error("刷新仪表盘数据失败: " + err.Error())
		return err
	}
	s.report = rep
	s.refreshed = time.Now()
	s.logger.Info(fmt.Sprintf("仪表盘数据已刷新, 乘客数: %d, 耗时: %v", rep.Metrics.TotalPassengers, time.Since(t1)))
	return nil
}

// Report 当前报告, 未加载时返回 ErrNotReady
func (s *Server) Report() (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		if s.lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotReady, s.lastErr)
		}
		return nil, ErrNotReady
	}
	return s.report, nil
}

// ListenAndServe 启动服务, ctx 结束时优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("仪表盘已启动: " + addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭仪表盘失败: %w", err)
		}
		s.logger.Info("仪表盘已关闭")
		return nil
	}
}

type indexSection struct {
	Kind     chart.Kind
	Question string
	Title    string
	Empty    bool
}

type indexData struct {
	Refreshed   string
	UniqueNames int
	Sections    []indexSection
	Tables      []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Report()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.mu.RLock()
	refreshed := s.refreshed
	s.mu.RUnlock()

	data := indexData{
		Refreshed:   refreshed.Format("2006-01-02 15:04:05"),
		UniqueNames: rep.Metrics.UniqueLastNames,
	}
	for _, kind := range chart.Kinds {
		spec := rep.Charts[kind]
		data.Sections = append(data.Sections, indexSection{
			Kind:     kind,
			Question: kind.Question(),
			Title:    spec.Title,
			Empty:    spec.Empty(),
		})
	}
	for _, t := range rep.Tables {
		data.Tables = append(data.Tables, t.Name)
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "渲染页面失败: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// chartSpec 查找图表, 查询参数 top 可覆盖家庭图表的展示数量
func (s *Server) chartSpec(w http.ResponseWriter, r *http.Request, name string) (chart.Spec, bool) {
	rep, err := s.Report()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return chart.Spec{}, false
	}
	kind, err := chart.ParseKind(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return chart.Spec{}, false
	}
	topN := 0
	if v := r.URL.Query().Get("top"); v != "" {
		if topN, err = strconv.Atoi(v); err != nil || topN <= 0 {
			http.Error(w, "top 必须为正整数", http.StatusBadRequest)
			return chart.Spec{}, false
		}
	}
	spec, err := rep.ChartTop(kind, topN)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return chart.Spec{}, false
	}
	return spec, true
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	if !strings.HasSuffix(file, ".png") {
		http.NotFound(w, r)
		return
	}
	spec, ok := s.chartSpec(w, r, strings.TrimSuffix(file, ".png"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := chart.Render(spec, &buf); err != nil {
		if errors.Is(err, chart.ErrEmptyChart) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "渲染图表失败: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) handleChartJSON(w http.ResponseWriter, r *http.Request) {
	spec, ok := s.chartSpec(w, r, r.PathValue("kind"))
	if !ok {
		return
	}
	writeJSON(w, spec)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Report()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	df, err := rep.Table(r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := df.WriteCSV(&buf); err != nil {
		http.Error(w, "导出CSV失败: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Report()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, rep.Metrics)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	rep, _ := s.Report()
	writeJSON(w, rep.Metrics)
}

// handleLogs 实时输出日志, 客户端断开时取消订阅
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Transfer-Encoding", "chunked")

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			// 刷新响应缓冲区，确保消息立即发送到客户端
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "序列化失败: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
