// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type FileMonitor struct {
	watchDir string
	keyword  string
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监控目录中名称包含 keyword 的 CSV/XLSX 文件
func NewFileMonitor(dir, keyword string) (*FileMonitor, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		keyword:  keyword,
		watcher:  watcher,
	}, nil
}

func (m *FileMonitor) Dir() string {
	return m.watchDir
}

// LastFile 最近一次触发处理的文件
func (m *FileMonitor) LastFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFile
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}

// Watch 在文件创建或写入后调用 handler, 同一文件修改时间不变时不重复触发
// handler 在单独的 goroutine 中按事件顺序依次执行, 不会并发调用;
// ctx 取消或 watcher 关闭时等待正在执行的 handler 结束后返回
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	queue := make(chan string, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for name := range queue {
			handler(name)
		}
	}()
	defer func() {
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !m.matches(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			m.mu.Lock()
			changed := event.Name != m.lastFile || info.ModTime().After(m.lastMod)
			if changed {
				m.lastMod = info.ModTime()
				m.lastFile = event.Name
			}
			m.mu.Unlock()
			if !changed {
				continue
			}

			select {
			case queue <- event.Name:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) matches(name string) bool {
	if !IsDataFile(name) {
		return false
	}
	return strings.Contains(filepath.Base(name), m.keyword)
}
