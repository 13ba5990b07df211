// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/storage"
)

// ====================== 邮件处理器实现 ======================

// AttachmentHandler 把目标邮件中的 CSV/XLSX 附件保存到数据目录
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	logger        *storage.Logger // 可为空
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	lastSaved     string
	mu            sync.RWMutex // 保护processedUIDs的读写锁
}

func NewAttachmentHandler(subject, dataDir string, logger *storage.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *AttachmentHandler) markAsProcessed(uid uint32, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
	h.lastSaved = path
}

// LastSaved 最近一次保存的附件路径
func (h *AttachmentHandler) LastSaved() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastSaved
}

func (h *AttachmentHandler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Logf(storage.INFO, format, args...)
	}
}

// Handle 处理单个邮件
func (h *AttachmentHandler) Handle(email *Email) error {
	// 检查是否已处理过该邮件
	if h.IsProcessed(email.UID) {
		return nil
	}

	// 检查邮件主题是否包含目标关键词
	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.logf("跳过主题不匹配的邮件: %s", email.Subject)
		return nil
	}

	h.logf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05"))

	if err := file.EnsureDir(h.DataDir); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	saved := ""
	for _, attachment := range email.Attachments {
		if !file.IsDataFile(attachment.Filename) {
			continue
		}

		// 只保留文件名, 防止附件名中的路径跳出数据目录
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return fmt.Errorf("保存附件失败: %w", err)
		}

		h.logf("附件已保存到: %s", filePath)
		if saved == "" {
			saved = filePath
		}
	}

	// 如果有数据附件，则标记邮件为已处理
	if saved != "" {
		h.markAsProcessed(email.UID, saved)
	}

	return nil
}
