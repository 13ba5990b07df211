// mailpush.go
package datapush

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"TitanicInsight/src/config"
	"TitanicInsight/src/report"
	"TitanicInsight/src/utils"

	"github.com/jordan-wright/email"
)

const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
	// 默认 SSL 端口
	defaultSMTPPort = "465"
)

var ErrNoRecipients = errors.New("未配置收件人")

type sendFunc func(e *email.Email, addr string, a smtp.Auth, t *tls.Config) error

// MailReport 通过 SMTP(TLS) 发送分析报告
type MailReport struct {
	Server   string
	Username string
	Password string
	To       []string
	Subject  string

	send sendFunc
}

func NewMailReport(cfg *config.Config) *MailReport {
	return &MailReport{
		Server:   cfg.SendEmail.Server,
		Username: cfg.SendEmail.Username,
		Password: cfg.SendEmail.Password,
		To:       cfg.SendEmail.To,
		Subject:  cfg.SendEmail.Subject,
		send: func(e *email.Email, addr string, a smtp.Auth, t *tls.Config) error {
			return e.SendWithTLS(addr, a, t)
		},
	}
}

// Compose 生成报告邮件: 正文为文本摘要, 附件为 files 中的工作簿和图表
func (m *MailReport) Compose(r *report.Report, files []string) (*email.Email, error) {
	if len(m.To) == 0 {
		return nil, ErrNoRecipients
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("TitanicInsight <%s>", m.Username)
	e.To = m.To
	e.Subject = fmt.Sprintf("%s (%s)", m.Subject, r.GeneratedAt.Format("2006-01-02 15:04"))

	var body bytes.Buffer
	if err := r.WriteText(&body); err != nil {
		return nil, fmt.Errorf("生成邮件正文失败: %w", err)
	}
	e.Text = body.Bytes()

	for _, path := range files {
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败 %s: %w", path, err)
		}
	}
	return e, nil
}

// Send 发送报告邮件, 失败时按固定间隔重试
func (m *MailReport) Send(ctx context.Context, r *report.Report, files []string) error {
	e, err := m.Compose(r, files)
	if err != nil {
		return err
	}

	// 确保服务器地址包含端口
	smtpAddr := m.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":" + defaultSMTPPort
	}
	host := strings.Split(smtpAddr, ":")[0]
	auth := smtp.PlainAuth("", m.Username, m.Password, host)
	tlsConfig := &tls.Config{ServerName: host}

	err = utils.Retry(ctx, RETRY_TIMES, RETRY_INTERVAL, func() error {
		return m.send(e, smtpAddr, auth, tlsConfig)
	})
	if err != nil {
		return fmt.Errorf("邮件发送失败 (Server: %s): %w", smtpAddr, err)
	}
	return nil
}
