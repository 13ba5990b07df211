// client.go
package email

import (
	// 标准库导入
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	// 第三方库导入
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	// 项目内部导入
	"TitanicInsight/src/datasource/file"
	"TitanicInsight/src/storage"
)

/******************** 常量定义 ********************/
const (
	MaxFetchMessages   = 100                // 单次最大获取邮件数量，防止内存溢出
	FetchBufferSize    = 10                 // 邮件获取通道缓冲区大小
	RecentMailDuration = 7 * 24 * time.Hour // 只查找最近一周的邮件
)

var (
	ErrNotConnected  = errors.New("未连接到邮件服务器")
	ErrNoTargetEmail = errors.New("没有包含数据附件的目标邮件")
)

/******************** 接口定义 ********************/

// MailService 邮件服务核心接口
type MailService interface {
	// Connect 建立与邮件服务器的连接
	Connect() error

	// Disconnect 安全断开与邮件服务器的连接
	Disconnect()

	// FetchRecentEmails 获取最近的邮件列表(含附件)
	FetchRecentEmails() ([]*Email, error)
}

// EmailHandler 邮件处理器接口
type EmailHandler interface {
	// Handle 处理单个邮件
	Handle(email *Email) error
}

/******************** 数据结构 ********************/

// Email 邮件基础数据结构
type Email struct {
	UID         uint32        // 邮件唯一标识符(IMAP UID)
	Date        time.Time     // 邮件发送时间
	From        string        // 发件人信息(已解码)
	Subject     string        // 邮件主题(已解码)
	Attachments []*Attachment // 邮件附件列表
}

// Attachment 邮件附件数据结构
type Attachment struct {
	Filename string // 附件文件名(已解码)
	Content  []byte // 附件二进制内容
}

// DataAttachment 返回第一个 CSV/XLSX 附件
func (e *Email) DataAttachment() *Attachment {
	for _, a := range e.Attachments {
		if file.IsDataFile(a.Filename) {
			return a
		}
	}
	return nil
}

/******************** 邮件客户端实现 ********************/

// EmailClient IMAP邮件客户端实现
type EmailClient struct {
	server    string         // IMAP服务器地址(包含端口)
	username  string         // 登录用户名
	password  string         // 登录密码/授权码
	mailbox   string         // 邮箱文件夹
	client    *client.Client // IMAP客户端实例
	mu        sync.Mutex     // 线程安全锁
	connected bool           // 连接状态标记
}

// NewEmailClient 构造函数：创建邮件客户端实例
// 参数:
//   - server: 服务器地址(如"imap.qq.com:993")
//   - username: 邮箱账号
//   - password: 密码/授权码
//   - mailbox: 邮箱文件夹, 为空时使用 INBOX
func NewEmailClient(server, username, password, mailbox string) *EmailClient {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
		mailbox:  mailbox,
	}
}

// Connect 建立安全连接(线程安全)
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 连接有效性检查
	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		// 连接已失效则重置
		s.client.Logout()
		s.client = nil
		s.connected = false
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}

	// 登录认证
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

// Disconnect 安全断开连接(线程安全)
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchRecentEmails 获取最近 RecentMailDuration 内的邮件(线程安全)
// 已读邮件同样返回, 是否处理过由 AttachmentHandler 按 UID 判断
func (s *EmailClient) FetchRecentEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	if _, err := s.client.Select(s.mailbox, true); err != nil {
		return nil, fmt.Errorf("选择邮箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().Add(-RecentMailDuration)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	// 序号越大越新, 只保留最新的 MaxFetchMessages 封
	if len(ids) > MaxFetchMessages {
		ids = ids[len(ids)-MaxFetchMessages:]
	}

	return s.fetchMessages(ids)
}

// fetchMessages 获取指定ID的邮件内容
func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,     // 信封信息(发件人、主题等)
		imap.FetchInternalDate, // 内部日期
		imap.FetchUid,          // 唯一标识
		section.FetchItem(),    // 正文内容
	}

	// 异步获取通道
	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	var parseErrs []error
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			parseErrs = append(parseErrs, fmt.Errorf("邮件 %d 正文为空", msg.Uid))
			continue
		}
		email, err := parseMessage(r, msg.Uid)
		if err != nil {
			parseErrs = append(parseErrs, err)
			continue
		}
		if email.Date.IsZero() {
			email.Date = msg.InternalDate
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	if len(emails) == 0 && len(parseErrs) > 0 {
		return nil, fmt.Errorf("解析邮件失败: %w", errors.Join(parseErrs...))
	}

	return emails, nil
}

/******************** 邮件解析相关 ********************/

// parseMessage 解析单个 RFC 5322 邮件
func parseMessage(r io.Reader, uid uint32) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}
	defer mr.Close()

	header := mr.Header
	date, _ := header.Date() // 日期解析错误不影响后续处理

	email := &Email{
		UID:     uid,
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}

	parseEmailParts(mr, email)
	return email, nil
}

// parseEmailParts 解析邮件正文和附件, 无法解析的部分被跳过
func parseEmailParts(mr *mail.Reader, email *Email) {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil {
			if p == nil {
				return
			}
			continue
		}

		// 处理附件部分
		if h, ok := p.Header.(*mail.AttachmentHeader); ok {
			_ = parseAttachment(h, p.Body, email)
		}
	}
}

// parseAttachment 解析单个附件
func parseAttachment(h *mail.AttachmentHeader, body io.Reader, email *Email) error {
	filename, err := h.Filename()
	if err != nil || filename == "" {
		return fmt.Errorf("无效的附件名")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("读取附件内容失败: %w", err)
	}

	email.Attachments = append(email.Attachments, &Attachment{
		Filename: decodeHeader(filename),
		Content:  buf.Bytes(),
	})
	return nil
}

/******************** 工具函数 ********************/

// decodeHeader 解码邮件头特殊编码
// 支持格式: =?charset?encoding?encoded-text?=
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{
		CharsetReader: charsetReader,
	}

	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header // 解码失败返回原始内容
	}
	return decoded
}

// charsetReader 字符集转换器
// 支持GBK/GB2312/GB18030自动转UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	case "gb18030":
		return transform.NewReader(input, simplifiedchinese.GB18030.NewDecoder()), nil
	default:
		return input, nil // 其他编码原样返回
	}
}

/******************** 业务逻辑函数 ********************/

// CheckAndProcessEmails 查找主题包含 keyword 且带数据附件的最新邮件
func CheckAndProcessEmails(ctx context.Context, mailService MailService, keyword string, logger *storage.Logger) (*Email, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	logger.Info("开始检查邮箱...")

	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect() // 确保连接关闭

	emails, err := mailService.FetchRecentEmails()
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}

	targetEmail := filterLatestTargetEmail(emails, keyword)
	if targetEmail == nil {
		logger.Info("没有目标邮件")
		return nil, ErrNoTargetEmail
	}

	logger.Info(fmt.Sprintf("找到目标邮件 UID=%d (%s)，耗时: %v", targetEmail.UID, targetEmail.Subject, time.Since(startTime)))
	return targetEmail, nil
}

// FetchDataset 从最新的目标邮件附件中读取数据集
// handler 不为空时附件同时保存到本地
func FetchDataset(ctx context.Context, mailService MailService, keyword, sheetName string, handler EmailHandler, logger *storage.Logger) (dataframe.DataFrame, *Email, error) {
	target, err := CheckAndProcessEmails(ctx, mailService, keyword, logger)
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}

	if handler != nil {
		if err := handler.Handle(target); err != nil {
			logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", target.UID, err))
		}
	}

	att := target.DataAttachment()
	df, err := file.ReadBytes(att.Filename, att.Content, sheetName)
	if err != nil {
		return dataframe.DataFrame{}, target, fmt.Errorf("读取附件 %s 失败: %w", att.Filename, err)
	}
	return df, target, nil
}

// filterLatestTargetEmail 过滤主题匹配且带数据附件的最新邮件
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targetEmails []*Email
	for _, email := range emails {
		if strings.Contains(email.Subject, keyword) && email.DataAttachment() != nil {
			targetEmails = append(targetEmails, email)
		}
	}

	if len(targetEmails) == 0 {
		return nil
	}

	// 按日期降序排序
	sort.SliceStable(targetEmails, func(i, j int) bool {
		return targetEmails[i].Date.After(targetEmails[j].Date)
	})

	return targetEmails[0]
}
