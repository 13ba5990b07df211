package email

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TitanicInsight/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetCSV = "PassengerId,Survived,Pclass,Name,Sex,Age\n" +
	"1,0,3,\"Braund, Mr. Owen Harris\",male,22\n" +
	"2,1,1,\"Cumings, Mrs. John Bradley\",female,38\n"

// fakeMailService 内存中的邮件服务
type fakeMailService struct {
	emails       []*Email
	connectErr   error
	fetchErr     error
	connected    bool
	disconnected bool
}

func (f *fakeMailService) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMailService) Disconnect() { f.disconnected = true }

func (f *fakeMailService) FetchRecentEmails() ([]*Email, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.emails, nil
}

func newLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func rawMessage(subject, filename string, content []byte) string {
	raw := strings.Join([]string{
		"From: Data Desk <data@example.com>",
		"To: reports@example.com",
		"Subject: " + subject,
		"Date: Mon, 06 May 2024 10:00:00 +0000",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"See attachment.",
		"--BOUNDARY",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="` + filename + `"`,
		"Content-Transfer-Encoding: base64",
		"",
		base64.StdEncoding.EncodeToString(content),
		"--BOUNDARY--",
		"",
	}, "\r\n")
	return raw
}

func TestParseMessage(t *testing.T) {
	msg, err := parseMessage(strings.NewReader(rawMessage("titanic dataset", "titanic.csv", []byte(datasetCSV))), 42)
	require.NoError(t, err)

	assert.Equal(t, uint32(42), msg.UID)
	assert.Equal(t, "titanic dataset", msg.Subject)
	assert.Contains(t, msg.From, "data@example.com")
	assert.Equal(t, 2024, msg.Date.Year())
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "titanic.csv", msg.Attachments[0].Filename)
	assert.Equal(t, datasetCSV, string(msg.Attachments[0].Content))
	assert.NotNil(t, msg.DataAttachment())
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "你好", decodeHeader("=?gbk?B?xOO6ww==?="))
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))
	assert.Equal(t, "Héllo", decodeHeader("=?UTF-8?Q?H=C3=A9llo?="))
}

func TestFilterLatestTargetEmail(t *testing.T) {
	now := time.Now()
	csv := []*Attachment{{Filename: "titanic.csv", Content: []byte(datasetCSV)}}
	emails := []*Email{
		{UID: 1, Subject: "titanic dataset", Date: now.Add(-2 * time.Hour), Attachments: csv},
		{UID: 2, Subject: "titanic dataset", Date: now.Add(-time.Hour), Attachments: csv},
		{UID: 3, Subject: "titanic dataset", Date: now, Attachments: []*Attachment{{Filename: "notes.pdf"}}},
		{UID: 4, Subject: "weekly newsletter", Date: now, Attachments: csv},
	}

	got := filterLatestTargetEmail(emails, "titanic")
	require.NotNil(t, got)
	assert.Equal(t, uint32(2), got.UID)

	assert.Nil(t, filterLatestTargetEmail(emails, "lusitania"))
}

func TestFetchDataset(t *testing.T) {
	svc := &fakeMailService{emails: []*Email{{
		UID:         7,
		Subject:     "titanic dataset",
		Date:        time.Now(),
		Attachments: []*Attachment{{Filename: "titanic.csv", Content: []byte(datasetCSV)}},
	}}}
	dir := t.TempDir()
	handler := NewAttachmentHandler("titanic", dir, nil)

	df, msg, err := FetchDataset(context.Background(), svc, "titanic", "", handler, newLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, uint32(7), msg.UID)
	assert.True(t, svc.connected)
	assert.True(t, svc.disconnected)

	assert.True(t, handler.IsProcessed(7))
	saved, err := os.ReadFile(filepath.Join(dir, "titanic.csv"))
	require.NoError(t, err)
	assert.Equal(t, datasetCSV, string(saved))
	assert.Equal(t, filepath.Join(dir, "titanic.csv"), handler.LastSaved())
}

func TestFetchDataset_Errors(t *testing.T) {
	logger := newLogger(t)
	boom := errors.New("boom")

	_, _, err := FetchDataset(context.Background(), &fakeMailService{connectErr: boom}, "titanic", "", nil, logger)
	assert.ErrorIs(t, err, boom)

	_, _, err = FetchDataset(context.Background(), &fakeMailService{fetchErr: boom}, "titanic", "", nil, logger)
	assert.ErrorIs(t, err, boom)

	_, _, err = FetchDataset(context.Background(), &fakeMailService{}, "titanic", "", nil, logger)
	assert.ErrorIs(t, err, ErrNoTargetEmail)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := &fakeMailService{}
	_, _, err = FetchDataset(ctx, svc, "titanic", "", nil, logger)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, svc.connected)
}

func TestAttachmentHandler(t *testing.T) {
	dir := t.TempDir()
	handler := NewAttachmentHandler("titanic", dir, newLogger(t))

	// 主题不匹配
	require.NoError(t, handler.Handle(&Email{UID: 1, Subject: "newsletter",
		Attachments: []*Attachment{{Filename: "a.csv", Content: []byte("x")}}}))
	assert.False(t, handler.IsProcessed(1))

	// 没有数据附件
	require.NoError(t, handler.Handle(&Email{UID: 2, Subject: "titanic",
		Attachments: []*Attachment{{Filename: "a.pdf", Content: []byte("x")}}}))
	assert.False(t, handler.IsProcessed(2))

	// 附件名中的路径被去掉
	require.NoError(t, handler.Handle(&Email{UID: 3, Subject: "titanic",
		Attachments: []*Attachment{{Filename: "../../escape.csv", Content: []byte("x")}}}))
	assert.True(t, handler.IsProcessed(3))
	_, err := os.Stat(filepath.Join(dir, "escape.csv"))
	assert.NoError(t, err)
}
