package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/config"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpNotifier struct {
	cfg  config.NotifierConfig
	md   goldmark.Markdown
	send sendFunc
}

func NewSMTP(cfg config.NotifierConfig) Notifier {
	return &smtpNotifier{
		cfg:  cfg,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		send: smtp.SendMail,
	}
}

func (s *smtpNotifier) Notify(ctx context.Context, subject, markdown string) error {
	from := strings.TrimSpace(s.cfg.From)
	if s.cfg.Host == "" || s.cfg.Port == 0 || from == "" || len(s.cfg.Recipients) == 0 {
		return appErr.ErrInvalid
	}
	msg, err := s.buildMessage(from, subject, markdown)
	if err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, from, s.cfg.Recipients, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	logutil.GetLogger(ctx).Info("notification sent", zap.String("subject", subject), zap.Int("recipients", len(s.cfg.Recipients)))
	return nil
}

// buildMessage renders a multipart/alternative mail carrying the markdown
// source as text/plain and its HTML rendering.
func (s *smtpNotifier) buildMessage(from, subject, markdown string) ([]byte, error) {
	var html bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &html); err != nil {
		return nil, fmt.Errorf("render notification: %w", err)
	}
	boundary := "notesync-" + uuid.NewString()
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(s.cfg.Recipients, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(markdown + "\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(html.String() + "\r\n")
	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String()), nil
}
