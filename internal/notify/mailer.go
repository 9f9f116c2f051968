// Package notify sends the uploaded photo back to its submitter over SMTP.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/anoixa/photo-mailer/internal/locale"
	"github.com/anoixa/photo-mailer/utils/mime"
	"github.com/wneessen/go-mail"
)

// implicitTLSPort SMTPS 端口，连接建立即为 TLS
const implicitTLSPort = 465

var ErrMissingSender = errors.New("mail sender address is not configured")

// Config SMTP 连接与发信配置
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	FromName  string
	TLSPolicy string // opportunistic | mandatory | none | implicit，465 端口固定为 implicit
	Timeout   time.Duration
	Locale    string

	// InsecureSkipVerify 跳过服务器证书校验，仅用于自签名的内网中继
	InsecureSkipVerify bool
	// TLSConfig 自定义 TLS 配置（如私有 CA），为空时使用 go-mail 默认配置
	TLSConfig *tls.Config
}

// Notification 一封回信的内容
type Notification struct {
	To          string
	Nickname    string
	Photo       []byte
	Filename    string
	ContentType string

	// Sender 由 SMTPMailer 填入，用于模板落款
	Sender string
}

// SMTPMailer 每次发送建立一次 SMTP 会话，发送完成即关闭
type SMTPMailer struct {
	cfg     Config
	options []mail.Option
	subject *template.Template
	body    *template.Template
}

// NewSMTPMailer 校验配置并预编译模板
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail host is not configured")
	}
	if cfg.From == "" {
		return nil, ErrMissingSender
	}

	options, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	catalog := locale.Lookup(cfg.Locale)
	subject, err := template.New("subject").Parse(catalog.MailSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail subject template: %w", err)
	}
	body, err := template.New("body").Parse(catalog.MailBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail body template: %w", err)
	}

	return &SMTPMailer{
		cfg:     cfg,
		options: options,
		subject: subject,
		body:    body,
	}, nil
}

// clientOptions 根据端口与 TLS 策略生成 go-mail 客户端选项
func clientOptions(cfg Config) ([]mail.Option, error) {
	port := cfg.Port
	if port <= 0 {
		port = 587
	}
	options := []mail.Option{mail.WithPort(port)}

	policy := strings.ToLower(cfg.TLSPolicy)
	if port == implicitTLSPort || policy == "implicit" || policy == "ssl" {
		options = append(options, mail.WithSSL())
	} else {
		switch policy {
		case "", "opportunistic":
			options = append(options, mail.WithTLSPolicy(mail.TLSOpportunistic))
		case "mandatory", "starttls":
			options = append(options, mail.WithTLSPolicy(mail.TLSMandatory))
		case "none":
			options = append(options, mail.WithTLSPolicy(mail.NoTLS))
		default:
			return nil, fmt.Errorf("unsupported mail TLS policy: %s", cfg.TLSPolicy)
		}
	}

	if tlsConfig := clientTLSConfig(cfg); tlsConfig != nil {
		options = append(options, mail.WithTLSConfig(tlsConfig))
	}

	if cfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	if cfg.Timeout > 0 {
		options = append(options, mail.WithTimeout(cfg.Timeout))
	}
	return options, nil
}

func clientTLSConfig(cfg Config) *tls.Config {
	if cfg.TLSConfig == nil && !cfg.InsecureSkipVerify {
		return nil
	}

	var tlsConfig *tls.Config
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	} else {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = cfg.Host
	}
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}
	return tlsConfig
}

// Compose 组装邮件：本地化主题与正文，照片作为唯一附件
func (m *SMTPMailer) Compose(n Notification) (*mail.Msg, error) {
	n.Sender = m.cfg.FromName
	if n.Sender == "" {
		n.Sender = m.cfg.From
	}
	if n.Filename == "" {
		n.Filename = mime.DefaultFilename
	}
	if n.ContentType == "" {
		n.ContentType = mime.SniffContentType(n.Photo)
	}

	msg := mail.NewMsg()
	if m.cfg.FromName != "" {
		if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
	} else if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(n.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	var subject bytes.Buffer
	if err := m.subject.Execute(&subject, n); err != nil {
		return nil, fmt.Errorf("failed to render mail subject: %w", err)
	}
	msg.Subject(subject.String())

	if err := msg.SetBodyTextTemplate(m.body, n); err != nil {
		return nil, fmt.Errorf("failed to render mail body: %w", err)
	}

	contentType := mail.WithFileContentType(mail.ContentType(n.ContentType))
	if err := msg.AttachReader(n.Filename, bytes.NewReader(n.Photo), contentType); err != nil {
		return nil, fmt.Errorf("failed to attach photo: %w", err)
	}

	msg.SetDate()
	msg.SetMessageID()
	return msg, nil
}

// Send 发送一封邮件，不重试
func (m *SMTPMailer) Send(ctx context.Context, n Notification) error {
	msg, err := m.Compose(n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host, m.options...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}
