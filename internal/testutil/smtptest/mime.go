package smtptest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// Part 解码后的 MIME 叶子节点
type Part struct {
	ContentType string
	Filename    string
	Attachment  bool
	Body        []byte
}

// Parsed 解析后的邮件
type Parsed struct {
	Subject string
	From    string
	To      string
	Parts   []Part
}

// Attachments 仅返回附件部分
func (p *Parsed) Attachments() []Part {
	var out []Part
	for _, part := range p.Parts {
		if part.Attachment {
			out = append(out, part)
		}
	}
	return out
}

// Text 返回第一个 text/plain 正文
func (p *Parsed) Text() string {
	for _, part := range p.Parts {
		if !part.Attachment && strings.HasPrefix(part.ContentType, "text/plain") {
			return string(part.Body)
		}
	}
	return ""
}

// Parse 用 go-message 展开 multipart，传输编码已解码
func (m Message) Parse() (*Parsed, error) {
	reader, err := mail.CreateReader(bytes.NewReader(m.Data))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer reader.Close()

	subject, err := reader.Header.Subject()
	if err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}

	parsed := &Parsed{
		Subject: subject,
		From:    reader.Header.Get("From"),
		To:      reader.Header.Get("To"),
	}

	for {
		p, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return parsed, nil
		}
		if err != nil {
			return nil, fmt.Errorf("next part: %w", err)
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		part := Part{Body: body}
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			part.ContentType, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			part.Attachment = true
			part.ContentType, _, _ = h.ContentType()
			part.Filename, _ = h.Filename()
		}
		parsed.Parts = append(parsed.Parts, part)
	}
}
