// Package intake decodes the multipart upload form into a Submission.
package intake

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/anoixa/photo-mailer/internal/locale"
	"github.com/anoixa/photo-mailer/utils/format"
	"github.com/anoixa/photo-mailer/utils/mime"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyField   = errors.New("field is empty")
	ErrEmptyPhoto   = errors.New("photo is empty")
	ErrPhotoTooBig  = errors.New("photo exceeds size limit")
	ErrNilSubmitted = errors.New("submission is nil")
)

// Submission 解析后的上传表单
type Submission struct {
	Email       string
	Nickname    string
	Photo       []byte
	Filename    string
	ContentType string
}

// Validate 三个字段均不能为空
func (s *Submission) Validate() error {
	switch {
	case s == nil:
		return ErrNilSubmitted
	case s.Email == "":
		return fmt.Errorf("email: %w", ErrEmptyField)
	case s.Nickname == "":
		return fmt.Errorf("nickname: %w", ErrEmptyField)
	case len(s.Photo) == 0:
		return ErrEmptyPhoto
	}
	return nil
}

// MaxFieldLength 邮箱和昵称的最大字符数
const MaxFieldLength = 255

// uploadForm 字段名与前端表单保持一致
type uploadForm struct {
	Email    string                `form:"email" binding:"required"`
	Nickname string                `form:"nickname" binding:"required"`
	Photo    *multipart.FileHeader `form:"photo" binding:"required"`
}

// Parser 基于 gin 表单绑定的 multipart 解析器
type Parser struct {
	maxBytes int64
	messages *locale.Catalog
	validate *validator.Validate
}

// NewParser maxBytes 为单张照片的上限，<=0 时不限制
func NewParser(maxBytes int64, messages *locale.Catalog) *Parser {
	if messages == nil {
		messages = locale.Lookup(locale.DefaultLang)
	}
	return &Parser{
		maxBytes: maxBytes,
		messages: messages,
		validate: validator.New(),
	}
}

// Parse 解析请求，任何字段缺失或为空时返回 *ValidationError
func (p *Parser) Parse(c *gin.Context) (*Submission, error) {
	var form uploadForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		return nil, p.bindError(err)
	}

	email := strings.TrimSpace(form.Email)
	nickname := strings.TrimSpace(form.Nickname)
	if email == "" {
		return nil, p.missing("email", ErrEmptyField)
	}
	if nickname == "" {
		return nil, p.missing("nickname", ErrEmptyField)
	}
	if err := p.checkLength("email", email); err != nil {
		return nil, err
	}
	if err := p.checkLength("nickname", nickname); err != nil {
		return nil, err
	}
	if err := p.validate.Var(email, "email"); err != nil {
		return nil, &ValidationError{Field: "email", Message: p.messages.InvalidEmail, Err: err}
	}

	photo, err := p.readPhoto(form.Photo)
	if err != nil {
		return nil, err
	}

	return &Submission{
		Email:       email,
		Nickname:    nickname,
		Photo:       photo,
		Filename:    mime.SafeFilename(form.Photo.Filename),
		ContentType: mime.SniffContentType(photo),
	}, nil
}

// checkLength 长度按去除首尾空白后的字符数计算
func (p *Parser) checkLength(field, value string) error {
	if err := p.validate.Var(value, fmt.Sprintf("max=%d", MaxFieldLength)); err != nil {
		return &ValidationError{Field: field, Message: p.messages.FieldTooLong, Err: err}
	}
	return nil
}

// readPhoto 将照片完整读入内存，超过上限即拒绝
func (p *Parser) readPhoto(fh *multipart.FileHeader) ([]byte, error) {
	if p.maxBytes > 0 && fh.Size > p.maxBytes {
		return nil, p.tooLarge()
	}

	file, err := fh.Open()
	if err != nil {
		return nil, &ValidationError{Field: "photo", Message: p.messages.InvalidForm, Err: err}
	}
	defer file.Close()

	var reader io.Reader = file
	if p.maxBytes > 0 {
		reader = io.LimitReader(file, p.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &ValidationError{Field: "photo", Message: p.messages.InvalidForm, Err: err}
	}

	if len(data) == 0 {
		return nil, p.missing("photo", ErrEmptyPhoto)
	}
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return nil, p.tooLarge()
	}
	return data, nil
}

// bindError 将绑定错误映射为本地化的 ValidationError
func (p *Parser) bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return p.missing(strings.ToLower(fieldErrs[0].Field()), err)
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return p.tooLarge()
	}

	// multipart 解析失败或 Content-Type 不正确
	return &ValidationError{Field: "form", Message: p.messages.InvalidForm, Err: err}
}

func (p *Parser) missing(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: p.messages.MissingFields, Err: err}
}

func (p *Parser) tooLarge() *ValidationError {
	return &ValidationError{
		Field:    "photo",
		Message:  p.messages.PhotoTooLarge,
		TooLarge: true,
		Err:      fmt.Errorf("%w (limit %s)", ErrPhotoTooBig, format.HumanReadableSize(p.maxBytes)),
	}
}
