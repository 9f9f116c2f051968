package uploads

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/anoixa/photo-mailer/api/common"
	"github.com/anoixa/photo-mailer/internal/intake"
	"github.com/anoixa/photo-mailer/internal/locale"
	"github.com/anoixa/photo-mailer/internal/services/upload"
	"github.com/anoixa/photo-mailer/utils"
	"github.com/gin-gonic/gin"
)

// SuccessRedirect 表单提交成功后的跳转地址
const SuccessRedirect = "/?success=1"

// FormParser 把请求解析为提交内容
type FormParser interface {
	Parse(c *gin.Context) (*intake.Submission, error)
}

// Pipeline 上传管道
type Pipeline interface {
	Process(ctx context.Context, sub *intake.Submission) (*upload.Result, error)
}

// Handler 上传处理器
type Handler struct {
	parser   FormParser
	pipeline Pipeline
	messages *locale.Catalog
}

// NewHandler 创建上传处理器
func NewHandler(parser FormParser, pipeline Pipeline, messages *locale.Catalog) *Handler {
	if messages == nil {
		messages = locale.Lookup(locale.DefaultLang)
	}
	return &Handler{
		parser:   parser,
		pipeline: pipeline,
		messages: messages,
	}
}

// FormUpload 处理浏览器表单提交 POST /upload
// 成功时 302 跳转，失败时返回纯文本
// @Summary      Upload a photo from the browser form
// @Description  Stores the photo and emails it to the submitter. Redirects to /?success=1 on success.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      plain
// @Param        email     formData  string  true  "Recipient email address"
// @Param        nickname  formData  string  true  "Display name"
// @Param        photo     formData  file    true  "Photo to send"
// @Success      302  {string}  string  "Redirect to the success page"
// @Failure      400  {string}  string  "Missing or invalid field"
// @Failure      413  {string}  string  "Photo too large"
// @Failure      429  {string}  string  "Too many submissions"
// @Failure      500  {string}  string  "Server error"
// @Router       /upload [post]
func (h *Handler) FormUpload(c *gin.Context) {
	if err := h.handle(c); err != nil {
		status, message := h.classify(c, err)
		common.RespondText(c, status, message)
		return
	}
	c.Redirect(http.StatusFound, SuccessRedirect)
}

// APIUpload 处理 JSON 风格的提交 POST /api/upload
// @Summary      Upload a photo
// @Description  Stores the photo and emails it to the submitter.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        email     formData  string  true  "Recipient email address"
// @Param        nickname  formData  string  true  "Display name"
// @Param        photo     formData  file    true  "Photo to send"
// @Success      200  {object}  common.MessageBody  "Photo stored and emailed"
// @Failure      400  {object}  common.ErrorBody    "Missing or invalid field"
// @Failure      413  {object}  common.ErrorBody    "Photo too large"
// @Failure      429  {object}  common.ErrorBody    "Too many submissions"
// @Failure      500  {object}  common.ErrorBody    "Server error"
// @Router       /api/upload [post]
func (h *Handler) APIUpload(c *gin.Context) {
	if err := h.handle(c); err != nil {
		status, message := h.classify(c, err)
		common.RespondErrorBody(c, status, message)
		return
	}
	common.RespondMessage(c, http.StatusOK, h.messages.Success)
}

// MethodNotAllowed 405 响应
func (h *Handler) MethodNotAllowed(c *gin.Context) {
	common.RespondErrorBody(c, http.StatusMethodNotAllowed, h.messages.MethodNotAllowed)
}

// FormRateLimited 来源 IP 超出限流时的纯文本响应
func (h *Handler) FormRateLimited(c *gin.Context) {
	common.RespondText(c, http.StatusTooManyRequests, h.messages.Throttled)
}

// APIRateLimited 来源 IP 超出限流时的 JSON 响应
func (h *Handler) APIRateLimited(c *gin.Context) {
	common.RespondErrorBody(c, http.StatusTooManyRequests, h.messages.Throttled)
}

func (h *Handler) handle(c *gin.Context) error {
	sub, err := h.parser.Parse(c)
	if err != nil {
		return err
	}
	_, err = h.pipeline.Process(c.Request.Context(), sub)
	return err
}

// classify 把错误映射为状态码和客户端可见的文本，内部细节只写日志
func (h *Handler) classify(c *gin.Context, err error) (int, string) {
	reqID := utils.RequestIDFrom(c.Request.Context())

	var validationErr *intake.ValidationError
	var throttledErr *upload.ThrottledError
	var notifyErr *upload.NotificationError
	var persistErr *upload.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		log.Printf("[Upload] request=%s rejected: %s", reqID, utils.SanitizeLogMessage(validationErr.Error()))
		message := validationErr.Message
		if message == "" {
			message = h.messages.MissingFields
		}
		if validationErr.TooLarge {
			return http.StatusRequestEntityTooLarge, message
		}
		return http.StatusBadRequest, message
	case errors.As(err, &throttledErr):
		if throttledErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(throttledErr.RetryAfter.Seconds()))))
		}
		return http.StatusTooManyRequests, h.messages.Throttled
	case errors.As(err, &notifyErr):
		log.Printf("[Upload] request=%s responded 500 after storing upload %d", reqID, notifyErr.UploadID)
		return http.StatusInternalServerError, h.messages.ServerError
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, h.messages.ServerError
	default:
		log.Printf("[Upload] request=%s unexpected error: %v", reqID, err)
		return http.StatusInternalServerError, h.messages.ServerError
	}
}
