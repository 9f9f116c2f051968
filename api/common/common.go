package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondErrorAbort sends an error response and stops the handler chain.
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Status: "error",
		Msg:    message,
	})
}

// MessageBody 上传接口的成功响应体
type MessageBody struct {
	Message string `json:"message"`
}

// ErrorBody 上传接口的错误响应体
type ErrorBody struct {
	Error string `json:"error"`
}

// RespondMessage sends {"message": ...}.
func RespondMessage(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, MessageBody{Message: message})
}

// RespondErrorBody sends {"error": ...} and aborts.
func RespondErrorBody(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorBody{Error: message})
}

// RespondText sends a plain text body and aborts.
func RespondText(c *gin.Context, httpStatus int, message string) {
	c.Abort()
	c.String(httpStatus, message)
}
