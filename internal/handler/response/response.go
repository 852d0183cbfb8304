// Package response 统一的 {code,msg,data} 响应。业务错误同样返回 HTTP 200，由 code 区分
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/validator"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

func write(c *gin.Context, code int, msg string, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, Response{Code: code, Message: msg, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	write(c, errno.OK.Code, errno.OK.Message, data)
}

// Error 包装过的错误也能解析出 errno 码
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, nil)
}

// ErrorWithData 失败但仍需返回数据，例如已广播交易的 hash、迁移的完成进度
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	code, msg := errno.Decode(err)
	write(c, code, msg, data)
}

// BindError 请求绑定或 validator 校验失败，msg 为第一条可读的校验信息
func BindError(c *gin.Context, err error) {
	write(c, errno.ErrBind.Code, validator.GetErrorMsg(err), nil)
}
