package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/errs"
)

type Resp[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// ErrorResp is used to return error response
// @param l: if true, log error
func ErrorResp(c *gin.Context, err error, code int, l ...bool) {
	if len(l) > 0 && l[0] {
		log.Errorf("%+v", err)
	}
	c.JSON(200, Resp[interface{}]{
		Code:    code,
		Message: err.Error(),
		Data:    nil,
	})
	c.Abort()
}

func ErrorStrResp(c *gin.Context, str string, code int, l ...bool) {
	if len(l) > 0 && l[0] {
		log.Error(str)
	}
	c.JSON(200, Resp[interface{}]{
		Code:    code,
		Message: str,
		Data:    nil,
	})
	c.Abort()
}

func SuccessResp(c *gin.Context, data ...interface{}) {
	if len(data) == 0 {
		c.JSON(200, Resp[interface{}]{
			Code:    200,
			Message: "success",
			Data:    nil,
		})
		return
	}
	c.JSON(200, Resp[interface{}]{
		Code:    200,
		Message: "success",
		Data:    data[0],
	})
}

// StatusOf maps an operation error to the code reported to clients.
func StatusOf(err error) int {
	cause := errors.Cause(err)
	switch {
	case errs.IsValidation(err), errors.Is(cause, errs.SessionBusy):
		return http.StatusConflict
	case errors.Is(cause, errs.ObjectNotFound), errors.Is(cause, errs.SessionClosed):
		return http.StatusNotFound
	case errors.Is(cause, errs.UnknownArchiveFormat), errors.Is(cause, errs.NotSupport),
		errors.Is(cause, errs.ProviderUnavailable), errors.Is(cause, errs.NotFolder):
		return http.StatusBadRequest
	case errors.Is(cause, errs.WrongArchivePassword):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// OpErrorResp reports err with the code StatusOf picks, logging server
// side failures.
func OpErrorResp(c *gin.Context, err error) {
	code := StatusOf(err)
	ErrorResp(c, err, code, code == http.StatusInternalServerError)
}
