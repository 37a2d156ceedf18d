package web

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kmalinin/shoply/internal/logging"
)

type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Envelope{Status: "success", Data: data})
}

func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Envelope{Status: "success", Data: data})
}

func Message(c echo.Context, code int, msg string) error {
	return c.JSON(code, Envelope{Status: "success", Message: msg})
}

// ErrorHandler renders every error through the uniform envelope.
// AppError carries its own status; echo.HTTPError keeps its code;
// anything else is a 500 with the details suppressed.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "internal server error"

	if ae, ok := AsAppError(err); ok {
		code = ae.Code
		msg = ae.Message
		if code >= 500 {
			logging.FromContext(c.Request().Context()).Error("request failed", "error", ae.Error())
		}
	} else if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = http.StatusText(code)
		}
	} else {
		logging.FromContext(c.Request().Context()).Error("request failed", "error", err.Error())
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, Envelope{Status: "error", Message: msg})
}
