package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	ErrorHandler(err, c)
	return rec
}

func TestErrorHandlerAppError(t *testing.T) {
	rec := render(t, NotFound("product"))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"status":"error","message":"product not found"}`, rec.Body.String())
}

func TestErrorHandlerEchoHTTPError(t *testing.T) {
	rec := render(t, echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.JSONEq(t, `{"status":"error","message":"Method Not Allowed"}`, rec.Body.String())
}

func TestErrorHandlerOpaqueError(t *testing.T) {
	rec := render(t, errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal details never reach the client.
	require.JSONEq(t, `{"status":"error","message":"internal server error"}`, rec.Body.String())
}

func TestErrorHandlerInternalHidesCause(t *testing.T) {
	rec := render(t, Internal(errors.New("dial tcp: connection refused")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestAsAppErrorUnwraps(t *testing.T) {
	base := Conflict("taken")
	wrapped := errorWrap(base)

	ae, ok := AsAppError(wrapped)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, ae.Code)

	_, ok = AsAppError(errors.New("plain"))
	require.False(t, ok)
}

func errorWrap(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
