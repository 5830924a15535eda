package router

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acermak/user-management-api/internal/apperr"
)

// errorBody is the failure counterpart of the success envelope.
type errorBody struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// NewHTTPErrorHandler returns the single boundary that renders every
// error into the response envelope.  Typed application errors map to
// their status and may carry field errors and a machine-readable code;
// Echo's own errors (404 route miss, 405) pass through with their
// status; anything else is a 500 whose detail is suppressed outside of
// development.
func NewHTTPErrorHandler(isProd bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status = http.StatusInternalServerError
			body   = errorBody{Message: "Internal server error"}
		)

		var ae *apperr.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = ae.Status()
			body.Message = ae.Message
			body.Code = ae.Code
			body.Errors = ae.Fields
		case errors.As(err, &he):
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			} else {
				body.Message = http.StatusText(he.Code)
			}
		default:
			c.Logger().Errorf("unhandled error: %v", err)
			if !isProd {
				body.Message = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(status); err != nil {
				c.Logger().Error(err)
			}
			return
		}
		if err := c.JSON(status, body); err != nil {
			c.Logger().Error(err)
		}
	}
}
