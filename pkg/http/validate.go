package http

import (
	"errors"
	"fmt"

	"GranStocks/pkg/validate"

	"github.com/labstack/echo/v4"
)

// ReadAndValidateRequest binds path, query and body into req, applies defaults and validates it.
// It returns nil on success or the list of field errors.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
		}
		return []ValidationError{{Code: "ERR_BIND", Message: err.Error()}}
	}

	if err := validate.Struct(c.Request().Context(), req); err != nil {
		var verrs validate.Errors
		if errors.As(err, &verrs) {
			return verrs
		}
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}

	return nil
}
