package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "harmonic-trader/internal/errors"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorDetail describes one request problem.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps list results.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
}

// DataResponse writes the envelope with statusCode.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, Response{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a 200 envelope.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// ListResponse writes a 200 envelope holding rows and their count.
func ListResponse(c echo.Context, rows interface{}, total int) error {
	return SuccessResponse(c, &ListData{Rows: rows, Total: total})
}

// BadRequestResponse writes a 400 envelope.
func BadRequestResponse(c echo.Context, details []ErrorDetail) error {
	return DataResponse(c, http.StatusBadRequest, details)
}

// ErrorResponse maps application errors onto HTTP statuses.
func ErrorResponse(c echo.Context, err error) error {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		return BadRequestResponse(c, []ErrorDetail{{
			Code:    "ERR_VALIDATION",
			Field:   verr.Field,
			Message: verr.Message,
		}})
	case errors.Is(err, apperrors.ErrInvalidTimeframe):
		return BadRequestResponse(c, []ErrorDetail{{
			Code:    "ERR_TIMEFRAME",
			Field:   "timeframe",
			Message: err.Error(),
		}})
	case errors.Is(err, apperrors.ErrDataNotFound):
		return DataResponse(c, http.StatusNotFound, []ErrorDetail{{
			Code:    "ERR_NOT_FOUND",
			Message: err.Error(),
		}})
	default:
		return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
	}
}
