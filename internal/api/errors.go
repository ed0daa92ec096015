package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/wildlife-go/internal/logger"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // matches the server log line
}

// NewErrorResponse creates an error body with a fresh correlation id
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString(),
	}
}

// HandleError logs err with a correlation id and writes the error response
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	s.log.WithContext(c.Request().Context()).Error("API error", fields...)

	return c.JSON(code, resp)
}
