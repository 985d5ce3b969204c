package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// HTTPErrorHandler renders errors that escape handlers and middleware in the
// same JSON shape handlers use. Internal detail is logged, never returned.
func HTTPErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		if status >= http.StatusInternalServerError {
			logger.WithFields(log.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
			}).WithError(err).Error("unhandled request error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorResponse{Error: reasonForStatus(status)})
		}
		if werr != nil {
			logger.WithError(werr).Warn("write error response")
		}
	}
}

func reasonForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return reasonNotFound
	case http.StatusMethodNotAllowed:
		return reasonMethodNotAllowed
	case http.StatusRequestEntityTooLarge:
		return reasonBodyTooLarge
	}
	if status >= http.StatusInternalServerError {
		return reasonInternal
	}
	return reasonInvalidBody
}
