package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/carelink/healthcare-identity/internal/observability"
	apperrors "github.com/carelink/healthcare-identity/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr, status := classify(c.Path(), err)
				metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
				if status >= fiber.StatusInternalServerError {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
				}
				_ = c.Status(status).JSON(ErrorEnvelope(domainErr))
				err = nil
			}
		}()
		return c.Next()
	}
}

// classify converts err to the envelope error and the transport status.
// Routing errors raised by fiber itself keep their own status.
func classify(path string, err error) (*apperrors.DomainError, int) {
	if errors.Is(err, context.DeadlineExceeded) {
		de := apperrors.NewDomainError(apperrors.CodeInternal, "request timed out", fiber.StatusGatewayTimeout, nil)
		return de, fiber.StatusGatewayTimeout
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound || fe.Code == fiber.StatusMethodNotAllowed {
			return apperrors.NewNotFound("route", map[string]any{"path": path}), fe.Code
		}
		code := apperrors.CodeInvalidInput
		switch fe.Code {
		case fiber.StatusUnauthorized:
			code = apperrors.CodeUnauthorized
		case fiber.StatusForbidden:
			code = apperrors.CodeForbidden
		}
		if fe.Code >= fiber.StatusInternalServerError {
			code = apperrors.CodeInternal
		}
		return apperrors.NewDomainError(code, fe.Message, fe.Code, nil), fe.Code
	}
	de := apperrors.ToDomainError(err)
	return de, apperrors.EnvelopeStatus(de)
}

// ErrorEnvelope renders a failure as {success:false, message, code, details?}.
func ErrorEnvelope(e *apperrors.DomainError) fiber.Map {
	body := fiber.Map{
		"success": false,
		"message": e.Message,
		"code":    e.Code,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}
