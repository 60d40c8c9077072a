package http

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/observability"
	"github.com/spec-kit/request-service/internal/service"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// MiddlewareConfig tunes the global middleware chain.
type MiddlewareConfig struct {
	Timeout          time.Duration
	CORSAllowOrigins string
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, cfg MiddlewareConfig) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.TrimSpace(cfg.CORSAllowOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	app.Use(requestMetaMiddleware())
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// requestMetaMiddleware carries the caller's address and agent to the audit trail.
func requestMetaMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(service.WithRequestMeta(c.UserContext(), service.RequestMeta{
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		}))
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
				domainErr := toDomainError(err)
				route := c.Route().Path
				if route == "" {
					route = c.Path()
				}
				metrics.RecordError(route, c.Method(), domainErr.Code)
				_ = writeError(c, domainErr)
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError also understands fiber's own errors such as unknown routes.
func toDomainError(err error) *apperrors.DomainError {
	if fe, ok := err.(*fiber.Error); ok {
		switch fe.Code {
		case fiber.StatusNotFound:
			return apperrors.NewDomainError("NOT_FOUND", "route not found", "المسار غير موجود", fe.Code, nil)
		case fiber.StatusMethodNotAllowed:
			return apperrors.NewDomainError("METHOD_NOT_ALLOWED", "method not allowed", "الطريقة غير مسموحة", fe.Code, nil)
		case fiber.StatusRequestEntityTooLarge:
			return apperrors.NewDomainError("PAYLOAD_TOO_LARGE", "request body too large", "حجم الطلب كبير جداً", fe.Code, nil)
		}
		if fe.Code < 500 {
			return apperrors.NewDomainError("BAD_REQUEST", fe.Message, "طلب غير صالح", fe.Code, nil)
		}
	}
	return apperrors.ToDomainError(err)
}

func writeError(c *fiber.Ctx, domainErr *apperrors.DomainError) error {
	body := fiber.Map{
		"code":      domainErr.Code,
		"message":   domainErr.Message,
		"messageAr": domainErr.MessageAr,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

// ErrorHandler renders errors that escape the middleware chain.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, toDomainError(err))
}
