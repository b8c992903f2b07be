package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// UnmatchedRoute is the path label for requests that matched no registered route.
const UnmatchedRoute = "unmatched"

// RouteLabel returns the registered route template serving c, or UnmatchedRoute.
// The result is safe to retain after the request completes.
func RouteLabel(c *fiber.Ctx) string {
	route := c.Route()
	if route == nil || len(route.Handlers) == 0 || route.Path == "" || route.Path == "/" {
		return UnmatchedRoute
	}
	return utils.CopyString(route.Path)
}

// MethodLabel returns a retained copy of the request method.
func MethodLabel(c *fiber.Ctx) string {
	return utils.CopyString(c.Method())
}

// RequestLogger logs one line per request and feeds request metrics.
// Register it ahead of the error handling middleware so the rendered status is observed.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		method := MethodLabel(c)
		metrics.RecordRequest(RouteLabel(c), method, status, latency)

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		logger.Info("request", fields...)
		return err
	}
}
