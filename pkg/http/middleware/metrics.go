package middleware

import (
	"time"

	applogger "MacroGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HTTPObserver receives one observation per finished request.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, seconds float64, bytes int64)
}

// Metrics records request metrics labelled by the matched route template
// so label cardinality stays bounded. 5xx responses and slow requests are
// also logged.
func Metrics(obs HTTPObserver, l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			res := c.Response()
			elapsed := time.Since(start)
			obs.ObserveHTTP(route, method, res.Status, elapsed.Seconds(), res.Size)

			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", elapsed),
				applogger.Int64("bytes", res.Size),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && elapsed >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}
