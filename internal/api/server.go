package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// NewEcho creates the echo instance with request logging, panic recovery
// and CORS. An empty origins list allows any origin.
func NewEcho(origins []string, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remoteIP", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("Request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if len(origins) == 0 {
		e.Use(middleware.CORS())
	} else {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: origins}))
	}

	return e
}
