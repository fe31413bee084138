package logger

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger from the configuration. The debug level switches
// to the development preset so local runs get readable timestamps; every
// other level uses the production preset.
func New(cfg *Config) (*zap.Logger, error) {
	var config zap.Config
	if cfg.Level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		if err := config.Level.UnmarshalText([]byte(levelOrDefault(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	if cfg.Format == "console" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	} else {
		config.Encoding = "json"
	}

	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "message"

	return config.Build()
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// WithRayID attaches the request's ray id from the Fiber context, so every
// line a synchronization pass emits can be correlated with the triggering
// HTTP request.
func WithRayID(l *zap.Logger, c *fiber.Ctx) *zap.Logger {
	rid, ok := c.Locals("ray_id").(string)
	if !ok || rid == "" {
		return l
	}
	return l.With(zap.String("ray_id", rid))
}
