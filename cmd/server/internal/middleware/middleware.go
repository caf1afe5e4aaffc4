package middleware

import (
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

const name string = "github.com/roadrallyhq/rally-api/cmd/server/internal/middleware"

var tracer = otel.Tracer(name)

// Shared state for the stateful middlewares
type Handler struct {
	DB *gorm.DB
}
