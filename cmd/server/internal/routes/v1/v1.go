package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	srverr "github.com/roadrallyhq/rally-api/cmd/server/internal/error"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/game"
	servermiddleware "github.com/roadrallyhq/rally-api/cmd/server/internal/middleware"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/ratelimit"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/response"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/review"
	"github.com/roadrallyhq/rally-api/internal/config"
	"github.com/roadrallyhq/rally-api/internal/logger"
	"github.com/roadrallyhq/rally-api/internal/types"
)

const name = "github.com/roadrallyhq/rally-api/cmd/server/internal/routes/v1"

var tracer = otel.Tracer(name)

type Handler struct {
	DB       *gorm.DB
	service  *game.Service
	reviewer *review.Manager
	config   *config.Config
}

func NewHandler(
	db *gorm.DB,
	service *game.Service,
	reviewer *review.Manager,
	cfg *config.Config,
) Handler {
	return Handler{
		DB:       db,
		service:  service,
		reviewer: reviewer,
		config:   cfg,
	}
}

func NewRedisLimiter(
	redisHost string,
	limiterKey string,
	perMinute int64,
	failOpen bool,
	onlyMethod *string,
) middleware.RateLimiterConfig {
	l := logger.Logger
	var store middleware.RateLimiterStore

	redisAddr := redisHost + ":6379"
	l.Debug("Setting up rate limiter with Redis", "redis", redisAddr)
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	rdConf := &ratelimit.RedisLimiterConfig{
		PerMinute:   perMinute,
		RedisClient: rdb,
		LimiterKey:  limiterKey,
		FailOpen:    failOpen,
	}
	store = ratelimit.NewRedisLimitStore(*rdConf)

	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			auth, ok := c.Get("auth").(*models.Auth)
			if !ok {
				return "", srverr.ErrTypeAssertMismatch
			}
			return auth.ID.String(), nil
		},
		ErrorHandler: func(context echo.Context, _ error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, _ string, _ error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}
}

// Maps ledger failure kinds onto HTTP statuses. Anything unmapped is a
// storage fault and comes back as a 500.
func domainError(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrReviewNotActionable):
		return echo.NewHTTPError(http.StatusNotFound, types.StringError(err.Error()))
	case errors.Is(err, types.ErrAlreadyAccepted),
		errors.Is(err, types.ErrAlreadyDecided),
		errors.Is(err, types.ErrReviewInProgress):
		return echo.NewHTTPError(http.StatusConflict, types.StringError(err.Error()))
	case errors.Is(err, types.ErrInvalidScore),
		errors.Is(err, types.ErrNotPending),
		errors.Is(err, types.ErrNoTasksAtLocation),
		errors.Is(err, types.ErrLocationNotActive):
		return echo.NewHTTPError(http.StatusBadRequest, types.StringError(err.Error()))
	case errors.Is(err, types.ErrUnauthorized),
		errors.Is(err, types.ErrLeaderboardHidden):
		return echo.NewHTTPError(http.StatusForbidden, types.StringError(err.Error()))
	case errors.Is(err, types.ErrReviewTimeout):
		return echo.NewHTTPError(http.StatusRequestTimeout, types.StringError(err.Error()))
	default:
		return response.InternalServerError
	}
}

func (h *Handler) AddRoutes(e *echo.Echo, middlewareHandler *servermiddleware.Handler) {
	l := logger.Logger

	v1Group := e.Group("/v1", middleware.BasicAuth(middlewareHandler.BasicAuthValidator))

	if h.config.RateLimit != nil && h.config.RateLimit.GlobalPerMinute > 0 {
		v1Group.Use(
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					h.config.RateLimit.RedisHost,
					"global",
					h.config.RateLimit.GlobalPerMinute,
					h.config.RateLimit.FailOpen,
					nil,
				),
			),
		)
	} else {
		l.Warn("not configured to have a global rate limit")
	}

	v1Group.GET("/ping/", h.Ping)

	relay := &models.Permissions{Relay: true}
	moderate := &models.Permissions{Moderate: true}
	manage := &models.Permissions{Manage: true}

	taskGroup := v1Group.Group(
		"/task/:task_id",
		servermiddleware.PopulateFromIDParam[models.Task](middlewareHandler, "task_id", "task"),
	)

	submitGroup := taskGroup.Group(
		"/submit",
		servermiddleware.HasPermissions("auth", relay),
	)
	if h.config.RateLimit != nil && h.config.RateLimit.SubmitPerMinute > 0 {
		post := http.MethodPost

		submitGroup.Use(
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					h.config.RateLimit.RedisHost,
					"submit",
					h.config.RateLimit.SubmitPerMinute,
					h.config.RateLimit.FailOpen,
					&post,
				),
			),
		)
	} else {
		l.Warn("not configured to have a submit rate limit")
	}

	submitGroup.POST("/", h.Submit)

	taskGroup.POST(
		"/evidence/",
		h.AttachEvidence,
		servermiddleware.HasPermissions("auth", relay),
	)
	taskGroup.GET(
		"/submissions/",
		h.SubmissionsForTask,
		servermiddleware.HasPermissions("auth", moderate),
	)

	decisionGroup := taskGroup.Group(
		"/team/:team_id",
		servermiddleware.HasPermissions("auth", moderate),
		servermiddleware.PopulateFromIDParam[models.Team](middlewareHandler, "team_id", "team"),
	)
	decisionGroup.POST("/decision/:kind/", h.Decision)
	decisionGroup.POST("/review-message/", h.ReviewMessage)

	memberGroup := v1Group.Group(
		"/member/:member_id",
		servermiddleware.HasPermissions("auth", relay),
	)
	memberGroup.GET("/tasks/", h.TasksForMember)

	v1Group.GET("/leaderboard/", h.Leaderboard, servermiddleware.HasPermissions("auth", relay))

	teamGroup := v1Group.Group(
		"/team/:team_id",
		servermiddleware.PopulateFromIDParam[models.Team](middlewareHandler, "team_id", "team"),
	)
	teamGroup.GET("/points/", h.Points, servermiddleware.HasPermissions("auth", relay))
	teamGroup.POST("/points/award/", h.AwardPoints, servermiddleware.HasPermissions("auth", manage))
	teamGroup.POST("/points/deduct/", h.DeductPoints, servermiddleware.HasPermissions("auth", manage))
	teamGroup.PATCH("/", h.RenameTeam, servermiddleware.HasPermissions("auth", manage))
	teamGroup.DELETE("/", h.RemoveTeam, servermiddleware.HasPermissions("auth", manage))

	manageGroup := v1Group.Group("", servermiddleware.HasPermissions("auth", manage))
	manageGroup.POST("/team/", h.CreateTeam)
	manageGroup.GET("/teams/", h.ListTeams)
	manageGroup.POST("/task/", h.CreateTask)
	manageGroup.POST("/tasks/import/", h.ImportTasks)
	manageGroup.GET("/tasks/", h.ListTasks)
	manageGroup.POST("/game/location/", h.StartLocation)
	manageGroup.POST("/game/leaderboard/toggle/", h.ToggleLeaderboard)
	manageGroup.GET("/game/", h.GameState)
}
