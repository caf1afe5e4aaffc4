package v1

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/roadrallyhq/rally-api/cmd/server/internal/game"
	servermiddleware "github.com/roadrallyhq/rally-api/cmd/server/internal/middleware"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/models"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/review"
	"github.com/roadrallyhq/rally-api/cmd/server/internal/routes"
	"github.com/roadrallyhq/rally-api/internal/config"
	"github.com/roadrallyhq/rally-api/internal/platform"
	"github.com/roadrallyhq/rally-api/internal/types"
)

const testToken = "i am a very secure password"

type testServer struct {
	e  *echo.Echo
	db *gorm.DB

	relayAuth  models.Auth
	manageAuth models.Auth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Auth{},
		&models.Team{},
		&models.Member{},
		&models.Task{},
		&models.Submission{},
		&models.GameSession{},
	))

	hash, err := argon2id.CreateHash(testToken, argon2id.DefaultParams)
	require.NoError(t, err)

	relayAuth := models.Auth{
		Token:       hash,
		Note:        "relay",
		Active:      models.NewNullFromData(true),
		Permissions: models.Permissions{Relay: true},
	}
	require.NoError(t, db.Create(&relayAuth).Error)

	manageAuth := models.Auth{
		Token:       hash,
		Note:        "organizer",
		Active:      models.NewNullFromData(true),
		Permissions: models.Permissions{Manage: true},
	}
	require.NoError(t, db.Create(&manageAuth).Error)

	gateway := platform.NewNoopGateway()
	service := game.NewService(db, gateway, nil, "game-1", false)
	manager := review.NewManager(service, gateway, time.Second)
	service.SetArtifactOpener(manager)

	handler := NewHandler(db, service, manager, &config.Config{})
	middlewareHandler := servermiddleware.Handler{DB: db}

	e, err := routes.BuildEcho(slog.Default())
	require.NoError(t, err)
	handler.AddRoutes(e, &middlewareHandler)

	return &testServer{e: e, db: db, relayAuth: relayAuth, manageAuth: manageAuth}
}

func (s *testServer) request(
	t *testing.T,
	method, path string,
	auth *models.Auth,
	body string,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != nil {
		creds := base64.StdEncoding.EncodeToString(
			[]byte(auth.ID.String() + ":" + testToken),
		)
		req.Header.Set(echo.HeaderAuthorization, "Basic "+creds)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestPingRoute(t *testing.T) {
	s := newTestServer(t)

	t.Run("AuthenticatedClientGetsReady", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/v1/ping/", &s.relayAuth, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp types.PingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "ready", resp.Status)
	})

	t.Run("MissingCredentialsAreRejected", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/v1/ping/", nil, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("BadTokenIsRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/ping/", nil)
		creds := base64.StdEncoding.EncodeToString(
			[]byte(s.relayAuth.ID.String() + ":wrong token"),
		)
		req.Header.Set(echo.HeaderAuthorization, "Basic "+creds)

		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPermissionEnforcement(t *testing.T) {
	s := newTestServer(t)

	body := `{"name": "wardens", "members": ["user-1"]}`

	rec := s.request(t, http.MethodPost, "/v1/team/", &s.relayAuth, body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(t, http.MethodPost, "/v1/team/", &s.manageAuth, body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(
		t,
		http.MethodPost,
		"/v1/team/",
		&s.manageAuth,
		`{"name": "wardens", "members": ["user-1", "user-2"]}`,
	)
	require.Equal(t, http.StatusCreated, rec.Code)

	task := models.Task{
		Description: "photo with a mascot",
		Location:    1,
		MaxPoints:   10,
		Judged:      false,
	}
	require.NoError(t, s.db.Create(&task).Error)

	submitPath := fmt.Sprintf("/v1/task/%s/submit/", task.ID)

	t.Run("MemberSubmitsForTheirTeam", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, submitPath, &s.relayAuth, `{"member_id": "user-1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp types.SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, types.SubmitActionSubmitted, resp.Action)
	})

	t.Run("UnknownMemberIsNotFound", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, submitPath, &s.relayAuth, `{"member_id": "stranger"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MissingBodyFailsValidation", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, submitPath, &s.relayAuth, `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownTaskIsNotFound", func(t *testing.T) {
		rec := s.request(
			t,
			http.MethodPost,
			"/v1/task/0198c77b-0000-7000-8000-000000000000/submit/",
			&s.relayAuth,
			`{"member_id": "user-1"}`,
		)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLeaderboardOverHTTP(t *testing.T) {
	s := newTestServer(t)

	for i, name := range []string{"alpha", "bravo"} {
		team := models.Team{Name: name, Points: 10 * (i + 1)}
		require.NoError(t, s.db.Create(&team).Error)
	}

	rec := s.request(t, http.MethodGet, "/v1/leaderboard/", &s.relayAuth, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []types.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	require.Equal(t, "bravo", rows[0].TeamName)
}
