package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roadrallyhq/rally-api/internal/logger"
	"github.com/roadrallyhq/rally-api/internal/validator"
)

// API clients are the chat relay processes that drive the command surface
// on behalf of players and moderators.
type Client struct {
	ID          string            `mapstructure:"id"          json:"id"          validate:"required,uuid_rfc4122"`
	Note        string            `mapstructure:"note"        json:"note"        validate:"required"`
	Token       string            `mapstructure:"token"       json:"token"       validate:"required"`
	Active      *bool             `mapstructure:"active"      json:"active"      validate:"required"`
	Permissions ClientPermissions `mapstructure:"permissions" json:"permissions"`
}

type ClientPermissions struct {
	Relay    bool `mapstructure:"relay"    json:"relay"`
	Moderate bool `mapstructure:"moderate" json:"moderate"`
	Manage   bool `mapstructure:"manage"   json:"manage"`
}

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type PlatformConfig struct {
	// Base URL of the chat platform REST API
	APIURL string `mapstructure:"api_url"            json:"api_url"            validate:"required,url"`
	// Bot credential sent as the Authorization header
	BotToken string `mapstructure:"bot_token"          json:"-"                  validate:"required"`
	// Channel that receives review artifacts
	ModerationChannelID string `mapstructure:"moderation_channel" json:"moderation_channel" validate:"required"`
}

type ReviewConfig struct {
	// Bound on every moderator/submitter solicitation wait
	TimeoutSecs int64 `mapstructure:"timeout_secs" validate:"required"`
}

type GameConfig struct {
	// When true, submit is rejected for tasks outside the active location.
	// Both behaviors shipped at one point; this keeps it a policy knob.
	EnforceActiveLocation bool `mapstructure:"enforce_active_location"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
}

type S3ArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
	Enabled         bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RedisHost       string `mapstructure:"redis_host"`
	GlobalPerMinute int64  `mapstructure:"global_per_minute"`
	SubmitPerMinute int64  `mapstructure:"submit_per_minute"`
	FailOpen        bool   `mapstructure:"fail_open"`
}

// See rallyapi.yaml for an example config
type Config struct {
	GameID               *string          `mapstructure:"game_id"               validate:"required"`
	Postgres             *PostgresConfig  `mapstructure:"postgres"              validate:"required"`
	Platform             *PlatformConfig  `mapstructure:"platform"              validate:"required"`
	Logging              *LoggingConfig   `mapstructure:"logging"               validate:"required"`
	Review               *ReviewConfig    `mapstructure:"review"                validate:"required"`
	Game                 *GameConfig      `mapstructure:"game"                  validate:"required"`
	S3Archive            *S3ArchiveConfig `mapstructure:"s3_archive"`
	RateLimit            *RateLimitConfig `mapstructure:"ratelimit"`
	ListenAddress        string           `mapstructure:"listen_address"        validate:"required"`
	Clients              []Client         `mapstructure:"clients"               validate:"required"`
	GracefulShutdownSecs int64            `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	EnvPrefix                  string = "rallyapi"
	EnforceActiveLocation      string = "game.enforce_active_location"
	GlobalPerMinute            string = "ratelimit.global_per_minute"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	ListenAddress              string = "listen_address"
	PlatformBotToken           string = "platform.bot_token" // #nosec
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	RateLimitFailOpen          string = "ratelimit.fail_open"
	RedisHost                  string = "ratelimit.redis_host"
	ReviewTimeoutSecs          string = "review.timeout_secs"
	S3AccessKeyID              string = "s3_archive.access_key_id"
	S3ArchiveEnabled           string = "s3_archive.enabled"
	S3SSLEnabled               string = "s3_archive.ssl_enabled"
	S3SecretAccessKey          string = "s3_archive.secret_access_key" // #nosec
	SubmitPerMinute            string = "ratelimit.submit_per_minute"
	UseOTLP                    string = "logging.use_otlp"
)

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := viper.New()

	v.SetConfigName("rallyapi")

	v.AddConfigPath("/etc/rallyapi/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	err := v.BindEnv(PostgresPassword)
	if err != nil {
		return nil, err
	}
	err = v.BindEnv(PlatformBotToken)
	if err != nil {
		return nil, err
	}
	err = v.BindEnv(S3AccessKeyID)
	if err != nil {
		return nil, err
	}
	err = v.BindEnv(S3SecretAccessKey)
	if err != nil {
		return nil, err
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(S3ArchiveEnabled, false)
	v.SetDefault(S3SSLEnabled, true)

	v.SetDefault(ReviewTimeoutSecs, 300)
	v.SetDefault(EnforceActiveLocation, true)

	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(GlobalPerMinute, 0)
	v.SetDefault(SubmitPerMinute, 0)
	v.SetDefault(RateLimitFailOpen, true)

	v.SetDefault(UseOTLP, false)

	v.SetDefault(GracefulShutdownSecs, 30)

	err = v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		if _, ok := err.(*viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	valid := validator.Create()
	err = valid.Validate(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	configReady = true
	return &config, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}

func (c *Config) ReviewTimeout() time.Duration {
	return time.Duration(c.Review.TimeoutSecs) * time.Second
}
