package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	App      App      `mapstructure:",squash"`
	Server   Server   `mapstructure:",squash"`
	Database Database `mapstructure:",squash"`
	AdMob    AdMob    `mapstructure:",squash"`
	GCP      GCP      `mapstructure:",squash"`
	Alerts   Alerts   `mapstructure:",squash"`
	Export   Export   `mapstructure:",squash"`
	Auth     Auth     `mapstructure:",squash"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type Database struct {
	DSN      string `mapstructure:"-"`
	Driver   string `mapstructure:"database_driver"`
	Password string `mapstructure:"database_password"`
	URL      string `mapstructure:"database_url"`
	User     string `mapstructure:"database_user"`
}

type AdMob struct {
	BaseURL      string   `mapstructure:"admob_base_url"`
	ClientID     string   `mapstructure:"admob_client_id"`
	ClientSecret string   `mapstructure:"admob_client_secret"`
	RefreshToken string   `mapstructure:"admob_refresh_token"`
	PublisherID  string   `mapstructure:"admob_publisher_id"`
	AppFilter    []string `mapstructure:"admob_app_filter"`
	AdUnitFilter []string `mapstructure:"admob_ad_unit_filter"`
}

// Publisher returns the bare publisher ID ("pub-…"), tolerating the
// "accounts/pub-…" resource form in the environment.
func (a AdMob) Publisher() string {
	parts := strings.Split(a.PublisherID, "/")
	return parts[len(parts)-1]
}

type GCP struct {
	Project string `mapstructure:"gcp_project"`
	Bucket  string `mapstructure:"gcs_bucket_name"`
	Dataset string `mapstructure:"bq_dataset"`
	Table   string `mapstructure:"bq_table"`
}

type Alerts struct {
	WebhookURL          string `mapstructure:"slack_webhook_url"`
	Rules               string `mapstructure:"alert_rules"`
	CrossRunSuppression bool   `mapstructure:"alert_cross_run_suppression"`
}

type Export struct {
	CronSchedule string `mapstructure:"export_cron"`
	Enabled      bool   `mapstructure:"export_enabled"`
	OutputDir    string `mapstructure:"export_output_dir"`
}

type Auth struct {
	Secret string `mapstructure:"auth_secret"`
}

func SetDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8000)

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "localhost:5432/mediation")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "root")

	viper.SetDefault("ADMOB_BASE_URL", "https://admob.googleapis.com/v1")
	viper.SetDefault("ADMOB_CLIENT_ID", "")
	viper.SetDefault("ADMOB_CLIENT_SECRET", "")
	viper.SetDefault("ADMOB_REFRESH_TOKEN", "")
	viper.SetDefault("ADMOB_PUBLISHER_ID", "")
	viper.SetDefault("ADMOB_APP_FILTER", "")
	viper.SetDefault("ADMOB_AD_UNIT_FILTER", "")

	viper.SetDefault("GCP_PROJECT", "")
	viper.SetDefault("GCS_BUCKET_NAME", "")
	viper.SetDefault("BQ_DATASET", "admob")
	viper.SetDefault("BQ_TABLE", "mediation_report")

	viper.SetDefault("SLACK_WEBHOOK_URL", "")
	// metric;operator;threshold[;app[;ad_unit]], comma separated
	viper.SetDefault("ALERT_RULES", "")
	viper.SetDefault("ALERT_CROSS_RUN_SUPPRESSION", true)

	viper.SetDefault("EXPORT_CRON", "0 6,18 * * *") // twice daily
	viper.SetDefault("EXPORT_ENABLED", false)
	viper.SetDefault("EXPORT_OUTPUT_DIR", os.TempDir())

	viper.SetDefault("AUTH_SECRET", "")

	viper.SetDefault("LOG_LEVEL", "debug")
}

func NewConfig() (*Config, error) {
	loadEnvFile() // ONLY LOCAL

	config := &Config{}

	SetDefaults()

	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logrus.Info("Using variables loaded by godotenv (viper could not read .env):", err)
	} else {
		logrus.Info(".env file read by viper")
	}

	err := viper.Unmarshal(&config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	config.Database.DSN = fmt.Sprintf(
		"%s://%s:%s@%s",
		config.Database.Driver,
		config.Database.User,
		config.Database.Password,
		config.Database.URL,
	)

	return config, nil
}

// loadEnvFile loads the .env file from the usual locations via godotenv.
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		logrus.Warn("Could not determine the current directory:", err)
		return
	}

	locations := []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(filepath.Dir(cwd), ".env"),
		filepath.Join(cwd, "../.env"),
		filepath.Join(cwd, "../../.env"),
	}

	for _, location := range locations {
		err := godotenv.Load(location)
		if err == nil {
			logrus.Info(".env file loaded from:", location)
			return
		}
	}

	logrus.Warn("No .env file found in any known location")
}
