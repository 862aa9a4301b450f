package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "ELEARN"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Backend        struct {
		BaseURL string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"required,url"` // e-learning API root
		Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`                          // per request timeout
	} `mapstructure:"backend" json:"backend" yaml:"backend"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength  int    `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8"` // length of generated session IDs
		JWTMethod string `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS384 HS512"`
		JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"jwt_secret" validate:"required"` // shared with the backend
	} `mapstructure:"security" json:"security" yaml:"security"`
	Progress struct {
		Interval    time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`                               // playback sampling interval
		Threshold   int           `mapstructure:"threshold" json:"threshold" yaml:"threshold" validate:"min=1,max=100"` // completion threshold in percent
		Debounce    int           `mapstructure:"debounce" json:"debounce" yaml:"debounce" validate:"min=1,max=100"`    // minimum delta between writes
		SessionIdle time.Duration `mapstructure:"session_idle" json:"session_idle" yaml:"session_idle"`                 // close playback sessions idle for longer
	} `mapstructure:"progress" json:"progress" yaml:"progress"`
	KVStore struct {
		Enabled  bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled"`                                  // relay notifications through redis
		Host     string        `mapstructure:"host" json:"host" yaml:"host"`                                           // bind host address
		Port     int           `mapstructure:"port" json:"port" yaml:"port"`                                           // bind listen port
		Password string        `mapstructure:"password" json:"-" yaml:"password"`                                      // password for security reasons
		Channel  string        `mapstructure:"channel" json:"channel" yaml:"channel" validate:"required_with=Enabled"` // pub/sub channel name
		Timeout  time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`                                  // bound of a single relay publish
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "", "application identifier (required)")
	pflag.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "abort inbound requests after this duration")

	// backend
	pflag.String("backend.base_url", "http://localhost:5000", "e-learning API base URL")
	pflag.Duration("backend.timeout", 10*time.Second, "timeout of a single backend request")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 21, "set length of generated session IDs")
	pflag.String("security.jwt_method", "HS256", "hash algorithm used by the backend to sign tokens")
	pflag.String("security.jwt_secret", "", "JWT secret shared with the backend (required)")

	// progress
	pflag.Duration("progress.interval", time.Second, "playback position sampling interval")
	pflag.Int("progress.threshold", 90, "percentage at which a lesson counts as completed")
	pflag.Int("progress.debounce", 2, "minimum percentage change before a new progress write")
	pflag.Duration("progress.session_idle", 30*time.Minute, "close playback sessions that received no update for this long")

	// kv storage
	pflag.Bool("kv.enabled", false, "relay progress notifications through redis pub/sub")
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")
	pflag.String("kv.channel", "elearning:progress", "pub/sub channel for progress notifications")
	pflag.Duration("kv.timeout", 2*time.Second, "give up relaying a notification after this duration")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("mapstructure")
		if name == "-" || name == "" {
			return ""
		}
		return name
	})
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		log.Fatalf("Failed to validate config: %s", err)
	}
	if err == nil {
		return nil
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required", "required_with":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "min", "max":
			msg = append(msg, fmt.Sprintf("%s must be %s %s", fieldName, field.Tag(), field.Param()))
		default:
			msg = append(msg, fmt.Sprintf("%s is invalid (%s)", fieldName, field.Tag()))
		}
	}
	return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
}
