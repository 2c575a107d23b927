package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/setwatch/internal/models"
)

// Default headline filters for the buyback result report, per language
const (
	DefaultHeadlineFilterTH = "รายงานผลการซื้อหุ้นคืน"
	DefaultHeadlineFilterEN = "Report on the result of share repurchase"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment" yaml:"environment"` // "development" or "production"
	Watch       WatchConfig    `toml:"watch" yaml:"watch"`
	Source      SourceConfig   `toml:"source" yaml:"source"`
	State       StateConfig    `toml:"state" yaml:"state"`
	SMTP        SMTPConfig     `toml:"smtp" yaml:"smtp"`
	Schedule    ScheduleConfig `toml:"schedule" yaml:"schedule"`
	Logging     LoggingConfig  `toml:"logging" yaml:"logging"`

	// SMTPTest is only set from the environment / CLI: send a test email and exit
	SMTPTest bool `toml:"-" yaml:"-"`
}

// WatchConfig selects what is watched and how candidates are chosen
type WatchConfig struct {
	Symbol         string `toml:"symbol" yaml:"symbol" validate:"required"`
	Lang           string `toml:"lang" yaml:"lang" validate:"oneof=th en"`
	LookbackDays   int    `toml:"lookback_days" yaml:"lookback_days" validate:"gt=0"`
	MaxNewItems    int    `toml:"max_new_items" yaml:"max_new_items" validate:"gt=0"`
	HeadlineFilter string `toml:"headline_filter" yaml:"headline_filter"` // Empty means the default for Lang unless HEADLINE_FILTER is set
	FilterMode     string `toml:"filter_mode" yaml:"filter_mode" validate:"oneof=exact contains"`
	ForceSend      bool   `toml:"force_send" yaml:"force_send"` // Treat every filtered candidate as new
	DryRun         bool   `toml:"dry_run" yaml:"dry_run"`       // Log the email instead of sending, never commit

	headlineFilterSet bool
}

// SourceConfig contains settings for the SET news endpoints
type SourceConfig struct {
	BaseURL          string `toml:"base_url" yaml:"base_url" validate:"required,url"`
	UserAgent        string `toml:"user_agent" yaml:"user_agent"`
	RequestTimeout   string `toml:"request_timeout" yaml:"request_timeout"`   // e.g., "30s"
	RequestInterval  string `toml:"request_interval" yaml:"request_interval"` // Minimum delay between requests, e.g., "1s"
	MaxBodySize      int64  `toml:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
	RenderJavaScript bool   `toml:"render_javascript" yaml:"render_javascript"` // Fetch detail pages through headless Chrome
	JavaScriptWait   string `toml:"javascript_wait" yaml:"javascript_wait"`
	DebugJSON        bool   `toml:"debug_json" yaml:"debug_json"`
}

// Timeout returns RequestTimeout as a duration
func (s SourceConfig) Timeout() time.Duration {
	return mustDuration(s.RequestTimeout)
}

// Interval returns RequestInterval as a duration
func (s SourceConfig) Interval() time.Duration {
	return mustDuration(s.RequestInterval)
}

// RenderWait returns JavaScriptWait as a duration
func (s SourceConfig) RenderWait() time.Duration {
	return mustDuration(s.JavaScriptWait)
}

func (s SourceConfig) validateDurations() error {
	var errs []error
	for name, raw := range map[string]string{
		"source.request_timeout":  s.RequestTimeout,
		"source.request_interval": s.RequestInterval,
		"source.javascript_wait":  s.JavaScriptWait,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if d := mustDuration(s.RequestTimeout); d == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("source.request_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// mustDuration parses a duration already checked by Validate; invalid input yields zero
func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// StateConfig selects the seen-state backend
type StateConfig struct {
	Type   string            `toml:"type" yaml:"type" validate:"oneof=file badger"`
	File   FileStateConfig   `toml:"file" yaml:"file"`
	Badger BadgerStateConfig `toml:"badger" yaml:"badger"`
}

type FileStateConfig struct {
	Path string `toml:"path" yaml:"path"` // .json (default) or .yaml/.yml
}

// BadgerStateConfig represents BadgerDB-specific configuration
type BadgerStateConfig struct {
	Path string `toml:"path" yaml:"path"` // Database directory path
}

// SMTPConfig contains mail relay settings
type SMTPConfig struct {
	Host     string   `toml:"host" yaml:"host"`
	Port     int      `toml:"port" yaml:"port" validate:"gt=0,lte=65535"`
	Username string   `toml:"username" yaml:"username"`
	Password string   `toml:"password" yaml:"password"`
	From     string   `toml:"from" yaml:"from"`
	FromName string   `toml:"from_name" yaml:"from_name"`
	To       []string `toml:"to" yaml:"to"`
	Security string   `toml:"security" yaml:"security" validate:"oneof=starttls tls none"`
	Timeout  string   `toml:"timeout" yaml:"timeout"` // Whole session, greeting to QUIT, e.g., "60s"
}

// SessionTimeout returns Timeout as a duration; zero when unset
func (s SMTPConfig) SessionTimeout() time.Duration {
	return mustDuration(s.Timeout)
}

// IsConfigured returns true when enough is set to attempt delivery
func (s SMTPConfig) IsConfigured() bool {
	return s.Host != "" && s.From != "" && len(s.To) > 0
}

type ScheduleConfig struct {
	Cron string `toml:"cron" yaml:"cron"` // Standard 5-field cron expression used by -watch
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output" yaml:"output"`           // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"` // Time format for logs (default: "15:04:05")
	Dir        string   `toml:"dir" yaml:"dir"`                 // Directory for the log file (default: ./logs)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Watch: WatchConfig{
			Symbol:       "KBANK",
			Lang:         "th",
			LookbackDays: 14,
			MaxNewItems:  5,
			FilterMode:   string(models.FilterModeContains),
		},
		Source: SourceConfig{
			BaseURL:         "https://www.set.or.th",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:  "30s",
			RequestInterval: "1s",
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			JavaScriptWait:  "3s",
		},
		State: StateConfig{
			Type:   "file",
			File:   FileStateConfig{Path: "state.json"},
			Badger: BadgerStateConfig{Path: "./data/state"},
		},
		SMTP: SMTPConfig{
			Port:     587,
			Security: "starttls",
			FromName: "SET Watch",
			Timeout:  "60s",
		},
		Schedule: ScheduleConfig{
			Cron: "*/30 * * * *",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
			Dir:        "./logs",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// Files ending in .yaml/.yml are decoded with yaml, everything else as TOML.
// CLI overrides are applied by the caller afterwards; call Validate once they are in place.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, models.ConfigError(fmt.Errorf("failed to read config file %s: %w", path, err))
		}

		if err := decodeConfig(path, data, config); err != nil {
			return nil, models.ConfigError(fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err))
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, models.ConfigError(err)
	}

	return config, nil
}

func decodeConfig(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return toml.Unmarshal(data, config)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Malformed numbers and booleans are reported rather than ignored.
func applyEnvOverrides(config *Config) error {
	var errs []error

	if env := os.Getenv("SETWATCH_ENV"); env != "" {
		config.Environment = env
	}

	// Watch configuration
	if symbol := os.Getenv("SYMBOL"); symbol != "" {
		config.Watch.Symbol = symbol
	}
	if lang := os.Getenv("SET_LANG"); lang != "" {
		config.Watch.Lang = lang
	} else if lang := os.Getenv("LANG"); lang == "th" || lang == "en" {
		// LANG usually carries a locale such as en_US.UTF-8; only bare codes are honoured
		config.Watch.Lang = lang
	}
	envInt("LOOKBACK_DAYS", &config.Watch.LookbackDays, &errs)
	envInt("MAX_NEW_ITEMS", &config.Watch.MaxNewItems, &errs)
	if filter, ok := os.LookupEnv("HEADLINE_FILTER"); ok {
		config.Watch.HeadlineFilter = filter
		config.Watch.headlineFilterSet = true
	}
	if mode := os.Getenv("FILTER_MODE"); mode != "" {
		config.Watch.FilterMode = strings.ToLower(strings.TrimSpace(mode))
	}
	envBool("FORCE_SEND", &config.Watch.ForceSend, &errs)
	envBool("DRY_RUN", &config.Watch.DryRun, &errs)
	envBool("SMTP_TEST", &config.SMTPTest, &errs)

	// Source configuration
	envBool("DEBUG_JSON", &config.Source.DebugJSON, &errs)
	envBool("RENDER_JAVASCRIPT", &config.Source.RenderJavaScript, &errs)

	// State configuration
	if stateType := os.Getenv("STATE_TYPE"); stateType != "" {
		config.State.Type = strings.ToLower(stateType)
	}
	if statePath := os.Getenv("STATE_PATH"); statePath != "" {
		config.State.File.Path = statePath
	}
	if badgerPath := os.Getenv("BADGER_PATH"); badgerPath != "" {
		config.State.Badger.Path = badgerPath
	}

	// SMTP configuration
	if host := os.Getenv("SMTP_HOST"); host != "" {
		config.SMTP.Host = host
	}
	envInt("SMTP_PORT", &config.SMTP.Port, &errs)
	if user := os.Getenv("SMTP_USER"); user != "" {
		config.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASS"); pass != "" {
		config.SMTP.Password = pass
	}
	if timeout := os.Getenv("SMTP_TIMEOUT"); timeout != "" {
		config.SMTP.Timeout = timeout
	}
	if security := os.Getenv("SMTP_SECURITY"); security != "" {
		config.SMTP.Security = strings.ToLower(security)
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		config.SMTP.From = from
	}
	if fromName := os.Getenv("EMAIL_FROM_NAME"); fromName != "" {
		config.SMTP.FromName = fromName
	}
	if to := os.Getenv("EMAIL_TO"); to != "" {
		config.SMTP.To = SplitRecipients(to)
	}

	if schedule := os.Getenv("SCHEDULE"); schedule != "" {
		config.Schedule.Cron = schedule
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}

	return errors.Join(errs...)
}

func envInt(name string, target *int, errs *[]error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", name, raw))
		return
	}
	*target = v
}

func envBool(name string, target *bool, errs *[]error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	v, err := ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*target = v
}

// ParseBool accepts the usual strconv forms plus yes/no/on/off
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

// SplitRecipients splits a comma-delimited recipient list, dropping blanks
func SplitRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks the resolved configuration and fills derived defaults.
// It must be called once after all overrides are applied; the Config is read-only afterwards.
func (c *Config) Validate() error {
	c.Watch.Symbol = strings.ToUpper(strings.TrimSpace(c.Watch.Symbol))
	c.Watch.Lang = strings.ToLower(strings.TrimSpace(c.Watch.Lang))
	c.Watch.FilterMode = strings.ToLower(strings.TrimSpace(c.Watch.FilterMode))
	c.SMTP.Security = strings.ToLower(strings.TrimSpace(c.SMTP.Security))
	c.State.Type = strings.ToLower(strings.TrimSpace(c.State.Type))

	if !c.Watch.headlineFilterSet && c.Watch.HeadlineFilter == "" {
		c.Watch.HeadlineFilter = DefaultHeadlineFilter(c.Watch.Lang)
	}

	v := validator.New()
	if err := v.Struct(c); err != nil {
		return models.ConfigError(err)
	}
	if err := c.Source.validateDurations(); err != nil {
		return models.ConfigError(err)
	}
	if c.SMTP.Timeout != "" {
		if d, err := time.ParseDuration(c.SMTP.Timeout); err != nil {
			return models.ConfigError(fmt.Errorf("smtp.timeout: %w", err))
		} else if d <= 0 {
			return models.ConfigError(errors.New("smtp.timeout must be positive"))
		}
	}

	switch c.State.Type {
	case "file":
		if c.State.File.Path == "" {
			return models.ConfigError(errors.New("state.file.path is required for file state"))
		}
	case "badger":
		if c.State.Badger.Path == "" {
			return models.ConfigError(errors.New("state.badger.path is required for badger state"))
		}
	}

	// Delivery settings only matter when something may actually be sent
	if !c.Watch.DryRun || c.SMTPTest {
		if !c.SMTP.IsConfigured() {
			return models.ConfigError(errors.New("SMTP_HOST, EMAIL_FROM and EMAIL_TO are required unless DRY_RUN is set"))
		}
	}

	return nil
}

// ValidateSchedule checks the watch-mode cron expression
func (c *Config) ValidateSchedule() error {
	if err := ValidateCronSchedule(c.Schedule.Cron); err != nil {
		return models.ConfigError(err)
	}
	return nil
}

// ValidateCronSchedule validates a 5-field cron expression or a descriptor such as "@hourly"
func ValidateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// DefaultHeadlineFilter returns the buyback report headline for lang
func DefaultHeadlineFilter(lang string) string {
	if lang == "en" {
		return DefaultHeadlineFilterEN
	}
	return DefaultHeadlineFilterTH
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
