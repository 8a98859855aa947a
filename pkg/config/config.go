package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the tool reads
const EnvPrefix = "ALBUMZIP_"

// Config holds all configuration options for albumzip
type Config struct {
	// Spreadsheet parsing
	Input InputConfig `yaml:"input" json:"input"`

	// Where finished zips land
	Output OutputConfig `yaml:"output" json:"output"`

	// Chrome launch options
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Page markup of the hosting service
	Selectors SelectorConfig `yaml:"selectors" json:"selectors"`

	// Bounded waits of the export workflow
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	Batch BatchConfig `yaml:"batch" json:"batch"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InputConfig describes how work items are read from the spreadsheet
type InputConfig struct {
	Sheet            string `yaml:"sheet" json:"sheet"`
	IdentifierColumn string `yaml:"identifier_column" json:"identifier_column"`
	URLColumn        string `yaml:"url_column" json:"url_column"`
	Strict           bool   `yaml:"strict" json:"strict"`
}

// OutputConfig holds download directory configuration
type OutputConfig struct {
	DownloadDir string `yaml:"download_dir" json:"download_dir"`
	Extension   string `yaml:"extension" json:"extension"`
}

// BrowserConfig holds Chrome launch options
type BrowserConfig struct {
	Headless     bool   `yaml:"headless" json:"headless"`
	ExecPath     string `yaml:"exec_path" json:"exec_path"`
	ProfileDir   string `yaml:"profile_dir" json:"profile_dir"`
	WindowWidth  int    `yaml:"window_width" json:"window_width"`
	WindowHeight int    `yaml:"window_height" json:"window_height"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
}

// Selector is a query against the album page. By is "css" or "xpath".
type Selector struct {
	Query string `yaml:"query" json:"query"`
	By    string `yaml:"by" json:"by"`
}

// SelectorConfig holds the four page elements the export workflow needs
type SelectorConfig struct {
	PageLoaded   Selector `yaml:"page_loaded" json:"page_loaded"`
	DownloadMenu Selector `yaml:"download_menu" json:"download_menu"`
	CreateZip    Selector `yaml:"create_zip" json:"create_zip"`
	DownloadZip  Selector `yaml:"download_zip" json:"download_zip"`
}

// TimeoutConfig holds the bounded waits of the export workflow
type TimeoutConfig struct {
	PageLoad     time.Duration `yaml:"page_load" json:"page_load"`
	Settle       time.Duration `yaml:"settle" json:"settle"`
	Control      time.Duration `yaml:"control" json:"control"`
	ExportReady  time.Duration `yaml:"export_ready" json:"export_ready"`
	FileArrival  time.Duration `yaml:"file_arrival" json:"file_arrival"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// BatchConfig holds batch runner settings
type BatchConfig struct {
	// Pause inserted between two albums
	Pause time.Duration `yaml:"pause" json:"pause"`
}

// RateLimitConfig caps how many album exports are started per hour. Zero disables it.
type RateLimitConfig struct {
	AlbumsPerHour int `yaml:"albums_per_hour" json:"albums_per_hour"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Sheet:            "Sheet1",
			IdentifierColumn: "Part Number",
			URLColumn:        "Image Folder",
			Strict:           false,
		},
		Output: OutputConfig{
			DownloadDir: "./flickr_downloads",
			Extension:   ".zip",
		},
		Browser: BrowserConfig{
			Headless:     false,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Selectors: SelectorConfig{
			PageLoaded:   Selector{Query: ".photo-list-photo-view, .view", By: "css"},
			DownloadMenu: Selector{Query: "//a[span[text()='Download']]", By: "xpath"},
			CreateZip:    Selector{Query: "//button[span[text()='Create zip file']]", By: "xpath"},
			DownloadZip:  Selector{Query: "//button[contains(text(), 'Download zip file')]", By: "xpath"},
		},
		Timeouts: TimeoutConfig{
			PageLoad:     30 * time.Second,
			Settle:       5 * time.Second,
			Control:      30 * time.Second,
			ExportReady:  200 * time.Second,
			FileArrival:  200 * time.Second,
			PollInterval: time.Second,
		},
		Batch: BatchConfig{
			Pause: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			AlbumsPerHour: 0,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from ALBUMZIP_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "DOWNLOAD_DIR"); v != "" {
		c.Output.DownloadDir = v
	}
	if v := os.Getenv(EnvPrefix + "SHEET"); v != "" {
		c.Input.Sheet = v
	}
	if v := os.Getenv(EnvPrefix + "IDENTIFIER_COLUMN"); v != "" {
		c.Input.IdentifierColumn = v
	}
	if v := os.Getenv(EnvPrefix + "URL_COLUMN"); v != "" {
		c.Input.URLColumn = v
	}
	if v := os.Getenv(EnvPrefix + "CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv(EnvPrefix + "PROFILE_DIR"); v != "" {
		c.Browser.ProfileDir = v
	}
	if v := os.Getenv(EnvPrefix + "HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHEADLESS: %w", EnvPrefix, err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv(EnvPrefix + "PAUSE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAUSE: %w", EnvPrefix, err))
		} else {
			c.Batch.Pause = d
		}
	}
	if v := os.Getenv(EnvPrefix + "ALBUMS_PER_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sALBUMS_PER_HOUR: %w", EnvPrefix, err))
		} else {
			c.RateLimit.AlbumsPerHour = n
		}
	}
	if v := os.Getenv(EnvPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".albumzip.yaml",
		".albumzip.yml",
		filepath.Join(home, ".config", "albumzip", "config.yaml"),
		filepath.Join(home, ".config", "albumzip", "config.yml"),
		filepath.Join(home, ".albumzip.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Input.IdentifierColumn) == "" {
		errs = append(errs, errors.New("identifier column is required"))
	}
	if strings.TrimSpace(c.Input.URLColumn) == "" {
		errs = append(errs, errors.New("url column is required"))
	}
	if strings.EqualFold(strings.TrimSpace(c.Input.IdentifierColumn), strings.TrimSpace(c.Input.URLColumn)) {
		errs = append(errs, errors.New("identifier and url columns must differ"))
	}

	if c.Output.DownloadDir == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if !strings.HasPrefix(c.Output.Extension, ".") || len(c.Output.Extension) < 2 {
		errs = append(errs, errors.New("output extension must look like .zip"))
	}

	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		errs = append(errs, errors.New("browser window size must be positive"))
	}

	for name, sel := range map[string]Selector{
		"page_loaded":   c.Selectors.PageLoaded,
		"download_menu": c.Selectors.DownloadMenu,
		"create_zip":    c.Selectors.CreateZip,
		"download_zip":  c.Selectors.DownloadZip,
	} {
		if sel.Query == "" {
			errs = append(errs, fmt.Errorf("selector %s: query is required", name))
		}
		switch strings.ToLower(sel.By) {
		case "css", "xpath":
		default:
			errs = append(errs, fmt.Errorf("selector %s: by must be css or xpath, got %q", name, sel.By))
		}
	}

	if c.Timeouts.PageLoad <= 0 {
		errs = append(errs, errors.New("page load timeout must be positive"))
	}
	if c.Timeouts.Control <= 0 {
		errs = append(errs, errors.New("control timeout must be positive"))
	}
	if c.Timeouts.ExportReady <= 0 {
		errs = append(errs, errors.New("export ready timeout must be positive"))
	}
	if c.Timeouts.FileArrival <= 0 {
		errs = append(errs, errors.New("file arrival timeout must be positive"))
	}
	if c.Timeouts.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Timeouts.Settle < 0 {
		errs = append(errs, errors.New("settle delay cannot be negative"))
	}
	if c.Batch.Pause < 0 {
		errs = append(errs, errors.New("batch pause cannot be negative"))
	}
	if c.RateLimit.AlbumsPerHour < 0 {
		errs = append(errs, errors.New("albums per hour cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, errors.New("log format must be text or json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["download-dir"].(string); ok && v != "" {
		c.Output.DownloadDir = v
	}
	if v, ok := flags["sheet"].(string); ok && v != "" {
		c.Input.Sheet = v
	}
	if v, ok := flags["identifier-column"].(string); ok && v != "" {
		c.Input.IdentifierColumn = v
	}
	if v, ok := flags["url-column"].(string); ok && v != "" {
		c.Input.URLColumn = v
	}
	if v, ok := flags["strict"].(bool); ok {
		c.Input.Strict = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = v
	}
	if v, ok := flags["chrome-path"].(string); ok && v != "" {
		c.Browser.ExecPath = v
	}
	if v, ok := flags["profile-dir"].(string); ok && v != "" {
		c.Browser.ProfileDir = v
	}
	if v, ok := flags["pause"].(time.Duration); ok {
		c.Batch.Pause = v
	}
	if v, ok := flags["settle"].(time.Duration); ok {
		c.Timeouts.Settle = v
	}
	if v, ok := flags["albums-per-hour"].(int); ok {
		c.RateLimit.AlbumsPerHour = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".albumzip.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
