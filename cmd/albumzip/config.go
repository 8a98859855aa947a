package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"albumzip/pkg/config"
	"albumzip/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage albumzip configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (ALBUMZIP_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.albumzip.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging defaults, the
configuration file and environment variables.

With --save the effective configuration is also written to a file, which
can then be passed to --config.`,
	Example: `  albumzip config show
  ALBUMZIP_PAUSE=10s albumzip config show --save ./albumzip.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields and value ranges
  - Selector strategies
  - Path accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	showCmd.Flags().StringVar(&savePath, "save", "", "also write the effective configuration to this file")
}

var savePath string

const exampleConfig = `# albumzip configuration file
#
# Every option can also be set through environment variables prefixed with
# ALBUMZIP_, for example ALBUMZIP_DOWNLOAD_DIR or ALBUMZIP_PROFILE_DIR.

# Spreadsheet layout
input:
  # Worksheet of an .xlsx file (ignored for .csv)
  sheet: "Sheet1"
  identifier_column: "Part Number"
  url_column: "Image Folder"
  # Abort instead of skipping rows with a missing part number or URL
  strict: false

# Where zips are downloaded and renamed
output:
  download_dir: "./flickr_downloads"
  extension: ".zip"

# Chrome launch options
browser:
  headless: false
  # Leave empty to let chromedp find Chrome
  exec_path: ""
  # User data directory of a profile that is logged into the photo service
  profile_dir: ""
  window_width: 1920
  window_height: 1080
  user_agent: ""

# Page elements of the album page; by is css or xpath
selectors:
  page_loaded:
    query: ".photo-list-photo-view, .view"
    by: css
  download_menu:
    query: "//a[span[text()='Download']]"
    by: xpath
  create_zip:
    query: "//button[span[text()='Create zip file']]"
    by: xpath
  download_zip:
    query: "//button[contains(text(), 'Download zip file')]"
    by: xpath

# Bounded waits of the export workflow
timeouts:
  page_load: 30s
  # Pause after the page loads, 0 disables
  settle: 5s
  control: 30s
  # Time the service gets to prepare the zip
  export_ready: 200s
  file_arrival: 200s
  poll_interval: 1s

batch:
  # Pause between two albums
  pause: 5s

rate_limit:
  # Maximum albums started per hour, 0 disables
  albums_per_hour: 0

notifications:
  enabled: false
  on_complete: true
  on_error: true

logging:
  # debug, info, warn, error
  level: "info"
  # text, json
  format: "text"
  # Optional log file, written in addition to the console
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".albumzip.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set browser.profile_dir to a Chrome profile that is logged in")
	fmt.Println("2. Run 'albumzip config validate' to check the configuration")
	fmt.Println("3. Run 'albumzip check <spreadsheet>' and then 'albumzip run <spreadsheet>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (" + config.EnvPrefix + "*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")

	if savePath != "" {
		if err := cfg.Save(savePath); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration saved: " + savePath)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	} else {
		ui.PrintInfo("Validating configuration", "(default locations)")
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	warnings, problems := checkEnvironment(cfg)

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return errors.New("configuration is not usable")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Download directory: %s\n", cfg.Output.DownloadDir)
	fmt.Printf("  Spreadsheet columns: %q / %q (sheet %s)\n", cfg.Input.IdentifierColumn, cfg.Input.URLColumn, cfg.Input.Sheet)
	fmt.Printf("  Chrome profile: %s\n", valueOr(cfg.Browser.ProfileDir, "(temporary)"))
	fmt.Printf("  Pause between albums: %s\n", cfg.Batch.Pause)
	fmt.Printf("  Zip preparation timeout: %s\n", cfg.Timeouts.ExportReady)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// checkEnvironment looks for problems Validate cannot see: paths on disk and
// combinations of settings that will not work well
func checkEnvironment(cfg *config.Config) (warnings, problems []string) {
	if err := os.MkdirAll(cfg.Output.DownloadDir, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create download directory: %v", err))
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if cfg.Browser.ExecPath != "" {
		if _, err := os.Stat(cfg.Browser.ExecPath); err != nil {
			problems = append(problems, fmt.Sprintf("Chrome executable not found: %s", cfg.Browser.ExecPath))
		}
	}

	if cfg.Browser.ProfileDir == "" {
		warnings = append(warnings, "No Chrome profile configured, every run starts logged out")
	} else if _, err := os.Stat(cfg.Browser.ProfileDir); err != nil {
		warnings = append(warnings, fmt.Sprintf("Chrome profile %s does not exist yet and will be created empty", cfg.Browser.ProfileDir))
	}

	if cfg.Batch.Pause == 0 && cfg.RateLimit.AlbumsPerHour == 0 {
		warnings = append(warnings, "No pause and no hourly limit, the service may throttle the account")
	}
	if cfg.Timeouts.FileArrival < cfg.Timeouts.PollInterval {
		warnings = append(warnings, "file_arrival is shorter than poll_interval, downloads will only be checked once")
	}
	if cfg.Notifications.Enabled && !cfg.Notifications.OnComplete && !cfg.Notifications.OnError {
		warnings = append(warnings, "Notifications are enabled but neither on_complete nor on_error is set")
	}

	return warnings, problems
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
