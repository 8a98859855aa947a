package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"albumzip/pkg/batch"
	"albumzip/pkg/browser"
	"albumzip/pkg/config"
	errs "albumzip/pkg/errors"
	"albumzip/pkg/exporter"
	"albumzip/pkg/inventory"
	"albumzip/pkg/logger"
	"albumzip/pkg/ratelimit"
	"albumzip/pkg/storage"
	"albumzip/pkg/ui"
	"albumzip/pkg/watcher"

	"github.com/spf13/cobra"
)

var (
	// Run command flags
	downloadDir      string
	sheet            string
	identifierColumn string
	urlColumn        string
	strict           bool
	headless         bool
	chromePath       string
	profileDir       string
	pause            time.Duration
	settle           time.Duration
	albumsPerHour    int
	notifications    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <spreadsheet>",
	Short: "Export every album listed in a spreadsheet",
	Long: `Export every album listed in an .xlsx or .csv spreadsheet.

The spreadsheet needs a header row with a part number column and an album
URL column. All rows are validated before the browser starts. Albums are then
exported one at a time with a pause in between; a failed album is logged and
the batch moves on.`,
	Example: `  # Export using the defaults (Sheet1, "Part Number", "Image Folder")
  albumzip run "ORACLE Lighting Digital Assets.xlsx"

  # Reuse a logged-in Chrome profile and write zips elsewhere
  albumzip run assets.xlsx --profile-dir ~/.albumzip/chrome --download-dir ./zips

  # CSV input with custom column names
  albumzip run assets.csv --identifier-column SKU --url-column "Album Link"

  # Slow down: 10s between albums and at most 30 albums per hour
  albumzip run assets.xlsx --pause 10s --albums-per-hour 30`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addInputFlags(runCmd)
	runCmd.Flags().StringVarP(&downloadDir, "download-dir", "o", "", "directory zips are downloaded to (default ./flickr_downloads)")
	runCmd.Flags().BoolVar(&headless, "headless", false, "run Chrome without a window")
	runCmd.Flags().StringVar(&chromePath, "chrome-path", "", "path to the Chrome executable")
	runCmd.Flags().StringVar(&profileDir, "profile-dir", "", "Chrome user data directory holding a logged-in session")
	runCmd.Flags().DurationVar(&pause, "pause", 5*time.Second, "pause between two albums")
	runCmd.Flags().DurationVar(&settle, "settle", 5*time.Second, "pause after an album page loads (0 disables)")
	runCmd.Flags().IntVar(&albumsPerHour, "albums-per-hour", 0, "maximum albums started per hour (0 disables)")
	runCmd.Flags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the batch ends")
}

// addInputFlags registers the spreadsheet flags shared by run and check
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read (default Sheet1)")
	cmd.Flags().StringVar(&identifierColumn, "identifier-column", "", `header of the part number column (default "Part Number")`)
	cmd.Flags().StringVar(&urlColumn, "url-column", "", `header of the album URL column (default "Image Folder")`)
	cmd.Flags().BoolVar(&strict, "strict", false, "abort when any row is invalid instead of skipping it")
}

// loadConfig merges the flags that were explicitly set into the configuration
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := globalFlags(cmd)
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}
	set("download-dir", downloadDir)
	set("sheet", sheet)
	set("identifier-column", identifierColumn)
	set("url-column", urlColumn)
	set("strict", strict)
	set("headless", headless)
	set("chrome-path", chromePath)
	set("profile-dir", profileDir)
	set("pause", pause)
	set("settle", settle)
	set("albums-per-hour", albumsPerHour)
	set("notifications", notifications)

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if !verbose && !cmd.Flags().Changed("log-level") && cfg.Logging.Level == "info" {
		// keep the progress line readable
		cfg.Logging.Level = "error"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// loadInventory reads and validates the spreadsheet, reporting skipped rows
func loadInventory(cfg *config.Config, path string) (*inventory.Inventory, error) {
	inv, err := inventory.Load(path, inventory.Options{
		Sheet:            cfg.Input.Sheet,
		IdentifierColumn: cfg.Input.IdentifierColumn,
		URLColumn:        cfg.Input.URLColumn,
		Strict:           cfg.Input.Strict,
	})
	if err != nil {
		return nil, err
	}

	for _, invalid := range inv.Invalid {
		logger.WithFields(map[string]interface{}{
			"row":    invalid.Row,
			"reason": invalid.Reason,
		}).Warn("Skipping invalid row")
		ui.PrintWarning("Skipping row", invalid)
	}
	return inv, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.GetLogger()
	logger.WithField("version", version).Info("albumzip starting")

	inv, err := loadInventory(cfg, args[0])
	if err != nil {
		return err
	}
	ui.PrintInfo("Spreadsheet", args[0])
	ui.PrintInfo("Albums", fmt.Sprintf("%d (%d rows skipped)", inv.Len(), len(inv.Invalid)))

	store, err := storage.NewManager(cfg.Output.DownloadDir)
	if err != nil {
		return err
	}
	ui.PrintInfo("Download directory", store.GetOutputDir())

	selectors, err := exporter.SelectorsFromConfig(cfg.Selectors)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHighlight("[STARTING CHROME]")
	session, err := browser.Launch(ctx, browser.LaunchOptions{
		Headless:     cfg.Browser.Headless,
		ExecPath:     cfg.Browser.ExecPath,
		ProfileDir:   cfg.Browser.ProfileDir,
		DownloadDir:  store.GetOutputDir(),
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		UserAgent:    cfg.Browser.UserAgent,
	}, log)
	if err != nil {
		return errs.New(errs.ErrorTypeSession, "launch", "failed to start browser", err)
	}

	w := watcher.New(store.GetOutputDir(), cfg.Output.Extension, cfg.Timeouts.PollInterval, log)
	driver := exporter.New(session, w, store, selectors, cfg.Timeouts, log)

	opts := batch.Options{
		Pause:    cfg.Batch.Pause,
		Limiter:  ratelimit.ForAlbumsPerHour(cfg.RateLimit.AlbumsPerHour),
		Total:    inv.Len(),
		Progress: ui.NewProgressDisplay(inv.Len(), verbose),
	}
	if cfg.Notifications.Enabled {
		opts.Notifier = ui.NewNotifier(cfg.Notifications.OnComplete, cfg.Notifications.OnError)
	}

	ui.PrintHighlight("[EXPORTING ALBUMS]")
	summary, err := batch.NewRunner(driver, session, opts, log).Run(ctx, inv.Items())
	printSummary(summary)
	if err != nil {
		return err
	}

	ui.PrintSuccess("[BATCH COMPLETED]")
	return nil
}

func printSummary(summary *batch.Summary) {
	if summary == nil {
		return
	}
	failed := summary.FailedOutcomes()
	if len(failed) == 0 {
		return
	}

	ui.PrintWarning(fmt.Sprintf("%d album(s) were not exported:", len(failed)))
	for _, o := range failed {
		ui.PrintInfo("  "+o.Identifier, fmt.Sprintf("%s (%s)", o.AlbumURL, errs.TypeOf(o.Err)))
	}
	if hint := timeoutHint(failed); hint != "" {
		ui.PrintWarning(hint)
	}
}

// timeoutHint suggests longer waits when some failures were expired timeouts
func timeoutHint(failed []exporter.Outcome) string {
	timedOut := 0
	for _, o := range failed {
		if errs.IsTimeout(errs.TypeOf(o.Err)) {
			timedOut++
		}
	}
	if timedOut == 0 {
		return ""
	}
	return fmt.Sprintf("%d of them timed out; consider raising timeouts.page_load, timeouts.export_ready or timeouts.file_arrival", timedOut)
}
