package main

import (
	"fmt"
	"os"
	"runtime"

	"albumzip/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "albumzip",
	Short: "Bulk export photo albums as zip files from a spreadsheet",
	Long: `albumzip reads a spreadsheet that maps part numbers to album URLs and drives
a Chrome browser through each album's "Download" > "Create zip file" >
"Download zip file" flow, one album at a time.

Every finished zip is renamed to "{part number}_{original name}" in the
download directory. Albums that fail are logged and skipped; the batch keeps
going until the last row.

Log into the photo service once in a dedicated Chrome profile and point
--profile-dir at it so every run reuses that session.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			ui.SetQuiet(true)
		}

		// Don't show logo for certain commands
		switch cmd.Name() {
		case "version", "help", "show":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.albumzip.yaml or ~/.config/albumzip/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show logs and one line per album instead of a progress bar")

	rootCmd.SetVersionTemplate(`albumzip {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags that feed into the configuration
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}
