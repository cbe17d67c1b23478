// Package cmd defines the elections-scraper command line.
package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/elections-scraper/internal/config"
	"github.com/JakeFAU/elections-scraper/internal/election"
)

// errValidation marks argument problems detected before any network access.
var errValidation = errors.New("invalid arguments")

type options struct {
	configPath  string
	abroad      bool
	partial     bool
	concurrency int
	yes         bool
	timeout     time.Duration
	noProgress  bool
	metricsFile string

	cfg         config.Config
	districtURL string
	outputPath  string
}

// newRootCmd creates the root command. It scrapes directly; there are no
// subcommands.
func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "elections-scraper [flags] <district-url> <output.csv>",
		Short: "Scrape precinct results of one district from volby.cz into CSV.",
		Long: `elections-scraper reads a district listing of the 2017 Czech parliamentary
election on volby.cz, visits every precinct it links to, and writes one CSV row
per precinct: code, location, registered voters, issued envelopes, valid votes,
and one column per party.`,
		Example: `  elections-scraper "https://www.volby.cz/pls/ps2017nss/ps32?xjazyk=CZ&xkraj=2&xnumnuts=2101" benesov.csv
  elections-scraper --abroad --partial "https://www.volby.cz/pls/ps2017nss/ps36?xjazyk=CZ" abroad.csv`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.complete(cmd, args)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "config file (yaml, json or toml)")
	flags.BoolVar(&opts.abroad, "abroad", false, "the listing is the abroad (zahraničí) variant")
	flags.BoolVar(&opts.partial, "partial", false, "keep going past failed precincts and report them at the end")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "number of concurrent precinct fetches (default from config: 8)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "overwrite an existing output file without asking")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default from config: 20s)")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "disable the progress indicator")
	flags.StringVar(&opts.metricsFile, "metrics-textfile", "", "write run metrics in Prometheus text format to this file")

	return cmd
}

// complete loads configuration, applies flag overrides, and validates the
// positional arguments.
func (o *options) complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Crawler.Concurrency = o.concurrency
	}
	if flags.Changed("timeout") {
		cfg.HTTP.TimeoutSeconds = int((o.timeout + time.Second - 1) / time.Second)
	}
	if o.partial {
		cfg.Crawler.Mode = string(election.ModePartial)
	}
	if o.noProgress {
		cfg.Progress.Enabled = false
	}
	if o.metricsFile != "" {
		cfg.Metrics.Textfile = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errValidation, err)
	}
	if err := validateArgs(cfg.Site.BaseURL, args[0], args[1]); err != nil {
		return err
	}
	o.cfg = cfg
	o.districtURL = args[0]
	o.outputPath = args[1]
	return nil
}

func validateArgs(baseURL, districtURL, outputPath string) error {
	if !strings.HasPrefix(districtURL, baseURL) {
		return fmt.Errorf("%w: district url must start with %s", errValidation, baseURL)
	}
	if u, err := url.Parse(districtURL); err != nil || u.Host == "" {
		return fmt.Errorf("%w: district url %q is not a valid url", errValidation, districtURL)
	}
	if !strings.HasSuffix(outputPath, ".csv") || strings.TrimSuffix(outputPath, ".csv") == "" {
		return fmt.Errorf("%w: output file name must end in .csv", errValidation)
	}
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
