// Command testloggen rewrites annotated test functions so that structured
// logging and span tracing are initialized before each test body runs.
//
// It scans the given files or directories for _test.go files containing
// //testlog:test directives and regenerates them in place (--write), lists
// them (--list), or prints the rewritten source to stdout.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jonwraymond/testlog/rewrite"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliOptions struct {
	features string
	write    bool
	list     bool
	jobs     int
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:     "testloggen [path ...]",
		Short:   "Inject diagnostic initialization into annotated test functions",
		Version: version,
		Long: `testloggen rewrites test functions marked with //testlog:test so that the
selected diagnostic backends are initialized, idempotently and scoped to the
test, before the original body runs. The body itself is preserved verbatim.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, opts); err != nil {
				return err
			}
			features, err := rewrite.ParseFeatures(opts.features)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			logger := zap.NewNop()
			if opts.verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("verbose logging unavailable: %w", err)
				}
			}
			defer func() { _ = logger.Sync() }()
			return run(cmd, *opts, features, args, logger)
		},
	}

	cmd.Flags().StringVar(&opts.features, "features", rewrite.DefaultFeatures().String(),
		"comma-separated backend selection: log, trace, color, unstable")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "rewrite files in place instead of printing to stdout")
	cmd.Flags().BoolVarP(&opts.list, "list", "l", false, "list files whose contents would change")
	cmd.Flags().IntVar(&opts.jobs, "jobs", 0, "maximum concurrent file rewrites (0 means GOMAXPROCS)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log per-file progress to stderr")
	return cmd
}

// applyConfig layers a .testloggen.yaml file and TESTLOGGEN_* environment
// variables under the command-line flags. Flags set explicitly win.
func applyConfig(cmd *cobra.Command, opts *cliOptions) error {
	v := viper.New()
	v.SetEnvPrefix("TESTLOGGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetConfigName(".testloggen")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	// Defaults feed through viper so env and config values are visible to
	// Get even without explicit keys in the file.
	v.SetDefault("features", opts.features)
	v.SetDefault("jobs", opts.jobs)

	if !cmd.Flags().Changed("features") {
		opts.features = v.GetString("features")
	}
	if !cmd.Flags().Changed("jobs") {
		opts.jobs = v.GetInt("jobs")
	}
	return nil
}
