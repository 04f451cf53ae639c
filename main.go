package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"convergence_worker/internal/population"
	"convergence_worker/internal/resample"
)

var (
	configPath string
	logFormat  string
	logLevel   string

	logger *slog.Logger

	runFlags = defaultSettings()
	popFlags = defaultSettings()

	rootCmd = &cobra.Command{
		Use:   "convergence",
		Short: "Compare bootstrap, BLB and SEM variance estimators across sample sizes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(os.Stderr, logFormat, logLevel)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the convergence sweep and write the result table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd, runFlags, configPath)
			if err != nil {
				return err
			}
			return runSweep(s, logger)
		},
	}

	populationCmd = &cobra.Command{
		Use:   "population",
		Short: "Generate the base population and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd, popFlags, configPath)
			if err != nil {
				return err
			}
			return printPopulation(cmd, s)
		},
	}
)

type populationReport struct {
	Seed                uint64             `yaml:"seed"`
	TheoreticalMean     float64            `yaml:"theoretical_mean"`
	TheoreticalVariance float64            `yaml:"theoretical_variance"`
	Summary             population.Summary `yaml:"summary"`
}

func printPopulation(cmd *cobra.Command, s settings) error {
	seed := resolveSeed(s.Seed)
	values, err := buildPopulation(s.Config, resample.New(seed))
	if err != nil {
		return fmt.Errorf("generate population: %w", err)
	}
	gen := population.Gamma{Shape: s.Shape, Scale: s.Scale}
	out, err := yaml.Marshal(populationReport{
		Seed:                seed,
		TheoreticalMean:     gen.Mean(),
		TheoreticalVariance: gen.Variance(),
		Summary:             population.Summarize(values),
	})
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML experiment config file (default $CONVERGENCE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	bindSettingsFlags(runCmd, &runFlags)
	bindSettingsFlags(populationCmd, &popFlags)

	rootCmd.AddCommand(runCmd, populationCmd)
}

func main() {
	// Load environment from .env files for local development.
	_ = godotenv.Load(".env")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
