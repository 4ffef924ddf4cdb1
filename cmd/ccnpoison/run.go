package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/iti/ccnpoison"
	"github.com/iti/ccnpoison/ccnsim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run every sweep point of an experiment and report the results",
	RunE:  runExperiment,
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "write an experiment file with the default parameters",
	RunE:  writeTemplate,
}

var topologiesCmd = &cobra.Command{
	Use:   "topologies",
	Short: "list the named topologies",
	RunE:  listTopologies,
}

func init() {
	flags := runCmd.Flags()
	flags.String("exp", "", "experiment file, yaml or json; defaults are used when absent")
	flags.Int("workers", 0, "sweep points run in parallel, overrides the experiment file")
	flags.Int("trials", 0, "trials per sweep point, overrides the experiment file")
	flags.String("out", "", "results file, yaml or json")
	flags.String("trace", "", "file to write the per-trial event traces to")
	flags.String("metrics-addr", "", "address to serve prometheus metrics on, e.g. :9100")
	flags.Bool("quiet", false, "no progress bar")
	addScenarioFlags(flags)

	addScenarioFlags(templateCmd.Flags())
	templateCmd.Flags().String("out", "", "file to write, stdout as yaml when absent")
}

// addScenarioFlags adds the flags that shape an experiment, shared by run and template
func addScenarioFlags(flags *pflag.FlagSet) {
	flags.String("topology", "", "named topology replacing the experiment's, see the topologies command")
	flags.StringSlice("set", nil, "parameter override name=value, repeatable")
}

// bindFlags makes the flags of cmd readable through viper, and so from the environment
func bindFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// loadExperiment reads the experiment file, if any, and applies the command-line overrides
func loadExperiment() (*ccnpoison.ExperimentCfg, error) {
	exp := ccnpoison.CreateExperimentCfg("ccnpoison")

	expFile := viper.GetString("exp")
	if expFile != "" {
		if _, err := ccnpoison.CheckReadableFiles([]string{expFile}); err != nil {
			return nil, err
		}
		var err error
		exp, err = ccnpoison.ReadExperimentCfg(expFile, ccnpoison.IsYAMLFile(expFile), nil)
		if err != nil {
			return nil, err
		}
	}

	if name := viper.GetString("topology"); name != "" {
		td, err := ccnsim.NamedTopology(name)
		if err != nil {
			return nil, err
		}
		exp.Base.Topology = td
	}
	for _, assignment := range viper.GetStringSlice("set") {
		if err := exp.ApplyParam(assignment); err != nil {
			return nil, err
		}
	}
	if workers := viper.GetInt("workers"); workers > 0 {
		exp.Workers = workers
	}
	if trials := viper.GetInt("trials"); trials > 0 {
		exp.Base.Trials = trials
	}
	return exp, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	exp, err := loadExperiment()
	if err != nil {
		return err
	}

	outFile := viper.GetString("out")
	traceFile := viper.GetString("trace")
	if _, err := ccnpoison.CheckOutputFiles([]string{outFile, traceFile}); err != nil {
		return err
	}

	opts := []ccnpoison.RunnerOption{}

	reg := prometheus.NewRegistry()
	opts = append(opts, ccnpoison.WithMetrics(ccnpoison.CreateMetrics(reg)))
	if addr := viper.GetString("metrics-addr"); addr != "" {
		serveMetrics(addr, reg, logger)
	}

	tm := ccnpoison.CreateTraceManager(exp.ExpName, traceFile != "")
	opts = append(opts, ccnpoison.WithTrace(tm))

	if !viper.GetBool("quiet") {
		if values, err := exp.SweepValues(); err == nil {
			// invalid points run no trials
			valid := 0
			for _, value := range values {
				if _, err := exp.PointConfig(value); err == nil {
					valid++
				}
			}
			bar := progressbar.Default(int64(valid*exp.Base.Trials), "trials")
			opts = append(opts, ccnpoison.WithTrialHook(func(sc *ccnpoison.ScenarioConfig, trial int, err error) {
				_ = bar.Add(1)
			}))
			defer bar.Finish()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, runErr := ccnpoison.RunExperiment(ctx, exp, ccnsim.Factory(logger), logger, opts...)
	if res == nil {
		return runErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	printReport(os.Stdout, res)

	if outFile != "" {
		if err := res.WriteToFile(outFile); err != nil {
			return err
		}
		logger.Info().Str("file", outFile).Msg("results written")
	}
	if tm.Active() {
		if _, err := tm.WriteToFile(traceFile); err != nil {
			return err
		}
		logger.Info().Str("file", traceFile).Msg("traces written")
	}
	return runErr
}

// serveMetrics exposes reg over http for the life of the process
func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
}

func writeTemplate(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	exp, err := loadExperiment()
	if err != nil {
		return err
	}
	if _, err := exp.PointConfigs(); err != nil {
		return err
	}

	outFile := viper.GetString("out")
	if outFile == "" {
		return writeYAML(os.Stdout, exp)
	}
	if _, err := ccnpoison.CheckOutputFiles([]string{outFile}); err != nil {
		return err
	}
	return exp.WriteToFile(outFile)
}

func listTopologies(cmd *cobra.Command, args []string) error {
	return printTopologies(os.Stdout)
}
