package main

import (
	"encoding/json"
	"fmt"
	"os"

	"MacroGate/internal/di"
	"MacroGate/internal/domain/models"
	"MacroGate/internal/usecase"
	"MacroGate/pkg/config"
	applogger "MacroGate/pkg/logger"
	"MacroGate/pkg/util"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "macrogate",
		Short:        "Intraday execution-quality scoring service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	load := func() (*config.Config, error) {
		path := configPath
		if _, err := os.Stat(path); os.IsNotExist(err) && !root.PersistentFlags().Changed("config") {
			path = ""
		}
		return config.LoadWithEnv(path)
	}

	root.AddCommand(serveCmd(load))
	root.AddCommand(evaluateCmd(load))
	root.AddCommand(configCmd(load))
	return root
}

type loader func() (*config.Config, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
}

func evaluateCmd(load loader) *cobra.Command {
	var instrument, at, calendarFile, pressure, frequency string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one instrument and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			ev, err := evaluateOnce(cmd, cfg, instrument, at, calendarFile, models.Narrative{
				Pressure:  models.NarrativePressure(pressure),
				Frequency: models.HeadlineFrequency(frequency),
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ev)
		},
	}
	cmd.Flags().StringVar(&instrument, "instrument", "EURUSD", "instrument id")
	cmd.Flags().StringVar(&at, "at", "", "evaluation time (RFC3339 or local layouts)")
	cmd.Flags().StringVar(&calendarFile, "calendar", "", "calendar CSV file")
	cmd.Flags().StringVar(&pressure, "pressure", "Low", "narrative pressure: Low, Moderate or High")
	cmd.Flags().StringVar(&frequency, "frequency", "Normal", "headline frequency: Normal or Elevated")
	return cmd
}

func evaluateOnce(cmd *cobra.Command, cfg *config.Config, instrument, at, calendarFile string, n models.Narrative) (models.Evaluation, error) {
	l := applogger.Nop()
	reg := di.ProvideRegistry()
	engine, err := di.ProvideEngine(cfg)
	if err != nil {
		return models.Evaluation{}, err
	}
	// The one-shot command always talks to the chart API directly.
	cfg.MarketData.Source = "yahoo"
	cfg.Cache.Backend = "memory"
	source, err := di.ProvideSeriesSource(cfg, nil, nil, di.ProvideTTLCache(cfg), l)
	if err != nil {
		return models.Evaluation{}, err
	}

	calendar := di.ProvideCalendarStore()
	if calendarFile != "" {
		f, err := os.Open(calendarFile)
		if err != nil {
			return models.Evaluation{}, fmt.Errorf("open calendar: %w", err)
		}
		defer f.Close()
		uc := usecase.NewCalendarUseCase(calendar, nil, engine.Location(), nil, l)
		rep, err := uc.ImportCSV(cmd.Context(), f)
		if err != nil {
			return models.Evaluation{}, fmt.Errorf("import calendar: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "calendar: %d events, %d dropped\n", rep.Accepted, rep.Dropped)
	}

	p := usecase.EvaluateParams{Instrument: instrument, Narrative: n}
	if at != "" {
		t, ok := util.ParseTimeIn(at, engine.Location())
		if !ok {
			return models.Evaluation{}, fmt.Errorf("unrecognized --at value %q", at)
		}
		p.At = t
	}
	ev := di.ProvideEvaluator(cfg, engine, source, calendar, di.ProvideMetrics(reg), l)
	return ev.Evaluate(cmd.Context(), p)
}

func configCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: env=%s instruments=%d audit=%v\n",
				cfg.Environment, len(cfg.Instruments), cfg.Audit.Backends)
			return nil
		},
	})
	return cmd
}
