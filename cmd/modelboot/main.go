package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelboot/internal/config"
	"modelboot/internal/httpapi"
	"modelboot/internal/journal"
	"modelboot/internal/sequencer"
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	exitCode := 0

	root := &cobra.Command{
		Use:           "modelboot",
		Short:         "Startup sequencer for a local model-serving daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", envStr("MODELBOOT_CONFIG", ""), "Path to config file (.yaml/.json/.toml)")
	root.PersistentFlags().String("log-level", envStr("MODELBOOT_LOG_LEVEL", ""), "Log level: debug|info|warn|error")

	runCmd := &cobra.Command{
		Use:   "run [-- app args...]",
		Short: "Launch the daemon, pull the model, then run the application",
		Example: "  modelboot run --model llama3.1:8b --app 'python app.py'\n" +
			"  modelboot run --config /etc/modelboot.yaml -- --verbose",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mergedConfig(cmd, args)
			if err != nil {
				return err
			}
			code, err := runSequence(cmd.Context(), cfg)
			exitCode = code
			return err
		},
	}
	runCmd.Flags().String("daemon", "", "Serving daemon command (space-separated)")
	runCmd.Flags().String("health-url", envStr("MODELBOOT_HEALTH_URL", ""), "Daemon health URL polled for readiness")
	runCmd.Flags().String("model", envStr("MODELBOOT_MODEL", ""), "Model identifier to pull, e.g. llama3.1:8b")
	runCmd.Flags().String("fetch", "", "Fetch command (space-separated); model id is appended")
	runCmd.Flags().String("on-fetch-failure", "", "Policy when fetch fails: continue|abort")
	runCmd.Flags().String("app", "", "Application command (space-separated)")
	runCmd.Flags().Int("startup-delay-ms", 0, "Fixed delay before readiness is assumed/polled")
	runCmd.Flags().Int("readiness-timeout-ms", 0, "Bound on health URL polling")
	runCmd.Flags().Int("poll-interval-ms", 0, "Health URL polling interval")
	runCmd.Flags().Int("fetch-timeout-ms", 0, "Bound on the fetch step (0 = unbounded)")
	runCmd.Flags().Int("stop-grace-ms", 0, "SIGTERM grace before the daemon is killed")
	runCmd.Flags().String("status-addr", envStr("MODELBOOT_STATUS_ADDR", ""), "Address for the status/metrics endpoint, e.g. :8090")
	runCmd.Flags().String("journal", envStr("MODELBOOT_JOURNAL", ""), "Path to the SQLite run journal")
	runCmd.Flags().Bool("cors-enabled", false, "Enable CORS on the status endpoint")
	runCmd.Flags().String("cors-origins", "", "Comma-separated allowed CORS origins")
	root.AddCommand(runCmd)
	root.AddCommand(newHistoryCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

// mergedConfig resolves precedence: file < flags; then defaults and
// validation. Extra args (after --) are appended to the app command.
func mergedConfig(cmd *cobra.Command, extra []string) (config.Config, error) {
	var cfg config.Config
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("daemon") {
		v, _ := flags.GetString("daemon")
		cfg.DaemonCommand = strings.Fields(v)
	}
	if v, _ := flags.GetString("health-url"); v != "" {
		cfg.DaemonHealthURL = v
	}
	if v, _ := flags.GetString("model"); v != "" {
		cfg.Model = v
	}
	if flags.Changed("fetch") {
		v, _ := flags.GetString("fetch")
		cfg.FetchCommand = strings.Fields(v)
	}
	if v, _ := flags.GetString("on-fetch-failure"); v != "" {
		cfg.OnFetchFailure = v
	}
	if flags.Changed("app") {
		v, _ := flags.GetString("app")
		cfg.AppCommand = strings.Fields(v)
	}
	if flags.Changed("startup-delay-ms") {
		cfg.StartupDelayMS, _ = flags.GetInt("startup-delay-ms")
	}
	if flags.Changed("readiness-timeout-ms") {
		cfg.ReadinessTimeoutMS, _ = flags.GetInt("readiness-timeout-ms")
	}
	if flags.Changed("poll-interval-ms") {
		cfg.PollIntervalMS, _ = flags.GetInt("poll-interval-ms")
	}
	if flags.Changed("fetch-timeout-ms") {
		cfg.FetchTimeoutMS, _ = flags.GetInt("fetch-timeout-ms")
	}
	if flags.Changed("stop-grace-ms") {
		cfg.StopGraceMS, _ = flags.GetInt("stop-grace-ms")
	}
	if v, _ := flags.GetString("status-addr"); v != "" {
		cfg.StatusAddr = v
	}
	if v, _ := flags.GetString("journal"); v != "" {
		cfg.JournalPath = v
	}
	if flags.Changed("cors-enabled") {
		cfg.CORSEnabled, _ = flags.GetBool("cors-enabled")
	}
	if v, _ := flags.GetString("cors-origins"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	cfg.AppCommand = append(cfg.AppCommand, extra...)
	cfg.ApplyDefaults()
	// An explicit --startup-delay-ms, including 0, beats the 10s default
	// that ApplyDefaults infers for unspecified configs.
	if flags.Changed("startup-delay-ms") {
		cfg.StartupDelayMS, _ = flags.GetInt("startup-delay-ms")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runSequence(ctx context.Context, cfg config.Config) (int, error) {
	log := newLogger(cfg.LogLevel)

	seq := sequencer.New(sequencer.FromFileConfig(cfg), log)

	if cfg.JournalPath != "" {
		path, err := config.ExpandHome(cfg.JournalPath)
		if err != nil {
			return 1, err
		}
		jnl, err := journal.Open(path)
		if err != nil {
			return 1, fmt.Errorf("open journal: %w", err)
		}
		defer jnl.Close()
		seq.SetRecorder(jnl)
	}

	var srv *http.Server
	if cfg.StatusAddr != "" {
		httpapi.SetLogger(log)
		httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)
		srv = &http.Server{Addr: cfg.StatusAddr, Handler: httpapi.NewMux(seq)}
		go func() {
			log.Info().Str("addr", cfg.StatusAddr).Msg("status endpoint listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status endpoint error")
			}
		}()
	}

	code, err := seq.Run(ctx)

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := srv.Shutdown(sctx); serr != nil {
			log.Warn().Err(serr).Msg("status endpoint shutdown")
		}
	}
	return code, err
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitCSV splits a comma-separated list, trimming spaces and dropping
// empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
