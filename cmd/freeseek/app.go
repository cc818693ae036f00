package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	freeseek "github.com/freeseek/freeseek-go"
	"github.com/freeseek/freeseek-go/config"
	"github.com/freeseek/freeseek-go/logger"
	"github.com/freeseek/freeseek-go/observability"
	"github.com/freeseek/freeseek-go/version"
)

const serviceName = "freeseek-cli"

// command is one subcommand. run receives the arguments after the command name.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile   string
	logLevel     string
	logFormat    string
	otlpEndpoint string
	metricsAddr  string

	commands []command

	// shutdown hooks registered while building the client, run in reverse order.
	cleanups []func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	a := &app{stdout: stdout, stderr: stderr}
	a.commands = []command{
		{name: "configure", summary: "Write the API key and endpoint to the config file", run: runConfigure},
		{name: "infer", summary: "Run a model on a JSON payload", run: runInfer},
		{name: "stream", summary: "Run a model and print streamed chunks as they arrive", run: runStream},
		{name: "batch", summary: "Run a file of requests concurrently", run: runBatch},
		{name: "models", summary: "List available models", run: runModels},
		{name: "info", summary: "Show metadata of a model", run: runInfo},
		{name: "schema", summary: "Show the input schema of a model", run: runSchema},
		{name: "codegen", summary: "Print client boilerplate for a language", run: runCodegen},
		{name: "version", summary: "Print version information", run: runVersion},
	}
	return a
}

func (a *app) globalFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("freeseek", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.StringVar(&a.configFile, "config", "", "config file (default: ./.freeseek.yaml, then ~/.freeseek.yaml)")
	fs.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&a.logFormat, "log-format", "", "log format: console or json")
	fs.StringVar(&a.otlpEndpoint, "otlp-endpoint", "", "export traces and metrics to this OTLP/HTTP host:port")
	fs.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	return fs
}

func (a *app) execute(args []string) error {
	fs := a.globalFlags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			a.printUsage(fs)
			return nil
		}
		return &usageError{err: err}
	}

	rest := fs.Args()
	if len(rest) == 0 {
		a.printUsage(fs)
		return usagef("command required")
	}
	if rest[0] == "help" {
		a.printUsage(fs)
		return nil
	}

	for _, cmd := range a.commands {
		if cmd.name != rest[0] {
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer a.cleanup()
		return cmd.run(ctx, a, rest[1:])
	}
	return usagef("unknown command %q, run 'freeseek --help' for usage", rest[0])
}

func (a *app) printUsage(fs *pflag.FlagSet) {
	fmt.Fprintln(a.stdout, "Usage: freeseek [global flags] <command> [flags] [args]")
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "Commands:")
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, cmd := range a.commands {
		fmt.Fprintf(w, "  %s\t%s\n", cmd.name, cmd.summary)
	}
	_ = w.Flush()
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, "Global flags:")
	fmt.Fprint(a.stdout, fs.FlagUsages())
}

func (a *app) commandFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse reports flag errors as usage errors. On --help it prints the flags
// and returns done.
func (a *app) parse(fs *pflag.FlagSet, args []string) (done bool, err error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(a.stdout, "Usage of freeseek %s:\n%s", fs.Name(), fs.FlagUsages())
			return true, nil
		}
		return false, &usageError{err: fmt.Errorf("%s: %w", fs.Name(), err)}
	}
	return false, nil
}

func (a *app) loaderOptions(extra ...config.LoaderOption) []config.LoaderOption {
	var opts []config.LoaderOption
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	return append(opts, extra...)
}

func (a *app) newLogger(cfg logger.Config) (*logger.Logger, error) {
	if a.logLevel != "" {
		cfg.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Format = a.logFormat
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, usagef("%v", err)
	}
	return logger.NewWithWriter(&cfg, serviceName, a.stderr), nil
}

// newClient loads the configuration and builds a client with the
// observability requested on the command line.
func (a *app) newClient(ctx context.Context, mutate func(*config.Config)) (*freeseek.Client, error) {
	cfg, err := config.Load(a.loaderOptions(config.WithoutValidation())...)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	log, err := a.newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	opts := []freeseek.Option{freeseek.WithLogger(log)}

	if a.otlpEndpoint != "" {
		tcfg := observability.DefaultTracerConfig(serviceName)
		tcfg.Endpoint = a.otlpEndpoint
		tcfg.ServiceVersion = version.Get().Short()
		tp, err := observability.InitTracer(ctx, tcfg, log)
		if err != nil {
			return nil, err
		}
		a.cleanups = append(a.cleanups, tp.Shutdown)

		mcfg := observability.DefaultMeterConfig(serviceName)
		mcfg.Endpoint = a.otlpEndpoint
		mcfg.ServiceVersion = tcfg.ServiceVersion
		mp, err := observability.InitMeter(ctx, mcfg, log)
		if err != nil {
			return nil, err
		}
		a.cleanups = append(a.cleanups, mp.Shutdown)
		opts = append(opts, freeseek.WithMeter(observability.Meter(serviceName)))
	}

	if a.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		pm := observability.NewPrometheusMetrics(registry)
		if err := a.serveMetrics(pm.Handler(), log); err != nil {
			return nil, err
		}
		opts = append(opts, freeseek.WithRecorder(pm))
	}

	client, err := freeseek.New(*cfg, opts...)
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, func(context.Context) error { return client.Close() })
	return client, nil
}

func (a *app) serveMetrics(h http.Handler, log *logger.Logger) error {
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", logger.Fields(logger.FieldError, err.Error()))
		}
	}()
	log.Info("serving metrics", logger.Fields("addr", ln.Addr().String()))
	a.cleanups = append(a.cleanups, srv.Shutdown)
	return nil
}

func (a *app) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](ctx); err != nil {
			fmt.Fprintf(a.stderr, "warning: shutdown: %v\n", err)
		}
	}
	a.cleanups = nil
}
