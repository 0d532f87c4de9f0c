package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/health"
	"github.com/apk/ubik/pkg/lib/job"
	"github.com/apk/ubik/pkg/lib/reactor"
	"github.com/apk/ubik/pkg/lib/runner"
	"github.com/apk/ubik/pkg/lib/supervisor"
)

type rootOptions struct {
	debug      bool
	logFormat  string
	grace      time.Duration
	killGrace  time.Duration
	healthAddr string
	subreaper  bool
}

func NewRootCmd() *cobra.Command {
	opts := rootOptions{}

	root := &cobra.Command{
		Use:   "ubik [flags] [--] <command> [args...] [--- [job flags] <command> [args...]]...",
		Short: "Run a group of processes and take them down together",
		Long: `ubik starts every declared job. A job without --pause or --period is
critical: when it exits, every other job is stopped and ubik exits. Tasks
are restarted after every exit, no sooner than --pause after the exit and
--period after the previous start.

Job flags, after a "---" separator:
  -n, --name string     display name of the job
  -u, --user string     run the job as this user
  -d, --dir string      working directory of the job
  -p, --pause duration  minimum time between an exit and the next start
  -P, --period duration minimum time between two starts

Durations are Go durations (1m30s) or whole seconds. "---N" is short for
"--- --pause N". Put "--" before a leading "---".`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, opts, args)
		},
	}

	flags := root.Flags()
	flags.SetInterspersed(false)
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flags.DurationVar(&opts.grace, "grace", supervisor.DefaultTerminateGrace, "time jobs get to exit after the graceful signal")
	flags.DurationVar(&opts.killGrace, "kill-grace", supervisor.DefaultKillGrace, "time jobs get to exit after SIGKILL")
	flags.StringVar(&opts.healthAddr, "health-addr", os.Getenv(health.EnvAddress), "serve gRPC health on unix:/path or host:port")
	flags.BoolVar(&opts.subreaper, "subreaper", true, "adopt orphaned descendants (Linux)")

	return root
}

func run(ctx context.Context, cmd *cobra.Command, opts rootOptions, args []string) error {
	logger, err := newLogger(cmd.OutOrStdout(), opts.logFormat, opts.debug)
	if err != nil {
		return err
	}
	if opts.grace < 0 || opts.killGrace < 0 {
		return fmt.Errorf("grace: %w", job.ErrNegativeDuration)
	}

	specs, err := parseJobs(args)
	if err != nil {
		return err
	}
	if err := validateJobs(specs); err != nil {
		return err
	}
	reg, err := job.NewRegistry(specs)
	if err != nil {
		return err
	}
	if opts.subreaper {
		if err := runner.BecomeSubreaper(); err != nil {
			logger.Warn("cannot become child subreaper", "err", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sup *supervisor.Supervisor
	loop := reactor.New(nil)
	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithEnv(childBaseEnv(os.Environ())),
		runner.WithStrayHandler(func(pid int, st lib.ExitStatus) {
			sup.HandleStray(pid, st)
		}),
	)

	supOpts := []supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithGrace(opts.grace, opts.killGrace),
	}
	var services []string
	if opts.healthAddr != "" {
		srv, err := startHealth(opts.healthAddr, logger)
		if err != nil {
			return err
		}
		defer srv.Stop()
		services = srv.Register(reg.Jobs())
		supOpts = append(supOpts, supervisor.WithObserver(srv))
	}
	printJobTable(cmd.OutOrStdout(), reg.Jobs(), services)
	sup = supervisor.New(reg, loop, r, supOpts...)

	r.Watch(ctx, loop)
	supervisor.WatchSignals(ctx, sup)

	code, err := sup.Run(ctx)
	if err != nil {
		return err
	}
	if code != lib.ExitOK {
		return &exitCodeError{code: code}
	}
	return nil
}

func startHealth(addr string, logger *slog.Logger) (*health.Server, error) {
	tlsCfg, err := health.TLSConfigFromEnv()
	if err != nil {
		return nil, err
	}
	hopts := []health.Option{health.WithLogger(logger)}
	if tlsCfg != nil {
		hopts = append(hopts, health.WithTLS(tlsCfg))
	}
	srv, err := health.New(addr, hopts...)
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error("health server stopped", "err", err)
		}
	}()
	logger.Info("health listening", "addr", srv.Addr().String())
	return srv, nil
}

// childBaseEnv is the supervisor's environment minus the health TLS
// material, which jobs have no business seeing.
func childBaseEnv(environ []string) []string {
	env := make([]string, 0, len(environ))
	for _, e := range environ {
		if !health.IsTLSVariable(e) {
			env = append(env, e)
		}
	}
	return env
}

// validateJobs resolves users and programs before anything is started.
func validateJobs(specs []job.Spec) error {
	for i, spec := range specs {
		if spec.User != "" {
			if _, err := runner.LookupUser(spec.User); err != nil {
				return fmt.Errorf("job %d: %w", i+1, err)
			}
		}
		program := spec.Command[0]
		if spec.Dir != "" && strings.Contains(program, "/") && !filepath.IsAbs(program) {
			// Resolved against the job's directory at start.
			continue
		}
		if _, err := exec.LookPath(program); err != nil {
			return fmt.Errorf("job %d: %w", i+1, err)
		}
	}
	return nil
}
