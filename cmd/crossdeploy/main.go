// Command crossdeploy builds a binary for a cross-compilation target and
// deploys it to the target's remote host.
//
// Exit codes identify the failing stage so calling scripts can branch on
// the failure class: 0 success, 1 usage or configuration, 2 resolve,
// 3 provision, 4 build, 5 verify, 6 deploy.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"crossdeploy/internal/builder"
	"crossdeploy/internal/config"
	"crossdeploy/internal/deploy"
	"crossdeploy/internal/domain"
	"crossdeploy/internal/executor"
	"crossdeploy/internal/pipeline"
	"crossdeploy/internal/probe"
	"crossdeploy/internal/registry"
	"crossdeploy/internal/repository/sqlite"
	"crossdeploy/internal/toolchain"
	"crossdeploy/internal/verify"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		targets     = flag.StringArrayP("target", "t", nil, "target name to deploy (repeatable)")
		release     = flag.Bool("release", false, "build with the release profile")
		source      = flag.String("source", "", "source root (overrides config)")
		retries     = flag.Int("retries", -1, "transfer retry attempts (overrides config)")
		jobs        = flag.IntP("jobs", "j", 1, "max concurrent target pipelines")
		preflight   = flag.Bool("preflight", false, "probe host reachability before deploying")
		keepUnique  = flag.Bool("keep-unique", false, "write the artifact to a unique path instead of overwriting")
		configPath  = flag.String("config", "", "config file path (overrides search)")
		showHistory = flag.Bool("history", false, "print recent runs for the targets and exit")
		initConfig  = flag.Bool("init", false, "write a starter config file and exit")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.ConfigFileName
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			log.Printf("Failed to write starter config: %v", err)
			return 1
		}
		log.Printf("Wrote starter config to %s; edit the targets and secrets before deploying", path)
		return 0
	}

	if len(*targets) == 0 {
		fmt.Fprintln(os.Stderr, "at least one --target is required")
		flag.Usage()
		return 1
	}

	var (
		cfg  *config.Config
		path string
		err  error
	)
	if *configPath != "" {
		path = *configPath
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}
	log.Printf("Loaded config from %s (%d targets)", path, len(cfg.Targets))

	if *source != "" {
		cfg.SourceRoot = *source
	}
	if *retries >= 0 {
		cfg.Deploy.Retries = *retries
	}

	reg, err := registry.New(cfg.Targets)
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}

	history, err := sqlite.New(cfg.HistoryDB)
	if err != nil {
		log.Printf("Failed to open history database: %v", err)
		return 1
	}
	defer history.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *showHistory {
		return printHistory(ctx, history, *targets)
	}

	runner := executor.New()
	p := &pipeline.Pipeline{
		Registry: reg,
		Provisioner: toolchain.New(cfg.Toolchain.Root, cfg.Toolchain.Probe, cfg.Toolchain.Install,
			runner, history),
		Builder: builder.New(cfg.Build.Command, cfg.Build.ReleaseFlag, cfg.Build.Artifact, runner),
		Verify:  verify.Check,
		DeployerFor: func(spec domain.TargetSpec) (pipeline.ArtifactDeployer, error) {
			cred, err := cfg.Credential(spec.Host)
			if err != nil {
				return nil, err
			}
			dialer := deploy.NewSSHDialer(spec.Host, cred, cfg.Deploy.Timeout.Duration())
			return deploy.New(dialer, cfg.Deploy.Retries), nil
		},
		History:    history,
		SourceRoot: cfg.SourceRoot,
	}
	if *preflight {
		prober := probe.New(cfg.Deploy.Timeout.Duration())
		p.Preflight = prober.Probe
	}

	opts := pipeline.Options{ReleaseMode: *release, UniquePath: *keepUnique}
	outcomes := p.RunAll(ctx, *targets, *jobs, opts)

	// With multiple targets the highest failing stage code wins.
	exitCode := 0
	for _, o := range outcomes {
		if o.Err != nil {
			log.Printf("Target %s failed: %v", o.Target, o.Err)
			if code := pipeline.FailedStage(o.Err).ExitCode(); code > exitCode {
				exitCode = code
			}
			continue
		}
		log.Printf("Target %s deployed: %s (%d bytes)", o.Target, o.Result.RemotePath, o.Result.BytesTransferred)
	}
	return exitCode
}

func printHistory(ctx context.Context, history *sqlite.Repository, targets []string) int {
	for _, target := range targets {
		runs, err := history.RecentRuns(ctx, target, 10)
		if err != nil {
			log.Printf("Failed to read history for %s: %v", target, err)
			return 1
		}
		fmt.Printf("%s:\n", target)
		if len(runs) == 0 {
			fmt.Println("  no recorded runs")
			continue
		}
		for _, rec := range runs {
			status := "ok"
			if !rec.Success {
				status = "failed at " + rec.Stage
			}
			fmt.Printf("  %s  %-22s  %s", rec.CreatedAt.Format("2006-01-02 15:04:05"), status, rec.RemotePath)
			if rec.BytesTransferred > 0 {
				fmt.Printf("  (%d bytes)", rec.BytesTransferred)
			}
			if rec.Error != "" {
				fmt.Printf("  %s", rec.Error)
			}
			fmt.Println()
		}
	}
	return 0
}
