package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"sdetails/internal/slurm"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

type Command string

const (
	CommandMonitor Command = "monitor"
	CommandDoctor  Command = "doctor"
	CommandDryRun  Command = "dry-run"
)

type Config struct {
	Command Command
	Mode    Mode
	Target  string

	Partition      string
	SortKey        slurm.SortKey
	NoColor        bool
	NoSummary      bool
	UsageThreshold float64
	ExportPath     string

	// Watch <= 0 means a single pass.
	Watch time.Duration

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	SSHConfig      string
	IdentityFile   string
	Port           int
}

var ErrHelpRequested = errors.New("help requested")

func defaultConfig() Config {
	return Config{
		Command:        CommandMonitor,
		SortKey:        slurm.SortByNodeName,
		UsageThreshold: slurm.DefaultUsageThreshold,
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 15 * time.Second,
	}
}

func newFlagSet(cfg *Config, sortKey *string, watchSeconds *int) *flag.FlagSet {
	fs := flag.NewFlagSet("sdetails", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Partition, "partition", "", "show only the named partition (exact match)")
	fs.StringVar(sortKey, "sort", string(cfg.SortKey), "sort key: nodename, partition, state, or cpu (free CPUs, descending)")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "disable ANSI color styling")
	fs.BoolVar(&cfg.NoSummary, "no-summary", false, "skip the cluster summary block")
	fs.Float64Var(&cfg.UsageThreshold, "threshold", cfg.UsageThreshold, "used/total ratio at which usage is shown as critical")
	fs.StringVar(&cfg.ExportPath, "export", "", "write a JSON snapshot of the node set to this file")
	fs.IntVar(watchSeconds, "watch", 0, "auto-refresh interval in seconds; 0 or less runs a single pass")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "max SSH connection setup time per command (remote mode)")
	fs.DurationVar(&cfg.CommandTimeout, "command-timeout", cfg.CommandTimeout, "max runtime for each scheduler command")
	fs.StringVar(&cfg.SSHConfig, "ssh-config", "", "alternate OpenSSH config path (remote mode)")
	fs.StringVar(&cfg.IdentityFile, "identity-file", "", "explicit SSH private key path passed to ssh -i (remote mode)")
	fs.IntVar(&cfg.Port, "port", 0, "override SSH port for remote target (remote mode)")

	return fs
}

func HelpText() string {
	cfg := defaultConfig()
	var sortKey string
	var watchSeconds int
	fs := newFlagSet(&cfg, &sortKey, &watchSeconds)

	var b strings.Builder
	b.WriteString("sdetails: read-only per-node Slurm cluster monitor\n\n")
	b.WriteString("Usage:\n")
	b.WriteString("  sdetails [flags] [ssh-target]\n")
	b.WriteString("  sdetails doctor [flags] [ssh-target]\n")
	b.WriteString("  sdetails dry-run [flags] [ssh-target]\n\n")
	b.WriteString("Commands:\n")
	b.WriteString("  monitor  Collect and render a node table (default when no command is given).\n")
	b.WriteString("  doctor   Run non-mutating preflight checks and exit.\n")
	b.WriteString("  dry-run  Print planned execution order and exit.\n\n")
	b.WriteString("Positional target:\n")
	b.WriteString("  ssh-target is optional.\n")
	b.WriteString("  - omitted: run locally (requires local sinfo/squeue)\n")
	b.WriteString("  - provided: run remotely through OpenSSH using alias or user@host\n\n")
	b.WriteString("Behavior:\n")
	b.WriteString("  - every invocation is read-only and never mutates scheduler state\n")
	b.WriteString("  - without --watch, one snapshot is collected, rendered, and the process exits\n")
	b.WriteString("  - with --watch N, the full pipeline re-runs every N seconds until interrupted\n")
	b.WriteString("  - a failing squeue degrades job counts to zero; the node table still renders\n\n")
	b.WriteString("Flags:\n")
	fs.SetOutput(&b)
	fs.PrintDefaults()
	b.WriteString("\nExamples:\n")
	b.WriteString("  sdetails\n")
	b.WriteString("  sdetails -partition gpu -sort cpu\n")
	b.WriteString("  sdetails -watch 5 cluster_alias\n")
	b.WriteString("  sdetails -export nodes.json user@cluster.example.org\n")
	b.WriteString("  sdetails doctor cluster_alias\n")

	return b.String()
}

func splitCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandMonitor, args
	}
	switch strings.TrimSpace(args[0]) {
	case string(CommandDoctor):
		return CommandDoctor, args[1:]
	case string(CommandDryRun):
		return CommandDryRun, args[1:]
	case string(CommandMonitor):
		return CommandMonitor, args[1:]
	default:
		return CommandMonitor, args
	}
}

func ParseArgs(args []string) (Config, error) {
	cfg := defaultConfig()
	cfg.Command, args = splitCommand(args)

	sortKey := string(cfg.SortKey)
	watchSeconds := 0
	fs := newFlagSet(&cfg, &sortKey, &watchSeconds)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, ErrHelpRequested
		}
		return Config{}, err
	}

	pos := fs.Args()
	if len(pos) > 1 {
		return Config{}, fmt.Errorf("expected zero or one positional target, got %d", len(pos))
	}
	if len(pos) == 1 {
		cfg.Target = strings.TrimSpace(pos[0])
	}

	if cfg.Target == "" {
		cfg.Mode = ModeLocal
	} else {
		cfg.Mode = ModeRemote
	}

	if !slurm.ValidSortKey(sortKey) {
		return Config{}, fmt.Errorf("--sort must be one of nodename, partition, state, cpu")
	}
	cfg.SortKey = slurm.SortKey(sortKey)

	if watchSeconds > 0 {
		cfg.Watch = time.Duration(watchSeconds) * time.Second
	}

	if cfg.UsageThreshold <= 0 || cfg.UsageThreshold > 1 {
		return Config{}, fmt.Errorf("--threshold must be in (0, 1]")
	}
	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("--connect-timeout must be > 0")
	}
	if cfg.CommandTimeout <= 0 {
		return Config{}, fmt.Errorf("--command-timeout must be > 0")
	}
	if cfg.Port < 0 {
		return Config{}, fmt.Errorf("--port must be >= 0")
	}

	if cfg.Mode == ModeLocal {
		if cfg.SSHConfig != "" || cfg.IdentityFile != "" || cfg.Port != 0 {
			return Config{}, fmt.Errorf("ssh-specific flags require a remote target")
		}
	}

	return cfg, nil
}
