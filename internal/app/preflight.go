package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"sdetails/internal/config"
	"sdetails/internal/transport"
)

// missingSchedulerCommandsError is typed so retry classification does not
// depend on string matching.
type missingSchedulerCommandsError struct {
	source  string
	missing string
}

func (e *missingSchedulerCommandsError) Error() string {
	return fmt.Sprintf("missing required scheduler commands on %s: %s", e.source, e.missing)
}

func checkSchedulerAvailability(ctx context.Context, tr transport.Transport, timeout time.Duration) error {
	const checkCmd = `missing=""; for c in sinfo squeue; do if ! command -v "$c" >/dev/null 2>&1; then missing="$missing $c"; fi; done; if [ -n "$missing" ]; then echo "$missing"; exit 7; fi`

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := tr.Run(checkCtx, checkCmd)
	if err != nil {
		if missing := strings.TrimSpace(res.Stdout); missing != "" {
			return &missingSchedulerCommandsError{
				source:  tr.Describe(),
				missing: missing,
			}
		}
		var runErr *transport.RunError
		if errors.As(err, &runErr) && runErr.Timeout {
			return fmt.Errorf("scheduler capability check timed out on %s; consider increasing --command-timeout: %w", tr.Describe(), err)
		}
		return fmt.Errorf("failed scheduler capability check on %s: %w", tr.Describe(), err)
	}
	return nil
}

func awaitSchedulerAvailability(ctx context.Context, tr transport.Transport, timeout time.Duration, log *logrus.Logger) error {
	return awaitSchedulerAvailabilityWithBackoff(ctx, tr, timeout, 1*time.Second, 30*time.Second, log)
}

// awaitSchedulerAvailabilityWithBackoff retries transient transport failures
// with exponential backoff; a missing command is permanent and returns
// immediately.
func awaitSchedulerAvailabilityWithBackoff(
	ctx context.Context,
	tr transport.Transport,
	timeout time.Duration,
	baseDelay time.Duration,
	maxDelay time.Duration,
	log *logrus.Logger,
) error {
	if baseDelay <= 0 {
		baseDelay = 1 * time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	delay := baseDelay
	for {
		err := checkSchedulerAvailability(ctx, tr, timeout)
		if err == nil {
			return nil
		}
		if isMissingSchedulerCommandError(err) {
			return err
		}
		if !transport.IsRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.WithFields(logrus.Fields{
			"source": tr.Describe(),
			"retry":  delay.String(),
		}).Warnf("transient preflight failure: %v", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func isMissingSchedulerCommandError(err error) bool {
	if err == nil {
		return false
	}
	var missingErr *missingSchedulerCommandsError
	return errors.As(err, &missingErr)
}

type doctorCheck struct {
	name   string
	detail string
	err    error
}

type doctorDeps struct {
	lookPath          func(string) (string, error)
	stat              func(string) (os.FileInfo, error)
	buildTransport    func(config.Config) (transport.Transport, error)
	checkAvailability func(context.Context, transport.Transport, time.Duration) error
}

func defaultDoctorDeps() doctorDeps {
	return doctorDeps{
		lookPath:          exec.LookPath,
		stat:              os.Stat,
		buildTransport:    buildTransport,
		checkAvailability: checkSchedulerAvailability,
	}
}

func RunDoctor(cfg config.Config, out io.Writer) error {
	return runDoctorWithDeps(cfg, out, defaultDoctorDeps())
}

func runDoctorWithDeps(cfg config.Config, out io.Writer, deps doctorDeps) error {
	target := "local"
	if cfg.Mode == config.ModeRemote {
		target = cfg.Target
	}

	fmt.Fprintln(out, "sdetails doctor")
	fmt.Fprintf(out, "mode: %s\n", cfg.Mode)
	fmt.Fprintf(out, "target: %s\n\n", target)

	checks := buildDoctorChecks(cfg, deps)
	failed := false
	for _, check := range checks {
		if check.err != nil {
			failed = true
			fmt.Fprintf(out, "[fail] %s: %v\n", check.name, check.err)
			continue
		}
		fmt.Fprintf(out, "[ok] %s: %s\n", check.name, check.detail)
	}

	if failed {
		fmt.Fprintln(out, "\ndoctor result: FAIL")
		return errors.New("doctor checks failed")
	}
	fmt.Fprintln(out, "\ndoctor result: PASS")
	return nil
}

func buildDoctorChecks(cfg config.Config, deps doctorDeps) []doctorCheck {
	checks := make([]doctorCheck, 0, 8)

	appendToolCheck := func(scope string, tool string) {
		if path, err := deps.lookPath(tool); err != nil {
			checks = append(checks, doctorCheck{
				name: scope + " tool " + tool,
				err:  fmt.Errorf("not found in PATH"),
			})
		} else {
			checks = append(checks, doctorCheck{
				name:   scope + " tool " + tool,
				detail: path,
			})
		}
	}

	appendFileCheck := func(name string, path string) {
		if strings.TrimSpace(path) == "" {
			return
		}
		resolved := resolveHomePath(path)
		info, err := deps.stat(resolved)
		if err != nil {
			checks = append(checks, doctorCheck{
				name: name,
				err:  fmt.Errorf("path is not readable: %s", resolved),
			})
			return
		}
		if info.IsDir() {
			checks = append(checks, doctorCheck{
				name: name,
				err:  fmt.Errorf("expected a file but found a directory: %s", resolved),
			})
			return
		}
		checks = append(checks, doctorCheck{
			name:   name,
			detail: resolved,
		})
	}

	if cfg.Mode == config.ModeLocal {
		for _, tool := range []string{"bash", "sinfo", "squeue"} {
			appendToolCheck("local", tool)
		}
	} else {
		appendToolCheck("local", "ssh")
		appendFileCheck("ssh config file", cfg.SSHConfig)
		appendFileCheck("ssh identity file", cfg.IdentityFile)
	}

	tr, err := deps.buildTransport(cfg)
	if err != nil {
		checks = append(checks, doctorCheck{
			name: "transport initialization",
			err:  err,
		})
		return checks
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CommandTimeout)
	defer cancel()

	if err := deps.checkAvailability(ctx, tr, cfg.CommandTimeout); err != nil {
		checks = append(checks, doctorCheck{
			name: "scheduler preflight",
			err:  err,
		})
	} else {
		checks = append(checks, doctorCheck{
			name:   "scheduler preflight",
			detail: "required scheduler commands are reachable on " + tr.Describe(),
		})
	}

	return checks
}

func RunDryRun(cfg config.Config, out io.Writer) error {
	target := "local"
	if cfg.Mode == config.ModeRemote {
		target = cfg.Target
	}

	watch := "off (single pass)"
	if cfg.Watch > 0 {
		watch = cfg.Watch.String()
	}
	exportPath := "off"
	if cfg.ExportPath != "" {
		exportPath = cfg.ExportPath
	}

	fmt.Fprintln(out, "sdetails dry-run")
	fmt.Fprintf(out, "mode: %s\n", cfg.Mode)
	fmt.Fprintf(out, "target: %s\n", target)
	fmt.Fprintf(out, "partition filter: %s\n", orNone(cfg.Partition))
	fmt.Fprintf(out, "sort: %s\n", cfg.SortKey)
	fmt.Fprintf(out, "threshold: %.2f\n", cfg.UsageThreshold)
	fmt.Fprintf(out, "watch: %s\n", watch)
	fmt.Fprintf(out, "export: %s\n", exportPath)
	fmt.Fprintf(out, "no-color: %t\n", cfg.NoColor)
	fmt.Fprintf(out, "no-summary: %t\n\n", cfg.NoSummary)

	fmt.Fprintln(out, "planned sequence:")
	fmt.Fprintln(out, "1. Parse flags and build the configured transport.")
	if cfg.Mode == config.ModeLocal {
		fmt.Fprintln(out, "2. Run a local preflight check for bash, sinfo, and squeue.")
	} else {
		fmt.Fprintln(out, "2. Connect over OpenSSH to the target and validate sinfo and squeue remotely.")
	}
	if cfg.Watch > 0 {
		fmt.Fprintln(out, "3. Start the refresh loop and render the live view until interrupted.")
	} else {
		fmt.Fprintln(out, "3. Collect one snapshot, render the summary and node table, and exit.")
	}
	if cfg.ExportPath != "" {
		fmt.Fprintln(out, "4. Write the JSON snapshot after rendering.")
	}
	fmt.Fprintln(out, "\ndry-run only: no local or remote commands were executed.")

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func resolveHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return path
}
