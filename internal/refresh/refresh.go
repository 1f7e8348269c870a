// Package refresh provides the triggers the cache resolver uses to ask for a
// new snapshot.
package refresh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
	"github.com/colthorp/headlines-go/internal/fetch"
)

// CommandTrigger runs an external fetch command.
// Exit status decides OK; stderr on success is logged only.
type CommandTrigger struct {
	Command []string
	Dir     string
	Env     []string
	Timeout time.Duration
	Verbose bool
}

// SelfCommand returns a command running this binary's fetch subcommand.
func SelfCommand(args ...string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return append([]string{exe, "fetch"}, args...), nil
}

func (t *CommandTrigger) log(msg string) {
	core.Eprint(fmt.Sprintf("[Refresh] %s", msg), t.Verbose)
}

// Trigger implements cache.Trigger.
func (t *CommandTrigger) Trigger(ctx context.Context) cache.Outcome {
	if len(t.Command) == 0 {
		return cache.Outcome{OK: false, Message: "no refresh command configured"}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = core.RefreshTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.Command[0], t.Command[1:]...)
	cmd.Dir = t.Dir
	// Orphaned grandchildren must not hold the pipes open past the deadline.
	cmd.WaitDelay = time.Second
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.log(fmt.Sprintf("Running %s", strings.Join(t.Command, " ")))
	err := cmd.Run()

	out := strings.TrimSpace(stdout.String())
	diag := strings.TrimSpace(stderr.String())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %v", timeout)
		}
		msg := fmt.Sprintf("Fetch failed: %v", err)
		if diag != "" {
			msg += ": " + diag
		}
		return cache.Outcome{OK: false, Message: msg}
	}

	if diag != "" {
		t.log(fmt.Sprintf("Fetch stderr (ignored): %s", diag))
	}
	return cache.Outcome{OK: true, Message: out}
}

// InProcessTrigger runs the fetch pipeline in this process.
type InProcessTrigger struct {
	Pipeline *fetch.Pipeline
	Timeout  time.Duration
}

// Trigger implements cache.Trigger.
func (t *InProcessTrigger) Trigger(ctx context.Context) cache.Outcome {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = core.RefreshTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := t.Pipeline.Run(ctx)
	if err != nil {
		return cache.Outcome{OK: false, Message: fmt.Sprintf("Fetch failed: %v", err)}
	}
	return cache.Outcome{OK: true, Message: fmt.Sprintf("Saved %d articles to %s", res.Count, res.Path)}
}
