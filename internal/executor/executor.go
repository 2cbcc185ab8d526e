// Package executor runs the user's shell hooks when the canvas changes.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gubarz/dungeon/internal/store"
)

// DefaultTimeout bounds a single hook run
const DefaultTimeout = 30 * time.Second

// ShellRunner defines the interface for shell command execution
type ShellRunner interface {
	RunShell(ctx context.Context, command string, env ...string) (string, error)
}

// Executor runs commands through the configured shell
type Executor struct {
	shell string
}

func NewExecutor(shell string) *Executor {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Executor{shell: shell}
}

// Shell returns the configured shell
func (e *Executor) Shell() string {
	return e.shell
}

// RunShell executes a shell command with env added to the process
// environment and returns its trimmed stdout
func (e *Executor) RunShell(ctx context.Context, command string, env ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("shell error: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Hooks runs post_save_hook after an update is written and post_reload_hook
// after the file is reloaded from disk. Hooks run in the background, one at a
// time, in the order the changes happened.
type Hooks struct {
	runner     ShellRunner
	path       string
	postSave   string
	postReload string
	timeout    time.Duration
	log        zerolog.Logger

	mu sync.Mutex // serializes runs
	wg sync.WaitGroup
}

func NewHooks(runner ShellRunner, path, postSave, postReload string, log zerolog.Logger) *Hooks {
	return &Hooks{
		runner:     runner,
		path:       path,
		postSave:   postSave,
		postReload: postReload,
		timeout:    DefaultTimeout,
		log:        log,
	}
}

// Enabled reports whether any hook is configured
func (h *Hooks) Enabled() bool {
	return h.postSave != "" || h.postReload != ""
}

// Handle is a store.OnChange listener
func (h *Hooks) Handle(ev store.Event) {
	command := h.command(ev.Kind)
	if command == "" {
		return
	}

	env := []string{
		"DUNGEON_PATH=" + h.path,
		"DUNGEON_EVENT=" + ev.Kind.String(),
		"DUNGEON_ELEMENT=" + ev.ID,
		fmt.Sprintf("DUNGEON_ELEMENTS=%d", len(ev.Doc.Elements)),
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ev.Kind, command, env)
	}()
}

// Wait blocks until every started hook has finished
func (h *Hooks) Wait() {
	h.wg.Wait()
}

func (h *Hooks) command(kind store.EventKind) string {
	switch kind {
	case store.Updated:
		return h.postSave
	case store.Reloaded:
		return h.postReload
	}
	return ""
}

func (h *Hooks) run(kind store.EventKind, command string, env []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	start := time.Now()
	out, err := h.runner.RunShell(ctx, command, env...)
	if err != nil {
		h.log.Warn().Err(err).Str("event", kind.String()).Str("command", command).Msg("Hook failed")
		return
	}
	h.log.Debug().
		Str("event", kind.String()).
		Str("command", command).
		Str("output", out).
		Dur("took", time.Since(start)).
		Msg("Hook finished")
}
