package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/store"
)

type call struct {
	command string
	env     []string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeRunner) RunShell(_ context.Context, command string, env ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{command, env})
	return "", f.err
}

func TestRunShell(t *testing.T) {
	e := NewExecutor("/bin/sh")

	tests := []struct {
		name    string
		command string
		env     []string
		want    string
		wantErr bool
	}{
		{"stdout trimmed", "echo hello", nil, "hello", false},
		{"env passed", `echo "$DUNGEON_PATH"`, []string{"DUNGEON_PATH=/tmp/canvas.md"}, "/tmp/canvas.md", false},
		{"failure carries stderr", "echo broken >&2; exit 3", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.RunShell(context.Background(), tt.command, tt.env...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "broken")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRunShellTimeout(t *testing.T) {
	e := NewExecutor("/bin/sh")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := e.RunShell(ctx, "sleep 5")
	assert.Error(t, err)
}

func TestNewExecutorDefaultShell(t *testing.T) {
	assert.Equal(t, "/bin/sh", NewExecutor("").Shell())
}

func TestHooksHandle(t *testing.T) {
	doc := document.New()

	tests := []struct {
		name    string
		event   store.Event
		want    string
		wantEnv []string
	}{
		{
			name:    "save",
			event:   store.Event{Kind: store.Updated, Doc: doc, ID: "3_abc"},
			want:    "save-cmd",
			wantEnv: []string{"DUNGEON_PATH=/c.md", "DUNGEON_EVENT=updated", "DUNGEON_ELEMENT=3_abc", "DUNGEON_ELEMENTS=0"},
		},
		{
			name:    "reload",
			event:   store.Event{Kind: store.Reloaded, Doc: doc},
			want:    "reload-cmd",
			wantEnv: []string{"DUNGEON_PATH=/c.md", "DUNGEON_EVENT=reloaded", "DUNGEON_ELEMENT=", "DUNGEON_ELEMENTS=0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			h := NewHooks(runner, "/c.md", "save-cmd", "reload-cmd", zerolog.Nop())

			h.Handle(tt.event)
			h.Wait()

			require.Len(t, runner.calls, 1)
			assert.Equal(t, tt.want, runner.calls[0].command)
			assert.Equal(t, tt.wantEnv, runner.calls[0].env)
		})
	}
}

func TestHooksUnset(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHooks(runner, "/c.md", "", "", zerolog.Nop())
	assert.False(t, h.Enabled())

	h.Handle(store.Event{Kind: store.Updated, Doc: document.New()})
	h.Wait()
	assert.Empty(t, runner.calls)
}

func TestHooksFailureIsLogged(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	h := NewHooks(runner, "/c.md", "save-cmd", "", zerolog.Nop())

	h.Handle(store.Event{Kind: store.Updated, Doc: document.New()})
	h.Wait()
	assert.Len(t, runner.calls, 1)
}
