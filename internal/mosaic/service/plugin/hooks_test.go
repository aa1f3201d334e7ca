package plugin

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHookDispatcher_RunsInRegistrationOrder(t *testing.T) {
	d := NewHookDispatcher()
	var calls []string
	for _, name := range []string{"c", "a", "b"} {
		name := name
		require.NoError(t, d.Register(HookPreRun, func(context.Context, *HookPayload) error {
			calls = append(calls, name)
			return nil
		}, name))
	}

	for i := 0; i < 3; i++ {
		calls = nil
		report := d.Dispatch(context.Background(), HookPreRun, HookPayload{})
		assert.Equal(t, []string{"c", "a", "b"}, calls)
		assert.Equal(t, 3, report.Invoked)
		assert.True(t, report.OK())
	}
}

func TestHookDispatcher_FailureIsContained(t *testing.T) {
	logs := captureLog(t)
	d := NewHookDispatcher()
	var calls []string
	add := func(name string, fn func() error) {
		require.NoError(t, d.Register(HookPostRun, func(context.Context, *HookPayload) error {
			calls = append(calls, name)
			return fn()
		}, name))
	}
	add("first", func() error { return nil })
	add("erroring-plugin", func() error { return errors.New("disk full") })
	add("panicking-plugin", func() error { panic("boom") })
	add("last", func() error { return nil })

	report := d.Dispatch(context.Background(), HookPostRun, HookPayload{})

	assert.Equal(t, []string{"first", "erroring-plugin", "panicking-plugin", "last"}, calls)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "erroring-plugin", report.Failures[0].Plugin)
	assert.True(t, errors.Is(report.Failures[0].Err, ErrHookError))
	assert.Equal(t, "panicking-plugin", report.Failures[1].Plugin)
	assert.Contains(t, logs.String(), "erroring-plugin")
	assert.Contains(t, logs.String(), "postRun")
}

func TestHookDispatcher_PayloadIsPerHandler(t *testing.T) {
	d := NewHookDispatcher()
	require.NoError(t, d.Register(HookOnError, func(_ context.Context, p *HookPayload) error {
		p.Command = "tampered"
		p.Args.Flags["env"] = "prod"
		p.Args.Flags["tags"].([]string)[0] = "x"
		p.Args.Positional[0] = "everything"
		p.Exec.Args.Flags["env"] = "prod"
		p.Exec.Command = "tampered"
		return nil
	}, "a"))
	var seen *HookPayload
	require.NoError(t, d.Register(HookOnError, func(_ context.Context, p *HookPayload) error {
		seen = p
		assert.Equal(t, HookOnError, p.Event)
		return nil
	}, "b"))

	args := Args{Positional: []string{"svc"}, Flags: map[string]interface{}{"env": "staging", "tags": []string{"a"}}}
	ec := &ExecutionContext{Command: "deploy", Args: args}
	d.Dispatch(context.Background(), HookOnError, HookPayload{Command: "deploy", Args: args, Exec: ec})

	require.NotNil(t, seen)
	assert.Equal(t, "deploy", seen.Command)
	assert.Equal(t, "staging", seen.Args.String("env"))
	assert.Equal(t, []string{"a"}, seen.Args.StringSlice("tags"))
	assert.Equal(t, []string{"svc"}, seen.Args.Positional)
	assert.Equal(t, "deploy", seen.Exec.Command)
	assert.Equal(t, "staging", seen.Exec.Args.String("env"))
	assert.Equal(t, "staging", args.Flags["env"])
	assert.Equal(t, "deploy", ec.Command)
}

func TestHookDispatcher_NoHandlers(t *testing.T) {
	d := NewHookDispatcher()
	report := d.Dispatch(context.Background(), "custom", HookPayload{})
	assert.Equal(t, 0, report.Invoked)
	assert.True(t, report.OK())
}

func TestHookDispatcher_RegisterValidation(t *testing.T) {
	d := NewHookDispatcher()
	assert.Error(t, d.Register("", func(context.Context, *HookPayload) error { return nil }, "p"))
	assert.Error(t, d.Register(HookPreRun, nil, "p"))

	d.seal()
	assert.Error(t, d.Register(HookPreRun, func(context.Context, *HookPayload) error { return nil }, "p"))
	assert.Equal(t, 0, d.Count(HookPreRun))
}

// For N hooks where hook k fails, every other hook still runs, in order.
func TestHookDispatcher_FailingHookProperty(t *testing.T) {
	captureLog(t)
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "n")
		k := rapid.IntRange(0, n-1).Draw(t, "k")
		panics := rapid.Bool().Draw(t, "panics")

		d := NewHookDispatcher()
		var calls []int
		for i := 0; i < n; i++ {
			i := i
			_ = d.Register(HookPreRun, func(context.Context, *HookPayload) error {
				calls = append(calls, i)
				if i != k {
					return nil
				}
				if panics {
					panic(fmt.Sprintf("hook %d", i))
				}
				return fmt.Errorf("hook %d failed", i)
			}, fmt.Sprintf("p%d", i))
		}

		report := d.Dispatch(context.Background(), HookPreRun, HookPayload{})

		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		if fmt.Sprint(calls) != fmt.Sprint(want) {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
		if len(report.Failures) != 1 || report.Failures[0].Plugin != fmt.Sprintf("p%d", k) {
			t.Fatalf("failures = %+v, want only p%d", report.Failures, k)
		}
	})
}
