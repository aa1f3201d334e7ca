package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testCodeNotFound = 990001
	testCodeFailed   = 990002
)

func init() {
	MustRegister(NewCoder(testCodeNotFound, 2, "not found"))
	MustRegister(NewCoder(testCodeFailed, 1, "failed"))
}

func TestParseCoder(t *testing.T) {
	base := errors.New("network unreachable")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantExit int
	}{
		{name: "coded", err: WithCode(testCodeNotFound, "command %q", "deploy"), wantCode: testCodeNotFound, wantExit: 2},
		{name: "wrapped coded", err: fmt.Errorf("outer: %w", WrapC(base, testCodeFailed, "run")), wantCode: testCodeFailed, wantExit: 1},
		{name: "plain", err: base, wantCode: UnknownCode, wantExit: 1},
		{name: "unregistered code", err: WithCode(424242, "x"), wantCode: UnknownCode, wantExit: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseCoder(tt.err)
			assert.Equal(t, tt.wantCode, c.Code())
			assert.Equal(t, tt.wantExit, c.ExitCode())
		})
	}

	assert.Nil(t, ParseCoder(nil))
}

func TestWrapC(t *testing.T) {
	base := errors.New("boom")
	err := WrapC(base, testCodeFailed, "handler %s", "deploy")

	assert.EqualError(t, err, "handler deploy: boom")
	assert.ErrorIs(t, err, base)
	assert.True(t, IsCode(err, testCodeFailed))
	assert.False(t, IsCode(err, testCodeNotFound))
	assert.Nil(t, WrapC(nil, testCodeFailed, "nothing"))
}

func TestMustRegister_Duplicate(t *testing.T) {
	assert.Panics(t, func() { MustRegister(NewCoder(testCodeFailed, 1, "again")) })
	assert.Panics(t, func() { MustRegister(NewCoder(UnknownCode, 1, "reserved")) })
}
