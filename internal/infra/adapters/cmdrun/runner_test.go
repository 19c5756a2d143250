//go:build !integration

package cmdrun

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Run(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx := context.Background()

	t.Run("should capture stdout", func(t *testing.T) {
		res, err := Exec{}.Run(ctx, "sh", "-c", "echo hello")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", res.Stdout)
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("should report exit code and stderr tail", func(t *testing.T) {
		res, err := Exec{}.Run(ctx, "sh", "-c", "echo starting; echo 'RuntimeError: CUDA out of memory' 1>&2; exit 3")
		require.Error(t, err)
		assert.Equal(t, 3, res.ExitCode)
		var cerr *Error
		require.True(t, errors.As(err, &cerr))
		assert.Contains(t, err.Error(), "CUDA out of memory")
		assert.Contains(t, err.Error(), "exited 3")
	})

	t.Run("should pass extra environment", func(t *testing.T) {
		res, err := Exec{Env: []string{"VIDSCRIBE_TEST=42"}}.Run(ctx, "sh", "-c", "echo $VIDSCRIBE_TEST")
		require.NoError(t, err)
		assert.Equal(t, "42\n", res.Stdout)
	})
}

func TestTail(t *testing.T) {
	assert.Equal(t, "b | c", Tail("a\n\nb\nc\n", 2))
	assert.Equal(t, "", Tail("  \n", 3))
	assert.Equal(t, "only", Tail("only", 5))
}
