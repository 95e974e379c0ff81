package camera

import (
	"context"
	"os/exec"
)

// Runner executes an external capture tool and returns its combined output.
// The capture tools write diagnostics to both streams, so they are checked
// merged. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the real thing: os/exec with the given context, so a
// cancelled capture kills the tool.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
