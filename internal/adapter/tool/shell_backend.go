package tool

import (
	"context"

	"aihub/internal/domain"
)

// CommandBackend runs one command line in a working directory. A command
// that fails or times out is reported through the result, not the error.
type CommandBackend interface {
	Run(ctx context.Context, command, workDir string) (domain.CommandResult, error)
	Name() string
}
