package cmd

import (
	"errors"

	"github.com/gobeyondidentity/ipclink/pkg/clierror"
	"github.com/gobeyondidentity/ipclink/pkg/protocol"
)

// asCLIError maps link errors onto structured CLI errors.
func asCLIError(err error) *clierror.CLIError {
	var ce *clierror.CLIError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		return clierror.RequestTimeout(err.Error())
	case errors.Is(err, protocol.ErrLinkBroken), errors.Is(err, protocol.ErrClosed):
		return clierror.LinkBroken()
	case errors.Is(err, protocol.ErrRejected):
		return clierror.RequestRejected(err.Error())
	case errors.Is(err, protocol.ErrRingFull):
		return clierror.RingFull()
	case errors.Is(err, protocol.ErrAllocation):
		return clierror.AllocationFailed(err)
	default:
		return clierror.InternalError(err)
	}
}

// ExitCode returns the process exit status for err.
func ExitCode(err error) int {
	if err == nil {
		return clierror.ExitSuccess
	}
	return asCLIError(err).ExitCode
}
