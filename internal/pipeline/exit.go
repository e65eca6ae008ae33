package pipeline

import (
	rderrors "github.com/NicabarNimble/go-repodocs/internal/errors"
	"github.com/NicabarNimble/go-repodocs/internal/report"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitWarnings       = 2
	ExitNotFound       = 3
	ExitAuthentication = 4
	ExitNetwork        = 5
	ExitNoDocuments    = 6
	ExitPermission     = 7
	ExitOutputExists   = 8
	ExitTimeout        = 9
	ExitInvalidInput   = 10
	ExitPathValidation = 11
	ExitCancelled      = 130
)

var exitCodes = map[rderrors.Kind]int{
	rderrors.KindNotFound:         ExitNotFound,
	rderrors.KindAuthentication:   ExitAuthentication,
	rderrors.KindNetwork:          ExitNetwork,
	rderrors.KindTransport:        ExitNetwork,
	rderrors.KindNoDocuments:      ExitNoDocuments,
	rderrors.KindPermissionDenied: ExitPermission,
	rderrors.KindOutputExists:     ExitOutputExists,
	rderrors.KindTimeout:          ExitTimeout,
	rderrors.KindInvalidInput:     ExitInvalidInput,
	rderrors.KindConfig:           ExitInvalidInput,
	rderrors.KindPathValidation:   ExitPathValidation,
	rderrors.KindCancelled:        ExitCancelled,
}

// ExitCode maps a run's outcome to a process exit code. A successful run
// whose report lists copy failures exits with ExitWarnings.
func ExitCode(err error, r *report.Report) int {
	if err != nil {
		if code, ok := exitCodes[rderrors.KindOf(err)]; ok {
			return code
		}
		return ExitFailure
	}
	if r != nil && r.HasErrors() {
		return ExitWarnings
	}
	return ExitOK
}
