package output

import (
	"time"

	"github.com/edouardp/ApiTest/packages/core/runner"
)

// Formatter receives run results as files finish.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable formatters buffer results and write once at the end of a run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}
