// Package logging constructs the ectologger instance used by the service.
package logging

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
)

// New builds a logger that emits one JSON object per log message to stdout.
func New() ectologger.Logger {
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		b, err := json.Marshal(msg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to marshal log message:", err)
			return
		}
		fmt.Fprintln(os.Stdout, string(b))
	})
}

// NewNoop builds a logger that discards everything. Used by tests.
func NewNoop() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
