// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mia-platform/logkit/internal/audit"
	"github.com/mia-platform/logkit/internal/security"
	"github.com/mia-platform/logkit/internal/server"
)

const (
	stdinArg = "-"

	signPath     = "/soap/sign"
	validatePath = "/soap/validate"

	signActivity     = "sign message"
	validateActivity = "validate message"
)

var (
	errEmptyInput = errors.New("empty SOAP envelope")

	// defaultServerGetter returns the HTTP server used by the serve command.
	defaultServerGetter = server.NewServer
)

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, security.ErrConfigNotValid):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// unwrappedError returns the unwrapped error if available, otherwise it returns the original error.
func unwrappedError(err error) error {
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		return unwrapped
	}

	return err
}

// readEnvelope reads the envelope from path, or from stdin when path is "-".
func readEnvelope(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == stdinArg {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("envelope file %q: %w", path, unwrappedError(err))
	}

	if len(data) == 0 {
		return nil, errEmptyInput
	}
	return data, nil
}

// auditMeta returns the audit metadata of the security operations.
func auditMeta(activity string) audit.Auditable {
	return audit.Auditable{
		Event:    audit.EventSecurity,
		Activity: activity,
	}
}
