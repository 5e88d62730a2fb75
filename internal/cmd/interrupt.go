// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	stderrors "errors"

	"github.com/retreadlabs/retread/internal/errors"
)

const InterruptExitCode = 130

func IsInterrupted(err error) bool {
	return stderrors.Is(err, errors.ErrInterrupted)
}

func IsCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled)
}
