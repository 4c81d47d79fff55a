// SPDX-License-Identifier: MIT
package fourier

import "errors"

var (
	ErrInvalidSampleRate = errors.New("fourier: sample rate must be positive")
	ErrInvalidPeriod     = errors.New("fourier: window period out of range")
	ErrWindowTooSmall    = errors.New("fourier: window must hold at least two samples")
	ErrUnknownWindow     = errors.New("fourier: unknown window function")
	ErrUnknownInterp     = errors.New("fourier: unknown interpolation")
)
