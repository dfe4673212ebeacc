// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"errors"
	"fmt"
	"strings"
)

// Format selects the module system of the emitted program.
type Format string

const (
	// FormatCJS emits a CommonJS program assigning module.exports.
	FormatCJS Format = "cjs"
	// FormatESM emits an ES module using top-level await.
	FormatESM Format = "esm"
)

// ErrInvalidFormat is the sentinel matched by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid output format")

// InvalidFormatError reports an unknown format name.
type InvalidFormatError struct {
	Value string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid output format %q (valid: cjs, esm)", e.Value)
}

func (e *InvalidFormatError) Unwrap() error {
	return ErrInvalidFormat
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCJS, FormatESM:
		return f, nil
	}
	return "", &InvalidFormatError{Value: s}
}

// Validate returns an error when f is not a known format.
func (f Format) Validate() error {
	if f != FormatCJS && f != FormatESM {
		return &InvalidFormatError{Value: string(f)}
	}
	return nil
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return string(f)
}

// IsAsync reports whether module factories run asynchronously.
func (f Format) IsAsync() bool {
	return f == FormatESM
}
