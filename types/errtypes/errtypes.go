// Package errtypes contains custom error types
package errtypes

import (
	"fmt"
	"strings"
)

const (
	MissingFileErrMsg     = "no such file"
	MalformedLineErrMsg   = "line produced no symbols"
	ShapeMismatchErrMsg   = "shape mismatch"
	DictionaryLoadErrMsg  = "invalid dictionary"
	DuplicateSymbolErrMsg = "duplicate symbol"
	MissingTensorErrMsg   = "tensor not found"
	MisalignedLangErrMsg  = "language tags are misaligned"
	CheckpointLoadErrMsg  = "invalid checkpoint"
)

// MissingFileError is returned when a glob matches nothing or a required path is absent.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s: %q", MissingFileErrMsg, e.Path)
}

// MalformedLineError is returned in strict mode when a non-blank line tokenizes to nothing.
type MalformedLineError struct {
	Path string
	Line int
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, MalformedLineErrMsg)
}

type ShapeMismatchError struct {
	Tensor string
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s for tensor %q: %s", ShapeMismatchErrMsg, e.Tensor, e.Reason)
}

type DictionaryLoadError struct {
	Path   string
	Line   int
	Reason string
}

func (e *DictionaryLoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s %q at line %d: %s", DictionaryLoadErrMsg, e.Path, e.Line, e.Reason)
	}

	return fmt.Sprintf("%s %q: %s", DictionaryLoadErrMsg, e.Path, e.Reason)
}

type DuplicateSymbolError struct {
	Symbol string
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("%s %q", DuplicateSymbolErrMsg, strings.TrimSpace(e.Symbol))
}

type MissingTensorError struct {
	Name string
}

func (e *MissingTensorError) Error() string {
	return fmt.Sprintf("%s: %q", MissingTensorErrMsg, e.Name)
}

// MisalignedLanguageError reports a language tag or mask symbol that is
// missing from the tail of either dictionary or does not map across.
type MisalignedLanguageError struct {
	Symbol string
	Index  int
}

func (e *MisalignedLanguageError) Error() string {
	return fmt.Sprintf("%s: %q at index %d has no counterpart", MisalignedLangErrMsg, e.Symbol, e.Index)
}

type CheckpointLoadError struct {
	Path   string
	Reason string
}

func (e *CheckpointLoadError) Error() string {
	return fmt.Sprintf("%s %q: %s", CheckpointLoadErrMsg, e.Path, e.Reason)
}
