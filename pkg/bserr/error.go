// Package bserr implements the tagged error model shared across the
// tree kernel: a {category, code, message} triple, a distinguished ok
// value, and a scope-safe evaluator that
// turns panics inside actor jobs into ordinary errors instead of
// killing the actor goroutine.
package bserr

import "fmt"

// Category groups related error Codes into a generic/kernel/tree/runtime
// split.
type Category string

const (
	CategoryGeneric Category = "generic"
	CategoryKernel  Category = "kernel"
	CategoryTree    Category = "tree"
	CategoryRuntime Category = "runtime"
)

// Code enumerates the non-exhaustive error taxonomy used across the
// tree kernel, the archive, and the kernel lifecycle.
type Code int

const (
	CodeOK Code = iota
	CodeEmptyData
	CodeEmptyPath
	CodePathNotExists
	CodePathNotDirectory
	CodeCantReadFile
	CodeCantWriteFile
	CodeMissingFormatter
	CodeEmptyInode
	CodeLinkExpired
	CodeLinkBadPath
	CodeNotANode
	CodeNodeWasntStarted
	CodeWrongOrderSize
	CodeKeyMismatch
	CodeUnexpectedObjectType
	CodeBadObject
	CodeTrEmptyTarget
	CodeCantLoadDLL
	CodeCantUnloadDLL
	CodeCantRegisterType
	CodeTimeout
	CodeNotFound
	CodeInternal
)

var codeNames = map[Code]string{
	CodeOK:                   "ok",
	CodeEmptyData:            "empty_data",
	CodeEmptyPath:            "empty_path",
	CodePathNotExists:        "path_not_exists",
	CodePathNotDirectory:     "path_not_directory",
	CodeCantReadFile:         "cant_read_file",
	CodeCantWriteFile:        "cant_write_file",
	CodeMissingFormatter:     "missing_formatter",
	CodeEmptyInode:           "empty_inode",
	CodeLinkExpired:          "link_expired",
	CodeLinkBadPath:          "link_bad_path",
	CodeNotANode:             "not_a_node",
	CodeNodeWasntStarted:     "node_wasnt_started",
	CodeWrongOrderSize:       "wrong_order_size",
	CodeKeyMismatch:          "key_mismatch",
	CodeUnexpectedObjectType: "unexpected_object_type",
	CodeBadObject:            "bad_object",
	CodeTrEmptyTarget:        "tr_empty_target",
	CodeCantLoadDLL:          "cant_load_dll",
	CodeCantUnloadDLL:        "cant_unload_dll",
	CodeCantRegisterType:     "cant_register_type",
	CodeTimeout:              "timeout",
	CodeNotFound:             "not_found",
	CodeInternal:             "internal",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "unknown"
}

// categoryFor gives each code a home category; kept as a lookup table
// rather than per-constructor arguments so call sites stay terse.
var categoryFor = map[Code]Category{
	CodeLinkExpired:      CategoryTree,
	CodeLinkBadPath:      CategoryTree,
	CodeNotANode:         CategoryTree,
	CodeNodeWasntStarted: CategoryTree,
	CodeWrongOrderSize:   CategoryTree,
	CodeKeyMismatch:      CategoryTree,
	CodeCantLoadDLL:      CategoryKernel,
	CodeCantUnloadDLL:    CategoryKernel,
	CodeCantRegisterType: CategoryKernel,
	CodeTimeout:          CategoryRuntime,
}

func categoryForCode(c Code) Category {
	if cat, ok := categoryFor[c]; ok {
		return cat
	}
	return CategoryGeneric
}

// Error is the kernel's tagged error type: a category, a code, and an
// optional human message. A Quiet error is an expected condition that
// should not be logged (e.g. a cache miss the caller already handles).
type Error struct {
	Category Category
	Code     Code
	Message  string
	Quiet    bool
	cause    error
}

// OK is the distinguished success value: Code == CodeOK, Error()
// returns "".
var OK = Error{Category: CategoryGeneric, Code: CodeOK}

// New builds an Error from an enum Code, using the code's name as the
// message.
func New(code Code) *Error {
	return &Error{Category: categoryForCode(code), Code: code, Message: code.String()}
}

// Newf builds an Error from a code plus a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Category: categoryForCode(code), Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to an underlying error, preserving it for errors.Unwrap.
func Wrap(code Code, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Category: categoryForCode(code), Code: code, Message: cause.Error(), cause: cause}
}

// MarkQuiet marks e as an expected condition that should not be logged.
func (e *Error) MarkQuiet() *Error {
	e.Quiet = true
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("%s/%s", e.Category, e.Code)
	}
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is(err, bserr.New(CodeXxx)) match on Code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsOK reports whether e represents the distinguished success value
// (nil also counts as success).
func IsOK(e error) bool {
	if e == nil {
		return true
	}
	te, ok := e.(*Error)
	return ok && te.Code == CodeOK
}
