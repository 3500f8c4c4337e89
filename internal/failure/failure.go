// Package failure defines the single error type used across the regression
// engine. Every failure carries exactly one Kind, and each producing operation
// has its own constructor so callers never coerce foreign errors implicitly.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure
type Kind int

const (
	KindManifest Kind = iota + 1
	KindVersionParse
	KindToml
	KindIO
	KindNetwork
	KindHTTPStatus
	KindUTF8
	KindJSON
	KindRecv
	KindNoVersions
	KindProcess
)

var kindNames = map[Kind]string{
	KindManifest:     "manifest",
	KindVersionParse: "version parse",
	KindToml:         "toml parse",
	KindIO:           "io",
	KindNetwork:      "network",
	KindHTTPStatus:   "http status",
	KindUTF8:         "utf-8",
	KindJSON:         "json decode",
	KindRecv:         "worker receive",
	KindNoVersions:   "no crate versions",
	KindProcess:      "process",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a failure of one operation.
type Error struct {
	Kind   Kind
	Op     string // what was being attempted, e.g. a URL or a path
	Detail string // extra context such as a status code or captured stderr
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinels like ErrNoVersions match any error of
// the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNoVersions = &Error{Kind: KindNoVersions}
	ErrRecv       = &Error{Kind: KindRecv}
	ErrProcess    = &Error{Kind: KindProcess}
)

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Manifest reports a manifest that could not be read or lacks [package].name.
func Manifest(path string, err error) *Error {
	if err == nil {
		return &Error{Kind: KindManifest, Op: path, Detail: "missing [package].name"}
	}
	return &Error{Kind: KindManifest, Op: path, Err: err}
}

// VersionParse reports an unparsable version string.
func VersionParse(version string) *Error {
	return &Error{Kind: KindVersionParse, Op: version}
}

// Toml reports a TOML document that failed to parse.
func Toml(path string, err error) *Error {
	return &Error{Kind: KindToml, Op: path, Err: err}
}

// IO reports a filesystem or process-start failure.
func IO(op string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// Network reports a transport failure talking to the registry.
func Network(url string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: url, Err: err}
}

// HTTPStatus reports a non-success response; body is truncated.
func HTTPStatus(url string, code int, body []byte) *Error {
	const maxBody = 512
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > maxBody {
		excerpt = excerpt[:maxBody] + "..."
	}
	detail := fmt.Sprintf("status %d", code)
	if excerpt != "" {
		detail += " " + excerpt
	}
	return &Error{Kind: KindHTTPStatus, Op: url, Detail: detail}
}

// UTF8 reports bytes that were expected to be UTF-8 text.
func UTF8(op string) *Error {
	return &Error{Kind: KindUTF8, Op: op, Detail: "invalid utf-8"}
}

// JSON reports a response body that failed to decode.
func JSON(op string, err error) *Error {
	return &Error{Kind: KindJSON, Op: op, Err: err}
}

// Recv reports a unit of work that ended without delivering a result.
func Recv(name string, cause any) *Error {
	detail := "worker exited without a result"
	if cause != nil {
		detail = fmt.Sprintf("worker panicked: %v", cause)
	}
	return &Error{Kind: KindRecv, Op: name, Detail: detail}
}

// NoVersions reports a crate with no parsable versions.
func NoVersions(name string) *Error {
	return &Error{Kind: KindNoVersions, Op: name}
}

// Process reports an external tool that exited non-zero.
func Process(op string, stderr string) *Error {
	return &Error{Kind: KindProcess, Op: op, Detail: strings.TrimSpace(stderr)}
}
