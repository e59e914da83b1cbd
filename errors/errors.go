// Package errors provides the typed error kinds surfaced over the wire by
// the media server, plus HTTP helpers for writing them consistently.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/capsoftware/cap-media-server/log"
	"github.com/xeipuuv/gojsonschema"
)

// Kind identifies one of the wire-level error categories from the error
// handling design. Each kind maps to exactly one HTTP status.
type Kind string

const (
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindNoAudioTrack      Kind = "NO_AUDIO_TRACK"
	KindNoVideoStream     Kind = "NO_VIDEO_STREAM"
	KindServerBusy        Kind = "SERVER_BUSY"
	KindTimeout           Kind = "TIMEOUT"
	KindFFprobeError      Kind = "FFPROBE_ERROR"
	KindFFmpegError       Kind = "FFMPEG_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidState      Kind = "INVALID_STATE"
	KindUnsupportedConfig Kind = "UNSUPPORTED_CONFIG"
	KindUploadFailed      Kind = "UPLOAD_FAILED"
	KindAudioTooLarge     Kind = "AUDIO_TOO_LARGE"
	KindProgressStalled   Kind = "PROGRESS_STALLED"
)

// statusByKind is the single kind -> HTTP status mapping referenced by every
// handler, per spec §7. The teacher's writeHttpError hardcodes one status
// per call site; this generalizes it since the same kinds recur across many
// handlers here.
var statusByKind = map[Kind]int{
	KindInvalidRequest:    http.StatusBadRequest,
	KindNoAudioTrack:      http.StatusUnprocessableEntity,
	KindNoVideoStream:     http.StatusInternalServerError,
	KindServerBusy:        http.StatusServiceUnavailable,
	KindTimeout:           http.StatusGatewayTimeout,
	KindFFprobeError:      http.StatusInternalServerError,
	KindFFmpegError:       http.StatusInternalServerError,
	KindNotFound:          http.StatusNotFound,
	KindInvalidState:      http.StatusBadRequest,
	KindUnsupportedConfig: http.StatusBadRequest,
	KindUploadFailed:      http.StatusInternalServerError,
	KindAudioTooLarge:     http.StatusInternalServerError,
	KindProgressStalled:   http.StatusGatewayTimeout,
}

// HTTPStatus returns the status code for a kind, defaulting to 500 for any
// kind not in the table (there should be none).
func (k Kind) HTTPStatus() int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the typed error carried through job and handler code. Details
// carries a bounded tail of subprocess stderr for FFPROBE_ERROR/FFMPEG_ERROR,
// per spec §7.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message, Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func WithDetails(kind Kind, message, details string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WriteHTTP writes the JSON error envelope {error, code, details} and sets
// the status matching err.Kind, grounded on writeHttpError's envelope shape.
func WriteHTTP(w http.ResponseWriter, requestID string, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Kind.HTTPStatus())
	if encErr := json.NewEncoder(w).Encode(map[string]string{
		"error":   err.Message,
		"code":    string(err.Kind),
		"details": err.Details,
	}); encErr != nil {
		log.LogNoRequestID("error writing HTTP error response", "http_error_msg", err.Message, "err", encErr)
	}
}

// WriteHTTPBadBodySchema formats gojsonschema validation errors into a single
// INVALID_REQUEST response, grounded on handlers/json_schema.go's validation
// flow and errors.go's WriteHTTPBadBodySchema message format.
func WriteHTTPBadBodySchema(w http.ResponseWriter, requestID, where string, schemaErrors []gojsonschema.ResultError) {
	sb := strings.Builder{}
	sb.WriteString("body validation error in ")
	sb.WriteString(where)
	sb.WriteString(": ")
	for i, e := range schemaErrors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(e.String())
	}
	WriteHTTP(w, requestID, New(KindInvalidRequest, sb.String()))
}

// BoundedTail truncates s to at most n bytes, keeping the tail, matching the
// "clipped details string" requirement from spec §4.9/§7.
func BoundedTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
