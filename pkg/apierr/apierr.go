// Package apierr defines the gateway's error taxonomy and maps each kind to
// an HTTP status and a JSON error body.
package apierr

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
)

// Kind identifies one of the gateway's typed failure modes.
type Kind int

const (
	KindProviderNotFound Kind = iota
	KindModelNotFound
	KindAutoModelNotSupported
	KindInvalidSchema
	KindRateLimited
	KindOutputValidation
	KindTimeout
	KindProviderExecution
	KindOutputParse
)

// Error is the typed error returned by the admission/dispatch pipeline. The
// handler maps it to an HTTP response; nothing else in the gateway inspects
// Kind directly.
type Error struct {
	Kind    Kind
	Message string

	// Stderr carries provider stderr (ProviderExecution), raw stdout
	// (OutputParse), or the offending output rendered as a string
	// (OutputValidation). Empty for the other kinds.
	Stderr string
}

func (e *Error) Error() string { return e.Message }

// HTTPStatus returns the status code this error kind maps to, per the table
// in the specification's error handling section.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindProviderNotFound, KindModelNotFound, KindAutoModelNotSupported, KindInvalidSchema:
		return fasthttp.StatusBadRequest
	case KindRateLimited:
		return fasthttp.StatusTooManyRequests
	case KindOutputValidation:
		return fasthttp.StatusUnprocessableEntity
	case KindTimeout:
		return fasthttp.StatusGatewayTimeout
	case KindProviderExecution, KindOutputParse:
		return fasthttp.StatusInternalServerError
	default:
		return fasthttp.StatusInternalServerError
	}
}

func ProviderNotFound(provider string) *Error {
	return &Error{Kind: KindProviderNotFound, Message: fmt.Sprintf("provider not found: %s", provider)}
}

func ModelNotFound(provider, model string) *Error {
	return &Error{Kind: KindModelNotFound, Message: fmt.Sprintf("model %q not found for provider %q", model, provider)}
}

func AutoModelNotSupported(provider string) *Error {
	return &Error{Kind: KindAutoModelNotSupported, Message: fmt.Sprintf("provider %q does not support auto model selection", provider)}
}

func InvalidSchema(reason string) *Error {
	return &Error{Kind: KindInvalidSchema, Message: fmt.Sprintf("invalid schema: %s", reason)}
}

func RateLimited(provider, model string) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf("rate limited: %s/%s", provider, model)}
}

func OutputValidation(errs []string, output json.RawMessage) *Error {
	return &Error{
		Kind:    KindOutputValidation,
		Message: fmt.Sprintf("output validation failed: %v", errs),
		Stderr:  string(output),
	}
}

func Timeout(provider string, timeoutSecs uint64) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out after %ds", provider, timeoutSecs)}
}

func ProviderExecution(message, stderr string) *Error {
	return &Error{Kind: KindProviderExecution, Message: message, Stderr: stderr}
}

func OutputParse(message, stdout string) *Error {
	return &Error{Kind: KindOutputParse, Message: message, Stderr: stdout}
}

// body is the wire shape of an error response: {"error": "...", "stderr": "..."}.
type body struct {
	Error  string `json:"error"`
	Stderr string `json:"stderr,omitempty"`
}

// Write serializes err as the gateway's JSON error envelope and sets the
// matching HTTP status on ctx.
func Write(ctx *fasthttp.RequestCtx, err *Error) {
	ctx.SetStatusCode(err.HTTPStatus())
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(body{Error: err.Message, Stderr: err.Stderr})
	ctx.SetBody(data)
}
