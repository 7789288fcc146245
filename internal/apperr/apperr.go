package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind классифицирует ошибку для ответа API.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindProviderAuth        Kind = "ProviderAuthError"
	KindProviderTimeout     Kind = "ProviderTimeout"
	KindProviderUnavailable Kind = "ProviderUnavailable"
	KindParse               Kind = "ParseError"
	KindInternal            Kind = "InternalError"
)

// Error несёт вид ошибки, операцию и детали для клиента.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	Details    []string
	RetryAfter time.Duration
	// Permanent помечает ошибки, которые бессмысленно повторять.
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку заданного вида.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap оборачивает err; если err уже *Error, вид сохраняется.
func Wrap(kind Kind, op string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Op: op, Message: ae.Message, Details: ae.Details, RetryAfter: ae.RetryAfter, Permanent: ae.Permanent, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

func Internal(op, format string, args ...any) *Error {
	return New(KindInternal, op, fmt.Sprintf(format, args...))
}

// KindOf возвращает вид ошибки; неклассифицированные считаются InternalError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is сообщает, относится ли err к виду kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailsOf возвращает детали из первой *Error в цепочке.
func DetailsOf(err error) []string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Details
	}
	return nil
}

// RetryAfterOf возвращает подсказку провайдера о паузе перед повтором.
func RetryAfterOf(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}

// MessageOf возвращает сообщение для клиента без внутренних подробностей.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Kind == KindInternal {
			return "internal error"
		}
		if ae.Err != nil {
			return ae.Err.Error()
		}
		return string(ae.Kind)
	}
	return "internal error"
}

// Retryable сообщает, имеет ли смысл повторить вызов провайдера.
// Повторяются только временные сбои: сеть, 5xx, rate limit.
func Retryable(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return ae.Kind == KindProviderUnavailable && !ae.Permanent
}

// HTTPStatus переводит вид ошибки в HTTP-статус.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindProviderAuth, KindParse:
		return http.StatusBadGateway
	case KindProviderTimeout:
		return http.StatusGatewayTimeout
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromTransport классифицирует ошибку сетевого вызова провайдера.
// Ошибки, уже имеющие вид, проходят без изменений.
func FromTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindProviderTimeout, Op: op, Message: "provider call timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindProviderUnavailable, Op: op, Message: "provider call canceled", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindProviderTimeout, Op: op, Message: "provider call timed out", Err: err}
	}
	return &Error{Kind: KindProviderUnavailable, Op: op, Message: "provider unreachable", Err: err}
}

// FromStatus классифицирует неуспешный HTTP-ответ провайдера.
func FromStatus(op string, status int, body string, retryAfter time.Duration) error {
	snippet := body
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	cause := fmt.Errorf("status %d: %s", status, snippet)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindProviderAuth, Op: op, Message: "provider rejected credentials", Err: cause}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindProviderUnavailable, Op: op, Message: "provider rate limit exceeded", RetryAfter: retryAfter, Err: cause}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &Error{Kind: KindProviderTimeout, Op: op, Message: "provider timed out", Err: cause}
	case status >= 500:
		return &Error{Kind: KindProviderUnavailable, Op: op, Message: "provider unavailable", RetryAfter: retryAfter, Err: cause}
	default:
		return &Error{Kind: KindProviderUnavailable, Op: op, Message: fmt.Sprintf("provider returned status %d", status), Permanent: true, Err: cause}
	}
}
