package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifica falhas do núcleo; a camada HTTP traduz cada Kind num status
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidState        Kind = "invalid_state"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
)

// Error é o erro tipado devolvido por todas as operações do núcleo
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is casa pelo Kind, assim errors.Is(err, ErrNotFound) funciona para qualquer not_found
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// Sentinelas por Kind (Msg vazia casa qualquer erro do mesmo Kind)
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInsufficientCredits = &Error{Kind: KindInsufficientCredits}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrConflict            = &Error{Kind: KindConflict}

	// ErrNoCreditsInGroup: débito contra um ledger inexistente (usuário nunca foi semeado no grupo)
	ErrNoCreditsInGroup = &Error{Kind: KindNotFound, Msg: "no credits in group"}
)

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// ConflictWrap mantém a causa original (ex: *pq.Error) acessível via errors.As
func ConflictWrap(err error, format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...), Err: err}
}

// InsufficientCredits monta a mensagem exibida ao usuário com o valor exigido e o que falta
func InsufficientCredits(available, required decimal.Decimal) error {
	short := required.Sub(available)
	return &Error{
		Kind: KindInsufficientCredits,
		Msg: fmt.Sprintf("insufficient credits: need %s more (required %s, available %s)",
			short.StringFixed(2), required.StringFixed(2), available.StringFixed(2)),
	}
}

// KindOf devolve o Kind de um erro do núcleo, ou "" para erros de infraestrutura
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
