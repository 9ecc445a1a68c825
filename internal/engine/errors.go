package engine

import (
	"errors"
	"fmt"
)

// Kind agrupa os códigos de erro pela natureza da falha.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindConstraint    Kind = "constraint"
	KindArithmetic    Kind = "arithmetic"
	KindNotFound      Kind = "not_found"
)

// Code identifica a regra violada.
type Code string

const (
	CodeFeeTooHigh          Code = "FeeTooHigh"
	CodeTitleTooLong        Code = "TitleTooLong"
	CodeTitleRequired       Code = "TitleRequired"
	CodeInvalidTitle        Code = "InvalidTitle"
	CodeEndTimeInPast       Code = "EndTimeInPast"
	CodeInvalidDeadline     Code = "InvalidDeadline"
	CodeInvalidAmount       Code = "InvalidAmount"
	CodeInvalidSide         Code = "InvalidSide"
	CodeInvalidState        Code = "InvalidState"
	CodeBettingClosed       Code = "BettingClosed"
	CodeBettingStillOpen    Code = "BettingStillOpen"
	CodeAlreadyClosed       Code = "AlreadyClosed"
	CodeDeadlinePassed      Code = "DeadlinePassed"
	CodeDeadlineNotReached  Code = "DeadlineNotReached"
	CodeUnauthorized        Code = "Unauthorized"
	CodeOpposingSide        Code = "OpposingSideNotAllowed"
	CodeAlreadyClaimed      Code = "AlreadyClaimed"
	CodeFeeAlreadyWithdrawn Code = "FeeAlreadyWithdrawn"
	CodeInsufficientFunds   Code = "InsufficientFunds"
	CodeOverflow            Code = "ArithmeticOverflow"
	CodeUnderflow           Code = "ArithmeticUnderflow"
	CodeMarketNotFound      Code = "MarketNotFound"
	CodePositionNotFound    Code = "PositionNotFound"
	CodeAccountNotFound     Code = "TokenAccountNotFound"
)

// Kind de cada código. Código desconhecido devolve "".
func (c Code) Kind() Kind {
	switch c {
	case CodeFeeTooHigh, CodeTitleTooLong, CodeTitleRequired, CodeInvalidTitle, CodeEndTimeInPast,
		CodeInvalidDeadline, CodeInvalidAmount, CodeInvalidSide:
		return KindValidation
	case CodeInvalidState, CodeBettingClosed, CodeBettingStillOpen, CodeAlreadyClosed,
		CodeDeadlinePassed, CodeDeadlineNotReached:
		return KindState
	case CodeUnauthorized:
		return KindAuthorization
	case CodeOpposingSide, CodeAlreadyClaimed, CodeFeeAlreadyWithdrawn, CodeInsufficientFunds:
		return KindConstraint
	case CodeOverflow, CodeUnderflow:
		return KindArithmetic
	case CodeMarketNotFound, CodePositionNotFound, CodeAccountNotFound:
		return KindNotFound
	default:
		return ""
	}
}

// Entidades citadas nos erros.
const (
	EntityMarket       = "market"
	EntityPosition     = "position"
	EntityVault        = "vault"
	EntityTokenAccount = "token_account"
)

// Error é o erro tipado devolvido por toda operação do motor.
type Error struct {
	Code   Code
	Entity string
	Detail string
}

func (e *Error) Kind() Kind { return e.Code.Kind() }

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error %s", e.Kind(), e.Code)
	if e.Entity != "" {
		msg += " on " + e.Entity
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is compara só o código, para que errors.Is(err, ErrAlreadyClaimed) funcione com qualquer detalhe.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinelas para errors.Is.
var (
	ErrFeeTooHigh          = &Error{Code: CodeFeeTooHigh}
	ErrTitleTooLong        = &Error{Code: CodeTitleTooLong}
	ErrTitleRequired       = &Error{Code: CodeTitleRequired}
	ErrInvalidTitle        = &Error{Code: CodeInvalidTitle}
	ErrEndTimeInPast       = &Error{Code: CodeEndTimeInPast}
	ErrInvalidDeadline     = &Error{Code: CodeInvalidDeadline}
	ErrInvalidAmount       = &Error{Code: CodeInvalidAmount}
	ErrInvalidSide         = &Error{Code: CodeInvalidSide}
	ErrInvalidState        = &Error{Code: CodeInvalidState}
	ErrBettingClosed       = &Error{Code: CodeBettingClosed}
	ErrBettingStillOpen    = &Error{Code: CodeBettingStillOpen}
	ErrAlreadyClosed       = &Error{Code: CodeAlreadyClosed}
	ErrDeadlinePassed      = &Error{Code: CodeDeadlinePassed}
	ErrDeadlineNotReached  = &Error{Code: CodeDeadlineNotReached}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrOpposingSide        = &Error{Code: CodeOpposingSide}
	ErrAlreadyClaimed      = &Error{Code: CodeAlreadyClaimed}
	ErrFeeAlreadyWithdrawn = &Error{Code: CodeFeeAlreadyWithdrawn}
	ErrInsufficientFunds   = &Error{Code: CodeInsufficientFunds}
	ErrOverflow            = &Error{Code: CodeOverflow}
	ErrUnderflow           = &Error{Code: CodeUnderflow}
	ErrMarketNotFound      = &Error{Code: CodeMarketNotFound}
	ErrPositionNotFound    = &Error{Code: CodePositionNotFound}
	ErrAccountNotFound     = &Error{Code: CodeAccountNotFound}
)

// Fail monta um Error com entidade e detalhe formatado.
func Fail(code Code, entity, format string, args ...any) *Error {
	return &Error{Code: code, Entity: entity, Detail: fmt.Sprintf(format, args...)}
}

// KindOf devolve o Kind de um erro do motor em qualquer ponto da cadeia, ou "" se não houver.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return ""
}

// CodeOf devolve o Code de um erro do motor em qualquer ponto da cadeia, ou "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
