package apperr

import (
	"errors"
	"fmt"
)

// Kind - 사용자에게 노출되는 에러 분류
type Kind string

const (
	KindValidation  Kind = "validation"
	KindEmptyResult Kind = "empty_result"
	KindService     Kind = "service"
	KindTranslation Kind = "translation"
	KindIO          Kind = "io"
	KindUnknown     Kind = "unknown"
)

// UnknownMessage - 분류되지 않은 에러의 기본 메시지
const UnknownMessage = "Ocorreu um erro desconhecido."

// Error - Message 는 그대로 세션 lastError 로 노출됨
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is - 메시지가 없는 sentinel 과는 Kind 만 비교
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrEmptyResult = &Error{Kind: KindEmptyResult}
	ErrService     = &Error{Kind: KindService}
	ErrTranslation = &Error{Kind: KindTranslation}
	ErrIO          = &Error{Kind: KindIO}
)

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func EmptyResult(message string) *Error {
	return &Error{Kind: KindEmptyResult, Message: message}
}

func Service(message string, err error) *Error {
	return &Error{Kind: KindService, Message: message, Err: err}
}

func Translation(message string, err error) *Error {
	return &Error{Kind: KindTranslation, Message: message, Err: err}
}

func IO(message string, err error) *Error {
	return &Error{Kind: KindIO, Message: message, Err: err}
}

// KindOf - 체인에서 첫 번째 *Error 의 Kind
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// UserMessage - 사용자 노출용 메시지 (원인 에러는 포함하지 않음)
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return UnknownMessage
}
