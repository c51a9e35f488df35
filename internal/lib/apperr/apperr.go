// Package apperr описывает классы ошибок бизнес-логики.
//
// Сервисы возвращают *Error с видом ошибки и сообщением для клиента,
// транспорт сопоставляет вид с HTTP-статусом.
package apperr

import (
	"errors"
)

// Kind вид ошибки.
type Kind int

const (
	// Unexpected внутренний сбой, детали клиенту не показываются.
	Unexpected Kind = iota
	// Validation некорректный или неполный ввод.
	Validation
	// Authentication неверные учётные данные, сессия или токен сброса.
	Authentication
	// NotFound запрошенный пользователь отсутствует.
	NotFound
	// Upstream сбой внешнего сервиса (медиа, почта).
	Upstream
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case NotFound:
		return "not_found"
	case Upstream:
		return "upstream"
	default:
		return "unexpected"
	}
}

var (
	// ErrInvalidCredentials неизвестный email и неверный пароль неразличимы.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidResetToken неизвестный и истёкший токен сброса неразличимы.
	ErrInvalidResetToken = errors.New("invalid reset token")
)

// Error ошибка приложения с видом и сообщением для клиента.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку указанного вида.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string) *Error {
	return New(Validation, message, nil)
}

func NewAuthentication(message string, err error) *Error {
	return New(Authentication, message, err)
}

func NewNotFound(message string, err error) *Error {
	return New(NotFound, message, err)
}

func NewUpstream(message string, err error) *Error {
	return New(Upstream, message, err)
}

func NewUnexpected(message string, err error) *Error {
	return New(Unexpected, message, err)
}

// KindOf возвращает вид ошибки; для посторонних ошибок Unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// MessageOf возвращает сообщение для клиента, если err имеет тип *Error.
func MessageOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, true
	}
	return "", false
}
