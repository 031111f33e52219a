package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind - класс ошибки для политики обработки
type Kind string

const (
	// KindConfig - ошибка конфигурации: прогон индикатора прерывается до вычислений
	KindConfig Kind = "config"
	// KindData - ошибка входных данных
	KindData Kind = "data"
	// KindNotFound - запрошенный ресурс отсутствует
	KindNotFound Kind = "not_found"
	// KindInternal - внутренняя ошибка (БД, кеш, ввод-вывод)
	KindInternal Kind = "internal"
)

type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Kind       Kind                   `json:"-"`
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с обернутыми копиями
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, statusCode int, kind Kind) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Kind:       kind,
		Details:    make(map[string]interface{}),
	}
}

// WithDetails возвращает копию ошибки с деталями (sentinel не изменяется)
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	c := e.clone()
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// Wrap возвращает копию appErr с причиной err
func Wrap(err error, appErr *AppError) *AppError {
	c := appErr.clone()
	c.cause = err
	return c
}

// Wrapf оборачивает с форматированной причиной
func Wrapf(appErr *AppError, format string, args ...interface{}) *AppError {
	return Wrap(fmt.Errorf(format, args...), appErr)
}

func (e *AppError) clone() *AppError {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    details,
		StatusCode: e.StatusCode,
		Kind:       e.Kind,
		cause:      e.cause,
	}
}

// KindOf возвращает класс ошибки; неизвестные ошибки считаются внутренними
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsConfig проверяет, является ли ошибка ошибкой конфигурации
func IsConfig(err error) bool {
	return err != nil && KindOf(err) == KindConfig
}

// As - обертка над errors.As для *AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
