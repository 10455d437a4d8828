package submission

import "errors"

// 错误类别，处理器据此映射 HTTP 状态码。
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrNotReady = errors.New("not ready")
)

// Error carries a user-facing detail and one of the kinds above.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}
