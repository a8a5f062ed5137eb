package errs

import (
	"errors"
	"fmt"
)

// Level серьезность ошибки для верхнего уровня
type Level uint8

const (
	None Level = iota
	// Fatal ошибка конфигурации или инфраструктуры, спин прерывается до коммита
	Fatal
	// Warn ожидаемая ошибка, клиент может повторить запрос
	Warn
	Log
)

var levelNames = map[Level]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func (l Level) String() string {
	return levelNames[l]
}

var (
	ErrConflict          = errors.New("session version conflict")
	ErrNotFound          = errors.New("not found")
	ErrInvalidWager      = errors.New("invalid wager")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateRequest  = errors.New("duplicate request id")
	ErrSessionBusy       = errors.New("session is busy")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotAllowed        = errors.New("operation not allowed in current session state")
)

// E единый тип ошибки с уровнем и причиной
type E struct {
	Message string
	Cause   error
	Level   Level
}

func (e *E) Error() string {
	base := fmt.Sprintf("level=%s %s", e.Level, e.Message)
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

func (e *E) Unwrap() error { return e.Cause }

func New(level Level, msg string) *E {
	return &E{Message: msg, Level: level}
}

func Fatalf(format string, a ...any) *E {
	return New(Fatal, fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return New(Warn, fmt.Sprintf(format, a...))
}

// Wrap оборачивает cause. Если cause уже *E, уровень сохраняется,
// иначе ошибка считается фатальной
func Wrap(cause error, msg string) *E {
	level := Fatal
	var e *E
	if errors.As(cause, &e) {
		level = e.Level
	}
	return &E{Message: msg, Cause: cause, Level: level}
}

// WrapLevel оборачивает cause с явным уровнем
func WrapLevel(level Level, cause error, msg string) *E {
	return &E{Message: msg, Cause: cause, Level: level}
}

// LevelOf уровень ошибки, для чужих ошибок Fatal
func LevelOf(err error) Level {
	if err == nil {
		return None
	}
	var e *E
	if errors.As(err, &e) {
		return e.Level
	}
	return Fatal
}

// IsFatal true для ошибок конфигурации и инфраструктуры
func IsFatal(err error) bool {
	return LevelOf(err) == Fatal
}
