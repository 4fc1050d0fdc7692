package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New - 서비스 공용 zerolog 로거 생성
// development 환경에서는 콘솔 출력 + debug 레벨
func New(development bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if development {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Logger()

	if development {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// SetGlobal - 패키지 레벨 log 를 같은 설정으로 교체
func SetGlobal(l zerolog.Logger) {
	log.Logger = l
}

// Component - 컴포넌트 태그가 붙은 하위 로거
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
