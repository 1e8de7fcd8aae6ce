package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// tickParser — парсер расписания тика лидера.
// Поддерживает 5-польные выражения и дескрипторы (@every 1m, @hourly).
var tickParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateTickSpec проверяет расписание тика.
func ValidateTickSpec(spec string) error {
	if _, err := tickParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid tick spec %q: %w", spec, err)
	}
	return nil
}

// cronLogger направляет логи robfig/cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// newCron создаёт cron, который пропускает тик, пока предыдущий не завершён.
func newCron(logger *slog.Logger) *cron.Cron {
	cl := cronLogger{logger: logger}
	return cron.New(
		cron.WithParser(tickParser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}
