package authgate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

type defLogger struct {
	name string
}

func defaultLogger() Logger {
	return defLogger{name: "authgate"}
}

func (d defLogger) Trace(msg string, args ...any) { d.print("TRC", msg, args...) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }
func (d defLogger) Fatal(msg string, args ...any) { d.print("FTL", msg, args...) }

func (d defLogger) WithContext(context.Context) Logger {
	return d
}

func (d defLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString(time.Now().Format("15:04:05"))
	b.WriteString(" [")
	b.WriteString(level)
	b.WriteString("] ")
	b.WriteString(strings.ToUpper(d.name))
	b.WriteString(" ")
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	b.WriteString("\n")
	fmt.Fprint(os.Stderr, b.String())
}

type staticLoggerProvider struct {
	logger Logger
}

func (p staticLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

// ResolveLogger returns a provider and a logger for name. The provider's
// logger wins; logger is the fallback when the provider has nothing for name.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger == nil {
		logger = defaultLogger()
	}
	if provider == nil {
		return staticLoggerProvider{logger: logger}, logger
	}
	if resolved := provider.GetLogger(name); resolved != nil {
		return provider, resolved
	}
	return staticLoggerProvider{logger: logger}, logger
}
