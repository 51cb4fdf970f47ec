package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger from LOG_LEVEL.
func Init() {
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.Errorf("Invalid LOG_LEVEL '%s', defaulting to INFO", logLevel)
	} else {
		log.SetLevel(level)
	}

	isK8s := os.Getenv("KUBERNETES_SERVICE_HOST") != ""

	formatter := &log.TextFormatter{
		DisableQuote:    true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceColors:     !isK8s,
	}
	if isK8s {
		formatter.TimestampFormat = "2006-01-02T15:04:05.000Z07:00"
	}

	log.SetOutput(os.Stdout)
	log.SetFormatter(formatter)
}

// LogError logs err with the caller's file:line attached.
func LogError(err error, functionName string, additionalFields ...map[string]any) {
	if err == nil {
		return
	}

	fields := log.Fields{
		"error":    err.Error(),
		"function": functionName,
	}

	if pc, file, line, ok := runtime.Caller(1); ok {
		fields["file"] = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		fields["func"] = runtime.FuncForPC(pc).Name()
	}

	if len(additionalFields) > 0 {
		for k, v := range additionalFields[0] {
			fields[k] = v
		}
	}

	log.WithFields(fields).Error()
}

// LogAndCapture logs err and, when hub is non-nil, sends it to Sentry.
func LogAndCapture(hub *sentry.Hub, err error, context string, additionalFields ...map[string]any) {
	LogError(err, context, additionalFields...)

	if hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("context", context)
			if len(additionalFields) > 0 {
				for k, v := range additionalFields[0] {
					scope.SetExtra(k, v)
				}
			}
			hub.CaptureException(err)
		})
	}
}
