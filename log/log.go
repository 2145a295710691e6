package log

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debugf(string, ...interface{})
	Print(...interface{})
	Printf(string, ...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
	Fatal(...interface{})
	Fatalf(string, ...interface{})

	// WithField returns a logger that adds key=value to every entry.
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type logger struct {
	*logrus.Entry
}

func New(env string) Logger {
	l := logrus.New()

	if env == "prod" {
		l.Formatter = &logrus.JSONFormatter{}
		l.Level = logrus.InfoLevel
	} else {
		l.Formatter = &logrus.TextFormatter{}
		l.Level = logrus.DebugLevel
	}

	return logger{l.WithField("env", env)}
}

// FromEntry wraps an existing logrus entry, typically the one of a
// logrus/hooks/test logger.
func FromEntry(entry *logrus.Entry) Logger {
	return logger{entry}
}

// Discard returns a logger that writes nowhere.
func Discard() Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return logger{logrus.NewEntry(l)}
}

func (l logger) Print(args ...interface{}) {
	l.Println(args...)
}

func (l logger) Error(args ...interface{}) {
	l.Errorln(args...)
}

func (l logger) Fatal(args ...interface{}) {
	l.Fatalln(args...)
}

func (l logger) WithField(key string, value interface{}) Logger {
	return logger{l.Entry.WithField(key, value)}
}

func (l logger) WithFields(fields map[string]interface{}) Logger {
	return logger{l.Entry.WithFields(logrus.Fields(fields))}
}
