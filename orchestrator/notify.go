package orchestrator

import "github.com/sirupsen/logrus"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Sink receives one-way updates from the workflow. Implementations render
// them and never call back into the workflow. Updates may arrive from the
// countdown and upload goroutines, so implementations must be safe for
// concurrent use.
type Sink interface {
	Stage(s Stage)
	Progress(remaining int, fraction float64)
	Instruction(text string)
	Status(text string)
	Alert(level Level, msg string)
}

type NopSink struct{}

func (NopSink) Stage(Stage) {}
func (NopSink) Progress(int, float64) {}
func (NopSink) Instruction(string) {}
func (NopSink) Status(string) {}
func (NopSink) Alert(Level, string) {}

// LogSink writes every update to a logger.
type LogSink struct{ Log logrus.FieldLogger }

func (l LogSink) Stage(s Stage) { l.Log.WithField("stage", s).Info("stage changed") }

func (l LogSink) Progress(remaining int, fraction float64) {
	l.Log.WithFields(logrus.Fields{"remaining": remaining, "progress": fraction}).Debug("recording")
}

func (l LogSink) Instruction(text string) { l.Log.WithField("instruction", text).Info("instruction") }

func (l LogSink) Status(text string) { l.Log.Info(text) }

func (l LogSink) Alert(level Level, msg string) {
	switch level {
	case LevelError:
		l.Log.Error(msg)
	case LevelWarning:
		l.Log.Warn(msg)
	default:
		l.Log.Info(msg)
	}
}
