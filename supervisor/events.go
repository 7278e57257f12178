package supervisor

import "github.com/sirupsen/logrus"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Events receives what the supervisor wants the operator to see.
// StatusChanged fires only when the observed state changes.
type Events interface {
	StatusChanged(st Status)
	Notify(level Level, msg string)
	AccessReady(a Access)
}

type NopEvents struct{}

func (NopEvents) StatusChanged(Status) {}
func (NopEvents) Notify(Level, string) {}
func (NopEvents) AccessReady(Access) {}

// LogEvents reports everything through a logrus logger.
type LogEvents struct {
	Log logrus.FieldLogger
}

func (e LogEvents) StatusChanged(st Status) {
	entry := e.Log.WithField("state", st.State)
	if st.State == StateRunning {
		entry = entry.WithField("url", st.Access.URL)
	}
	if st.Err != nil {
		entry = entry.WithError(st.Err)
	}
	entry.Info("collection app status")
}

func (e LogEvents) Notify(level Level, msg string) {
	switch level {
	case LevelError:
		e.Log.Error(msg)
	case LevelWarning:
		e.Log.Warn(msg)
	default:
		e.Log.Info(msg)
	}
}

func (e LogEvents) AccessReady(a Access) {
	e.Log.WithField("url", a.URL).Info("collection app ready")
}
