package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/orchestrator"
)

// termSink renders workflow updates on a terminal: a countdown bar while
// recording and plain lines for everything else.
type termSink struct {
	out   io.Writer
	total int

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newTermSink(out io.Writer, total int) *termSink {
	return &termSink{out: out, total: total}
}

func (s *termSink) Stage(st orchestrator.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch st {
	case orchestrator.StageCameraReady:
		fmt.Fprintln(s.out, "Camera ready.")
	case orchestrator.StageRecording:
		s.bar = progressbar.NewOptions(s.total,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription("Recording"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionFullWidth(),
		)
	case orchestrator.StageUploading:
		s.finishBar()
		fmt.Fprintln(s.out, "Uploading video...")
	case orchestrator.StageRegistration:
		s.finishBar()
	}
}

func (s *termSink) Progress(remaining int, _ float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Set(s.total - remaining)
	}
}

func (s *termSink) Instruction(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		s.bar.Describe(text)
		return
	}
	fmt.Fprintln(s.out, text)
}

func (s *termSink) Status(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, "  "+text)
}

func (s *termSink) Alert(level orchestrator.Level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishBar()
	switch level {
	case orchestrator.LevelError:
		fmt.Fprintln(s.out, "ERROR: "+msg)
	case orchestrator.LevelWarning:
		fmt.Fprintln(s.out, "WARNING: "+msg)
	default:
		fmt.Fprintln(s.out, msg)
	}
}

// finishBar must be called with mu held.
func (s *termSink) finishBar() {
	if s.bar == nil {
		return
	}
	_ = s.bar.Finish()
	fmt.Fprintln(s.out)
	s.bar = nil
}
