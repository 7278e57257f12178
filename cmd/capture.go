package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/camera"
	cfg "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/config"
	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/history"
	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/logging"
	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/orchestrator"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Register a student and record their face video",
	Long: `Starts a capture session for the student, records a guided face video from
the configured camera and uploads it for face extraction.

With --retake you are asked after each upload whether to discard the
extracted faces and record again for the same student.`,
	Example: `  facecap capture --id 21CS001 --name "A Student" --year 2027 --dept CS`,
	RunE:    runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("id", "", "Student registration number")
	captureCmd.Flags().String("name", "", "Student name")
	captureCmd.Flags().String("year", "", "Batch year")
	captureCmd.Flags().String("dept", "", "Department id")
	captureCmd.Flags().Bool("retake", false, "Offer to record again after each upload")
	captureCmd.Flags().Bool("wait", false, "Wait for Enter before recording starts")
	for _, f := range []string{"id", "name", "year", "dept"} {
		_ = captureCmd.MarkFlagRequired(f)
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	id := orchestrator.Identity{
		StudentID: strings.TrimSpace(mustGetString(cmd, "id")),
		Name:      strings.TrimSpace(mustGetString(cmd, "name")),
		Year:      strings.TrimSpace(mustGetString(cmd, "year")),
		Dept:      strings.TrimSpace(mustGetString(cmd, "dept")),
	}
	retake := mustGetBool(cmd, "retake")
	wait := mustGetBool(cmd, "wait")

	dev, err := newDevice(rt.cfg, rt.log)
	if err != nil {
		return err
	}
	var sink orchestrator.Sink = orchestrator.LogSink{Log: rt.log}
	if logging.IsTerminal(os.Stdout) {
		sink = newTermSink(os.Stdout, rt.cfg.Recording.Seconds)
	}
	wf := orchestrator.NewWorkflow(rt.cfg, rt.api, dev, sink, rt.log)

	if rt.cfg.Paths.History != "" {
		store, err := history.Open(rt.cfg.Paths.History)
		if err != nil {
			rt.log.WithError(err).Warn("history disabled")
		} else {
			defer store.Close()
			wf.WithJournal(store)
		}
	}
	// releases the camera and cancels an unfinished upload on every exit
	defer wf.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	in := bufio.NewReader(os.Stdin)

	if err := wf.Register(ctx, id); err != nil {
		return err
	}
	for {
		if wait {
			fmt.Print("Press Enter to start recording...")
			if _, err := in.ReadString('\n'); err != nil {
				return err
			}
		}
		if err := wf.Record(ctx); err != nil {
			return err
		}
		res, err := wf.Wait(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Captured %d face images for %s", res.FacesCount, id.StudentID)
		if res.GalleryPath != "" {
			fmt.Printf(" (%s)", res.GalleryPath)
		}
		fmt.Println()

		if !retake || !confirm(in, "Record again for this student? [y/N] ") {
			return nil
		}
		if err := wf.Retry(ctx); err != nil {
			return err
		}
	}
}

func confirm(in *bufio.Reader, prompt string) bool {
	fmt.Print(prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func newDevice(c *cfg.Root, log logrus.FieldLogger) (camera.Device, error) {
	switch c.Camera.Driver {
	case "file":
		return &camera.File{
			Path:     c.Camera.File,
			Interval: cfg.DurMillis(c.Recording.TickMillis),
			LockPath: c.Camera.LockPath,
		}, nil
	case "ffmpeg":
		return &camera.FFmpeg{
			Binary:   c.Camera.FFmpeg,
			Device:   c.Camera.Device,
			LockPath: c.Camera.LockPath,
			Log:      log.WithField("component", "camera"),
		}, nil
	}
	return nil, fmt.Errorf("camera.driver %q is not supported", c.Camera.Driver)
}
