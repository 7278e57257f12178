package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/supervisor"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Control the collection app",
	Long:  `Start, stop and monitor the collection app through the backend control endpoints.`,
}

var appStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the collection app is running",
	RunE:  runAppStatus,
}

var appStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the collection app",
	RunE:  runAppStart,
}

var appStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the collection app",
	RunE:  runAppStop,
}

var appLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start the collection app if needed and print its address",
	RunE:  runAppLaunch,
}

func init() {
	rootCmd.AddCommand(appCmd)
	appCmd.AddCommand(appStatusCmd, appStartCmd, appStopCmd, appLaunchCmd)

	for _, c := range []*cobra.Command{appStatusCmd, appLaunchCmd} {
		c.Flags().Bool("watch", false, "Keep polling and report status changes until interrupted")
		c.Flags().Duration("interval", 5*time.Second, "Polling interval for --watch")
	}
}

func newSupervisor() (*supervisor.Supervisor, *deps, error) {
	rt, err := loadRuntime()
	if err != nil {
		return nil, nil, err
	}
	log := rt.log.WithField("component", "supervisor")
	s := supervisor.New(rt.api, supervisor.OptionsFrom(rt.cfg.Supervisor), supervisor.LogEvents{Log: log}, log)
	return s, rt, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printStatus(st supervisor.Status) {
	row := []string{string(st.State), "", ""}
	if st.State == supervisor.StateRunning {
		row[1] = st.Access.URL
	}
	if st.Err != nil {
		row[2] = st.Err.Error()
	}
	fmt.Println(renderTable([]string{"State", "Access", "Error"}, [][]string{row}, nil))
}

// busy turns ErrOperationInProgress into an informational message.
func busy(log logrus.FieldLogger, err error) error {
	if errors.Is(err, supervisor.ErrOperationInProgress) {
		log.Info("another start or stop is already in progress")
		return nil
	}
	return err
}

// launched reports the outcome of Launch. An app that has not settled yet
// only gets a warning.
func launched(out io.Writer, log logrus.FieldLogger, a supervisor.Access, err error) error {
	switch {
	case errors.Is(err, supervisor.ErrNotReady):
		log.WithError(err).Warn("Server may still be starting, check again with 'facecap app status'")
		return nil
	case err != nil:
		return busy(log, err)
	}
	fmt.Fprintf(out, "Collection app is running at %s\n", a.URL)
	return nil
}

func watch(ctx context.Context, cmd *cobra.Command, s *supervisor.Supervisor) {
	if !mustGetBool(cmd, "watch") {
		return
	}
	fmt.Println("Watching collection app status, press Ctrl+C to stop.")
	s.Watch(ctx, mustGetDuration(cmd, "interval"))
}

func runAppStatus(cmd *cobra.Command, args []string) error {
	s, _, err := newSupervisor()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	printStatus(s.Poll(ctx))
	watch(ctx, cmd, s)
	return nil
}

func runAppStart(cmd *cobra.Command, args []string) error {
	s, rt, err := newSupervisor()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := s.Start(ctx)
	if err != nil {
		return busy(rt.log, err)
	}
	printStatus(st)
	return nil
}

func runAppStop(cmd *cobra.Command, args []string) error {
	s, rt, err := newSupervisor()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := s.Stop(ctx)
	if err != nil {
		if st.State != "" {
			printStatus(st)
		}
		return busy(rt.log, err)
	}
	printStatus(st)
	return nil
}

func runAppLaunch(cmd *cobra.Command, args []string) error {
	s, rt, err := newSupervisor()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := s.Launch(ctx)
	if err := launched(os.Stdout, rt.log, a, err); err != nil {
		return err
	}
	watch(ctx, cmd, s)
	return nil
}
