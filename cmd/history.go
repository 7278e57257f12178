package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent capture attempts",
	Long:  `Lists capture attempts recorded in the local history database, newest first.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Number of attempts to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	if rt.cfg.Paths.History == "" {
		return fmt.Errorf("history is disabled (paths.history is empty)")
	}
	store, err := history.Open(rt.cfg.Paths.History)
	if err != nil {
		return err
	}
	defer store.Close()

	attempts, err := store.List(cmd.Context(), mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("No attempts recorded.")
		return nil
	}

	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		outcome := a.Outcome
		if outcome == "" {
			outcome = "open"
		}
		rows = append(rows, []string{
			a.StartedAt.Local().Format(time.DateTime),
			a.StudentID,
			a.Dept + "_" + a.Year,
			a.SessionID,
			outcome,
			strconv.Itoa(a.VideoBytes),
			a.Error,
		})
	}
	fmt.Println(renderTable(
		[]string{"Started", "Student", "Batch", "Session", "Outcome", "Bytes", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}
