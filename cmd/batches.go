package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/orchestrator"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List the years and departments a student can register under",
	RunE:  runBatches,
}

func init() {
	rootCmd.AddCommand(batchesCmd)
}

func runBatches(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	wf := orchestrator.NewWorkflow(rt.cfg, rt.api, nil, nil, rt.log)
	b := wf.Batches(cmd.Context())

	if b.Fallback {
		fmt.Println("Backend unavailable, showing configured fallback options.")
	}
	if len(b.Years) == 0 && len(b.Departments) == 0 {
		fmt.Println("No batches found.")
		return nil
	}
	fmt.Printf("Years: %s\n\n", strings.Join(b.Years, ", "))

	rows := make([][]string, 0, len(b.Departments))
	for _, d := range b.Departments {
		rows = append(rows, []string{d.ID, d.Name})
	}
	fmt.Println(renderTable([]string{"ID", "Department"}, rows, nil))
	return nil
}
