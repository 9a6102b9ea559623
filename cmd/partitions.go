package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/clinstream/tlc/pkg/coordinator"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	partitionsCount int
	partitionsJSON  bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var partitionsCmd = &cobra.Command{
	Use:   "partitions <file>",
	Short: "Print the partition plan for a timeline log file",
	Long: `Scans a timeline log file in offsets-only mode and prints the byte-range
partitions a coordinator would enqueue. Every boundary lands on a record's
opening tag, so each record is claimed by exactly one partition.`,
	Args: cobra.ExactArgs(1),
	RunE: runPartitions,
}

func init() {
	rootCmd.AddCommand(partitionsCmd)

	partitionsCmd.Flags().IntVar(&partitionsCount, "partitions", 4, "number of partitions to plan")
	partitionsCmd.Flags().BoolVar(&partitionsJSON, "json", false, "emit the plan as JSON")
}

func runPartitions(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	plan, err := coordinator.PlanFile(cmd.Context(), logger, args[0], partitionsCount)
	if err != nil {
		return err
	}

	if partitionsJSON {
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(out))

		return nil
	}

	for i, p := range plan {
		fmt.Printf("%d: [%d, %d) %d bytes\n", i, p.Start, p.Stop, p.Stop-p.Start)
	}

	return nil
}
