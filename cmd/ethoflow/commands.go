package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/project"
	"github.com/ethoflow/ethoflow/pkg/sampling"
	"github.com/ethoflow/ethoflow/pkg/tui"
	"github.com/ethoflow/ethoflow/pkg/validation"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report unpaired state events",
	Long: `Check that every state event of the selected observations is paired,
and that every coded behavior exists in the ethogram.

Exits with an error when any observation fails.

Examples:
  ethoflow check -p study.boris
  ethoflow check -p study.boris -O obs1 -O obs2`,
	RunE: runCheck,
}

// Grid command flags
var (
	gridStart    string
	gridEnd      string
	gridInterval string
	gridClock    bool
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the sample instants for a time range",
	Long: `Print start, start+interval, ... while the instant is before end.

Examples:
  ethoflow grid --start 0 --end 10 --interval 2.5
  ethoflow grid --start 00:01:00 --end 00:02:00 --interval 15 --clock`,
	RunE: runGrid,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

func init() {
	checkCmd.Flags().StringVarP(&projectFile, "project", "p", "", "Project file (required)")
	checkCmd.Flags().StringArrayVarP(&observationFlags, "observation", "O", nil, "Observation id (repeatable, default all)")
	checkCmd.MarkFlagRequired("project")

	gridCmd.Flags().StringVar(&gridStart, "start", "0", "First instant")
	gridCmd.Flags().StringVar(&gridEnd, "end", "", "Exclusive upper bound (required)")
	gridCmd.Flags().StringVar(&gridInterval, "interval", "1", "Step in seconds")
	gridCmd.Flags().BoolVar(&gridClock, "clock", false, "Print instants as hh:mm:ss.mmm")
	gridCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(configCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := validation.ValidateProjectFile(projectFile); err != nil {
		return err
	}
	p, err := project.Load(projectFile)
	if err != nil {
		return err
	}
	obsIDs, err := selectObservations(p, observationFlags)
	if err != nil {
		return err
	}

	batch, err := validation.ValidateBatch(p, obsIDs)
	if err != nil {
		return err
	}
	if tui.PrintValidation(os.Stdout, batch) {
		return nil
	}
	return eferrors.New(eferrors.CodeUnpairedStateEvents, "unpaired state events").
		WithContext("observations", len(batch.Rejected))
}

func runGrid(cmd *cobra.Command, args []string) error {
	start, err := model.ParseTime(gridStart)
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid start time")
	}
	end, err := model.ParseTime(gridEnd)
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid end time")
	}
	interval, err := model.ParseTime(gridInterval)
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeInvalidParameters, "invalid interval")
	}

	instants, err := gridInstants(start, end, interval, gridClock)
	if err != nil {
		return err
	}
	tui.PrintGrid(os.Stdout, instants)
	return nil
}

// gridInstants renders the grid over [start, end) with the given step.
func gridInstants(start, end, interval model.Time, clock bool) ([]string, error) {
	if err := validation.ValidateInterval(interval); err != nil {
		return nil, err
	}
	if start >= end {
		return nil, eferrors.InvalidParameters("start time must be before end time")
	}

	grid := sampling.NewGrid(start, end, interval)
	out := make([]string, 0, grid.Len())
	for t := range grid.All() {
		if clock {
			out = append(out, t.Clock())
		} else {
			out = append(out, t.String())
		}
	}
	return out, nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	data, err := cfgManager.Marshal()
	if err != nil {
		return err
	}
	if paths := cfgManager.GetPaths(); len(paths) > 0 {
		for _, p := range paths {
			fmt.Fprintf(os.Stdout, "# loaded: %s\n", p)
		}
	}
	_, err = os.Stdout.Write(data)
	return err
}
