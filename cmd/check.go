package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/charter-desk/internal/domain/booking"
)

// newCheckCmd is a one-shot conflict check against a reservations JSON file,
// handy for inspecting a calendar export without running the server.
func newCheckCmd() *cobra.Command {
	var (
		file    string
		yachtID string
		start   string
		end     string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a candidate date range against a reservations file",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var reservations []booking.Reservation
			if err := json.Unmarshal(buf, &reservations); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			const layout = "2006-01-02"
			s, err := time.Parse(layout, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			e, err := time.Parse(layout, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			candidate := booking.Reservation{YachtID: yachtID, Start: s, End: e}
			result := booking.CheckConflicts(candidate, reservations, booking.CheckOptions{})

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if result.HasConflicts {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "reservations.json", "reservations JSON file")
	cmd.Flags().StringVar(&yachtID, "yacht", "", "yacht id")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("yacht")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}
