package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var timetableCmd = &cobra.Command{
	Use:   "timetable <feed> <stop_id>",
	Short: "Lists visits to a stop on a service date",
	Args:  cobra.ExactArgs(2),
	RunE:  timetable,
}

func init() {
	addDateFlag(timetableCmd)
}

func timetable(cmd *cobra.Command, args []string) error {
	feed, err := loadFeed(cmd.Context(), args[0])
	if err != nil {
		return describeLoadError(err)
	}

	stopID := args[1]
	if feed.Stop(stopID) == nil {
		return fmt.Errorf("no stop '%s'", stopID)
	}

	date, err := serviceDate(feed)
	if err != nil {
		return err
	}

	rows := stopTimeRows(feed, feed.Timetable(stopID, date), date)
	return render(rows, func(r *stopTimeRow) string {
		departure := r.Departure
		if departure == "" {
			departure = "(unresolved)"
		} else if t, err := time.Parse(time.RFC3339, departure); err == nil {
			departure = t.Format("15:04:05")
		}
		return fmt.Sprintf("%s %-10s %-20s %s", departure, r.RouteID, r.TripID, r.StopID)
	})
}
