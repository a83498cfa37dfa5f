package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tripCmd = &cobra.Command{
	Use:   "trip <feed> <trip_id>",
	Short: "Lists a trip's stop times, resolved on a service date",
	Args:  cobra.ExactArgs(2),
	RunE:  trip,
}

var timepointsOnly bool

func init() {
	addDateFlag(tripCmd)
	tripCmd.Flags().BoolVarP(&timepointsOnly, "timepoints", "t", false, "Only list timepoints")
}

func trip(cmd *cobra.Command, args []string) error {
	feed, err := loadFeed(cmd.Context(), args[0])
	if err != nil {
		return describeLoadError(err)
	}

	tripID := args[1]
	t := feed.Trip(tripID)
	if t == nil {
		return fmt.Errorf("no trip '%s'", tripID)
	}

	date, err := serviceDate(feed)
	if err != nil {
		return err
	}

	stopTimes := feed.TripSchedule(tripID)
	if timepointsOnly {
		stopTimes = feed.Schedule().TimepointSchedule(tripID, date)
	}

	if !feed.Calendar().IsActiveOn(t.ServiceID, date) {
		logger.Warn("trip does not run on date", zap.String("trip_id", tripID), zap.String("date", date.Format("20060102")))
		date = time.Time{}
	}

	rows := stopTimeRows(feed, stopTimes, date)
	return render(rows, func(r *stopTimeRow) string {
		marker := " "
		if r.Timepoint {
			marker = "*"
		}
		return fmt.Sprintf("%4d %s %-8s %-8s %s", r.StopSequence, marker, r.ArrivalTime, r.DepartureTime, r.StopID)
	})
}
