package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/transitkit/gtfs/model"
)

var departuresCmd = &cobra.Command{
	Use:   "departures <feed> <stop_id>",
	Short: "Lists upcoming departures from a stop",
	Args:  cobra.ExactArgs(2),
	RunE:  departures,
}

var (
	window    time.Duration
	limit     int
	direction int
	routeID   string
)

func init() {
	departuresCmd.Flags().DurationVarP(&window, "window", "W", 15*time.Minute, "Time window to search for departures")
	departuresCmd.Flags().IntVarP(&limit, "limit", "l", -1, "Limit the number of departures returned")
	departuresCmd.Flags().IntVarP(&direction, "direction", "d", -1, "Restrict to a specific direction")
	departuresCmd.Flags().StringVarP(&routeID, "route", "r", "", "Restrict to a specific route")
}

func departures(cmd *cobra.Command, args []string) error {
	feed, err := loadFeed(cmd.Context(), args[0])
	if err != nil {
		return describeLoadError(err)
	}

	stopID := args[1]
	if feed.Stop(stopID) == nil {
		return fmt.Errorf("no stop '%s'", stopID)
	}
	if direction < -1 || direction > 1 {
		return fmt.Errorf("direction must be 0 or 1")
	}

	rows := []*departureRow{}
	for _, d := range feed.Departures(stopID, time.Now(), window, limit, routeID, model.Direction(direction)) {
		rows = append(rows, &departureRow{
			Time:     d.Time.Format(time.RFC3339),
			RouteID:  d.RouteID,
			TripID:   d.TripID,
			StopID:   d.StopID,
			Headsign: d.Headsign,
		})
	}

	return render(rows, func(r *departureRow) string {
		return fmt.Sprintf("%s %s %s", r.RouteID, r.Time, r.Headsign)
	})
}
