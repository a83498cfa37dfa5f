package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var stopsCmd = &cobra.Command{
	Use:   "stops <feed> [lat lng] [limit]",
	Short: "Lists stops near a geographical location",
	Args:  cobra.RangeArgs(1, 4),
	RunE:  stops,
}

func stops(cmd *cobra.Command, args []string) error {
	var lat, lng float64
	var limit int
	var err error

	source, args := args[0], args[1:]

	gotLocation := false
	if len(args) == 1 {
		return fmt.Errorf("missing lng")
	}
	if len(args) >= 2 {
		gotLocation = true
		lat, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lng, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	}
	if len(args) == 3 {
		limit, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		if limit < 0 {
			return fmt.Errorf("limit must be >= 0")
		}
	}

	feed, err := loadFeed(cmd.Context(), source)
	if err != nil {
		return describeLoadError(err)
	}

	stops := feed.NearbyStops(lat, lng, limit)

	if !gotLocation {
		// sort by name
		sort.SliceStable(stops, func(i, j int) bool {
			return stops[i].Name < stops[j].Name
		})
	}

	rows := []*stopRow{}
	for _, stop := range stops {
		rows = append(rows, &stopRow{StopID: stop.ID, Name: stop.Name, Lat: stop.Lat, Lon: stop.Lon})
	}

	return render(rows, func(r *stopRow) string {
		return fmt.Sprintf("%s: %s", r.StopID, r.Name)
	})
}
