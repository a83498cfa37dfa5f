package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services <feed>",
	Short: "Lists services and whether they run on a service date",
	Args:  cobra.ExactArgs(1),
	RunE:  services,
}

var activeOnly bool

func init() {
	addDateFlag(servicesCmd)
	servicesCmd.Flags().BoolVarP(&activeOnly, "active", "a", false, "Only list services running on the date")
}

func services(cmd *cobra.Command, args []string) error {
	feed, err := loadFeed(cmd.Context(), args[0])
	if err != nil {
		return describeLoadError(err)
	}

	date, err := serviceDate(feed)
	if err != nil {
		return err
	}

	calendar := feed.Calendar()
	rows := []*serviceRow{}
	for _, id := range calendar.ServiceIDs() {
		row := &serviceRow{
			ServiceID: id,
			Active:    calendar.IsActiveOn(id, date),
		}
		if activeOnly && !row.Active {
			continue
		}
		if cal := calendar.Calendar(id); cal != nil {
			row.StartDate = cal.StartDate
			row.EndDate = cal.EndDate
		}
		rows = append(rows, row)
	}

	return render(rows, func(r *serviceRow) string {
		active := "inactive"
		if r.Active {
			active = "active"
		}
		return fmt.Sprintf("%-30s %-8s %-8s %s", r.ServiceID, r.StartDate, r.EndDate, active)
	})
}
