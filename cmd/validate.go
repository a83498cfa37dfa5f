package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transitkit/gtfs/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <feed>",
	Short: "Loads a feed and reports the first problem found, if any",
	Args:  cobra.ExactArgs(1),
	RunE:  validate,
}

func validate(cmd *cobra.Command, args []string) error {
	feed, err := loadFeed(cmd.Context(), args[0])
	if err != nil {
		return describeLoadError(err)
	}

	start, end := feed.Calendar().DateRange()
	fmt.Printf("Feed is valid\n")
	fmt.Printf("  timezone:  %s\n", feed.Timezone())
	fmt.Printf("  calendar:  %s - %s\n", start, end)
	fmt.Printf("  agencies:  %d\n", len(feed.Agencies()))
	fmt.Printf("  stops:     %d\n", len(feed.Stops()))
	fmt.Printf("  routes:    %d\n", len(feed.Routes()))
	fmt.Printf("  trips:     %d\n", len(feed.Trips()))
	fmt.Printf("  services:  %d\n", len(feed.Calendar().ServiceIDs()))
	fmt.Printf("  shapes:    %t\n", feed.HasShapes())
	fmt.Printf("  transfers: %t\n", feed.HasTransfers())

	return nil
}

func describeLoadError(err error) error {
	var missingField *model.MissingRequiredFieldError
	var invalid *model.InvalidDataError
	var duplicate *model.DatasetUniquenessError
	var parent *model.ParentStationNotStationError
	var terminal *model.TerminalTimepointError

	switch {
	case errors.As(err, &missingField):
		return fmt.Errorf("missing required field: %w", err)
	case errors.As(err, &invalid):
		return fmt.Errorf("invalid data: %w", err)
	case errors.As(err, &duplicate):
		return fmt.Errorf("duplicate key: %w", err)
	case errors.As(err, &parent):
		return fmt.Errorf("bad station: %w", err)
	case errors.As(err, &terminal):
		return fmt.Errorf("bad trip: %w", err)
	}
	return err
}
