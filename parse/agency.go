package parse

import (
	"fmt"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var agencySchema = schema{
	file:     AgencyFile,
	required: []string{"agency_name", "agency_url", "agency_timezone"},
	optional: []string{"agency_id", "agency_lang", "agency_phone", "agency_fare_url", "agency_email"},
}

// ParseAgency returns agencies keyed by agency_id, along with the
// feed timezone.
func ParseAgency(data *table.Table) (map[string]*model.Agency, string, error) {
	if data.RowCount() == 0 {
		return nil, "", fmt.Errorf("no agency record found")
	}

	// "Required when the dataset contains data for multiple
	// transit agencies."
	s := agencySchema
	if data.RowCount() > 1 {
		s.required = append([]string{"agency_id"}, s.required...)
	}

	agencies := map[string]*model.Agency{}
	tz := ""
	err := s.each(data, func(r *record) error {
		a := &model.Agency{
			ID:      r.str("agency_id"),
			Name:    r.str("agency_name"),
			URL:     r.str("agency_url"),
			Lang:    r.str("agency_lang"),
			Phone:   r.str("agency_phone"),
			FareURL: r.str("agency_fare_url"),
			Email:   r.str("agency_email"),
		}

		if data.RowCount() > 1 && a.ID == "" {
			return r.invalid("agency_id")
		}
		if _, found := agencies[a.ID]; found {
			return &model.DatasetUniquenessError{File: AgencyFile, Field: "agency_id", Value: a.ID}
		}

		var err error
		a.Timezone, err = r.timezone("agency_timezone")
		if err != nil {
			return err
		}
		if a.Timezone == "" {
			return r.invalid("agency_timezone")
		}

		// "If multiple agencies are specified in the dataset,
		// each must have the same agency_timezone."
		if tz != "" && a.Timezone != tz {
			return r.invalid("agency_timezone")
		}
		tz = a.Timezone

		agencies[a.ID] = a
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return agencies, tz, nil
}
