package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

func TestParseAgency(t *testing.T) {
	for _, tc := range []struct {
		name     string
		content  string
		agencies map[string]*model.Agency
		tz       string
		err      bool
	}{
		{
			"minimal",
			`
agency_name,agency_url,agency_timezone
Agency,http://example.com,America/New_York`,
			map[string]*model.Agency{
				"": &model.Agency{
					Name:     "Agency",
					URL:      "http://example.com",
					Timezone: "America/New_York",
				},
			},
			"America/New_York",
			false,
		},

		{
			"all fields",
			`
agency_id,agency_name,agency_url,agency_timezone,agency_lang,agency_phone,agency_fare_url,agency_email
a,Agency,http://example.com,UTC,en,555-1234,http://example.com/fares,info@example.com`,
			map[string]*model.Agency{
				"a": &model.Agency{
					ID:       "a",
					Name:     "Agency",
					URL:      "http://example.com",
					Timezone: "UTC",
					Lang:     "en",
					Phone:    "555-1234",
					FareURL:  "http://example.com/fares",
					Email:    "info@example.com",
				},
			},
			"UTC",
			false,
		},

		{
			"multiple agencies",
			`
agency_id,agency_name,agency_url,agency_timezone
a,A,http://a.com,Europe/Paris
b,B,http://b.com,Europe/Paris`,
			map[string]*model.Agency{
				"a": &model.Agency{ID: "a", Name: "A", URL: "http://a.com", Timezone: "Europe/Paris"},
				"b": &model.Agency{ID: "b", Name: "B", URL: "http://b.com", Timezone: "Europe/Paris"},
			},
			"Europe/Paris",
			false,
		},

		{
			"multiple agencies without agency_id",
			`
agency_name,agency_url,agency_timezone
A,http://a.com,Europe/Paris
B,http://b.com,Europe/Paris`,
			nil, "", true,
		},

		{
			"multiple agencies with empty agency_id",
			`
agency_id,agency_name,agency_url,agency_timezone
a,A,http://a.com,Europe/Paris
,B,http://b.com,Europe/Paris`,
			nil, "", true,
		},

		{
			"multiple timezones",
			`
agency_id,agency_name,agency_url,agency_timezone
a,A,http://a.com,Europe/Paris
b,B,http://b.com,Europe/Berlin`,
			nil, "", true,
		},

		{
			"invalid timezone",
			`
agency_name,agency_url,agency_timezone
A,http://a.com,Europe/Gotham`,
			nil, "", true,
		},

		{
			"empty timezone",
			`
agency_name,agency_url,agency_timezone
A,http://a.com,`,
			nil, "", true,
		},

		{
			"missing agency_url",
			`
agency_name,agency_timezone
A,UTC`,
			nil, "", true,
		},

		{
			"no records",
			`
agency_name,agency_url,agency_timezone`,
			nil, "", true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			agencies, tz, err := ParseAgency(table.Parse(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.agencies, agencies)
			assert.Equal(t, tc.tz, tz)
		})
	}
}

func TestParseAgencyDuplicateID(t *testing.T) {
	_, _, err := ParseAgency(table.Parse(`
agency_id,agency_name,agency_url,agency_timezone
a,A,http://a.com,UTC
a,B,http://b.com,UTC`))

	uniq := &model.DatasetUniquenessError{}
	require.True(t, errors.As(err, &uniq))
	assert.Equal(t, &model.DatasetUniquenessError{
		File:  "agency.txt",
		Field: "agency_id",
		Value: "a",
	}, uniq)
}
