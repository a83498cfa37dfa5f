package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

func TestParseTransfers(t *testing.T) {
	minTime := uint32(180)

	for _, tc := range []struct {
		name      string
		content   string
		transfers []*model.Transfer
		err       bool
	}{
		{
			"all types",
			`
from_stop_id,to_stop_id,transfer_type,min_transfer_time
a,b,,
a,c,1,
b,c,2,180
c,a,3,`,
			[]*model.Transfer{
				&model.Transfer{FromStopID: "a", ToStopID: "b", Type: model.TransferTypeRecommended},
				&model.Transfer{FromStopID: "a", ToStopID: "c", Type: model.TransferTypeTimed},
				&model.Transfer{FromStopID: "b", ToStopID: "c", Type: model.TransferTypeMinimumTime, MinTransferTime: &minTime},
				&model.Transfer{FromStopID: "c", ToStopID: "a", Type: model.TransferTypeNotPossible},
			},
			false,
		},

		{
			"invalid transfer_type",
			`
from_stop_id,to_stop_id,transfer_type
a,b,4`,
			nil, true,
		},

		{
			"negative min_transfer_time",
			`
from_stop_id,to_stop_id,transfer_type,min_transfer_time
a,b,2,-60`,
			nil, true,
		},

		{
			"missing to_stop_id",
			`
from_stop_id,transfer_type
a,0`,
			nil, true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			transfers, err := ParseTransfers(table.Parse(tc.content))
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.transfers, transfers)
		})
	}
}
