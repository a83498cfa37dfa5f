package parse

import (
	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var transfersSchema = schema{
	file:     TransfersFile,
	required: []string{"from_stop_id", "to_stop_id", "transfer_type"},
	optional: []string{"min_transfer_time"},
}

// ParseTransfers returns transfer rules in file order. Stop
// references are resolved by the linker.
func ParseTransfers(data *table.Table) ([]*model.Transfer, error) {
	transfers := []*model.Transfer{}

	err := transfersSchema.each(data, func(r *record) error {
		tr := &model.Transfer{}

		var err error
		tr.FromStopID, err = r.id("from_stop_id")
		if err != nil {
			return err
		}
		tr.ToStopID, err = r.id("to_stop_id")
		if err != nil {
			return err
		}

		typ, err := r.enum("transfer_type", model.TransferTypeCount, int(model.TransferTypeRecommended))
		if err != nil {
			return err
		}
		tr.Type = model.TransferType(typ)

		if r.str("min_transfer_time") != "" {
			secs, err := r.uint32("min_transfer_time")
			if err != nil {
				return err
			}
			tr.MinTransferTime = &secs
		}

		transfers = append(transfers, tr)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transfers, nil
}
