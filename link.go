package gtfs

import (
	"sort"

	"github.com/transitkit/gtfs/model"
)

// linkStations maps each station to its child stops, sorted by
// stop_id. A parent_station naming a stop that doesn't exist is
// ignored. One naming a stop that isn't a station is an error.
func linkStations(stops map[string]*model.Stop) (map[string][]string, error) {
	ids := make([]string, 0, len(stops))
	for id := range stops {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	children := map[string][]string{}
	for _, id := range ids {
		stop := stops[id]
		if stop.IsStation() || stop.ParentStation == "" {
			continue
		}

		parent := stops[stop.ParentStation]
		if parent == nil {
			continue
		}
		if !parent.IsStation() {
			return nil, &model.ParentStationNotStationError{
				StopID:   stop.ID,
				ParentID: stop.ParentStation,
			}
		}

		// ids is sorted and unique, so children are too.
		children[parent.ID] = append(children[parent.ID], stop.ID)
	}

	return children, nil
}

// linkTransfers indexes transfer rules by origin and destination
// stop. Rules naming an unknown stop are dropped, and their count
// returned.
func linkTransfers(
	stops map[string]*model.Stop,
	transfers []*model.Transfer,
) (map[string][]*model.Transfer, map[string][]*model.Transfer, int) {
	from := map[string][]*model.Transfer{}
	to := map[string][]*model.Transfer{}
	dropped := 0

	for _, tr := range transfers {
		if stops[tr.FromStopID] == nil || stops[tr.ToStopID] == nil {
			dropped++
			continue
		}
		from[tr.FromStopID] = append(from[tr.FromStopID], tr)
		to[tr.ToStopID] = append(to[tr.ToStopID], tr)
	}

	return from, to, dropped
}
