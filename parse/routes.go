package parse

import (
	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var routesSchema = schema{
	file:     RoutesFile,
	required: []string{"route_id", "route_short_name", "route_long_name", "route_type"},
	optional: []string{"agency_id", "route_desc", "route_url", "route_color", "route_text_color"},
}

// ParseRoutes returns routes keyed by route_id.
//
// An agency_id that names no agency is kept as is.
func ParseRoutes(data *table.Table) (map[string]*model.Route, error) {
	routes := map[string]*model.Route{}

	err := routesSchema.each(data, func(r *record) error {
		route, err := buildRoute(r)
		if err != nil {
			return err
		}
		if _, found := routes[route.ID]; found {
			return &model.DatasetUniquenessError{File: RoutesFile, Field: "route_id", Value: route.ID}
		}
		routes[route.ID] = route
		return nil
	})
	if err != nil {
		return nil, err
	}

	return routes, nil
}

func buildRoute(r *record) (*model.Route, error) {
	var err error

	route := &model.Route{
		AgencyID:  r.str("agency_id"),
		ShortName: r.str("route_short_name"),
		LongName:  r.str("route_long_name"),
		Desc:      r.str("route_desc"),
		URL:       r.str("route_url"),
	}

	route.ID, err = r.id("route_id")
	if err != nil {
		return nil, err
	}

	if r.str("route_type") == "" {
		return nil, r.invalid("route_type")
	}
	rt, err := r.enum("route_type", model.RouteTypeCount, 0)
	if err != nil {
		return nil, err
	}
	route.Type = model.RouteType(rt)

	route.Color, err = r.color("route_color", "FFFFFF")
	if err != nil {
		return nil, err
	}
	route.TextColor, err = r.color("route_text_color", "000000")
	if err != nil {
		return nil, err
	}

	return route, nil
}
