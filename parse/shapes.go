package parse

import (
	"fmt"
	"sort"

	"github.com/transitkit/gtfs/model"
	"github.com/transitkit/gtfs/table"
)

var shapesSchema = schema{
	file:     ShapesFile,
	required: []string{"shape_id", "shape_pt_lat", "shape_pt_lon", "shape_pt_sequence"},
	optional: []string{"shape_dist_traveled"},
}

// ParseShapes returns shapes keyed by shape_id, each with its points
// sorted by shape_pt_sequence.
func ParseShapes(data *table.Table) (map[string]*model.Shape, error) {
	shapes := map[string]*model.Shape{}
	seen := map[string]map[uint32]bool{}

	err := shapesSchema.each(data, func(r *record) error {
		id, err := r.id("shape_id")
		if err != nil {
			return err
		}

		p := model.ShapePoint{}
		p.Lat, err = r.float("shape_pt_lat", -90, 90)
		if err != nil {
			return err
		}
		p.Lon, err = r.float("shape_pt_lon", -180, 180)
		if err != nil {
			return err
		}
		p.Sequence, err = r.uint32("shape_pt_sequence")
		if err != nil {
			return err
		}
		p.DistTraveled, err = r.distance("shape_dist_traveled")
		if err != nil {
			return err
		}

		if seen[id] == nil {
			seen[id] = map[uint32]bool{}
			shapes[id] = &model.Shape{ID: id}
		}
		if seen[id][p.Sequence] {
			return &model.DatasetUniquenessError{
				File:  ShapesFile,
				Field: "shape_id+shape_pt_sequence",
				Value: fmt.Sprintf("%s+%d", id, p.Sequence),
			}
		}
		seen[id][p.Sequence] = true

		shapes[id].Points = append(shapes[id].Points, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, shape := range shapes {
		sort.Slice(shape.Points, func(i, j int) bool {
			return shape.Points[i].Sequence < shape.Points[j].Sequence
		})
	}

	return shapes, nil
}
