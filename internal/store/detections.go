package store

import (
	"context"
	"fmt"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// Detections returns the full detection inventory in ascending id order.
// Detections are produced upstream and never mutated here.
func (s *Store) Detections(ctx context.Context) ([]inventory.Detection, error) {
	var dets []inventory.Detection
	err := s.retry(ctx, "fetch detections", func() error {
		var err error
		dets, err = s.detections(ctx)
		return err
	})
	return dets, err
}

func (s *Store) detections(ctx context.Context) ([]inventory.Detection, error) {
	sql := fmt.Sprintf(`SELECT id, ST_AsEWKB(geom), millesime, date_maj
		FROM %s
		ORDER BY id`, s.detectionsTable())

	rows, err := s.main.Query(ctx, sql)
	if err != nil {
		return nil, pkgerrors.WrapStore("fetch detections", s.tables.Detections, err)
	}
	defer rows.Close()

	var dets []inventory.Detection
	for rows.Next() {
		var (
			d       inventory.Detection
			vintage *int
		)
		if err := rows.Scan(&d.ID, &d.Footprint, &vintage, &d.UpdatedAt); err != nil {
			return nil, pkgerrors.WrapStore("fetch detections", s.tables.Detections, err)
		}
		if vintage != nil {
			d.Vintage = *vintage
		}
		dets = append(dets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapStore("fetch detections", s.tables.Detections, err)
	}
	return dets, nil
}
