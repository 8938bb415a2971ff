package store

import (
	"context"
	"fmt"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
)

// ParcelFootprints looks up cadastral parcel geometries by IDU on the
// cadastre endpoint. The result maps each found IDU to its EWKB footprint;
// references absent from the cadastre are simply absent from the map, and
// the caller decides what a missing parcel means.
func (s *Store) ParcelFootprints(ctx context.Context, idus []string) (map[string][]byte, error) {
	if len(idus) == 0 {
		return map[string][]byte{}, nil
	}
	var parcels map[string][]byte
	err := s.retry(ctx, "fetch parcel footprints", func() error {
		var err error
		parcels, err = s.parcelFootprints(ctx, idus)
		return err
	})
	return parcels, err
}

func (s *Store) parcelFootprints(ctx context.Context, idus []string) (map[string][]byte, error) {
	sql := fmt.Sprintf(`SELECT idu, ST_AsEWKB(geom)
		FROM %s
		WHERE idu = ANY($1)`, s.parcelsTable())

	rows, err := s.cadastre.Query(ctx, sql, idus)
	if err != nil {
		return nil, pkgerrors.WrapStore("fetch parcel footprints", s.cadastreTable, err)
	}
	defer rows.Close()

	parcels := make(map[string][]byte, len(idus))
	for rows.Next() {
		var (
			idu  string
			ewkb []byte
		)
		if err := rows.Scan(&idu, &ewkb); err != nil {
			return nil, pkgerrors.WrapStore("fetch parcel footprints", s.cadastreTable, err)
		}
		if len(ewkb) == 0 {
			continue
		}
		parcels[idu] = ewkb
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapStore("fetch parcel footprints", s.cadastreTable, err)
	}
	return parcels, nil
}
