package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// EnsureSchema creates the matching tables and their indexes if they do not
// exist yet. It never alters existing tables, so running it against a
// populated database is safe. The cadastre is reference data maintained
// elsewhere and is deliberately not touched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	decls := s.declarationsTable()
	dets := s.detectionsTable()
	links := s.linksTable()

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,

		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{s.schema}.Sanitize()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id_dossier bigint PRIMARY KEY,
			num_parcelles text NOT NULL DEFAULT '',
			geom geometry(MultiPolygon, 2154),
			geom_statut text NOT NULL DEFAULT 'en_attente'
				CHECK (geom_statut IN ('en_attente', 'calculee', 'irresoluble')),
			parcelles_absentes integer NOT NULL DEFAULT 0,
			puiss_max bigint,
			date_insta date,
			date_depot date,
			adresse text,
			etat text,
			type_proj text,
			usage_terr text,
			sol_nature text,
			sol_detail text,
			surf_occup double precision,
			surf_terr double precision
		)`, decls),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)`,
			pgx.Identifier{s.tables.Declarations + "_geom_idx"}.Sanitize(), decls),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id bigint PRIMARY KEY,
			geom geometry(Geometry, 2154) NOT NULL,
			millesime integer,
			date_maj timestamptz
		)`, dets),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)`,
			pgx.Identifier{s.tables.Detections + "_geom_idx"}.Sanitize(), dets),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id_dossier bigint NOT NULL REFERENCES %s (id_dossier),
			id_detection bigint NOT NULL REFERENCES %s (id)
		)`, links, decls, dets),

		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (id_dossier, id_detection)`,
			pgx.Identifier{s.tables.Links + "_pair_idx"}.Sanitize(), links),
	}

	return s.retry(ctx, "ensure schema", func() error {
		for _, stmt := range statements {
			if _, err := s.main.Exec(ctx, stmt); err != nil {
				return pkgerrors.WrapStore("ensure schema", "", err)
			}
		}
		logging.Ctx(ctx).Debug().
			Str("schema", s.schema).
			Msg("schema ensured")
		return nil
	})
}
