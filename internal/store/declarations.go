package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// PendingDeclarations returns up to limit declarations without a footprint,
// in ascending id order, starting strictly after afterID. Declarations
// previously marked unresolved are eligible again, so a corrected cadastre
// is picked up on the next run without manual resets.
func (s *Store) PendingDeclarations(ctx context.Context, afterID int64, limit int) ([]inventory.Declaration, error) {
	var decls []inventory.Declaration
	err := s.retry(ctx, "fetch pending declarations", func() error {
		var err error
		decls, err = s.pendingDeclarations(ctx, afterID, limit)
		return err
	})
	return decls, err
}

func (s *Store) pendingDeclarations(ctx context.Context, afterID int64, limit int) ([]inventory.Declaration, error) {
	sql := fmt.Sprintf(`SELECT id_dossier, num_parcelles
		FROM %s
		WHERE geom IS NULL AND id_dossier > $1
		ORDER BY id_dossier
		LIMIT $2`, s.declarationsTable())

	rows, err := s.main.Query(ctx, sql, afterID, limit)
	if err != nil {
		return nil, pkgerrors.WrapStore("fetch pending declarations", s.tables.Declarations, err)
	}
	defer rows.Close()

	var decls []inventory.Declaration
	for rows.Next() {
		var (
			d    inventory.Declaration
			refs *string
		)
		if err := rows.Scan(&d.ID, &refs); err != nil {
			return nil, pkgerrors.WrapStore("fetch pending declarations", s.tables.Declarations, err)
		}
		if refs != nil {
			d.ParcelRefs = *refs
		}
		d.Status = inventory.FootprintPending
		decls = append(decls, d)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapStore("fetch pending declarations", s.tables.Declarations, err)
	}
	return decls, nil
}

// ApplyFootprints persists the geometrizer's verdicts. Each update either
// installs a computed footprint or marks the declaration unresolved; both
// record how many parcel references matched nothing. The statements ride a
// single batch, so one round trip covers the whole slice and a failure
// aborts it entirely.
func (s *Store) ApplyFootprints(ctx context.Context, updates []inventory.FootprintUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.retry(ctx, "apply footprints", func() error {
		return s.applyFootprints(ctx, updates)
	})
}

func (s *Store) applyFootprints(ctx context.Context, updates []inventory.FootprintUpdate) error {
	sql := fmt.Sprintf(`UPDATE %s
		SET geom = ST_GeomFromEWKB($2), geom_statut = $3, parcelles_absentes = $4
		WHERE id_dossier = $1`, s.declarationsTable())

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(sql, u.DeclarationID, u.Footprint, string(u.Status), u.MissingParcels)
	}

	results := s.main.SendBatch(ctx, batch)
	defer results.Close()
	for range updates {
		if _, err := results.Exec(); err != nil {
			return pkgerrors.WrapStore("apply footprints", s.tables.Declarations, err)
		}
	}
	if err := results.Close(); err != nil {
		return pkgerrors.WrapStore("apply footprints", s.tables.Declarations, err)
	}
	return nil
}

// GeometrizedDeclarations returns every declaration carrying a computed
// footprint, in ascending id order. This is the pairing engine's left-hand
// inventory.
func (s *Store) GeometrizedDeclarations(ctx context.Context) ([]inventory.Declaration, error) {
	var decls []inventory.Declaration
	err := s.retry(ctx, "fetch geometrized declarations", func() error {
		var err error
		decls, err = s.geometrizedDeclarations(ctx)
		return err
	})
	return decls, err
}

func (s *Store) geometrizedDeclarations(ctx context.Context) ([]inventory.Declaration, error) {
	sql := fmt.Sprintf(`SELECT id_dossier, ST_AsEWKB(geom)
		FROM %s
		WHERE geom IS NOT NULL
		ORDER BY id_dossier`, s.declarationsTable())

	rows, err := s.main.Query(ctx, sql)
	if err != nil {
		return nil, pkgerrors.WrapStore("fetch geometrized declarations", s.tables.Declarations, err)
	}
	defer rows.Close()

	var decls []inventory.Declaration
	for rows.Next() {
		d := inventory.Declaration{Status: inventory.FootprintComputed}
		if err := rows.Scan(&d.ID, &d.Footprint); err != nil {
			return nil, pkgerrors.WrapStore("fetch geometrized declarations", s.tables.Declarations, err)
		}
		decls = append(decls, d)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapStore("fetch geometrized declarations", s.tables.Declarations, err)
	}
	return decls, nil
}

// UpsertDeclarations inserts or refreshes imported declarations. A refresh
// overwrites the descriptive attributes and parcel references and resets the
// footprint state, because changed references invalidate any previously
// computed geometry.
func (s *Store) UpsertDeclarations(ctx context.Context, decls []inventory.Declaration) error {
	if len(decls) == 0 {
		return nil
	}
	return s.retry(ctx, "upsert declarations", func() error {
		return s.upsertDeclarations(ctx, decls)
	})
}

func (s *Store) upsertDeclarations(ctx context.Context, decls []inventory.Declaration) error {
	sql := fmt.Sprintf(`INSERT INTO %s (
			id_dossier, num_parcelles, puiss_max, date_insta, date_depot,
			adresse, etat, type_proj, usage_terr, sol_nature, sol_detail,
			surf_occup, surf_terr, geom_statut, parcelles_absentes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0)
		ON CONFLICT (id_dossier) DO UPDATE SET
			num_parcelles = EXCLUDED.num_parcelles,
			puiss_max = EXCLUDED.puiss_max,
			date_insta = EXCLUDED.date_insta,
			date_depot = EXCLUDED.date_depot,
			adresse = EXCLUDED.adresse,
			etat = EXCLUDED.etat,
			type_proj = EXCLUDED.type_proj,
			usage_terr = EXCLUDED.usage_terr,
			sol_nature = EXCLUDED.sol_nature,
			sol_detail = EXCLUDED.sol_detail,
			surf_occup = EXCLUDED.surf_occup,
			surf_terr = EXCLUDED.surf_terr,
			geom = NULL,
			geom_statut = EXCLUDED.geom_statut,
			parcelles_absentes = 0`, s.declarationsTable())

	batch := &pgx.Batch{}
	for _, d := range decls {
		batch.Queue(sql,
			d.ID, d.ParcelRefs, d.Power, d.InstalledOn, d.FiledOn,
			d.Address, d.State, d.ProjectType, d.LandUse, d.SoilNature, d.SoilDetail,
			d.OccupiedArea, d.GroundArea, string(inventory.FootprintPending))
	}

	results := s.main.SendBatch(ctx, batch)
	defer results.Close()
	for range decls {
		if _, err := results.Exec(); err != nil {
			return pkgerrors.WrapStore("upsert declarations", s.tables.Declarations, err)
		}
	}
	if err := results.Close(); err != nil {
		return pkgerrors.WrapStore("upsert declarations", s.tables.Declarations, err)
	}
	return nil
}
