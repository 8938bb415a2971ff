// Package store is the PostGIS persistence layer. It owns every SQL
// statement in the module: declaration and detection reads, footprint
// write-back, parcel lookups on the cadastre, and the transactional
// replacement of the link table.
//
// Geometries cross this boundary exclusively as EWKB byte slices produced
// by ST_AsEWKB and consumed by ST_GeomFromEWKB, so no geometry logic lives
// here. All table and schema names come from validated settings and are
// sanitized before interpolation.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/IGNF/ocsge-pv/pkg/config"
	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/logging"
)

// Store gives the engine access to the main matching database and the
// read-only cadastre. Both may be the same endpoint; Close handles either
// case.
type Store struct {
	main     *pgxpool.Pool
	cadastre *pgxpool.Pool

	schema string
	tables config.Tables

	cadastreSchema string
	cadastreTable  string
}

// New connects to the configured databases and verifies both endpoints
// respond before returning.
func New(ctx context.Context, settings *config.Settings) (*Store, error) {
	main, err := pgxpool.New(ctx, settings.MainDatabase.ConnString())
	if err != nil {
		return nil, pkgerrors.WrapStore("connect", "", err)
	}
	if err := main.Ping(ctx); err != nil {
		main.Close()
		return nil, pkgerrors.WrapStore("connect", "", err)
	}

	cadastre := main
	if settings.CadastreDatabase.Separate() {
		cadastre, err = pgxpool.New(ctx, settings.CadastreDatabase.ConnString())
		if err != nil {
			main.Close()
			return nil, pkgerrors.WrapStore("connect", settings.CadastreDatabase.Table, err)
		}
		if err := cadastre.Ping(ctx); err != nil {
			cadastre.Close()
			main.Close()
			return nil, pkgerrors.WrapStore("connect", settings.CadastreDatabase.Table, err)
		}
	}

	return &Store{
		main:           main,
		cadastre:       cadastre,
		schema:         settings.MainDatabase.Schema,
		tables:         settings.MainDatabase.Tables,
		cadastreSchema: settings.CadastreDatabase.Schema,
		cadastreTable:  settings.CadastreDatabase.Table,
	}, nil
}

// Close releases both pools.
func (s *Store) Close() {
	if s.cadastre != s.main {
		s.cadastre.Close()
	}
	s.main.Close()
}

// Ping verifies both endpoints still respond.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.main.Ping(ctx); err != nil {
		return pkgerrors.WrapStore("ping", "", err)
	}
	if s.cadastre != s.main {
		if err := s.cadastre.Ping(ctx); err != nil {
			return pkgerrors.WrapStore("ping", s.cadastreTable, err)
		}
	}
	return nil
}

func (s *Store) declarationsTable() string {
	return pgx.Identifier{s.schema, s.tables.Declarations}.Sanitize()
}

func (s *Store) detectionsTable() string {
	return pgx.Identifier{s.schema, s.tables.Detections}.Sanitize()
}

func (s *Store) linksTable() string {
	return pgx.Identifier{s.schema, s.tables.Links}.Sanitize()
}

func (s *Store) parcelsTable() string {
	return pgx.Identifier{s.cadastreSchema, s.cadastreTable}.Sanitize()
}

// retry runs fn under the store's transient-failure policy, logging each
// attempt through the context logger.
func (s *Store) retry(ctx context.Context, op string, fn func() error) error {
	return withRetry(ctx, logging.Ctx(ctx), op, fn)
}
