package store

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "github.com/IGNF/ocsge-pv/pkg/errors"
	"github.com/IGNF/ocsge-pv/pkg/inventory"
)

// beginTx is swapped out by tests to drive replaceLinks through a fake
// transaction.
var beginTx = func(ctx context.Context, pool *pgxpool.Pool) (pgx.Tx, error) {
	return pool.Begin(ctx)
}

// ReplaceLinks replaces the entire link table with the given set inside a
// single transaction, so readers only ever observe the previous complete
// run or this one. A session-scoped advisory lock keyed on the table scope
// rejects concurrent materializations instead of interleaving them; the
// lock is released with the transaction.
//
// Returns the number of links written.
func (s *Store) ReplaceLinks(ctx context.Context, links []inventory.Link) (int64, error) {
	var inserted int64
	err := s.retry(ctx, "replace links", func() error {
		var err error
		inserted, err = s.replaceLinks(ctx, links)
		return err
	})
	return inserted, err
}

func (s *Store) replaceLinks(ctx context.Context, links []inventory.Link) (int64, error) {
	scope := s.schema + "." + s.tables.Links

	tx, err := beginTx(ctx, s.main)
	if err != nil {
		return 0, pkgerrors.NewMaterializationError(scope, "beginning transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", scopeLockKey(scope)).Scan(&locked); err != nil {
		return 0, pkgerrors.NewMaterializationError(scope, "acquiring scope lock", err)
	}
	if !locked {
		return 0, pkgerrors.NewScopeLockedError(scope)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.linksTable())); err != nil {
		return 0, pkgerrors.NewMaterializationError(scope, "clearing previous links", err)
	}

	var inserted int64
	if len(links) > 0 {
		inserted, err = tx.CopyFrom(ctx,
			pgx.Identifier{s.schema, s.tables.Links},
			[]string{"id_dossier", "id_detection"},
			pgx.CopyFromSlice(len(links), func(i int) ([]any, error) {
				return []any{links[i].DeclarationID, links[i].DetectionID}, nil
			}))
		if err != nil {
			return 0, pkgerrors.NewMaterializationError(scope, "inserting links", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, pkgerrors.NewMaterializationError(scope, "committing", err)
	}
	committed = true
	return inserted, nil
}

// scopeLockKey derives the advisory lock key for a link table scope. FNV-64a
// keeps the key stable across processes without a lock registry.
func scopeLockKey(scope string) int64 {
	h := fnv.New64a()
	h.Write([]byte(scope))
	return int64(h.Sum64())
}
