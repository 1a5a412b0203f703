package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a keyed bulk write into a schema-qualified table.
type Upsert struct {
	Table   string // e.g. "geo.places"
	Columns []string
	Keys    []string // unique constraint columns
}

// Run stages rows in a temp table with COPY and merges them into the target
// with INSERT ... ON CONFLICT, all in one transaction. Non-key columns are
// overwritten on conflict.
func (u Upsert) Run(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 || len(u.Keys) == 0 {
		return 0, eris.Errorf("db: upsert %s: columns and keys are required", u.Table)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: begin", u.Table)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stage := u.stageName()
	create := "CREATE TEMP TABLE " + pgx.Identifier{stage}.Sanitize() +
		" (LIKE " + tableIdent(u.Table) + " INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create stage", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: copy", u.Table)
	}

	tag, err := tx.Exec(ctx, u.mergeSQL(stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", u.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: commit", u.Table)
	}
	return tag.RowsAffected(), nil
}

func (u Upsert) stageName() string {
	return "_stage_" + strings.ReplaceAll(u.Table, ".", "_")
}

func (u Upsert) mergeSQL(stage string) string {
	keys := make(map[string]bool, len(u.Keys))
	for _, k := range u.Keys {
		keys[k] = true
	}
	var sets []string
	for _, c := range u.Columns {
		if keys[c] {
			continue
		}
		id := pgx.Identifier{c}.Sanitize()
		sets = append(sets, id+" = EXCLUDED."+id)
	}

	cols := identList(u.Columns)
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(u.Table))
	b.WriteString(" (" + cols + ") SELECT " + cols + " FROM ")
	b.WriteString(pgx.Identifier{stage}.Sanitize())
	b.WriteString(" ON CONFLICT (" + identList(u.Keys) + ")")
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET " + strings.Join(sets, ", "))
	}
	return b.String()
}

// tableIdent quotes "schema.table" as two identifiers.
func tableIdent(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
