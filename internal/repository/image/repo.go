package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/photodex/internal/db"
	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/domain/search/query"
	"github.com/kailas-cloud/photodex/internal/domain/search/result"
)

const uniqueViolation = "23505"

// pool is the consumer interface over pgxpool.Pool (ISP).
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo persists image records in PostgreSQL with pgvector.
type Repo struct {
	pool     pool
	dateZone *time.Location
}

// New creates an image repository. Date filters match calendar days in dateZone;
// nil means UTC.
func New(p pool, dateZone *time.Location) *Repo {
	if dateZone == nil {
		dateZone = time.UTC
	}
	return &Repo{pool: p, dateZone: dateZone}
}

// Create inserts a pending record and returns it with the assigned id.
// A fingerprint collision surfaces as domain.ErrDuplicate.
func (r *Repo) Create(ctx context.Context, rec domimg.Record) (domimg.Record, error) {
	const stmt = `
		INSERT INTO images (
			image, gps_coordinates, location_name, date_taken_exif, date_taken_user,
			location_user, exif_fingerprint, exif_data, tags, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	tags := rec.Tags()
	if tags == nil {
		tags = []string{}
	}

	var (
		id        int64
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, stmt,
		rec.Locator(),
		gpsArg(rec.GPS()),
		nullString(rec.Locality()),
		rec.CaptureTime(),
		rec.UserDate(),
		nullString(rec.UserLocation()),
		rec.Fingerprint(),
		rec.Metadata(),
		tags,
		string(rec.Status().State()),
	).Scan(&id, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domimg.Record{}, domain.ErrDuplicate
		}
		return domimg.Record{}, &db.Error{Op: db.OpExec, Err: fmt.Errorf("insert image: %w", err)}
	}
	return rec.WithID(id, createdAt), nil
}

// ExistsByFingerprint reports whether a record with the fingerprint exists.
func (r *Repo) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM images WHERE exif_fingerprint = $1)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("fingerprint lookup: %w", err)}
	}
	return exists, nil
}

// Get returns a record by id.
func (r *Repo) Get(ctx context.Context, id int64) (domimg.Record, error) {
	stmt := "SELECT " + strings.Join(columns, ", ") + " FROM images WHERE id = $1"
	return r.getOne(ctx, r.pool, stmt, id)
}

func (r *Repo) getOne(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, stmt string, id int64,
) (domimg.Record, error) {
	var rw row
	if err := q.QueryRow(ctx, stmt, id).Scan(rw.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domimg.Record{}, fmt.Errorf("image %d: %w", id, domain.ErrImageNotFound)
		}
		return domimg.Record{}, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("get image %d: %w", id, err)}
	}
	return rw.toDomain()
}

// Transition locks the record with SELECT ... FOR UPDATE, applies fn and persists
// the status columns in the same transaction. If fn fails nothing is written and
// its error is returned unchanged.
func (r *Repo) Transition(
	ctx context.Context, id int64, fn func(rec *domimg.Record) error,
) (domimg.Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domimg.Record{}, &db.Error{Op: db.OpBegin, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := "SELECT " + strings.Join(columns, ", ") + " FROM images WHERE id = $1 FOR UPDATE"
	rec, err := r.getOne(ctx, tx, stmt, id)
	if err != nil {
		return domimg.Record{}, err
	}

	if err := fn(&rec); err != nil {
		return domimg.Record{}, err
	}
	if err := rec.CheckInvariants(); err != nil {
		return domimg.Record{}, err
	}

	const update = `
		UPDATE images
		SET status = $2,
		    embedding = $3,
		    embedding_model = $4,
		    error_message = $5,
		    processing_started_at = $6,
		    updated_at = NOW()
		WHERE id = $1`

	st := rec.Status()
	if _, err := tx.Exec(ctx, update,
		id,
		string(st.State()),
		vectorArg(rec.Embedding()),
		nullString(rec.Model()),
		errorArg(st),
		rec.ProcessingStartedAt(),
	); err != nil {
		return domimg.Record{}, &db.Error{Op: db.OpExec, Err: fmt.Errorf("update image %d: %w", id, err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return domimg.Record{}, &db.Error{Op: db.OpCommit, Err: err}
	}
	return rec, nil
}

// IDsByStatus returns ids in the given state, oldest first.
func (r *Repo) IDsByStatus(ctx context.Context, state domimg.State) ([]int64, error) {
	return r.ids(ctx, `SELECT id FROM images WHERE status = $1 ORDER BY id`, string(state))
}

// StaleProcessingIDs returns processing records whose lease started before cutoff.
func (r *Repo) StaleProcessingIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return r.ids(ctx,
		`SELECT id FROM images WHERE status = $1 AND processing_started_at < $2 ORDER BY id`,
		string(domimg.StateProcessing), cutoff)
}

func (r *Repo) ids(ctx context.Context, stmt string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return ids, nil
}

// Search returns done records matching the filter, ranked by distance when a
// vector is given and newest first otherwise. Ties break by id.
func (r *Repo) Search(ctx context.Context, q query.Query) ([]result.Hit, error) {
	b := buildSearch(q, r.dateZone)
	sql, args := b.Build()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("search images: %w", err)}
	}
	defer rows.Close()

	ranked := q.Ranked()
	var hits []result.Hit
	for rows.Next() {
		var (
			rw   row
			dist float64
		)
		dest := rw.dest()
		if ranked {
			dest = append(dest, &dist)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("scan image: %w", err)}
		}
		rec, err := rw.toDomain()
		if err != nil {
			return nil, err
		}
		if ranked {
			hits = append(hits, result.New(rec, dist))
		} else {
			hits = append(hits, result.Unranked(rec))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return hits, nil
}

func buildSearch(q query.Query, dateZone *time.Location) *db.SelectBuilder {
	b := db.NewSelect(table, columns...).Eq("status", string(domimg.StateDone))

	f := q.Filter
	if tags := f.Tags(); len(tags) > 0 {
		b.ArrayContainsAll("tags", tags)
	}
	if loc := f.Location(); loc != "" {
		b.Contains("location_user", loc)
	}
	if f.From() != nil || f.To() != nil {
		b.DateBetween("date_taken_exif", f.From(), f.To(), dateZone)
	}
	if q.ExcludeID > 0 {
		b.NotEq("id", q.ExcludeID)
	}

	if q.Ranked() {
		b.NotNull("embedding").OrderByDistance("embedding", vectorArg(q.Vector))
	} else {
		b.OrderByNewest()
	}
	return b.Limit(q.Limit)
}

// List returns records newest first, optionally restricted to one state.
func (r *Repo) List(ctx context.Context, state *domimg.State, limit int) ([]domimg.Record, error) {
	b := db.NewSelect(table, columns...)
	if state != nil {
		b.Eq("status", string(*state))
	}
	sql, args := b.OrderByNewest().Limit(limit).Build()

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("list images: %w", err)}
	}
	defer rows.Close()

	var out []domimg.Record
	for rows.Next() {
		var rw row
		if err := rows.Scan(rw.dest()...); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("scan image: %w", err)}
		}
		rec, err := rw.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return out, nil
}

// Delete removes a record.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("delete image %d: %w", id, err)}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("image %d: %w", id, domain.ErrImageNotFound)
	}
	return nil
}

// CountByStatus returns record counts keyed by state.
func (r *Repo) CountByStatus(ctx context.Context) (map[domimg.State]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM images GROUP BY status`)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	counts := make(map[domimg.State]int, 4)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		counts[domimg.State(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return counts, nil
}

// Locators returns the storage locators of every record.
func (r *Repo) Locators(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT image FROM images ORDER BY id`)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return out, nil
}
