package resultstore

import (
	"context"
	"cses-scraper/internal/scrapers/cses"
	configlibsql "cses-scraper/lib/configutil/libsql"
	"database/sql"
	"fmt"
	"time"

	_ "embed"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens the configured database and makes sure the schema exists.
func Open(ctx context.Context, config configlibsql.Struct) (Store, error) {
	database, err := config.OpenDB()
	if err != nil {
		return Store{}, fmt.Errorf("open database: %w", err)
	}
	store := NewStore(database)
	err = store.Init(ctx)
	if err != nil {
		database.Close()
		return Store{}, err
	}
	return store, nil
}

func (s Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Record is a stored profile along with when it was scraped.
type Record struct {
	Username  string
	Detail    cses.Detail
	ScrapedAt time.Time
}

const upsertProfile = `insert into profile(
    username, name, country, submission_count, first_submission, last_submission, scraped_at
) values (?, ?, ?, ?, ?, ?, ?)
on conflict (username) do update set
    name = excluded.name,
    country = excluded.country,
    submission_count = excluded.submission_count,
    first_submission = excluded.first_submission,
    last_submission = excluded.last_submission,
    scraped_at = excluded.scraped_at`

// Put upserts every entry of result, all of them or none are written.
func (s Store) Put(ctx context.Context, at time.Time, result cses.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertProfile)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for username, detail := range result {
		_, err := stmt.ExecContext(
			ctx,
			username,
			detail.Name,
			detail.Country,
			detail.SubmissionCount,
			detail.FirstSubmission,
			detail.LastSubmission,
			at.Unix(),
		)
		if err != nil {
			return fmt.Errorf("put %s: %w", username, err)
		}
	}
	return tx.Commit()
}

const selectProfile = `select
    username, name, country, submission_count, first_submission, last_submission, scraped_at
from profile`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var record Record
	var scrapedAt int64
	err := row.Scan(
		&record.Username,
		&record.Detail.Name,
		&record.Detail.Country,
		&record.Detail.SubmissionCount,
		&record.Detail.FirstSubmission,
		&record.Detail.LastSubmission,
		&scrapedAt,
	)
	if err != nil {
		return Record{}, err
	}
	record.ScrapedAt = time.Unix(scrapedAt, 0)
	return record, nil
}

// Get returns the stored record of username, ok is false if there is none.
func (s Store) Get(ctx context.Context, username string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectProfile+" where username = ?", username)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

// List returns every stored record ordered by username.
func (s Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectProfile+" order by username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Result converts records back into a result mapping.
func Result(records []Record) cses.Result {
	result := make(cses.Result, len(records))
	for _, r := range records {
		result[r.Username] = r.Detail
	}
	return result
}
