package sqldb

import (
	"context"
	"fmt"
)

// demoStatements builds a small music-store schema in the style of the
// chinook sample database, enough for the agent to have something real to
// explore out of the box.
var demoStatements = []string{
	`CREATE TABLE IF NOT EXISTS Artist (
		ArtistId INTEGER NOT NULL PRIMARY KEY,
		Name     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS Album (
		AlbumId  INTEGER NOT NULL PRIMARY KEY,
		Title    TEXT NOT NULL,
		ArtistId INTEGER NOT NULL REFERENCES Artist (ArtistId)
	)`,
	`CREATE TABLE IF NOT EXISTS Track (
		TrackId      INTEGER NOT NULL PRIMARY KEY,
		Name         TEXT NOT NULL,
		AlbumId      INTEGER NOT NULL REFERENCES Album (AlbumId),
		Composer     TEXT,
		Milliseconds INTEGER NOT NULL,
		UnitPrice    NUMERIC(10,2) NOT NULL
	)`,
}

var demoRows = []string{
	`INSERT INTO Artist (ArtistId, Name) VALUES
		(1, 'AC/DC'),
		(2, 'Accept'),
		(3, 'Aerosmith')`,
	`INSERT INTO Album (AlbumId, Title, ArtistId) VALUES
		(1, 'For Those About To Rock We Salute You', 1),
		(2, 'Balls to the Wall', 2),
		(3, 'Restless and Wild', 2),
		(4, 'Let There Be Rock', 1),
		(5, 'Big Ones', 3)`,
	`INSERT INTO Track (TrackId, Name, AlbumId, Composer, Milliseconds, UnitPrice) VALUES
		(1, 'For Those About To Rock (We Salute You)', 1, 'Angus Young, Malcolm Young, Brian Johnson', 343719, 0.99),
		(2, 'Put The Finger On You', 1, 'Angus Young, Malcolm Young, Brian Johnson', 205662, 0.99),
		(3, 'Balls to the Wall', 2, NULL, 342562, 0.99),
		(4, 'Fast As a Shark', 3, 'F. Baltes, S. Kaufman, U. Dirkscneider, W. Hoffman', 230619, 0.99),
		(5, 'Restless and Wild', 3, 'F. Baltes, R.A. Smith-Diesel, S. Kaufman, U. Dirkscneider, W. Hoffman', 252051, 0.99),
		(6, 'Let There Be Rock', 4, 'Angus Young, Malcolm Young, Bon Scott', 366654, 0.99),
		(7, 'Dog Eat Dog', 4, 'Angus Young, Malcolm Young, Bon Scott', 215196, 0.99),
		(8, 'Walk On Water', 5, 'Steven Tyler, Joe Perry, Jack Blades, Tommy Shaw', 295680, 0.99),
		(9, 'Love In An Elevator', 5, 'Steven Tyler, Joe Perry', 321828, 0.99),
		(10, 'Janie''s Got A Gun', 5, 'Steven Tyler, Tom Hamilton', 330736, 0.99)`,
}

// SeedDemo creates and fills the demo schema. Idempotent: rows are only
// inserted into an empty database.
func SeedDemo(ctx context.Context, db *DB) error {
	for _, stmt := range demoStatements {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create demo schema: %w", err)
		}
	}

	var count int
	if err := db.SQL.QueryRowContext(ctx, `SELECT COUNT(*) FROM Artist`).Scan(&count); err != nil {
		return fmt.Errorf("check demo data: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, stmt := range demoRows {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("insert demo data: %w", err)
		}
	}
	return nil
}
