package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kass/go-geoquery/pkg/models"
)

// PostgresStore talks to a PostGIS-enabled Postgres. Only the two pushdown
// predicates (ST_DWithin, ST_Intersects) and plain equality are ever emitted;
// the server's richer operator set is deliberately not used so both execution
// paths stay comparable with the capability-limited reference backend.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection.
func NewPostgresStore(host, user, password, dbname, sslmode string, port int) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, &FetchError{Kind: ErrConnection, Err: err}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// Fetch implements Client. It requests limit+1 rows so an over-limit result
// is detected rather than silently truncated.
func (s *PostgresStore) Fetch(ctx context.Context, collection string, filter Filter, columns []string, limit int) ([]Row, error) {
	where, args, err := renderFilter(filter)
	if err != nil {
		return nil, &FetchError{Collection: collection, Kind: ErrQuery, Err: err}
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s LIMIT %d",
		columnList(columns), pq.QuoteIdentifier(collection), where, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &FetchError{Collection: collection, Kind: ErrQuery, Err: err}
	}
	defer rows.Close()

	var results []Row
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &FetchError{Collection: collection, Kind: ErrScan, Err: err}
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = vals[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &FetchError{Collection: collection, Kind: ErrScan, Err: err}
	}
	if len(results) > limit {
		return nil, &FetchError{Collection: collection, Kind: ErrRowLimit, Limit: limit}
	}
	return results, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// renderFilter translates a typed filter into SQL. This is the only place in
// the repository that builds backend predicate syntax.
func renderFilter(filter Filter) (where string, args []any, err error) {
	switch f := filter.(type) {
	case nil:
		return "", nil, nil
	case DistanceWithin:
		return fmt.Sprintf(" WHERE ST_DWithin(%s, ST_GeomFromText($1, 4326), $2)", pq.QuoteIdentifier(f.Field)),
			[]any{f.Target.WKT(), f.Radius}, nil
	case Intersects:
		return fmt.Sprintf(" WHERE ST_Intersects(%s, ST_GeomFromText($1, 4326))", pq.QuoteIdentifier(f.Field)),
			[]any{f.Target.WKT()}, nil
	case FieldEquals:
		return fmt.Sprintf(" WHERE %s = $1", pq.QuoteIdentifier(f.Field)), []any{f.Value}, nil
	default:
		return "", nil, fmt.Errorf("unknown filter type %T", filter)
	}
}

func columnList(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += pq.QuoteIdentifier(c)
	}
	return out
}

// InitSchema creates the benchmark tables, dropping any previous copies.
func (s *PostgresStore) InitSchema(ctx context.Context, prefix string) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, pq.QuoteIdentifier(prefix+"_trip")),
		fmt.Sprintf(`CREATE TABLE %s (
			t_tripkey BIGINT PRIMARY KEY,
			t_pickuptime TIMESTAMPTZ,
			t_dropofftime TIMESTAMPTZ,
			t_pickuploc GEOMETRY(POINT, 4326),
			t_dropoffloc GEOMETRY(POINT, 4326),
			t_distance DOUBLE PRECISION,
			t_fare DOUBLE PRECISION,
			t_tip DOUBLE PRECISION,
			t_totalamount DOUBLE PRECISION
		);`, pq.QuoteIdentifier(prefix+"_trip")),

		fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, pq.QuoteIdentifier(prefix+"_zone")),
		fmt.Sprintf(`CREATE TABLE %s (
			z_zonekey BIGINT PRIMARY KEY,
			z_name TEXT,
			z_type TEXT,
			z_boundary GEOMETRY(POLYGON, 4326)
		);`, pq.QuoteIdentifier(prefix+"_zone")),

		fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, pq.QuoteIdentifier(prefix+"_building")),
		fmt.Sprintf(`CREATE TABLE %s (
			b_buildingkey BIGINT PRIMARY KEY,
			b_name TEXT,
			b_type TEXT,
			b_boundary GEOMETRY(POLYGON, 4326)
		);`, pq.QuoteIdentifier(prefix+"_building")),
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// CreateSpatialIndexes adds GIST indexes on the geometry columns and runs
// ANALYZE for query planning.
func (s *PostgresStore) CreateSpatialIndexes(ctx context.Context, prefix string) error {
	stmts := []string{
		fmt.Sprintf(`CREATE INDEX %s ON %s USING GIST(t_pickuploc);`,
			pq.QuoteIdentifier("idx_"+prefix+"_trip_pickup"), pq.QuoteIdentifier(prefix+"_trip")),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING GIST(t_dropoffloc);`,
			pq.QuoteIdentifier("idx_"+prefix+"_trip_dropoff"), pq.QuoteIdentifier(prefix+"_trip")),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING GIST(z_boundary);`,
			pq.QuoteIdentifier("idx_"+prefix+"_zone_boundary"), pq.QuoteIdentifier(prefix+"_zone")),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING GIST(b_boundary);`,
			pq.QuoteIdentifier("idx_"+prefix+"_building_boundary"), pq.QuoteIdentifier(prefix+"_building")),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create spatial index: %w", err)
		}
	}
	for _, table := range []string{prefix + "_trip", prefix + "_zone", prefix + "_building"} {
		if _, err := s.db.ExecContext(ctx, "ANALYZE "+pq.QuoteIdentifier(table)+";"); err != nil {
			return fmt.Errorf("failed to analyze table %s: %w", table, err)
		}
	}
	return nil
}

const insertBatchSize = 1000

// BulkInsertTrips inserts trips in batched transactions.
func (s *PostgresStore) BulkInsertTrips(ctx context.Context, prefix string, trips []models.Trip) error {
	stmt := fmt.Sprintf(`INSERT INTO %s
		(t_tripkey, t_pickuptime, t_dropofftime, t_pickuploc, t_dropoffloc, t_distance, t_fare, t_tip, t_totalamount)
		VALUES ($1, $2, $3, ST_GeomFromText($4, 4326), ST_GeomFromText($5, 4326), $6, $7, $8, $9)`,
		pq.QuoteIdentifier(prefix+"_trip"))
	return s.bulkInsert(ctx, stmt, len(trips), func(i int) []any {
		t := trips[i]
		return []any{t.Key, t.PickupTime, t.DropoffTime, t.PickupLoc.WKT(), t.DropoffLoc.WKT(),
			t.Distance, t.Fare, t.Tip, t.TotalAmount}
	})
}

// BulkInsertZones inserts zones in batched transactions.
func (s *PostgresStore) BulkInsertZones(ctx context.Context, prefix string, zones []models.Zone) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (z_zonekey, z_name, z_boundary)
		VALUES ($1, $2, ST_GeomFromText($3, 4326))`, pq.QuoteIdentifier(prefix+"_zone"))
	return s.bulkInsert(ctx, stmt, len(zones), func(i int) []any {
		z := zones[i]
		return []any{z.Key, z.Name, z.Boundary.WKT()}
	})
}

// BulkInsertBuildings inserts buildings in batched transactions.
func (s *PostgresStore) BulkInsertBuildings(ctx context.Context, prefix string, buildings []models.Building) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (b_buildingkey, b_name, b_boundary)
		VALUES ($1, $2, ST_GeomFromText($3, 4326))`, pq.QuoteIdentifier(prefix+"_building"))
	return s.bulkInsert(ctx, stmt, len(buildings), func(i int) []any {
		b := buildings[i]
		return []any{b.Key, b.Name, b.Boundary.WKT()}
	})
}

func (s *PostgresStore) bulkInsert(ctx context.Context, stmt string, n int, args func(i int) []any) error {
	prepared, err := s.db.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer prepared.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStmt := tx.Stmt(prepared)

	for i := 0; i < n; i++ {
		if _, err := txStmt.ExecContext(ctx, args(i)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
		if (i+1)%insertBatchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			txStmt = tx.Stmt(prepared)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}
	return nil
}
