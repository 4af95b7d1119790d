package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	log "github.com/sirupsen/logrus"
	"github.com/tobilg/raster-tileserver/internal/conf"
)

// CatalogDB is the DuckDB catalog implementation
type CatalogDB struct {
	dbconn *sql.DB
	dbPath string
}

var instanceDB *CatalogDB

const fmtQueryStats = "Database query result: %v rows in %v"

// CatDBInstance returns the catalog for the configured database
func CatDBInstance() Catalog {
	if instanceDB == nil {
		dbPath := conf.Configuration.Database.DatabasePath
		// disallow blank config for safety
		if dbPath == "" {
			log.Fatal("Blank DuckDB path is disallowed; use --test for an in-memory catalog")
		}
		cat, err := NewCatalogDB(dbPath)
		if err != nil {
			log.Fatal(err)
		}
		instanceDB = cat
	}
	return instanceDB
}

// NewCatalogDB opens the DuckDB database at dbPath and creates the catalog tables.
// An empty path opens an in-memory database.
func NewCatalogDB(dbPath string) (*CatalogDB, error) {
	db, err := dbConnect(dbPath)
	if err != nil {
		return nil, err
	}
	cat := &CatalogDB{
		dbconn: db,
		dbPath: dbPath,
	}
	if err := cat.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return cat, nil
}

func dbConnect(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening DuckDB %q: %w", dbPath, err)
	}

	// Configure connection pool
	dbConf := conf.Configuration.Database
	if dbConf.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dbConf.MaxOpenConns)
	}
	if dbConf.MaxIdleConns > 0 {
		db.SetMaxIdleConns(dbConf.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Duration(dbConf.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(dbConf.ConnMaxIdleTime) * time.Second)

	log.Debugf("Connection pool configured: MaxOpenConns=%d, MaxIdleConns=%d, ConnMaxLifetime=%ds, ConnMaxIdleTime=%ds",
		dbConf.MaxOpenConns, dbConf.MaxIdleConns, dbConf.ConnMaxLifetime, dbConf.ConnMaxIdleTime)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to DuckDB %q: %w", dbPath, err)
	}
	if dbPath == "" {
		log.Info("Connected to in-memory DuckDB")
	} else {
		log.Infof("Connected to DuckDB: %s", dbPath)
	}
	return db, nil
}

func (cat *CatalogDB) createSchema(ctx context.Context) error {
	for _, stmt := range sqlSchema {
		if _, err := cat.dbconn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating catalog schema: %w", err)
		}
	}
	return nil
}

// GetDB returns the underlying database connection
func (cat *CatalogDB) GetDB() *sql.DB {
	return cat.dbconn
}

func (cat *CatalogDB) Close() error {
	return cat.dbconn.Close()
}

func (cat *CatalogDB) Ping(ctx context.Context) error {
	return cat.dbconn.PingContext(ctx)
}

func (cat *CatalogDB) Layers(ctx context.Context) ([]*RasterLayer, error) {
	start := time.Now()
	rows, err := cat.dbconn.QueryContext(ctx, sqlLayers)
	if err != nil {
		return nil, fmt.Errorf("error querying layers: %w", err)
	}
	defer rows.Close()

	layers := []*RasterLayer{}
	for rows.Next() {
		lyr, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, lyr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating layers: %w", err)
	}
	log.Debugf(fmtQueryStats, len(layers), time.Since(start))
	return layers, nil
}

func (cat *CatalogDB) LayerByName(ctx context.Context, name string) (*RasterLayer, error) {
	lyr, err := scanLayer(cat.dbconn.QueryRowContext(ctx, sqlLayerByName, name))
	if err == nil {
		return lyr, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// fall back to the raster file name
	layers, err := cat.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if lyr := matchByFile(layers, name); lyr != nil {
		return lyr, nil
	}
	return nil, fmt.Errorf("layer %q: %w", name, ErrNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLayer(row rowScanner) (*RasterLayer, error) {
	var (
		lyr                 RasterLayer
		description, nodata sql.NullString
		srid, legendID      sql.NullInt64
	)
	err := row.Scan(&lyr.ID, &lyr.Name, &description, &lyr.Datatype,
		&srid, &nodata, &lyr.RasterFile, &legendID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning layer row: %w", err)
	}
	lyr.Description = description.String
	lyr.Nodata = nodata.String
	lyr.Srid = int(srid.Int64)
	if legendID.Valid {
		id := legendID.Int64
		lyr.LegendID = &id
	}
	return &lyr, nil
}

func (cat *CatalogDB) LegendByID(ctx context.Context, id int64) (*Legend, error) {
	lgd, err := cat.readLegend(ctx, sqlLegendByID, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("legend id %d: %w", id, ErrNotFound)
	}
	return lgd, err
}

func (cat *CatalogDB) LegendByTitle(ctx context.Context, title string) (*Legend, error) {
	lgd, err := cat.readLegend(ctx, sqlLegendByTitle, title)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("legend %q: %w", title, ErrNotFound)
	}
	return lgd, err
}

func (cat *CatalogDB) readLegend(ctx context.Context, query string, arg interface{}) (*Legend, error) {
	var (
		lgd         Legend
		description sql.NullString
	)
	err := cat.dbconn.QueryRowContext(ctx, query, arg).Scan(&lgd.ID, &lgd.Title, &description)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("error querying legend: %w", err)
	}
	lgd.Description = description.String

	entries, err := cat.readEntries(ctx, lgd.ID)
	if err != nil {
		return nil, err
	}
	lgd.Entries = entries
	return &lgd, nil
}

func (cat *CatalogDB) readEntries(ctx context.Context, legendID int64) ([]*LegendEntry, error) {
	rows, err := cat.dbconn.QueryContext(ctx, sqlLegendEntries, legendID)
	if err != nil {
		return nil, fmt.Errorf("error querying legend entries: %w", err)
	}
	defer rows.Close()

	entries := []*LegendEntry{}
	for rows.Next() {
		var (
			e                      LegendEntry
			semID                  sql.NullInt64
			semName, semDesc, semK sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Expression, &e.Color, &semID, &semName, &semDesc, &semK); err != nil {
			return nil, fmt.Errorf("error scanning legend entry: %w", err)
		}
		if semID.Valid {
			e.Semantics = &LegendSemantics{
				ID:          semID.Int64,
				Name:        semName.String,
				Description: semDesc.String,
				Keyword:     semK.String,
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating legend entries: %w", err)
	}
	return entries, nil
}

func (cat *CatalogDB) PutLegend(ctx context.Context, lgd *Legend) error {
	return cat.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkUnused(ctx, tx, sqlLegendTitleInUse, lgd.Title, lgd.ID); err != nil {
			return fmt.Errorf("legend title %q: %w", lgd.Title, err)
		}
		exists := false
		if lgd.ID != 0 {
			var n int
			if err := tx.QueryRowContext(ctx, sqlLegendExists, lgd.ID).Scan(&n); err != nil {
				return err
			}
			exists = n > 0
		}
		if exists {
			if _, err := tx.ExecContext(ctx, sqlUpdateLegend, lgd.Title, nullString(lgd.Description), lgd.ID); err != nil {
				return fmt.Errorf("updating legend: %w", err)
			}
			if _, err := tx.ExecContext(ctx, sqlDeleteLegendEntries, lgd.ID); err != nil {
				return fmt.Errorf("replacing legend entries: %w", err)
			}
		} else {
			if lgd.ID == 0 {
				id, err := nextID(ctx, tx, "legends")
				if err != nil {
					return err
				}
				lgd.ID = id
			}
			if _, err := tx.ExecContext(ctx, sqlInsertLegend, lgd.ID, lgd.Title, nullString(lgd.Description)); err != nil {
				return fmt.Errorf("inserting legend: %w", err)
			}
		}

		for pos, e := range lgd.Entries {
			var semID interface{}
			if e.Semantics != nil {
				id, err := putSemantics(ctx, tx, e.Semantics)
				if err != nil {
					return err
				}
				semID = id
			}
			if e.ID == 0 {
				id, err := nextID(ctx, tx, "legend_entries")
				if err != nil {
					return err
				}
				e.ID = id
			}
			if _, err := tx.ExecContext(ctx, sqlInsertLegendEntry, e.ID, lgd.ID, pos, semID, e.Expression, e.Color); err != nil {
				return fmt.Errorf("inserting legend entry: %w", err)
			}
		}
		log.Debugf("Stored legend %d %q with %d entries", lgd.ID, lgd.Title, len(lgd.Entries))
		return nil
	})
}

// putSemantics reuses a stored label of the same name
func putSemantics(ctx context.Context, tx *sql.Tx, sem *LegendSemantics) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, sqlSemanticsByName, sem.Name).Scan(&id)
	if err == nil {
		sem.ID = id
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("querying legend semantics: %w", err)
	}
	id, err = nextID(ctx, tx, "legend_semantics")
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, sqlInsertSemantics, id, sem.Name, nullString(sem.Description), nullString(sem.Keyword))
	if err != nil {
		return 0, fmt.Errorf("inserting legend semantics: %w", err)
	}
	sem.ID = id
	return id, nil
}

func (cat *CatalogDB) PutLayer(ctx context.Context, lyr *RasterLayer) error {
	if lyr.Datatype == "" {
		lyr.Datatype = DefaultLayerDatatype
	}
	return cat.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkUnused(ctx, tx, sqlLayerNameInUse, lyr.Name, lyr.ID); err != nil {
			return fmt.Errorf("layer name %q: %w", lyr.Name, err)
		}
		var legendID, srid interface{}
		if lyr.LegendID != nil {
			legendID = *lyr.LegendID
		}
		if lyr.Srid != 0 {
			srid = lyr.Srid
		}

		exists := false
		if lyr.ID != 0 {
			var n int
			if err := tx.QueryRowContext(ctx, sqlLayerExists, lyr.ID).Scan(&n); err != nil {
				return err
			}
			exists = n > 0
		}
		if exists {
			_, err := tx.ExecContext(ctx, sqlUpdateLayer, lyr.Name, nullString(lyr.Description), lyr.Datatype,
				srid, nullString(lyr.Nodata), lyr.RasterFile, legendID, lyr.ID)
			if err != nil {
				return fmt.Errorf("updating layer: %w", err)
			}
			return nil
		}
		if lyr.ID == 0 {
			id, err := nextID(ctx, tx, "raster_layers")
			if err != nil {
				return err
			}
			lyr.ID = id
		}
		_, err := tx.ExecContext(ctx, sqlInsertLayer, lyr.ID, lyr.Name, nullString(lyr.Description), lyr.Datatype,
			srid, nullString(lyr.Nodata), lyr.RasterFile, legendID)
		if err != nil {
			return fmt.Errorf("inserting layer: %w", err)
		}
		return nil
	})
}

func (cat *CatalogDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := cat.dbconn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func checkUnused(ctx context.Context, tx *sql.Tx, query string, value string, id int64) error {
	var n int
	if err := tx.QueryRowContext(ctx, query, value, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("already in use")
	}
	return nil
}

func nextID(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	var id int64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(sqlFmtNextID, table)).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocating %s id: %w", table, err)
	}
	return id, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
