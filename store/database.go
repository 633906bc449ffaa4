// Package store adapts the persistence façade of spec §4.9 onto a SQL
// backend, modeled on the teacher's gorp-mapped SQLStorageAuthority but
// built on borp, letsencrypt's maintained successor to gorp.v1, and the
// go-sql-driver/mysql driver.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/letsencrypt/borp"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/db"
	"github.com/icao-pkd/pkd-core/internal/blog"
)

// borp's DbMap and Transaction satisfy the narrow capability interfaces in
// package db, so helpers that only need SelectOne/Select/Insert/Exec can
// depend on those instead of the concrete ORM type.
var (
	_ db.DatabaseMap = (*borp.DbMap)(nil)
	_ db.Transaction = (*borp.Transaction)(nil)
)

// NewDbMap opens a MySQL connection and builds the root borp mapping object,
// the same root-object-per-schema pattern the teacher uses for its
// Storage Authority.
func NewDbMap(dataSourceName string, log blog.Logger) (*borp.DbMap, error) {
	db, err := sql.Open("mysql", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	log.Info("store: connected to database")

	dbMap := &borp.DbMap{Db: db, Dialect: borp.MySQLDialect{Engine: "InnoDB", Encoding: "UTF8MB4"}, TypeConverter: pkdTypeConverter{}}
	initTables(dbMap)
	return dbMap, nil
}

// initTables registers every persisted entity from spec §3 with the ORM.
// CreateTablesIfNotExists is left to migrations; this only builds the
// in-process table map.
func initTables(dbMap *borp.DbMap) {
	dbMap.AddTableWithName(core.Certificate{}, "certificates").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.CRL{}, "crls").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.UploadedFile{}, "uploaded_files").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.ValidationResult{}, "validation_results").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.SyncStatus{}, "sync_status").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.ReconciliationSummary{}, "reconciliation_summaries").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.ReconciliationLog{}, "reconciliation_logs").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.PaVerification{}, "pa_verifications").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.PaDataGroup{}, "pa_data_groups").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.RevalidationHistory{}, "revalidation_history").SetKeys(false, "ID")
	dbMap.AddTableWithName(core.SyncConfig{}, "sync_config").SetKeys(false, "ID")
}
