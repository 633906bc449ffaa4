package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/letsencrypt/borp"

	"github.com/icao-pkd/pkd-core/core"
	pkderrors "github.com/icao-pkd/pkd-core/errors"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/internal/idgen"
)

// SQLStore is the concrete core.Store backed by borp, named after and
// shaped like the teacher's SQLStorageAuthority: one struct wrapping a
// DbMap, with no clock of its own: every timestamp this package persists is
// supplied by its caller, except a ReconciliationLog's CreatedAt, which
// AppendReconciliationLog sets to the current time when it is left zero.
type SQLStore struct {
	dbMap *borp.DbMap
	log   blog.Logger
}

var _ core.Store = (*SQLStore)(nil)

// New wraps an already-opened DbMap (see NewDbMap) in a core.Store.
func New(dbMap *borp.DbMap, log blog.Logger) *SQLStore {
	if log == nil {
		log = blog.Get()
	}
	return &SQLStore{dbMap: dbMap, log: log}
}

func (s *SQLStore) SavePaVerification(ctx context.Context, v *core.PaVerification, dgs []core.PaDataGroup) error {
	if v.ID == "" {
		v.ID = idgen.New()
	}
	tx, err := s.dbMap.Begin()
	if err != nil {
		return fmt.Errorf("store: begin pa verification tx: %w", err)
	}
	if err := tx.Insert(v); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: insert pa_verification: %w", err)
	}
	for i := range dgs {
		if dgs[i].ID == "" {
			dgs[i].ID = idgen.New()
		}
		dgs[i].VerificationID = v.ID
		if err := tx.Insert(&dgs[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: insert pa_data_group: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit pa verification tx: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPaVerification(ctx context.Context, id string) (*core.PaVerification, []core.PaDataGroup, error) {
	var v core.PaVerification
	err := s.dbMap.SelectOne(&v, "SELECT * FROM pa_verifications WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil, pkderrors.NotFoundError("store: no pa verification for id %s", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: select pa_verification: %w", err)
	}
	var dgs []core.PaDataGroup
	if _, err := s.dbMap.Select(&dgs, "SELECT * FROM pa_data_groups WHERE verification_id = ? ORDER BY dg_number", id); err != nil {
		return nil, nil, fmt.Errorf("store: select pa_data_groups: %w", err)
	}
	return &v, dgs, nil
}

func (s *SQLStore) ListPaVerifications(ctx context.Context, status core.PaOverallStatus, country string, page, size int) ([]core.PaVerification, int, error) {
	if size <= 0 {
		size = 50
	}
	if page < 1 {
		page = 1
	}
	where := "WHERE 1=1"
	args := []interface{}{}
	if status != "" {
		where += " AND status = ?"
		args = append(args, string(status))
	}
	if country != "" {
		where += " AND issuing_country = ?"
		args = append(args, country)
	}

	var total int64
	countArgs := append([]interface{}{}, args...)
	if err := s.dbMap.SelectOne(&total, "SELECT count(*) FROM pa_verifications "+where, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("store: count pa_verifications: %w", err)
	}

	var rows []core.PaVerification
	queryArgs := append(args, size, (page-1)*size)
	_, err := s.dbMap.Select(&rows, "SELECT * FROM pa_verifications "+where+" ORDER BY verification_timestamp DESC LIMIT ? OFFSET ?", queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list pa_verifications: %w", err)
	}
	return rows, int(total), nil
}

func (s *SQLStore) SaveSyncStatus(ctx context.Context, st *core.SyncStatus) (string, error) {
	if st.ID == "" {
		st.ID = idgen.New()
	}
	dbCounts, err := json.Marshal(st.DBCounts)
	if err != nil {
		return "", fmt.Errorf("store: marshal db counts: %w", err)
	}
	ldapCounts, err := json.Marshal(st.LDAPCounts)
	if err != nil {
		return "", fmt.Errorf("store: marshal ldap counts: %w", err)
	}
	st.DBCountsJSON = string(dbCounts)
	st.LDAPCountsJSON = string(ldapCounts)
	if err := s.dbMap.Insert(st); err != nil {
		return "", fmt.Errorf("store: insert sync_status: %w", err)
	}
	return st.ID, nil
}

func (s *SQLStore) GetSyncStatus(ctx context.Context, id string) (*core.SyncStatus, error) {
	var st core.SyncStatus
	if err := s.dbMap.SelectOne(&st, "SELECT * FROM sync_status WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, pkderrors.NotFoundError("store: no sync status for id %s", id)
		}
		return nil, fmt.Errorf("store: select sync_status: %w", err)
	}
	if err := decodeSyncCounts(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLStore) LatestSyncStatus(ctx context.Context) (*core.SyncStatus, error) {
	var st core.SyncStatus
	err := s.dbMap.SelectOne(&st, "SELECT * FROM sync_status ORDER BY checked_at DESC LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: select latest sync_status: %w", err)
	}
	if err := decodeSyncCounts(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func decodeSyncCounts(st *core.SyncStatus) error {
	if st.DBCountsJSON != "" {
		if err := json.Unmarshal([]byte(st.DBCountsJSON), &st.DBCounts); err != nil {
			return fmt.Errorf("store: unmarshal db counts: %w", err)
		}
	}
	if st.LDAPCountsJSON != "" {
		if err := json.Unmarshal([]byte(st.LDAPCountsJSON), &st.LDAPCounts); err != nil {
			return fmt.Errorf("store: unmarshal ldap counts: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateReconciliationSummary(ctx context.Context, sum *core.ReconciliationSummary) (string, error) {
	if sum.ID == "" {
		sum.ID = idgen.New()
	}
	if err := s.dbMap.Insert(sum); err != nil {
		return "", fmt.Errorf("store: insert reconciliation_summary: %w", err)
	}
	return sum.ID, nil
}

func (s *SQLStore) UpdateReconciliationSummary(ctx context.Context, sum *core.ReconciliationSummary) error {
	if _, err := s.dbMap.Update(sum); err != nil {
		return fmt.Errorf("store: update reconciliation_summary %s: %w", sum.ID, err)
	}
	return nil
}

func (s *SQLStore) AppendReconciliationLog(ctx context.Context, l *core.ReconciliationLog) error {
	if l.ID == "" {
		l.ID = idgen.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if err := s.dbMap.Insert(l); err != nil {
		return fmt.Errorf("store: insert reconciliation_log: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveRevalidationHistory(ctx context.Context, h *core.RevalidationHistory) error {
	if h.ID == "" {
		h.ID = idgen.New()
	}
	if err := s.dbMap.Insert(h); err != nil {
		return fmt.Errorf("store: insert revalidation_history: %w", err)
	}
	return nil
}

func (s *SQLStore) PendingCertificatesByType(ctx context.Context, t core.CertType, limit int) ([]core.Certificate, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []core.Certificate
	_, err := s.dbMap.Select(&rows,
		"SELECT * FROM certificates WHERE certificate_type = ? AND stored_in_ldap = 0 ORDER BY id LIMIT ?",
		string(t), limit)
	if err != nil {
		return nil, fmt.Errorf("store: select pending certificates: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) MarkStoredInLDAP(ctx context.Context, certID string) error {
	_, err := s.dbMap.Exec("UPDATE certificates SET stored_in_ldap = 1 WHERE id = ?", certID)
	if err != nil {
		return fmt.Errorf("store: mark stored in ldap %s: %w", certID, err)
	}
	return nil
}

func (s *SQLStore) CountCertificatesByType(ctx context.Context) (map[core.CertType]int, error) {
	rows, err := s.dbMap.Db.QueryContext(ctx, "SELECT certificate_type, count(*) FROM certificates GROUP BY certificate_type")
	if err != nil {
		return nil, fmt.Errorf("store: count certificates by type: %w", err)
	}
	defer rows.Close()

	out := make(map[core.CertType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("store: scan certificate type count: %w", err)
		}
		out[core.CertType(t)] = n
	}
	return out, rows.Err()
}

func (s *SQLStore) CountCertificatesByCountryAndType(ctx context.Context) (map[string]map[core.CertType]int, error) {
	rows, err := s.dbMap.Db.QueryContext(ctx, "SELECT country_code, certificate_type, count(*) FROM certificates GROUP BY country_code, certificate_type")
	if err != nil {
		return nil, fmt.Errorf("store: count certificates by country and type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[core.CertType]int)
	for rows.Next() {
		var country, t string
		var n int
		if err := rows.Scan(&country, &t, &n); err != nil {
			return nil, fmt.Errorf("store: scan country/type count: %w", err)
		}
		if out[country] == nil {
			out[country] = make(map[core.CertType]int)
		}
		out[country][core.CertType(t)] = n
	}
	return out, rows.Err()
}

func (s *SQLStore) CountCRLs(ctx context.Context) (int, error) {
	var n int64
	if err := s.dbMap.SelectOne(&n, "SELECT count(*) FROM crls"); err != nil {
		return 0, fmt.Errorf("store: count crls: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) CountStoredInLDAP(ctx context.Context) (int, error) {
	var n int64
	if err := s.dbMap.SelectOne(&n, "SELECT count(*) FROM certificates WHERE stored_in_ldap = 1"); err != nil {
		return 0, fmt.Errorf("store: count stored in ldap: %w", err)
	}
	return int(n), nil
}

func (s *SQLStore) ValidationResultsWithExpiry(ctx context.Context) ([]core.ValidationResult, error) {
	var rows []core.ValidationResult
	_, err := s.dbMap.Select(&rows, "SELECT * FROM validation_results WHERE not_after IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("store: select validation results: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) UpdateValidationResult(ctx context.Context, v *core.ValidationResult) error {
	if _, err := s.dbMap.Update(v); err != nil {
		return fmt.Errorf("store: update validation_result %s: %w", v.ID, err)
	}
	return nil
}

// RecomputeUploadRollup recounts the child ValidationResults of one
// UploadedFile and rewrites its rollup counters, per spec §4.7.
func (s *SQLStore) RecomputeUploadRollup(ctx context.Context, uploadID string) error {
	var valid, invalid, expired, trustChainFail int64
	counts := []struct {
		dest  *int64
		query string
	}{
		{&valid, "SELECT count(*) FROM validation_results WHERE uploaded_file_id = ? AND validation_status = 'VALID'"},
		{&invalid, "SELECT count(*) FROM validation_results WHERE uploaded_file_id = ? AND validation_status = 'INVALID'"},
		{&expired, "SELECT count(*) FROM validation_results WHERE uploaded_file_id = ? AND is_expired = 1"},
		{&trustChainFail, "SELECT count(*) FROM validation_results WHERE uploaded_file_id = ? AND trust_chain_valid = 0"},
	}
	for _, c := range counts {
		if err := s.dbMap.SelectOne(c.dest, c.query, uploadID); err != nil {
			return fmt.Errorf("store: recompute rollup count: %w", err)
		}
	}
	_, err := s.dbMap.Exec(
		"UPDATE uploaded_files SET valid_count = ?, invalid_count = ?, expired_count = ?, trust_chain_fail_count = ? WHERE id = ?",
		valid, invalid, expired, trustChainFail, uploadID)
	if err != nil {
		return fmt.Errorf("store: update upload rollup %s: %w", uploadID, err)
	}
	return nil
}

// GetSyncConfig loads the single enforced id=1 SyncConfig row.
func (s *SQLStore) GetSyncConfig(ctx context.Context) (*core.SyncConfig, error) {
	var cfg core.SyncConfig
	err := s.dbMap.SelectOne(&cfg, "SELECT * FROM sync_config WHERE id = 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: select sync_config: %w", err)
	}
	return &cfg, nil
}

// SaveSyncConfig upserts the single id=1 SyncConfig row.
func (s *SQLStore) SaveSyncConfig(ctx context.Context, cfg *core.SyncConfig) error {
	cfg.ID = 1
	n, err := s.dbMap.Update(cfg)
	if err != nil {
		return fmt.Errorf("store: update sync_config: %w", err)
	}
	if n == 0 {
		if err := s.dbMap.Insert(cfg); err != nil {
			return fmt.Errorf("store: insert sync_config: %w", err)
		}
	}
	return nil
}
