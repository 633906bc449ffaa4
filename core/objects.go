// Package core defines the domain objects shared by every component of the
// PKD core: the relational entities described in spec §3, modeled as plain
// structs with db tags (ids are opaque strings, per the teacher's "treat ids
// as opaque, convert at the persistence boundary only" convention) rather
// than a class hierarchy with a shared "Entity" base.
package core

import "time"

// CertType enumerates the kinds of certificate material the mirror tracks.
type CertType string

const (
	CertTypeCSCA  CertType = "CSCA"
	CertTypeDSC   CertType = "DSC"
	CertTypeDSCNC CertType = "DSC_NC"
	CertTypeMLSC  CertType = "MLSC"

	// CertTypeCRL is a classification-only sentinel used by the stats
	// collector (§4.5) to bucket LDAP entries under o=crl; it is never
	// persisted as a Certificate.Type value.
	CertTypeCRL CertType = "CRL"
)

// Certificate is a single CSCA/DSC/DSC_NC/MLSC record. Identity is
// (Type, FingerprintSHA256); StoredInLDAP is monotonic false->true except
// for administrative intervention outside the core.
type Certificate struct {
	ID                string    `db:"id"`
	Type              CertType  `db:"certificate_type"`
	Country           string    `db:"country_code"`
	SubjectDN         string    `db:"subject_dn"`
	IssuerDN          string    `db:"issuer_dn"`
	Serial            string    `db:"serial"`
	FingerprintSHA256 string    `db:"fingerprint_sha256"`
	NotBefore         time.Time `db:"not_before"`
	NotAfter          time.Time `db:"not_after"`
	DER               []byte    `db:"binary_der"`
	StoredInLDAP      bool      `db:"stored_in_ldap"`
	FirstUploadID     string    `db:"first_upload_id"`
}

// CRL is a country's Certificate Revocation List. Identity is
// FingerprintSHA256.
type CRL struct {
	ID         string    `db:"id"`
	Country    string    `db:"country_code"`
	IssuerDN   string    `db:"issuer_dn"`
	ThisUpdate time.Time `db:"this_update"`
	NextUpdate time.Time `db:"next_update"`
	DER        []byte    `db:"binary_der"`
	Fingerprint string   `db:"fingerprint_sha256"`
}

// UploadedFile is the aggregate root for one ingested upload: it owns its
// child Certificates/CRLs/MasterLists and carries per-upload rollup counts
// that the revalidator keeps in sync with child ValidationResults.
type UploadedFile struct {
	ID             string    `db:"id"`
	Filename       string    `db:"filename"`
	UploadedAt     time.Time `db:"uploaded_at"`
	ValidCount     int       `db:"valid_count"`
	InvalidCount   int       `db:"invalid_count"`
	ExpiredCount   int       `db:"expired_count"`
	TrustChainFail int       `db:"trust_chain_fail_count"`
}

// ValidationStatus is the outcome recorded on a ValidationResult.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "VALID"
	ValidationInvalid ValidationStatus = "INVALID"
)

// RevocationStatus classifies the outcome of a CRL lookup, per spec §4.3
// step 7.
type RevocationStatus string

const (
	RevocationValid         RevocationStatus = "VALID"
	RevocationRevoked       RevocationStatus = "REVOKED"
	RevocationCRLUnavailable RevocationStatus = "CRL_UNAVAILABLE"
	RevocationCRLExpired    RevocationStatus = "CRL_EXPIRED"
	RevocationCRLInvalid    RevocationStatus = "CRL_INVALID"
	RevocationNotChecked    RevocationStatus = "NOT_CHECKED"
)

// ValidationResult is the per-(certificate, upload) derived record the
// revalidator updates as certificates age past their NotAfter.
type ValidationResult struct {
	ID                  string           `db:"id"`
	CertificateID       string           `db:"certificate_id"`
	UploadedFileID       string          `db:"uploaded_file_id"`
	ValidationStatus    ValidationStatus `db:"validation_status"`
	TrustChainValid     bool             `db:"trust_chain_valid"`
	SignatureValid      bool             `db:"signature_valid"`
	ValidityPeriodValid bool             `db:"validity_period_valid"`
	RevocationStatus    RevocationStatus `db:"revocation_status"`
	IsExpired           bool             `db:"is_expired"`
	NotAfter            time.Time        `db:"not_after"`
}

// SyncOverallStatus is SyncStatus.Status, per spec §3.
type SyncOverallStatus string

const (
	SyncStatusSynced      SyncOverallStatus = "SYNCED"
	SyncStatusDiscrepancy SyncOverallStatus = "DISCREPANCY"
	SyncStatusError       SyncOverallStatus = "ERROR"
)

// SyncStatus is an immutable snapshot of one stats-comparison run (§4.5/§4.6).
type SyncStatus struct {
	ID                string            `db:"id"`
	CheckedAt         time.Time         `db:"checked_at"`
	Status            SyncOverallStatus `db:"status"`
	DBCounts          map[string]int    `db:"-"`
	LDAPCounts        map[string]int    `db:"-"`
	DBCountsJSON      string            `db:"db_counts_json"`
	LDAPCountsJSON    string            `db:"ldap_counts_json"`
	CSCADiscrepancy   int               `db:"csca_discrepancy"`
	DSCDiscrepancy    int               `db:"dsc_discrepancy"`
	DSCNCDiscrepancy  int               `db:"dsc_nc_discrepancy"`
	CRLDiscrepancy    int               `db:"crl_discrepancy"`
	TotalDiscrepancy  int               `db:"total_discrepancy"`
	CountryBreakdown  string            `db:"country_breakdown_json"`
	DurationMs        int64             `db:"duration_ms"`
}

// TriggerSource identifies what started a reconciliation run.
type TriggerSource string

const (
	TriggerManual     TriggerSource = "MANUAL"
	TriggerAuto       TriggerSource = "AUTO"
	TriggerDailySync  TriggerSource = "DAILY_SYNC"
)

// ReconciliationStatus is the lifecycle state of a ReconciliationSummary.
type ReconciliationStatus string

const (
	ReconciliationInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationCompleted  ReconciliationStatus = "COMPLETED"
	ReconciliationPartial    ReconciliationStatus = "PARTIAL"
	ReconciliationFailed     ReconciliationStatus = "FAILED"
)

// ReconciliationSummary is the parent record for one reconciliation run.
type ReconciliationSummary struct {
	ID            string               `db:"id"`
	TriggeredBy   TriggerSource        `db:"triggered_by"`
	DryRun        bool                 `db:"dry_run"`
	Status        ReconciliationStatus `db:"status"`
	SyncStatusID  string               `db:"sync_status_id"`
	StartedAt     time.Time            `db:"started_at"`
	FinishedAt    time.Time            `db:"finished_at"`
	CSCAAdded     int                  `db:"csca_added"`
	DSCAdded      int                  `db:"dsc_added"`
	DSCNCAdded    int                  `db:"dsc_nc_added"`
	Deleted       int                  `db:"deleted_count"`
	SuccessCount  int                  `db:"success_count"`
	FailedCount   int                  `db:"failed_count"`
	DurationMs    int64                `db:"duration_ms"`
}

// ReconciliationOperation identifies the kind of LDAP mutation a
// ReconciliationLog row recorded.
type ReconciliationOperation string

const (
	OperationAdd    ReconciliationOperation = "ADD"
	OperationDelete ReconciliationOperation = "DELETE"
)

// OperationStatus is the per-op outcome in a ReconciliationLog row.
type OperationStatus string

const (
	OperationSuccess OperationStatus = "SUCCESS"
	OperationFailed  OperationStatus = "FAILED"
)

// ReconciliationLog is one per-certificate LDAP add/delete attempt, owned by
// its ReconciliationSummary (cascade on delete).
type ReconciliationLog struct {
	ID              string                  `db:"id"`
	SummaryID       string                  `db:"summary_id"`
	CertificateID   string                  `db:"certificate_id"`
	Operation       ReconciliationOperation `db:"operation"`
	Status          OperationStatus         `db:"status"`
	DurationMs      int64                   `db:"duration_ms"`
	ErrorMessage    string                  `db:"error_message"`
	CreatedAt       time.Time               `db:"created_at"`
}

// PaOverallStatus is PaVerification.Status, per spec §4.3.
type PaOverallStatus string

const (
	PaStatusValid   PaOverallStatus = "VALID"
	PaStatusInvalid PaOverallStatus = "INVALID"
	PaStatusError   PaOverallStatus = "ERROR"
)

// PaVerification is the parent record of one chip verification run.
type PaVerification struct {
	ID                  string          `db:"id"`
	Status              PaOverallStatus `db:"status"`
	VerificationTimestamp time.Time     `db:"verification_timestamp"`
	IssuingCountry      string          `db:"issuing_country"`
	DocumentNumber      string          `db:"document_number"`
	SodHash             string          `db:"sod_hash"`
	DscSubjectDN        string          `db:"dsc_subject_dn"`
	CscaSubjectDN       string          `db:"csca_subject_dn"`
	CrlStatus           RevocationStatus `db:"crl_status"`
	ProcessingDurationMs int64          `db:"processing_duration_ms"`
}

// PaDataGroup is one per-DG hash-verification child row.
type PaDataGroup struct {
	ID             string `db:"id"`
	VerificationID string `db:"verification_id"`
	DGNumber       int    `db:"dg_number"`
	ExpectedHash   string `db:"expected_hash"`
	ActualHash     string `db:"actual_hash"`
	Valid          bool   `db:"valid"`
	Algorithm      string `db:"algorithm"`
}

// RevalidationHistory is one row per revalidator sweep, per spec §4.7.
type RevalidationHistory struct {
	ID             string    `db:"id"`
	RunAt          time.Time `db:"run_at"`
	TotalProcessed int       `db:"total_processed"`
	NewlyExpired   int       `db:"newly_expired"`
	NewlyValid     int       `db:"newly_valid"`
	Unchanged      int       `db:"unchanged"`
	Errors         int       `db:"errors"`
	DurationMs     int64     `db:"duration_ms"`
}

// SyncConfig is the single-row live configuration persisted alongside the
// in-memory config.Store snapshot (spec §3: enforced id=1 invariant).
type SyncConfig struct {
	ID                    int    `db:"id"`
	DailySyncEnabled      bool   `db:"daily_sync_enabled"`
	DailySyncHour         int    `db:"daily_sync_hour"`
	DailySyncMinute       int    `db:"daily_sync_minute"`
	AutoReconcile         bool   `db:"auto_reconcile"`
	RevalidateCertsOnSync bool   `db:"revalidate_certs_on_sync"`
	MaxReconcileBatchSize int    `db:"max_reconcile_batch_size"`
}
