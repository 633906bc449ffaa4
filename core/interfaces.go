package core

import (
	"context"
	"crypto/x509"
)

// CscaProvider resolves CSCA certificates by issuer DN, per spec §4.2. A
// capability set rather than a class hierarchy: callers hold the interface,
// never a concrete provider type.
type CscaProvider interface {
	FindByIssuerDN(ctx context.Context, issuerDN, country string) (*x509.Certificate, error)
	FindAllByIssuerDN(ctx context.Context, issuerDN string) ([]*x509.Certificate, error)
}

// CrlProvider resolves a country's CRL, per spec §4.2.
type CrlProvider interface {
	FindByCountry(ctx context.Context, country string) (*CRL, error)
}

// Store is the persistence façade (§4.9): a parameterised write-through
// surface for PA results, sync snapshots, and reconciliation logs. All
// binary payloads and numeric/boolean flags are bound as typed parameters,
// never concatenated into SQL text.
type Store interface {
	SavePaVerification(ctx context.Context, v *PaVerification, dgs []PaDataGroup) error
	GetPaVerification(ctx context.Context, id string) (*PaVerification, []PaDataGroup, error)
	ListPaVerifications(ctx context.Context, status PaOverallStatus, country string, page, size int) ([]PaVerification, int, error)

	SaveSyncStatus(ctx context.Context, s *SyncStatus) (string, error)
	GetSyncStatus(ctx context.Context, id string) (*SyncStatus, error)
	LatestSyncStatus(ctx context.Context) (*SyncStatus, error)

	CreateReconciliationSummary(ctx context.Context, s *ReconciliationSummary) (string, error)
	UpdateReconciliationSummary(ctx context.Context, s *ReconciliationSummary) error
	AppendReconciliationLog(ctx context.Context, l *ReconciliationLog) error

	SaveRevalidationHistory(ctx context.Context, h *RevalidationHistory) error

	PendingCertificatesByType(ctx context.Context, t CertType, limit int) ([]Certificate, error)
	MarkStoredInLDAP(ctx context.Context, certID string) error

	CountCertificatesByType(ctx context.Context) (map[CertType]int, error)
	CountCertificatesByCountryAndType(ctx context.Context) (map[string]map[CertType]int, error)
	CountCRLs(ctx context.Context) (int, error)
	CountStoredInLDAP(ctx context.Context) (int, error)

	ValidationResultsWithExpiry(ctx context.Context) ([]ValidationResult, error)
	UpdateValidationResult(ctx context.Context, v *ValidationResult) error
	RecomputeUploadRollup(ctx context.Context, uploadID string) error

	GetSyncConfig(ctx context.Context) (*SyncConfig, error)
	SaveSyncConfig(ctx context.Context, c *SyncConfig) error
}
