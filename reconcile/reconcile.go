// Package reconcile implements the Reconciliation Engine (spec §4.6): it
// makes the LDAP tree a superset of the database for CSCA/DSC/DSC_NC
// material, processing types in the fixed order CSCA, DSC, DSC_NC so chain
// dependencies are always satisfied by the time a DSC is added.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/internal/idgen"
	"github.com/icao-pkd/pkd-core/sod"
)

// Config names the LDAP write endpoint (distinct from the read load-balancer
// endpoint used by trust.LdapProvider) and the per-run batch size.
type Config struct {
	WriteURL            string
	BindDN               string
	BindPassword         string
	BaseDN               string
	MaxReconcileBatchSize int
}

func (c Config) batchSize() int {
	if c.MaxReconcileBatchSize <= 0 {
		return 500
	}
	return c.MaxReconcileBatchSize
}

// orderedTypes is the fixed processing order of spec §4.6: CSCA first so
// DSC chain verification has something to hang off, then DSC, then DSC_NC.
var orderedTypes = []core.CertType{core.CertTypeCSCA, core.CertTypeDSC, core.CertTypeDSCNC}

// Engine runs one reconciliation pass per Run call.
type Engine struct {
	store core.Store
	cfg   Config
	log   blog.Logger
}

// NewEngine constructs a reconciliation Engine.
func NewEngine(store core.Store, cfg Config, log blog.Logger) *Engine {
	if log == nil {
		log = blog.Get()
	}
	return &Engine{store: store, cfg: cfg, log: log}
}

// Run executes the protocol of spec §4.6 once: opens a ReconciliationSummary,
// binds to the LDAP write endpoint, adds every pending certificate in
// CSCA/DSC/DSC_NC order, and finalizes the summary. A dry run writes logs
// and counts but never mutates LDAP or stored_in_ldap (spec §8 property 6).
func (e *Engine) Run(ctx context.Context, triggeredBy core.TriggerSource, dryRun bool, syncStatusID string) (*core.ReconciliationSummary, error) {
	summary := &core.ReconciliationSummary{
		ID:           idgen.New(),
		TriggeredBy:  triggeredBy,
		DryRun:       dryRun,
		Status:       core.ReconciliationInProgress,
		SyncStatusID: syncStatusID,
		StartedAt:    time.Now(),
	}
	if _, err := e.store.CreateReconciliationSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("reconcile: create summary: %w", err)
	}

	conn, err := e.dialWrite()
	if err != nil {
		summary.Status = core.ReconciliationFailed
		summary.FinishedAt = time.Now()
		summary.DurationMs = time.Since(summary.StartedAt).Milliseconds()
		e.log.AuditErr(fmt.Sprintf("reconcile: write endpoint bind failed: %s", err))
		_ = e.store.UpdateReconciliationSummary(ctx, summary)
		return summary, nil
	}
	defer conn.Close()

	for _, certType := range orderedTypes {
		added, success, failed := e.reconcileType(ctx, conn, summary.ID, certType, dryRun)
		switch certType {
		case core.CertTypeCSCA:
			summary.CSCAAdded = added
		case core.CertTypeDSC:
			summary.DSCAdded = added
		case core.CertTypeDSCNC:
			summary.DSCNCAdded = added
		}
		summary.SuccessCount += success
		summary.FailedCount += failed
	}

	summary.FinishedAt = time.Now()
	summary.DurationMs = time.Since(summary.StartedAt).Milliseconds()
	switch {
	case summary.FailedCount == 0:
		summary.Status = core.ReconciliationCompleted
	case summary.SuccessCount == 0 && summary.FailedCount > 0:
		summary.Status = core.ReconciliationFailed
	default:
		summary.Status = core.ReconciliationPartial
	}

	if err := e.store.UpdateReconciliationSummary(ctx, summary); err != nil {
		e.log.AuditErr(fmt.Sprintf("reconcile: failed to finalize summary %s: %s", summary.ID, err))
	}
	return summary, nil
}

func (e *Engine) dialWrite() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(e.cfg.WriteURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", e.cfg.WriteURL, err)
	}
	if e.cfg.BindDN != "" {
		if err := conn.Bind(e.cfg.BindDN, e.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind: %w", err)
		}
	}
	return conn, nil
}

// reconcileType processes up to MaxReconcileBatchSize pending certificates
// of one type, returning counts of certificates added (attempted),
// successes and failures.
func (e *Engine) reconcileType(ctx context.Context, conn *ldap.Conn, summaryID string, certType core.CertType, dryRun bool) (added, success, failed int) {
	certs, err := e.store.PendingCertificatesByType(ctx, certType, e.cfg.batchSize())
	if err != nil {
		e.log.Warning(fmt.Sprintf("reconcile: listing pending %s failed: %s", certType, err))
		return 0, 0, 0
	}

	for _, cert := range certs {
		added++
		start := time.Now()
		dn, objectClasses := e.dnFor(cert, certType)

		logRow := &core.ReconciliationLog{
			ID:            idgen.New(),
			SummaryID:     summaryID,
			CertificateID: cert.ID,
			Operation:     core.OperationAdd,
			CreatedAt:     time.Now(),
		}

		if dryRun {
			logRow.Status = core.OperationSuccess
			logRow.DurationMs = time.Since(start).Milliseconds()
			success++
			if err := e.store.AppendReconciliationLog(ctx, logRow); err != nil {
				e.log.Warning(fmt.Sprintf("reconcile: failed to append dry-run log for %s: %s", cert.ID, err))
			}
			continue
		}

		addReq := ldap.NewAddRequest(dn, nil)
		addReq.Attribute("objectClass", objectClasses)
		addReq.Attribute("cn", []string{fmt.Sprintf("cert-%s", cert.ID)})
		addReq.Attribute("userCertificate;binary", []string{sod.CertToPEM(cert.DER)})

		if err := conn.Add(addReq); err != nil {
			logRow.Status = core.OperationFailed
			logRow.ErrorMessage = err.Error()
			failed++
		} else {
			logRow.Status = core.OperationSuccess
			success++
			if err := e.store.MarkStoredInLDAP(ctx, cert.ID); err != nil {
				e.log.Warning(fmt.Sprintf("reconcile: failed to mark %s stored: %s", cert.ID, err))
			}
		}
		logRow.DurationMs = time.Since(start).Milliseconds()
		if err := e.store.AppendReconciliationLog(ctx, logRow); err != nil {
			e.log.Warning(fmt.Sprintf("reconcile: failed to append log for %s: %s", cert.ID, err))
		}
	}
	return added, success, failed
}

// dnFor builds the DN and objectClass set of spec §4.6:
// cn=cert-<id>,o=<csca|dsc>,c=<CC>,dc=<data|nc-data>,dc=download,dc=pkd,<base>.
func (e *Engine) dnFor(cert core.Certificate, certType core.CertType) (dn string, objectClasses []string) {
	o := "dsc"
	dc := "data"
	objectClasses = []string{"top", "pkiCertificate"}
	if certType == core.CertTypeCSCA {
		o = "csca"
		objectClasses = []string{"top", "cscaCertificateObject"}
	}
	if certType == core.CertTypeDSCNC {
		dc = "nc-data"
	}
	dn = fmt.Sprintf("cn=cert-%s,o=%s,c=%s,dc=%s,dc=download,dc=pkd,%s", cert.ID, o, cert.Country, dc, e.cfg.BaseDN)
	return dn, objectClasses
}
