package pa

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/internal/idgen"
	"github.com/icao-pkd/pkd-core/internal/pkderrors"
	"github.com/icao-pkd/pkd-core/mrz"
	"github.com/icao-pkd/pkd-core/sod"
)

// Engine runs the 8-step Passive Authentication state machine of spec §4.3.
type Engine struct {
	csca    core.CscaProvider
	crl     core.CrlProvider
	store   core.Store
	log     blog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewEngine constructs an Engine. metrics may be nil to disable metric
// emission (e.g. in tests).
func NewEngine(csca core.CscaProvider, crl core.CrlProvider, store core.Store, log blog.Logger, metrics *Metrics) *Engine {
	if log == nil {
		log = blog.Get()
	}
	return &Engine{
		csca:    csca,
		crl:     crl,
		store:   store,
		log:     log,
		metrics: metrics,
		tracer:  otel.GetTracerProvider().Tracer("pa"),
	}
}

// Verify runs the full state machine for one chip read. Persistence failure
// is logged but never changes the returned status, per spec §4.3.
func (e *Engine) Verify(ctx context.Context, req Request) *Result {
	ctx, span := e.tracer.Start(ctx, "pa.verify")
	defer span.End()

	start := time.Now()
	r := &Result{
		VerificationID:        idgen.New(),
		VerificationTimestamp: start,
		IssuingCountry:        strings.ToUpper(req.IssuingCountry),
		DocumentNumber:        req.DocumentNumber,
		CrlStatus:             core.RevocationNotChecked,
		DataGroupValidation:   DataGroupValidation{PerGroup: make(map[int]DataGroupResult)},
	}

	sodBytes, dgBytes, status, done := e.decode(ctx, req, r)
	if done {
		r.Status = status
		r.ProcessingDurationMs = time.Since(start).Milliseconds()
		e.finish(ctx, r)
		return r
	}

	dsc := e.extractDSC(ctx, sodBytes, dgBytes, r)
	csca := e.lookupCSCA(ctx, dsc, r)
	e.verifyTrustChain(ctx, dsc, csca, r)
	e.verifySodSignature(ctx, sodBytes, dsc, r)
	e.verifyDataGroups(ctx, sodBytes, dgBytes, r)
	e.checkCRL(ctx, dsc, r)
	e.parseDataGroups(ctx, dgBytes, r)

	if r.overallValid() {
		r.Status = core.PaStatusValid
	} else {
		r.Status = core.PaStatusInvalid
	}
	r.ProcessingDurationMs = time.Since(start).Milliseconds()
	e.finish(ctx, r)
	return r
}

func (e *Engine) addError(r *Result, code, msg string, sev Severity) {
	r.Errors = append(r.Errors, Error{Code: code, Message: msg, Severity: sev, Timestamp: time.Now()})
}

// step 1: decode. Returns (sodBytes, dgBytes, status, true) if the pipeline
// must stop here.
func (e *Engine) decode(ctx context.Context, req Request, r *Result) ([]byte, map[int][]byte, core.PaOverallStatus, bool) {
	_, span := e.tracer.Start(ctx, "pa.decode")
	defer span.End()

	sodBytes, err := base64.StdEncoding.DecodeString(req.SodBase64)
	if err != nil {
		span.SetStatus(codes.Error, "invalid sod")
		e.addError(r, string(pkderrors.InvalidSOD), fmt.Sprintf("sod is not valid base64: %s", err), SeverityCritical)
		return nil, nil, core.PaStatusError, true
	}

	if len(req.DataGroups) == 0 {
		span.SetStatus(codes.Error, "invalid request")
		e.addError(r, string(pkderrors.InvalidRequest), "no data groups supplied", SeverityCritical)
		return nil, nil, core.PaStatusError, true
	}

	return sod.UnwrapSOD(sodBytes), req.DataGroups, "", false
}

// step 2: extract DSC, derive issuingCountry/documentNumber when absent.
func (e *Engine) extractDSC(ctx context.Context, sodBytes []byte, dgBytes map[int][]byte, r *Result) *x509.Certificate {
	_, span := e.tracer.Start(ctx, "pa.extract_dsc")
	defer span.End()

	dsc, err := sod.ExtractDSC(sodBytes)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.addError(r, string(pkderrors.InvalidSOD), fmt.Sprintf("could not extract DSC: %s", err), SeverityCritical)
		return nil
	}

	if r.IssuingCountry == "" {
		r.IssuingCountry = sod.ExtractDNAttribute(sod.SubjectDN(dsc), "C")
	}

	if r.DocumentNumber == "" {
		if dg1, ok := dgBytes[1]; ok {
			if mrzText, err := mrz.ExtractMRZFromDG1(dg1); err == nil {
				if fields, ok := mrz.Parse(mrzText); ok {
					r.DocumentNumber = fields.DocumentNumber
				}
			}
		}
	}

	span.SetAttributes(attribute.String("pa.dsc_subject", sod.SubjectDN(dsc)))
	return dsc
}

// step 3: CSCA lookup.
func (e *Engine) lookupCSCA(ctx context.Context, dsc *x509.Certificate, r *Result) *x509.Certificate {
	_, span := e.tracer.Start(ctx, "pa.lookup_csca")
	defer span.End()

	if dsc == nil {
		return nil
	}
	issuerDN := sod.IssuerDN(dsc)
	csca, err := e.csca.FindByIssuerDN(context.Background(), issuerDN, r.IssuingCountry)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.addError(r, string(pkderrors.CertNotFound), fmt.Sprintf("csca lookup failed: %s", err), SeverityCritical)
		return nil
	}
	if csca == nil {
		e.addError(r, string(pkderrors.CertNotFound), fmt.Sprintf("no CSCA found for issuer %q", issuerDN), SeverityCritical)
	}
	return csca
}

// step 4: trust chain verification.
func (e *Engine) verifyTrustChain(ctx context.Context, dsc, csca *x509.Certificate, r *Result) {
	_, span := e.tracer.Start(ctx, "pa.verify_trust_chain")
	defer span.End()

	cv := ChainValidation{}
	if dsc != nil {
		cv.DscSubject = sod.SubjectDN(dsc)
		cv.DscSerialNumber = sod.SerialHex(dsc)
		cv.NotBefore = dsc.NotBefore
		cv.NotAfter = dsc.NotAfter
	}
	if csca != nil {
		cv.CscaSubject = sod.SubjectDN(csca)
		cv.CscaSerialNumber = sod.SerialHex(csca)
	}

	if dsc == nil || csca == nil {
		cv.ValidationErrors = append(cv.ValidationErrors, "missing dsc or csca")
		e.addError(r, string(pkderrors.ChainValidationFailed), "cannot verify trust chain without both DSC and CSCA", SeverityCritical)
		r.CertificateChainValidation = cv
		span.SetStatus(codes.Error, "missing dsc or csca")
		return
	}

	if err := dsc.CheckSignatureFrom(csca); err != nil {
		cv.ValidationErrors = append(cv.ValidationErrors, err.Error())
		e.addError(r, string(pkderrors.ChainValidationFailed), fmt.Sprintf("dsc signature check failed: %s", err), SeverityCritical)
		r.CertificateChainValidation = cv
		span.SetStatus(codes.Error, err.Error())
		return
	}

	cv.Valid = true
	if time.Now().After(dsc.NotAfter) || time.Now().Before(dsc.NotBefore) {
		e.addError(r, string(pkderrors.ChainValidationFailed), "dsc is outside its validity period", SeverityWarning)
	}
	r.CertificateChainValidation = cv
}

// step 5: SOD signature verification.
func (e *Engine) verifySodSignature(ctx context.Context, sodBytes []byte, dsc *x509.Certificate, r *Result) {
	_, span := e.tracer.Start(ctx, "pa.verify_sod_signature")
	defer span.End()

	sv := SodSignatureValidation{}
	hashAlg, herr := sod.ExtractHashAlgorithm(sodBytes)
	if herr == nil {
		sv.HashAlgorithm = hashAlg.Name
	}
	if sigAlg, serr := sod.ExtractSignatureAlgorithm(sodBytes); serr == nil {
		sv.SignatureAlgorithm = sigAlg
	}

	if dsc == nil {
		sv.ValidationErrors = append(sv.ValidationErrors, "no dsc available")
		r.SodSignatureValidation = sv
		return
	}

	if err := sod.VerifySODSignature(sodBytes, dsc); err != nil {
		sv.ValidationErrors = append(sv.ValidationErrors, err.Error())
		e.addError(r, string(pkderrors.SodSignatureInvalid), fmt.Sprintf("sod signature verification failed: %s", err), SeverityCritical)
		span.SetStatus(codes.Error, err.Error())
		r.SodSignatureValidation = sv
		return
	}
	sv.Valid = true
	r.SodSignatureValidation = sv
}

// step 6: DG hash verification.
func (e *Engine) verifyDataGroups(ctx context.Context, sodBytes []byte, dgBytes map[int][]byte, r *Result) {
	_, span := e.tracer.Start(ctx, "pa.verify_data_groups")
	defer span.End()

	expected, err := sod.ParseDGHashes(sodBytes)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.addError(r, string(pkderrors.InvalidSOD), fmt.Sprintf("could not parse data group hashes: %s", err), SeverityCritical)
		return
	}
	hashAlg := r.SodSignatureValidation.HashAlgorithm
	if hashAlg == "" {
		hashAlg = "SHA-256"
	}

	dgv := DataGroupValidation{PerGroup: make(map[int]DataGroupResult)}
	for dg, raw := range dgBytes {
		actual := sod.CalculateHash(raw, hashAlg)
		actualHex := hex.EncodeToString(actual)
		want, ok := expected[dg]
		wantHex := hex.EncodeToString(want)

		valid := ok && wantHex == actualHex
		dgv.PerGroup[dg] = DataGroupResult{Valid: valid, ExpectedHash: wantHex, ActualHash: actualHex}
		dgv.Total++
		if valid {
			dgv.Valid++
		} else {
			dgv.InvalidGroups++
			e.addError(r, string(pkderrors.DgHashMismatch), fmt.Sprintf("data group %d hash mismatch", dg), SeverityWarning)
		}
	}
	r.DataGroupValidation = dgv
}

// step 7: CRL check.
func (e *Engine) checkCRL(ctx context.Context, dsc *x509.Certificate, r *Result) {
	_, span := e.tracer.Start(ctx, "pa.check_crl")
	defer span.End()

	if dsc == nil {
		r.CrlStatus = core.RevocationNotChecked
		return
	}

	crl, err := e.crl.FindByCountry(context.Background(), r.IssuingCountry)
	if err != nil || crl == nil {
		r.CrlStatus = core.RevocationCRLUnavailable
		e.addError(r, string(pkderrors.PaExecutionError), "crl unavailable for issuing country", SeverityWarning)
		return
	}
	if time.Now().After(crl.NextUpdate) {
		r.CrlStatus = core.RevocationCRLExpired
		e.addError(r, string(pkderrors.PaExecutionError), "crl has passed its nextUpdate", SeverityWarning)
		return
	}

	revokedList, err := x509.ParseRevocationList(crl.DER)
	if err != nil {
		r.CrlStatus = core.RevocationCRLInvalid
		span.SetStatus(codes.Error, err.Error())
		return
	}
	for _, rc := range revokedList.RevokedCertificateEntries {
		if rc.SerialNumber.Cmp(dsc.SerialNumber) == 0 {
			r.CrlStatus = core.RevocationRevoked
			r.Revoked = true
			r.RevokedAt = rc.RevocationTime
			e.addError(r, string(pkderrors.CertificateRevoked), fmt.Sprintf("dsc serial %s revoked at %s", sod.SerialHex(dsc), rc.RevocationTime.Format(time.RFC3339)), SeverityCritical)
			return
		}
	}
	r.CrlStatus = core.RevocationValid
}

// step 8: best-effort DG parsing.
func (e *Engine) parseDataGroups(ctx context.Context, dgBytes map[int][]byte, r *Result) {
	_, span := e.tracer.Start(ctx, "pa.parse_data_groups")
	defer span.End()

	if dg1, ok := dgBytes[1]; ok {
		if mrzText, err := mrz.ExtractMRZFromDG1(dg1); err == nil {
			if fields, ok := mrz.Parse(mrzText); ok {
				r.DG1 = &DG1Fields{
					DocumentNumber: fields.DocumentNumber,
					DateOfBirth:    fields.DateOfBirth,
					Sex:            fields.Sex,
					Nationality:    fields.Nationality,
					Surname:        fields.Surname,
					GivenNames:     fields.GivenNames,
				}
			}
		}
	}

	if dg2, ok := dgBytes[2]; ok {
		if img, err := mrz.ExtractFaceImage(dg2); err == nil {
			mimeType := "image/jpeg"
			if img.Format == mrz.ImageJPEG2000 {
				mimeType = "image/jp2"
			}
			r.DG2 = &DG2Image{
				Format:  string(img.Format),
				Width:   img.Width,
				Height:  img.Height,
				DataURL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data)),
			}
		}
	}
}

// finish persists the verification and records metrics. Persistence
// failures are logged, never surfaced: spec §4.3's persistence contract.
func (e *Engine) finish(ctx context.Context, r *Result) {
	if e.metrics != nil {
		e.metrics.observe(r)
	}
	if e.store == nil {
		return
	}

	v := &core.PaVerification{
		ID:                    r.VerificationID,
		Status:                r.Status,
		VerificationTimestamp: r.VerificationTimestamp,
		IssuingCountry:        r.IssuingCountry,
		DocumentNumber:        r.DocumentNumber,
		DscSubjectDN:          r.CertificateChainValidation.DscSubject,
		CscaSubjectDN:         r.CertificateChainValidation.CscaSubject,
		CrlStatus:             r.CrlStatus,
		ProcessingDurationMs:  r.ProcessingDurationMs,
	}
	dgs := make([]core.PaDataGroup, 0, len(r.DataGroupValidation.PerGroup))
	for dg, res := range r.DataGroupValidation.PerGroup {
		dgs = append(dgs, core.PaDataGroup{
			VerificationID: r.VerificationID,
			DGNumber:       dg,
			ExpectedHash:   res.ExpectedHash,
			ActualHash:     res.ActualHash,
			Valid:          res.Valid,
		})
	}
	if err := e.store.SavePaVerification(ctx, v, dgs); err != nil {
		e.log.AuditErr(fmt.Sprintf("pa: failed to persist verification %s: %s", r.VerificationID, err))
	}
}
