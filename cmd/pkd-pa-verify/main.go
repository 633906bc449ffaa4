// Command pkd-pa-verify serves the external HTTP interface of spec §6: the
// Passive Authentication API (verify/history/detail/datagroups, plus
// parser-only helpers) and the sync admin API (status/history/config,
// check/reconcile/revalidate/trigger-daily). Routes are registered directly
// on a ServeMux rather than through a router framework, the same bare
// net/http style the teacher's own front end uses.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd-core/cmd"
	"github.com/icao-pkd/pkd-core/config"
	"github.com/icao-pkd/pkd-core/core"
	pkderrors "github.com/icao-pkd/pkd-core/errors"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/mrz"
	"github.com/icao-pkd/pkd-core/pa"
	"github.com/icao-pkd/pkd-core/reconcile"
	"github.com/icao-pkd/pkd-core/revalidate"
	"github.com/icao-pkd/pkd-core/scheduler"
	"github.com/icao-pkd/pkd-core/sod"
	"github.com/icao-pkd/pkd-core/stats"
	"github.com/icao-pkd/pkd-core/store"
	"github.com/icao-pkd/pkd-core/trust"
)

type paVerifierConfig struct {
	PAVerifier cmd.PAVerifierConfig
	Scheduler  cmd.SchedulerConfig
	DB         cmd.DBConfig
	LDAP       cmd.LDAPConfig
	Redis      cmd.RedisConfig
	Syslog     cmd.SyslogConfig
}

func main() {
	configFile := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	var c paVerifierConfig
	cmd.FailOnError(cmd.ReadConfigFile(*configFile, &c), "Reading config file")

	reg, logger := cmd.StatsAndLogging(c.Syslog)
	go cmd.DebugServer(c.PAVerifier.DebugAddr)

	dbMap, err := store.NewDbMap(c.DB.DBConnect.String(), logger)
	cmd.FailOnError(err, "Connecting to database")
	db := store.New(dbMap, logger)

	ctx := context.Background()
	cfgStore, err := config.New(ctx, db, nil)
	cmd.FailOnError(err, "Loading live configuration")

	var csca core.CscaProvider = trust.NewLdapProvider(trust.Config{
		URL:          c.LDAP.ReadURL,
		BindDN:       c.LDAP.BindDN,
		BindPassword: c.LDAP.BindPassword.String(),
		BaseDN:       c.LDAP.BaseDN,
		DialTimeout:  c.LDAP.DialTimeout.Duration,
		SearchLimit:  c.LDAP.SearchLimit,
	}, logger)
	if c.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password.String(),
			DB:       c.Redis.DB,
		})
		csca = trust.NewCachedCscaProvider(csca, rdb, c.Redis.TTL.Duration, logger)
	}
	crl := trust.NewLdapProvider(trust.Config{
		URL:          c.LDAP.ReadURL,
		BindDN:       c.LDAP.BindDN,
		BindPassword: c.LDAP.BindPassword.String(),
		BaseDN:       c.LDAP.BaseDN,
		DialTimeout:  c.LDAP.DialTimeout.Duration,
		SearchLimit:  c.LDAP.SearchLimit,
	}, logger)

	engine := pa.NewEngine(csca, crl, db, logger, pa.NewMetrics(reg))

	triggerDataDir := c.Scheduler.TriggerQueueDataDir
	if triggerDataDir == "" {
		triggerDataDir = "pkd-scheduler-triggers"
	}
	queue, err := scheduler.OpenTriggerQueue(triggerDataDir)
	cmd.FailOnError(err, "Opening trigger queue")
	defer queue.Close()

	srv := &server{
		db:       db,
		engine:   engine,
		cfgStore: cfgStore,
		queue:    queue,
		ldapCfg:  c.LDAP,
		log:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/pa/verify", srv.verify)
	mux.HandleFunc("/api/pa/history", srv.history)
	mux.HandleFunc("/api/pa/parse-dg1", srv.parseDG1)
	mux.HandleFunc("/api/pa/parse-dg2", srv.parseDG2)
	mux.HandleFunc("/api/pa/parse-mrz-text", srv.parseMRZText)
	mux.HandleFunc("/api/pa/parse-sod", srv.parseSOD)
	mux.HandleFunc("/api/pa/", srv.detailOrDataGroups)

	mux.HandleFunc("/api/sync/status", srv.syncStatus)
	mux.HandleFunc("/api/sync/history", srv.syncHistory)
	mux.HandleFunc("/api/sync/config", srv.syncConfig)
	mux.HandleFunc("/api/sync/revalidation-history", srv.revalidationHistory)
	mux.HandleFunc("/api/sync/check", srv.syncCheck)
	mux.HandleFunc("/api/sync/reconcile", srv.syncReconcile)
	mux.HandleFunc("/api/sync/revalidate", srv.syncRevalidate)
	mux.HandleFunc("/api/sync/trigger-daily", srv.syncTriggerDaily)

	listenAddr := c.PAVerifier.ListenAddress
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	logger.Info(fmt.Sprintf("pkd-pa-verify: listening on %s", listenAddr))
	cmd.FailOnError(http.ListenAndServe(listenAddr, mux), "Serving HTTP")
}

type server struct {
	db       *store.SQLStore
	engine   *pa.Engine
	cfgStore *config.Store
	queue    *scheduler.TriggerQueue
	ldapCfg  cmd.LDAPConfig
	log      blog.Logger
}

// envelope is the {success, data|error} response shape of spec §6.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"failed to marshal response"}`))
		return
	}
	w.WriteHeader(code)
	w.Write(body)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, envelope{Success: false, Error: detail})
}

// verifyRequest is the wire shape of POST /api/pa/verify's body.
type verifyRequest struct {
	Sod            string            `json:"sod"`
	DataGroups     map[string]string `json:"dataGroups"`
	MrzData        string            `json:"mrzData"`
	IssuingCountry string            `json:"issuingCountry"`
	DocumentNumber string            `json:"documentNumber"`
}

func (srv *server) verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	dgs := make(map[int][]byte, len(req.DataGroups))
	for k, v := range req.DataGroups {
		n, err := strconv.Atoi(trimDGPrefix(k))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid data group key: "+k)
			return
		}
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "data group "+k+" is not valid base64")
			return
		}
		dgs[n] = raw
	}

	result := srv.engine.Verify(r.Context(), pa.Request{
		SodBase64:      req.Sod,
		DataGroups:     dgs,
		MrzData:        req.MrzData,
		IssuingCountry: req.IssuingCountry,
		DocumentNumber: req.DocumentNumber,
	})
	writeData(w, result)
}

// trimDGPrefix accepts both "1" and "DG1"-style keys for data group numbers.
func trimDGPrefix(k string) string {
	if len(k) > 2 && (k[:2] == "DG" || k[:2] == "dg") {
		return k[2:]
	}
	return k
}

func (srv *server) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	size := atoiDefault(q.Get("size"), 20)
	status := core.PaOverallStatus(q.Get("status"))
	country := q.Get("issuingCountry")

	records, total, err := srv.db.ListPaVerifications(r.Context(), status, country, page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, map[string]interface{}{
		"records": records,
		"total":   total,
		"page":    page,
		"size":    size,
	})
}

func (srv *server) detailOrDataGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := r.URL.Path[len("/api/pa/"):]
	id := path
	wantDataGroups := false
	if len(path) > len("/datagroups") && path[len(path)-len("/datagroups"):] == "/datagroups" {
		id = path[:len(path)-len("/datagroups")]
		wantDataGroups = true
	}
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	verification, dgs, err := srv.db.GetPaVerification(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	if !wantDataGroups {
		writeData(w, map[string]interface{}{
			"verification": verification,
			"dataGroups":   dgs,
		})
		return
	}
	writeData(w, dgs)
}

type parseDG1Request struct {
	Dg1 string `json:"dg1"`
}

func (srv *server) parseDG1(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req parseDG1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Dg1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dg1 is not valid base64")
		return
	}
	mrzText, err := mrz.ExtractMRZFromDG1(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dg1 parse failed: "+err.Error())
		return
	}
	fields, ok := mrz.Parse(mrzText)
	if !ok {
		writeError(w, http.StatusBadRequest, "mrz text did not match a known document layout")
		return
	}
	writeData(w, fields)
}

type parseDG2Request struct {
	Dg2 string `json:"dg2"`
}

func (srv *server) parseDG2(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req parseDG2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Dg2)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dg2 is not valid base64")
		return
	}
	face, err := mrz.ExtractFaceImage(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dg2 parse failed: "+err.Error())
		return
	}
	writeData(w, map[string]interface{}{
		"format": face.Format,
		"width":  face.Width,
		"height": face.Height,
		"dataURL": fmt.Sprintf("data:image/%s;base64,%s", face.Format,
			base64.StdEncoding.EncodeToString(face.Data)),
	})
}

type parseMRZTextRequest struct {
	MrzData string `json:"mrzData"`
}

func (srv *server) parseMRZText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req parseMRZTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	fields, ok := mrz.Parse(req.MrzData)
	if !ok {
		writeError(w, http.StatusBadRequest, "mrz text did not match a known document layout")
		return
	}
	report := mrz.VerifyCheckDigitsTD3(req.MrzData)
	writeData(w, map[string]interface{}{
		"fields":     fields,
		"checkDigits": report,
	})
}

type parseSODRequest struct {
	Sod string `json:"sod"`
}

func (srv *server) parseSOD(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req parseSODRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Sod)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sod is not valid base64")
		return
	}
	unwrapped := sod.UnwrapSOD(raw)

	dsc, err := sod.ExtractDSC(unwrapped)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sod parse failed: "+err.Error())
		return
	}
	hashAlg, _ := sod.ExtractHashAlgorithm(unwrapped)
	sigAlg, _ := sod.ExtractSignatureAlgorithm(unwrapped)
	dgHashes, _ := sod.ParseDGHashes(unwrapped)

	hashHex := make(map[string]string, len(dgHashes))
	for dg, h := range dgHashes {
		hashHex[fmt.Sprintf("DG%d", dg)] = fmt.Sprintf("%x", h)
	}

	writeData(w, map[string]interface{}{
		"dscSubjectDN":       sod.SubjectDN(dsc),
		"dscIssuerDN":        sod.IssuerDN(dsc),
		"dscSerialNumber":    sod.SerialHex(dsc),
		"dscNotBefore":       sod.NotBeforeISO(dsc),
		"dscNotAfter":        sod.NotAfterISO(dsc),
		"signatureAlgorithm": sigAlg,
		"hashAlgorithm":      hashAlg.Name,
		"dataGroupHashes":    hashHex,
	})
}

func (srv *server) syncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	latest, err := srv.db.LatestSyncStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, latest)
}

func (srv *server) syncHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	latest, err := srv.db.LatestSyncStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, []interface{}{latest})
}

func (srv *server) syncConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeData(w, srv.cfgStore.Current())
	case http.MethodPut:
		var opts config.Options
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
			return
		}
		if err := srv.cfgStore.Update(r.Context(), opts); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeData(w, srv.cfgStore.Current())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (srv *server) revalidationHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	results, err := srv.db.ValidationResultsWithExpiry(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, results)
}

func (srv *server) syncCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dbStats, err := stats.CollectDBStats(r.Context(), srv.db)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "collect db stats: "+err.Error())
		return
	}
	ldapStats, err := stats.CollectLDAPStats(r.Context(), stats.LdapConfig{
		URL:          srv.ldapCfg.ReadURL,
		BindDN:       srv.ldapCfg.BindDN,
		BindPassword: srv.ldapCfg.BindPassword.String(),
		BaseDN:       srv.ldapCfg.BaseDN,
	})
	if err != nil {
		writeError(w, statusForError(err), "collect ldap stats: "+err.Error())
		return
	}
	writeData(w, map[string]interface{}{
		"db":   dbStats,
		"ldap": ldapStats,
	})
}

func (srv *server) syncReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	opts := srv.cfgStore.Current()
	rc := reconcile.NewEngine(srv.db, reconcile.Config{
		WriteURL:              srv.ldapCfg.WriteURL,
		BindDN:                srv.ldapCfg.BindDN,
		BindPassword:          srv.ldapCfg.BindPassword.String(),
		BaseDN:                srv.ldapCfg.BaseDN,
		MaxReconcileBatchSize: opts.MaxReconcileBatchSize,
	}, srv.log)

	summary, err := rc.Run(r.Context(), core.TriggerManual, false, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, summary)
}

func (srv *server) syncRevalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rv := revalidate.NewEngine(srv.db, clock.New(), srv.log)
	history, err := rv.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, history)
}

func (srv *server) syncTriggerDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := srv.queue.Push(scheduler.Trigger{Source: core.TriggerManual, Reason: "admin API trigger-daily"}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, map[string]string{"queued": "true"})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// statusForError maps a store/config-layer error onto an HTTP status code
// via its pkderrors.ErrorType, defaulting to 500 for anything unclassified.
func statusForError(err error) int {
	switch {
	case pkderrors.Is(err, pkderrors.NotFound):
		return http.StatusNotFound
	case pkderrors.Is(err, pkderrors.Malformed):
		return http.StatusBadRequest
	case pkderrors.Is(err, pkderrors.Conflict):
		return http.StatusConflict
	case pkderrors.Is(err, pkderrors.Unavailable):
		return http.StatusServiceUnavailable
	case pkderrors.Is(err, pkderrors.Unauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
