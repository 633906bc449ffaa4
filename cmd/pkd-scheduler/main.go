// Command pkd-scheduler runs the daily sync-check loop of spec §4.8: a
// stats comparison between the database and LDAP mirror, optionally
// followed by reconciliation and revalidation, on a wall-clock schedule
// that the admin API can retrigger through the shared trigger queue. The
// schedule is read from the live configuration once at startup; a
// configuration change made through the admin API takes effect when this
// process restarts.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd-core/cmd"
	"github.com/icao-pkd/pkd-core/config"
	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/metrics"
	"github.com/icao-pkd/pkd-core/reconcile"
	"github.com/icao-pkd/pkd-core/revalidate"
	"github.com/icao-pkd/pkd-core/scheduler"
	"github.com/icao-pkd/pkd-core/stats"
	"github.com/icao-pkd/pkd-core/store"
)

type schedulerConfig struct {
	Scheduler cmd.SchedulerConfig
	DB        cmd.DBConfig
	LDAP      cmd.LDAPConfig
	Syslog    cmd.SyslogConfig
}

func main() {
	configFile := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	var c schedulerConfig
	cmd.FailOnError(cmd.ReadConfigFile(*configFile, &c), "Reading config file")

	reg, logger := cmd.StatsAndLogging(c.Syslog)
	go cmd.DebugServer(c.Scheduler.DebugAddr)
	scope := metrics.NewPromScope(reg, "pkd_scheduler")

	dbMap, err := store.NewDbMap(c.DB.DBConnect.String(), logger)
	cmd.FailOnError(err, "Connecting to database")
	db := store.New(dbMap, logger)

	ctx := context.Background()
	cfgStore, err := config.New(ctx, db, nil)
	cmd.FailOnError(err, "Loading live configuration")

	clk := clock.New()

	tick := func(ctx context.Context, forced bool, source core.TriggerSource) {
		runTick(ctx, db, cfgStore, c.LDAP, logger, scope, forced, source)
	}

	triggerDataDir := c.Scheduler.TriggerQueueDataDir
	if triggerDataDir == "" {
		triggerDataDir = "pkd-scheduler-triggers"
	}
	queue, err := scheduler.OpenTriggerQueue(triggerDataDir)
	cmd.FailOnError(err, "Opening trigger queue")
	defer queue.Close()

	opts := cfgStore.Current()
	sched := scheduler.New(opts.DailySyncHour, opts.DailySyncMinute, tick, queue, clk, logger)
	sched.Start()

	cmd.CatchSignals(logger, sched.Stop)
}

// runTick performs one sync check: collect DB/LDAP stats, compare, persist
// a SyncStatus, then optionally reconcile and revalidate per spec §4.8.
func runTick(ctx context.Context, db *store.SQLStore, cfgStore *config.Store, ldapCfg cmd.LDAPConfig, logger blog.Logger, scope metrics.Scope, forced bool, source core.TriggerSource) {
	start := time.Now().UTC()
	opts := cfgStore.Current()
	defer func() { _ = scope.TimingDuration("tick_duration", time.Since(start)) }()
	_ = scope.Inc("ticks_total", 1)

	dbStats, err := stats.CollectDBStats(ctx, db)
	if err != nil {
		logger.AuditErr(fmt.Sprintf("pkd-scheduler: collect db stats: %s", err))
		return
	}
	ldapStats, err := stats.CollectLDAPStats(ctx, stats.LdapConfig{
		URL:          ldapCfg.ReadURL,
		BindDN:       ldapCfg.BindDN,
		BindPassword: ldapCfg.BindPassword.String(),
		BaseDN:       ldapCfg.BaseDN,
	})
	if err != nil {
		logger.AuditErr(fmt.Sprintf("pkd-scheduler: collect ldap stats: %s", err))
		return
	}

	syncStatus := buildSyncStatus(dbStats, ldapStats, start)
	syncStatusID, err := db.SaveSyncStatus(ctx, syncStatus)
	if err != nil {
		logger.AuditErr(fmt.Sprintf("pkd-scheduler: save sync status: %s", err))
	}

	logger.Info(fmt.Sprintf("pkd-scheduler: tick complete status=%s forced=%v source=%s", syncStatus.Status, forced, source))

	if opts.AutoReconcile {
		rc := reconcile.NewEngine(db, reconcile.Config{
			WriteURL:              ldapCfg.WriteURL,
			BindDN:                ldapCfg.BindDN,
			BindPassword:          ldapCfg.BindPassword.String(),
			BaseDN:                ldapCfg.BaseDN,
			MaxReconcileBatchSize: opts.MaxReconcileBatchSize,
		}, logger)
		if _, err := rc.Run(ctx, source, false, syncStatusID); err != nil {
			logger.AuditErr(fmt.Sprintf("pkd-scheduler: reconciliation: %s", err))
		}
	}

	if opts.RevalidateCertsOnSync {
		rv := revalidate.NewEngine(db, clock.New(), logger)
		if _, err := rv.Run(ctx); err != nil {
			logger.AuditErr(fmt.Sprintf("pkd-scheduler: revalidation: %s", err))
		}
	}
}

func buildSyncStatus(db *stats.DbStats, ldap *stats.LdapStats, checkedAt time.Time) *core.SyncStatus {
	dbCounts := countsToMap(db)
	ldapCounts := ldapCountsToMap(ldap)

	cscaDiscrepancy := abs(dbCounts["CSCA"] - ldapCounts["CSCA"])
	dscDiscrepancy := abs(dbCounts["DSC"] - ldapCounts["DSC"])
	dscNCDiscrepancy := abs(dbCounts["DSC_NC"] - ldap.NonConformantDSC)
	crlDiscrepancy := abs(db.CRLCount - ldap.CRLCount)
	total := cscaDiscrepancy + dscDiscrepancy + dscNCDiscrepancy + crlDiscrepancy

	status := core.SyncStatusSynced
	if total > 0 {
		status = core.SyncStatusDiscrepancy
	}

	return &core.SyncStatus{
		CheckedAt:        checkedAt,
		Status:           status,
		DBCounts:         dbCounts,
		LDAPCounts:       ldapCounts,
		CSCADiscrepancy:  cscaDiscrepancy,
		DSCDiscrepancy:   dscDiscrepancy,
		DSCNCDiscrepancy: dscNCDiscrepancy,
		CRLDiscrepancy:   crlDiscrepancy,
		TotalDiscrepancy: total,
		DurationMs:       time.Since(checkedAt).Milliseconds(),
	}
}

func countsToMap(db *stats.DbStats) map[string]int {
	out := make(map[string]int, len(db.ByType))
	for t, n := range db.ByType {
		out[string(t)] = n
	}
	return out
}

func ldapCountsToMap(ldap *stats.LdapStats) map[string]int {
	out := make(map[string]int, len(ldap.ByType))
	for t, n := range ldap.ByType {
		out[string(t)] = n
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
