// Command pkd-reconciler runs a single reconciliation pass (spec §4.6):
// mirror pending CSCA/DSC/DSC_NC certificates from the database into LDAP,
// in that fixed order, then exit. Intended for cron or manual invocation
// outside the scheduler's own auto-reconcile path.
package main

import (
	"context"
	"flag"

	"github.com/icao-pkd/pkd-core/cmd"
	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/reconcile"
	"github.com/icao-pkd/pkd-core/store"
)

type reconcilerConfig struct {
	Reconciler cmd.ReconcilerConfig
	DB         cmd.DBConfig
	LDAP       cmd.LDAPConfig
	Syslog     cmd.SyslogConfig
}

func main() {
	configFile := flag.String("config", "", "path to the JSON config file")
	dryRun := flag.Bool("dry-run", false, "log the operations that would run without mutating LDAP")
	flag.Parse()

	var c reconcilerConfig
	cmd.FailOnError(cmd.ReadConfigFile(*configFile, &c), "Reading config file")

	_, logger := cmd.StatsAndLogging(c.Syslog)

	dbMap, err := store.NewDbMap(c.DB.DBConnect.String(), logger)
	cmd.FailOnError(err, "Connecting to database")
	db := store.New(dbMap, logger)

	rc := reconcile.NewEngine(db, reconcile.Config{
		WriteURL:              c.LDAP.WriteURL,
		BindDN:                c.LDAP.BindDN,
		BindPassword:          c.LDAP.BindPassword.String(),
		BaseDN:                c.LDAP.BaseDN,
		MaxReconcileBatchSize: c.Reconciler.MaxReconcileBatchSize,
	}, logger)

	summary, err := rc.Run(context.Background(), core.TriggerManual, *dryRun, "")
	cmd.FailOnError(err, "Reconciliation run failed")

	logger.Info("reconciliation finished: status=" + string(summary.Status))
}
