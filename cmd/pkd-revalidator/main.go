// Command pkd-revalidator runs a single revalidation sweep (spec §4.7):
// refresh isExpired/validationStatus on every ValidationResult and
// recompute each touched UploadedFile's rollup counts, then exit.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd-core/cmd"
	"github.com/icao-pkd/pkd-core/revalidate"
	"github.com/icao-pkd/pkd-core/store"
)

type revalidatorConfig struct {
	Revalidator cmd.RevalidatorConfig
	DB          cmd.DBConfig
	Syslog      cmd.SyslogConfig
}

func main() {
	configFile := flag.String("config", "", "path to the JSON config file")
	flag.Parse()

	var c revalidatorConfig
	cmd.FailOnError(cmd.ReadConfigFile(*configFile, &c), "Reading config file")

	_, logger := cmd.StatsAndLogging(c.Syslog)

	dbMap, err := store.NewDbMap(c.DB.DBConnect.String(), logger)
	cmd.FailOnError(err, "Connecting to database")
	db := store.New(dbMap, logger)

	rv := revalidate.NewEngine(db, clock.New(), logger)
	history, err := rv.Run(context.Background())
	cmd.FailOnError(err, "Revalidation run failed")

	logger.Info(fmt.Sprintf("revalidation finished: processed=%d newlyExpired=%d newlyValid=%d errors=%d",
		history.TotalProcessed, history.NewlyExpired, history.NewlyValid, history.Errors))
}
