// This package provides utilities that underlie the specific pkd-* daemons:
// a JSON config file loader, fail-fast startup helpers, signal handling, and
// a debug/metrics HTTP server, so each daemon's own main.go stays small.
package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"log/syslog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/icao-pkd/pkd-core/internal/blog"
)

func init() {
	for _, v := range os.Args {
		if v == "--version" || v == "-version" {
			fmt.Println(VersionString())
			os.Exit(0)
		}
	}
}

// mysqlLogger proxies blog.Logger to provide the Print(...) method the
// go-sql-driver/mysql package expects of its logger.
type mysqlLogger struct {
	blog.Logger
}

func (m mysqlLogger) Print(v ...interface{}) {
	m.AuditErr(fmt.Sprintf("[mysql] %s", fmt.Sprint(v...)))
}

// StatsAndLogging constructs a Prometheus registerer and a blog.Logger based
// on its config parameters, sets the constructed logger as the process-wide
// default, and wires the mysql driver's logger to it. Crashes if setup
// fails, since every daemon needs working logging before it can do
// anything else.
func StatsAndLogging(logConf SyslogConfig) (prometheus.Registerer, blog.Logger) {
	reg := prometheus.DefaultRegisterer

	tag := path.Base(os.Args[0])
	var logger blog.Logger
	var err error
	if logConf.Network != "" {
		logger, err = blog.NewSyslog(tag, int(logConf.SyslogLevel))
		FailOnError(err, "Could not connect to Syslog")
	} else {
		stdoutLevel := 0
		if logConf.StdoutLevel != nil {
			stdoutLevel = *logConf.StdoutLevel
		}
		logger = blog.NewConsole(stdoutLevel)
	}

	blog.Set(logger)
	_ = mysql.SetLogger(mysqlLogger{logger})

	return reg, logger
}

// FailOnError exits and prints an error message if we encountered a problem.
func FailOnError(err error, msg string) {
	if err != nil {
		logger := blog.Get()
		logger.AuditErr(fmt.Sprintf("%s: %s", msg, err))
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

// DebugServer starts a server exposing Prometheus metrics and pprof
// profiling endpoints. Typical usage is to start it in a goroutine,
// configured with an address from the daemon's own ServiceConfig:
//
//	go cmd.DebugServer(c.Scheduler.DebugAddr)
func DebugServer(addr string) {
	if addr == "" {
		log.Fatalf("unable to boot debug server because no address was given for it. Set debugAddr.")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("unable to boot debug server on %#v", addr)
	}
	http.Handle("/metrics", promhttp.Handler())
	if err := http.Serve(ln, nil); err != nil {
		log.Fatalf("unable to boot debug server: %v", err)
	}
}

// ReadConfigFile takes a file path as an argument and attempts to
// unmarshal the content of the file into a struct containing a
// configuration of a pkd-core daemon.
func ReadConfigFile(filename string, out interface{}) error {
	configData, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(configData, out)
}

// buildID and buildTime are set at build time via -ldflags; they default to
// "unknown" in a plain `go build`.
var (
	buildID   = "unknown"
	buildTime = "unknown"
)

// VersionString produces a friendly application version string.
func VersionString() string {
	name := path.Base(os.Args[0])
	return fmt.Sprintf("Versions: %s=(%s %s) Golang=(%s)", name, buildID, buildTime, runtime.Version())
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals catches SIGTERM, SIGINT, SIGHUP and executes a callback
// before exiting, giving a daemon's Stop methods (e.g. Scheduler.Stop) a
// chance to let an in-flight tick finish.
func CatchSignals(logger blog.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGHUP)

	sig := <-sigChan
	logger.Info(fmt.Sprintf("Caught %s", signalToName[sig]))

	if callback != nil {
		callback()
	}

	logger.Info("Exiting")
	os.Exit(0)
}
