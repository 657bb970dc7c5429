package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rcrowley/go-metrics"

	"github.com/skipor/kvserver"
	"github.com/skipor/kvserver/cmd/kvserver/config"
	"github.com/skipor/kvserver/internal/tag"
	"github.com/skipor/kvserver/internal/util"
	"github.com/skipor/kvserver/log"
)

const usage = `
Config values merge rules:
1) config file value overrides default
2) command line value overrides any
Options:
`

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s", usage)
		flag.PrintDefaults()
	}
}

func main() {
	conf := readConfig()
	l := log.NewLogger(conf.LogLevel, conf.LogDestination)
	l.Debugf("Config: %#v", conf)
	if tag.Debug {
		l.Warn("Using debug build. It has more runtime checks and large perfomance overhead.")
	}
	s, err := kvserver.NewServer(l, conf)
	if err != nil {
		l.Fatal("Server init error: ", err)
	}
	s.Metrics = kvserver.NewMetrics(metrics.NewRegistry())
	if conf.MetricsLogPeriod > 0 {
		go metrics.Log(s.Metrics.Registry, conf.MetricsLogPeriod, log.Printf{
			Logger: l.WithFields(log.Fields{"component": "metrics"}),
			Level:  log.InfoLevel,
		})
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		l.Infof("Got %v. Closing server.", <-sig)
		err := s.Close()
		if err != nil {
			l.Error("Close error: ", err)
		}
	}()

	err = s.ListenAndServe()
	if util.Unwrap(err) != kvserver.ErrServerClosed {
		l.Fatal("Serve error: ", err)
	}
	<-closed
	l.Info("Server closed.")
}

// readConfig parses command flags, reads config file if any, returns merged config.
func readConfig() kvserver.Config {
	l := log.NewLogger(log.DebugLevel, os.Stderr)
	flg := parseFlags()
	fileConf := config.Default()
	if flg.ConfigPath != "" {
		var err error
		fileConf, err = config.Read(flg.ConfigPath)
		if err != nil {
			l.Fatal("Config read error: ", err)
		}
	}
	config.Merge(fileConf, &flg.Config)
	conf, err := config.Parse(*fileConf)
	if err != nil {
		l.Fatal("Config parse error: ", err)
	}
	return conf
}

type Flags struct {
	ConfigPath string
	config.Config
}

func parseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to json config")

	def := config.Default()
	usage := func(usage string, defVal interface{}) string {
		if _, ok := defVal.(string); ok {
			usage += fmt.Sprintf(" (default %q)", defVal)
		} else {
			usage += fmt.Sprintf(" (default %v)", defVal)
		}
		return usage
	}
	flag.StringVar(&f.Host, "host", "", usage("host address to bind", def.Host))
	flag.IntVar(&f.Port, "port", 0, usage("port num", def.Port))
	flag.StringVar(&f.LogDestination, "log-destination", "", usage("log destination: stderr, stdout or file path", def.LogDestination))
	flag.StringVar(&f.LogLevel, "log-level", "", usage("log level: debug, info, warn, error, fatal", def.LogLevel))
	flag.IntVar(&f.Workers, "workers", 0, usage("number of connections served concurrently", def.Workers))
	flag.IntVar(&f.Capacity, "capacity", 0, usage("max number of stored keys", def.Capacity))
	flag.StringVar(&f.ReadBufferSize, "read-buffer-size", "", usage("max request size: 256b, 1k", def.ReadBufferSize))
	flag.DurationVar(&f.MetricsLogPeriod, "metrics-log-period", 0, usage("metrics log period, 0 to disable", def.MetricsLogPeriod))
	flag.StringVar(&f.Audit.Name, "audit-file", "", "audit file path, no audit file if empty")
	flag.DurationVar(&f.Audit.Sync, "audit-sync", 0, usage("audit file sync period, less than 100ms means sync every record", def.Audit.Sync))
	flag.StringVar(&f.Audit.BufSize, "audit-buf-size", "", usage("audit file buffer size", def.Audit.BufSize))
	flag.StringVar(&f.Audit.RotateSize, "audit-rotate-size", "", usage("audit file size to rotate after: 64m, 1g", def.Audit.RotateSize))
	flag.Parse()
	return f
}
