package kvserver

import (
	"io"
	"time"

	"github.com/skipor/kvserver/audit"
	"github.com/skipor/kvserver/log"
)

// Config is parsed server config.
type Config struct {
	Addr             string
	LogDestination   io.Writer
	LogLevel         log.Level
	Workers          int
	Capacity         int
	ReadBufferSize   int
	Audit            audit.Config
	MetricsLogPeriod time.Duration // 0 if metrics are not logged.
}
