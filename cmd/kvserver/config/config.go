// Package config is kvserver command configuration: JSON file and command line flags.
package config

import (
	"encoding/json"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"

	"github.com/skipor/kvserver"
	"github.com/skipor/kvserver/audit"
	"github.com/skipor/kvserver/internal/util"
	"github.com/skipor/kvserver/log"
)

var (
	ErrInvalidSize     = errors.New("invalid size format")
	ErrInvalidExponent = errors.New("invalid exponent, only 'b', 'k', 'm', 'g' allowed")
)

func Parse(conf Config) (kconf kvserver.Config, err error) {
	kconf.LogDestination, err = logDestination(conf.LogDestination)
	if err != nil {
		err = stackerr.Newf("Log destination open error: %v", err)
		return
	}
	kconf.LogLevel, err = log.LevelFromString(conf.LogLevel)
	if err != nil {
		err = stackerr.Newf("Log level parse error: %v", err)
		return
	}
	if conf.Workers < 1 {
		err = stackerr.Newf("Workers number should be positive, got %v.", conf.Workers)
		return
	}
	kconf.Workers = conf.Workers
	if conf.Capacity < 1 {
		err = stackerr.Newf("Capacity should be positive, got %v.", conf.Capacity)
		return
	}
	kconf.Capacity = conf.Capacity
	var size int64
	size, err = parseSize(conf.ReadBufferSize)
	if err != nil {
		err = stackerr.Newf("Read buffer size parse error: %v", err)
		return
	}
	if size < kvserver.MinReadBufferSize {
		err = stackerr.Newf("Too small read buffer size. It should be at least %vb.", kvserver.MinReadBufferSize)
		return
	}
	kconf.ReadBufferSize = int(size)
	kconf.MetricsLogPeriod = conf.MetricsLogPeriod
	kconf.Audit, err = parseAudit(conf.Audit)
	if err != nil {
		return
	}
	kconf.Addr = net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	return
}

func parseAudit(conf AuditConfig) (aconf audit.Config, err error) {
	aconf.Name = conf.Name
	aconf.SyncPeriod = conf.Sync
	var size int64
	size, err = parseSize(conf.BufSize)
	if err != nil {
		err = stackerr.Newf("Audit buf size parse error: %v", err)
		return
	}
	aconf.BufSize = int(size)
	aconf.RotateSize, err = parseSize(conf.RotateSize)
	if err != nil {
		err = stackerr.Newf("Audit rotate size parse error: %v", err)
		return
	}
	return
}

func Default() *Config {
	return &Config{
		Port:           6379,
		Host:           "",
		LogDestination: "stderr",
		LogLevel:       "info",
		Workers:        kvserver.DefaultWorkers,
		Capacity:       10000,
		ReadBufferSize: "256b",
		Audit: AuditConfig{
			BufSize:    "4k",
			RotateSize: "64m",
		},
	}
}

type Config struct {
	Port           int    `json:"port,omitempty"`
	Host           string `json:"host,omitempty"`
	LogDestination string `json:"log-destination,omitempty"` // Stdout, stderr, or filepath.
	LogLevel       string `json:"log-level,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	Capacity       int    `json:"capacity,omitempty"`
	// Size values 10g, 128m, 1024k, 1000000b
	ReadBufferSize   string        `json:"read-buffer-size,omitempty"`
	MetricsLogPeriod time.Duration `json:"metrics-log-period,omitempty"`
	Audit            AuditConfig   `json:"audit,omitempty"`
}

type AuditConfig struct {
	Name       string        `json:"file,omitempty"` // No audit file if empty.
	Sync       time.Duration `json:"sync,omitempty"`
	BufSize    string        `json:"buf-size,omitempty"`
	RotateSize string        `json:"rotate-size,omitempty"`
}

// Merge overwrites def values with non zero override values.
func Merge(def, override *Config) {
	defAudit := def.Audit
	merge(def, override)

	// Manual recursion for the only nested struct.
	merge(&defAudit, &override.Audit)
	def.Audit = defAudit
}

func merge(def, override interface{}) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		overrideVal := overrideVal.Field(i)
		if !util.IsZeroVal(overrideVal) {
			defVal.Field(i).Set(overrideVal)
		}
	}
}

// Read reads JSON config file over defaults.
func Read(name string) (*Config, error) {
	conf := Default()
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	err = json.Unmarshal(data, conf)
	if err != nil {
		return nil, stackerr.Wrap(err)
	}
	return conf, nil
}

func Marshal(conf *Config) []byte {
	data, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}
	return data
}

func parseSize(s string) (size int64, err error) {
	if len(s) < 2 {
		err = stackerr.Wrap(errors.Wrapf(ErrInvalidSize, "%q", s))
		return
	}
	sep := len(s) - 1
	sizeStr := s[:sep]
	exponentStr := s[sep:]
	var exponent uint32
	switch strings.ToLower(exponentStr) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		err = stackerr.Wrap(errors.Wrapf(ErrInvalidExponent, "%q", s))
		return
	}
	size, err = strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		err = stackerr.Newf("Size parse error: %s", err)
		return
	}
	size <<= exponent
	return
}

func logDestination(dest string) (w io.Writer, err error) {
	switch strings.ToLower(dest) {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		w, err = os.OpenFile(dest, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	}
	return
}

