/*
Copyright 2025 The Outrider contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ctrlruntimelog "sigs.k8s.io/controller-runtime/pkg/log"
	ctrlruntimelzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Logger names of the outrider components.
const (
	NameCoordinator    = "coordinator"
	NameSecretWatcher  = "secret-watcher"
	NameClusterWatcher = "cluster-watcher"
	NameDistribution   = "distribution"
	NameCRDGate        = "crd-gate"
	NameWebhook        = "webhook"
)

type Format string

func (f *Format) Type() string {
	return "string"
}

func (f *Format) String() string {
	return string(*f)
}

func (f *Format) Set(s string) error {
	switch strings.ToLower(s) {
	case "json":
		*f = FormatJSON
		return nil
	case "console":
		*f = FormatConsole
		return nil
	default:
		return fmt.Errorf("invalid format '%s'", s)
	}
}

const (
	FormatJSON    Format = "JSON"
	FormatConsole Format = "Console"
)

var AvailableFormats = []Format{FormatJSON, FormatConsole}

// Options are the logging flags shared by the outrider binaries.
type Options struct {
	// Debug enables the debug level.
	Debug bool
	// Format is either JSON or Console.
	Format Format
}

func NewDefaultOptions() Options {
	return Options{
		Debug:  false,
		Format: FormatJSON,
	}
}

func (o *Options) AddFlags(fs *flag.FlagSet) {
	fs.BoolVar(&o.Debug, "log-debug", o.Debug, "Enables more verbose logging")
	fs.Var(&o.Format, "log-format", "Log format, one of JSON or Console")
}

func (o *Options) AddPFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Debug, "log-debug", o.Debug, "Enables more verbose logging")
	fs.Var(&o.Format, "log-format", "Log format, one of JSON or Console")
}

func (o *Options) Validate() error {
	for i := range AvailableFormats {
		if o.Format == AvailableFormats[i] {
			return nil
		}
	}

	return fmt.Errorf("invalid log-format specified %q; available: %+v", o.Format, AvailableFormats)
}

// New builds a logger writing to stderr.
func New(o Options) *zap.Logger {
	return NewWithWriter(o, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(o Options, w io.Writer) *zap.Logger {
	sink := zapcore.AddSync(w)

	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if o.Debug {
		lvl = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	if o.Format == FormatConsole {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(&ctrlruntimelzap.KubeAwareEncoder{Encoder: enc}, sink, lvl)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(sink))
}

// SetControllerRuntimeLogger routes controller-runtime's logs through l.
func SetControllerRuntimeLogger(l *zap.Logger) {
	ctrlruntimelog.SetLogger(zapr.NewLogger(l.WithOptions(zap.AddCallerSkip(1))))
}
