package logger

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Service is attached to every forwarded event.
const Service = "pdfconsolidator"

// Options defines logger initialization parameters.
type Options struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
    Console      io.Writer // defaults to os.Stdout

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

var shipper *axiomShipper

// Init replaces the global zerolog logger. Console output is always on; the
// rotated file and Axiom forwarding (info and above) are optional.
func Init(opts Options) error {
    writers, err := buildWriters(opts)
    if err != nil { return err }

    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || opts.Level == "" { lvl = zerolog.InfoLevel }

    zerolog.TimeFieldFormat = time.RFC3339
    log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
    return nil
}

func buildWriters(opts Options) ([]io.Writer, error) {
    var writers []io.Writer

    console := opts.Console
    if console == nil { console = os.Stdout }
    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, console)
    }

    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return nil, fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    Close()
    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        s, err := newAxiomShipper(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            // keep logging locally
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            shipper = s
            writers = append(writers, &axiomWriter{shipper: s, min: zerolog.InfoLevel})
        }
    }
    return writers, nil
}

// Close flushes and stops Axiom forwarding.
func Close() {
    if shipper != nil {
        shipper.Close()
        shipper = nil
    }
}

// ForDocument returns a child of the global logger tagged with the input
// document being recovered.
func ForDocument(name string, ordinal int) zerolog.Logger {
    return log.Logger.With().Str("doc", name).Int("ordinal", ordinal).Logger()
}

// ForBatch returns a child logger tagged with a merge batch id.
func ForBatch(batchID string, documents int) zerolog.Logger {
    return log.Logger.With().Str("batch", batchID).Int("documents", documents).Logger()
}
