package statuscheck

import (
    "context"
    "errors"
    "time"
)

// Pinger models the minimal capability we need from redis and the bundle store.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Versioner is implemented by the external conversion tools.
type Versioner interface {
    Version(ctx context.Context) (string, error)
}

// Checker aggregates health checks for the collaborators of the recovery engine.
type Checker struct {
    redis       Pinger
    storage     Pinger
    qpdf        Versioner
    ghostscript Versioner
    probe       func() error
}

// Options configures the Checker. Nil members are reported as not configured.
type Options struct {
    Redis       Pinger
    Storage     Pinger
    QPDF        Versioner
    Ghostscript Versioner
    RenderProbe func() error
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis       Status `json:"redis"`
    Storage     Status `json:"storage"`
    QPDF        Status `json:"qpdf"`
    Ghostscript Status `json:"ghostscript"`
    MuPDF       Status `json:"mupdf"`
}

// Healthy reports whether the engine can run its full strategy set. Redis
// is optional because every consumer has an in-memory fallback.
func (s Summary) Healthy() bool {
    return s.Storage.OK && s.QPDF.OK && s.Ghostscript.OK && s.MuPDF.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        redis:       opts.Redis,
        storage:     opts.Storage,
        qpdf:        opts.QPDF,
        ghostscript: opts.Ghostscript,
        probe:       opts.RenderProbe,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:       checkPing(ctx, c.redis, 2*time.Second),
        Storage:     checkPing(ctx, c.storage, 5*time.Second),
        QPDF:        checkVersion(ctx, c.qpdf),
        Ghostscript: checkVersion(ctx, c.ghostscript),
        MuPDF:       c.checkMuPDF(),
    }
}

func checkPing(ctx context.Context, p Pinger, timeout time.Duration) Status {
    if p == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()
    if err := p.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func checkVersion(ctx context.Context, v Versioner) Status {
    if v == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    ver, err := v.Version(ctx)
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: ver}
}

func (c *Checker) checkMuPDF() Status {
    if c.probe == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    if err := c.probe(); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
