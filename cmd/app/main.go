package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfconsolidator/internal/breaker"
    cfgpkg "github.com/local/pdfconsolidator/internal/config"
    "github.com/local/pdfconsolidator/internal/converter"
    "github.com/local/pdfconsolidator/internal/filetype"
    logpkg "github.com/local/pdfconsolidator/internal/logger"
    "github.com/local/pdfconsolidator/internal/merge"
    "github.com/local/pdfconsolidator/internal/metrics"
    "github.com/local/pdfconsolidator/internal/render"
    "github.com/local/pdfconsolidator/internal/server"
    "github.com/local/pdfconsolidator/internal/statuscheck"
    "github.com/local/pdfconsolidator/internal/storage"
    "github.com/local/pdfconsolidator/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()
    metrics.Init()

    ctx := context.Background()

    // Redis backs case records and, optionally, the tool breaker
    var rc *redis.Client
    if cfg.Storage.RedisURL != "" {
        c, err := store.NewRedisClient(ctx, cfg.Storage.RedisURL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to connect to redis")
        }
        rc = c
        defer rc.Close()
    }

    var records store.Records
    var redisPing statuscheck.Pinger
    if rc != nil {
        rr := store.NewRedisRecords(rc, cfg.Storage.RecordTTL)
        records, redisPing = rr, rr
    } else {
        log.Warn().Msg("REDIS_URL not set; case records are kept in memory")
        records = store.NewMemoryRecords()
    }

    var br breaker.Breaker
    switch {
    case cfg.Breaker.Backend == "redis" && rc != nil:
        br = breaker.NewRedis(rc, cfg.Breaker.BaseBackoff, cfg.Breaker.MaxBackoff)
    case cfg.Breaker.Backend == "none":
        br = breaker.Nop{}
    default:
        br = breaker.NewMemory(cfg.Breaker.BaseBackoff, cfg.Breaker.MaxBackoff)
    }

    // Bundle storage
    var bundles interface {
        server.BundleStore
        statuscheck.Pinger
    }
    if cfg.Storage.S3Bucket != "" {
        s3s, err := storage.NewS3Store(ctx, storage.S3Options{
            Bucket: cfg.Storage.S3Bucket,
            Prefix: cfg.Storage.S3Prefix,
            Region: cfg.Storage.S3Region,
            AccessKeyID: cfg.Storage.AccessKeyID,
            SecretAccessKey: cfg.Storage.SecretAccessKey,
            SealPassword: cfg.Storage.SealPassword,
        })
        if err != nil { log.Fatal().Err(err).Msg("failed to init S3 storage") }
        bundles = s3s
    } else {
        ls, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.SealPassword)
        if err != nil { log.Fatal().Err(err).Msg("failed to init local storage") }
        log.Warn().Str("dir", ls.Dir).Msg("AWS_S3_BUCKET not set; bundles are stored locally")
        bundles = ls
    }

    // Recovery engine
    engine, err := merge.Build(cfg, br)
    if err != nil { log.Fatal().Err(err).Msg("invalid recovery configuration") }
    defer engine.Close()

    // Sweep conversion workspaces left by a previous crash
    converter.SweepStale(cfg.Recovery.WorkDir, time.Hour)
    sweepDone := make(chan struct{})
    defer close(sweepDone)
    go func() {
        t := time.NewTicker(15 * time.Minute)
        defer t.Stop()
        for {
            select {
            case <-t.C:
                converter.SweepStale(cfg.Recovery.WorkDir, time.Hour)
            case <-sweepDone:
                return
            }
        }
    }()

    checker := statuscheck.New(statuscheck.Options{
        Redis: redisPing,
        Storage: bundles,
        QPDF: engine.QPDF,
        Ghostscript: engine.Ghostscript,
        RenderProbe: render.Probe,
    })
    sum := checker.Summary(ctx)
    log.Info().
        Bool("qpdf", sum.QPDF.OK).
        Bool("ghostscript", sum.Ghostscript.OK).
        Bool("mupdf", sum.MuPDF.OK).
        Bool("storage", sum.Storage.OK).
        Msg("collaborator status at startup")

    srv := server.New(server.Dependencies{
        Merger: engine,
        Bundles: bundles,
        Records: records,
        Detector: filetype.New(),
        Status: checker,
        MaxFiles: cfg.Server.MaxUploadFiles,
        MaxFileBytes: cfg.Server.MaxUploadBytes,
        PublicBaseURL: cfg.Server.PublicBaseURL,
    })

    port := cfg.Server.Port
    httpSrv := &http.Server{Addr: ":"+port, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()
    _ = httpSrv.Shutdown(shutdownCtx)
    fmt.Println("shutdown complete")
}
