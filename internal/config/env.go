package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// ServerConfig holds the HTTP boundary limits.
type ServerConfig struct {
    Port           string
    MaxUploadFiles int
    MaxUploadBytes int64
    PublicBaseURL  string
}

// ToolsConfig points at the external collaborators.
type ToolsConfig struct {
    QPDFPath        string
    GhostscriptPath string
    ToolTimeout     time.Duration
    RenderTimeout   time.Duration
    RenderDPI       float64
}

// RecoveryConfig tunes classification, strategy arbitration and assembly.
type RecoveryConfig struct {
    MaxConcurrentDocuments int
    MaxExternalProcesses   int
    WorkDir                string
    BytesPerPage           int64
    MinSuspectPages        int
    PageCountOverrides     string // "pattern=N;pattern=N"
    SuspectNamePatterns    string // "pattern;pattern", added to the defaults
    SeparatorNameLimit     int
    BundleTitle            string
}

// BreakerConfig controls per-tool cooldowns.
type BreakerConfig struct {
    Backend     string // "memory"|"redis"
    BaseBackoff time.Duration
    MaxBackoff  time.Duration
}

// StorageConfig defines where merged bundles and case records go.
type StorageConfig struct {
    RedisURL        string
    RecordTTL       time.Duration
    S3Bucket        string
    S3Prefix        string
    S3Region        string
    AccessKeyID     string
    SecretAccessKey string
    LocalDir        string
    SealPassword    string // bundles are encrypted at rest when set
}

// Config is the top-level configuration.
type Config struct {
    Logging  LoggingConfig
    Axiom    AxiomConfig
    Server   ServerConfig
    Tools    ToolsConfig
    Recovery RecoveryConfig
    Breaker  BreakerConfig
    Storage  StorageConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdfconsolidator.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdfconsolidator",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Server = ServerConfig{
        Port:           getEnv("PORT", "8080"),
        MaxUploadFiles: parseInt(getEnv("MAX_UPLOAD_FILES", "10"), 10),
        MaxUploadBytes: parseInt64(getEnv("MAX_UPLOAD_BYTES", ""), 50<<20),
        PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
    }

    cfg.Tools = ToolsConfig{
        QPDFPath:        getEnv("QPDF_PATH", "qpdf"),
        GhostscriptPath: getEnv("GHOSTSCRIPT_PATH", "gs"),
        ToolTimeout:     parseDuration(getEnv("TOOL_TIMEOUT", "20s"), 20*time.Second),
        RenderTimeout:   parseDuration(getEnv("RENDER_TIMEOUT", "30s"), 30*time.Second),
        RenderDPI:       parseFloat(getEnv("RENDER_DPI", "110"), 110),
    }

    cfg.Recovery = RecoveryConfig{
        MaxConcurrentDocuments: parseInt(getEnv("MAX_CONCURRENT_DOCUMENTS", "4"), 4),
        MaxExternalProcesses:   parseInt(getEnv("MAX_EXTERNAL_PROCESSES", "2"), 2),
        WorkDir:                getEnv("WORK_DIR", os.TempDir()),
        BytesPerPage:           parseInt64(getEnv("PLAUSIBILITY_BYTES_PER_PAGE", ""), 150000),
        MinSuspectPages:        parseInt(getEnv("PLAUSIBILITY_MIN_PAGES", "3"), 3),
        PageCountOverrides:     getEnv("PAGE_COUNT_OVERRIDES", ""),
        SuspectNamePatterns:    getEnv("SUSPECT_NAME_PATTERNS", ""),
        SeparatorNameLimit:     parseInt(getEnv("SEPARATOR_NAME_LIMIT", "80"), 80),
        BundleTitle:            getEnv("BUNDLE_TITLE", "Consolidated service bundle"),
    }

    cfg.Breaker = BreakerConfig{
        Backend:     strings.ToLower(getEnv("BREAKER_BACKEND", "memory")),
        BaseBackoff: parseDuration(getEnv("BREAKER_BASE_BACKOFF", "30s"), 30*time.Second),
        MaxBackoff:  parseDuration(getEnv("BREAKER_MAX_BACKOFF", "5m"), 5*time.Minute),
    }

    cfg.Storage = StorageConfig{
        RedisURL:        getEnv("REDIS_URL", ""),
        RecordTTL:       parseDuration(getEnv("RECORD_TTL", "720h"), 30*24*time.Hour),
        S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
        S3Prefix:        strings.Trim(getEnv("AWS_S3_PREFIX", "bundles"), "/"),
        S3Region:        getEnv("AWS_REGION", "us-east-1"),
        AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
        SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
        LocalDir:        getEnv("LOCAL_STORAGE_DIR", "data/bundles"),
        SealPassword:    getEnv("BUNDLE_SEAL_PASSWORD", ""),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseInt64(s string, def int64) int64 {
    if s == "" { return def }
    if n, err := strconv.ParseInt(s, 10, 64); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
