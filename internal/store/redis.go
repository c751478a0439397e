package store

import (
    "context"
    "encoding/json"
    "fmt"
    "sort"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisRecords keeps one hash per record and a set of record ids per case.
type RedisRecords struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(ctx).Err(); err != nil {
        c.Close()
        return nil, err
    }
    return c, nil
}

func NewRedisRecords(client *redis.Client, ttl time.Duration) *RedisRecords {
    return &RedisRecords{client: client, keyNS: "bundle", ttl: ttl}
}

func (s *RedisRecords) key(id string) string { return fmt.Sprintf("%s:%s", s.keyNS, id) }
func (s *RedisRecords) caseKey(caseNumber string) string { return fmt.Sprintf("case:%s:bundles", caseNumber) }

func (s *RedisRecords) Save(ctx context.Context, r Record) error {
    docs, err := json.Marshal(r.Documents)
    if err != nil { return err }
    m := map[string]interface{}{
        "case_number":    r.CaseNumber,
        "total_pages":    r.TotalPages,
        "document_count": r.DocumentCount,
        "storage_key":    r.StorageKey,
        "created_at":     r.CreatedAt.Format(time.RFC3339Nano),
        "documents":      string(docs),
    }
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, s.key(r.ID), m)
    if r.CaseNumber != "" {
        pipe.SAdd(ctx, s.caseKey(r.CaseNumber), r.ID)
    }
    if s.ttl > 0 {
        pipe.Expire(ctx, s.key(r.ID), s.ttl)
        if r.CaseNumber != "" { pipe.Expire(ctx, s.caseKey(r.CaseNumber), s.ttl) }
    }
    _, err = pipe.Exec(ctx)
    return err
}

func (s *RedisRecords) Get(ctx context.Context, id string) (Record, error) {
    res, err := s.client.HGetAll(ctx, s.key(id)).Result()
    if err != nil { return Record{}, err }
    if len(res) == 0 { return Record{}, ErrNotFound }
    r := Record{
        ID:         id,
        CaseNumber: res["case_number"],
        StorageKey: res["storage_key"],
    }
    r.TotalPages, _ = strconv.Atoi(res["total_pages"])
    r.DocumentCount, _ = strconv.Atoi(res["document_count"])
    if v := res["created_at"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { r.CreatedAt = t }
    }
    if v := res["documents"]; v != "" {
        _ = json.Unmarshal([]byte(v), &r.Documents)
    }
    return r, nil
}

// ListByCase returns the records of a case, newest first. Ids whose hash
// already expired are dropped from the set.
func (s *RedisRecords) ListByCase(ctx context.Context, caseNumber string) ([]Record, error) {
    ids, err := s.client.SMembers(ctx, s.caseKey(caseNumber)).Result()
    if err != nil { return nil, err }
    out := make([]Record, 0, len(ids))
    for _, id := range ids {
        r, err := s.Get(ctx, id)
        if err == ErrNotFound {
            s.client.SRem(ctx, s.caseKey(caseNumber), id)
            continue
        }
        if err != nil { return nil, err }
        out = append(out, r)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
    return out, nil
}

// Ping satisfies the status checker.
func (s *RedisRecords) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }
