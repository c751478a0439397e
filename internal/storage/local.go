package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps bundles in a directory as <id>.pdf plus <id>.json.
type LocalStore struct {
	Dir      string
	Password string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, password string) (*LocalStore, error) {
	if dir == "" {
		dir = filepath.Join("data", "bundles")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{Dir: dir, Password: password}, nil
}

func (s *LocalStore) Put(ctx context.Context, id string, data []byte, meta Meta) (string, error) {
	if !safeID(id) {
		return "", fmt.Errorf("storage: invalid id %q", id)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body := data
	if s.Password != "" {
		sealed, err := Seal(data, s.Password)
		if err != nil {
			return "", err
		}
		body = sealed
		meta.Sealed = true
	}
	meta.Size = int64(len(data))
	p := filepath.Join(s.Dir, id+".pdf")
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return "", err
	}
	mb, _ := json.Marshal(meta)
	if err := os.WriteFile(filepath.Join(s.Dir, id+".json"), mb, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func (s *LocalStore) Get(ctx context.Context, id string) ([]byte, Meta, error) {
	if !safeID(id) {
		return nil, Meta{}, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, id+".pdf"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, ErrNotFound
	}
	if err != nil {
		return nil, Meta{}, err
	}
	var meta Meta
	if mb, err := os.ReadFile(filepath.Join(s.Dir, id+".json")); err == nil {
		_ = json.Unmarshal(mb, &meta)
	}
	if meta.Sealed || IsSealed(data) {
		if data, err = Open(data, s.Password); err != nil {
			return nil, meta, err
		}
	}
	meta.ContentType = "application/pdf"
	return data, meta, nil
}

// Ping checks that the directory is still writable.
func (s *LocalStore) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(s.Dir, ".ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
