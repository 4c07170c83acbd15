package store

import (
	"context"
	"fmt"
	"ironfly/internal/components/assert"
	"ironfly/internal/components/telemetry"
	"ironfly/internal/gamestate"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore keeps one `<key>.json` file per game inside a directory.
type DirStore struct {
	dir string
	tel telemetry.API
}

func NewDirStore(dir string, tel telemetry.API) (DirStore, error) {
	assert.NotEmptyStr(dir)
	assert.NotNil(tel)

	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return DirStore{}, fmt.Errorf("create state dir: %w", err)
	}

	return DirStore{
		dir: dir,
		tel: telemetry.NewScopedAPI("dir_store", tel),
	}, nil
}

func (s DirStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s DirStore) Get(_ context.Context, gameName string) (gamestate.Snapshot, bool, error) {
	key := gamestate.Key(gameName)
	if key == "" {
		return gamestate.Snapshot{}, false, nil
	}

	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return gamestate.Snapshot{}, false, nil
	}
	if err != nil {
		// unreadable files fall back to "no previous state"
		s.tel.ReportWarning(report_store_get, err, key)
		return gamestate.Snapshot{}, false, nil
	}

	snapshot, err := decodeRecord(raw)
	if err != nil {
		s.tel.ReportWarning(report_store_get, err, key)
		return gamestate.Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

func (s DirStore) Put(_ context.Context, snapshot gamestate.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		s.tel.ReportBroken(report_store_put, err, snapshot.GameName)
		return err
	}

	contents, err := encodeRecord(snapshot)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	// write to a temp file first so a crash never leaves a half written record
	tmp, err := os.CreateTemp(s.dir, ".tmp-*.json")
	if err != nil {
		s.tel.ReportBroken(report_store_put, fmt.Errorf("create temp file: %w", err))
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(contents)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.tel.ReportBroken(report_store_put, fmt.Errorf("write temp file: %w", err), snapshot.Key())
		return err
	}

	err = os.Rename(tmp.Name(), s.path(snapshot.Key()))
	if err != nil {
		s.tel.ReportBroken(report_store_put, fmt.Errorf("rename: %w", err), snapshot.Key())
		return err
	}
	return nil
}

func (s DirStore) ListAll(ctx context.Context) ([]gamestate.Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.tel.ReportBroken(report_store_list_all, err, s.dir)
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)

	out := make([]gamestate.Snapshot, 0, len(keys))
	for _, key := range keys {
		snapshot, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, snapshot)
	}
	return out, nil
}
