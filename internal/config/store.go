package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logsentinel/logsentinel/internal/apperrors"
)

// Store is the Config Store (C1): it owns exactly one *current* SystemConfig
// snapshot behind an atomic pointer. Readers take the pointer under a brief
// atomic load, then read the immutable value freely. Updates are
// transactional against SQLite and mutually exclusive with each other via
// writeMu; the snapshot is only swapped after the transaction commits.
//
// Grounded on the corpus's internal/config/reload_coordinator.go
// atomic.Value pattern, simplified: no file-watch hot reload, no
// distributed lock — updates arrive over HTTP, not SIGHUP.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	writeMu sync.Mutex
	current atomic.Pointer[SystemConfig]
}

// NewStore opens (creating if absent) the four config tables, seeds them
// from bootstrap on an empty database, and publishes the initial snapshot.
func NewStore(ctx context.Context, db *sql.DB, boot BootstrapConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStartup, fmt.Sprintf("config schema: %v", err))
	}
	if err := s.seedIfEmpty(ctx, boot); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStartup, fmt.Sprintf("config seed: %v", err))
	}
	if err := s.reload(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStartup, fmt.Sprintf("config load: %v", err))
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS app_config (
			config_key TEXT PRIMARY KEY,
			config_value TEXT NOT NULL,
			description TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS map_prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reduce_prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alert_channels (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			provider TEXT NOT NULL,
			webhook_url TEXT NOT NULL,
			alert_threshold TEXT NOT NULL,
			msg_template TEXT,
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) seedIfEmpty(ctx context.Context, boot BootstrapConfig) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM app_config`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	mapRes, err := tx.ExecContext(ctx,
		`INSERT INTO map_prompts(name, content, is_active, created_at) VALUES (?, ?, 1, ?)`,
		"default-map", defaultMapPrompt, now)
	if err != nil {
		return err
	}
	mapID, _ := mapRes.LastInsertId()

	reduceRes, err := tx.ExecContext(ctx,
		`INSERT INTO reduce_prompts(name, content, is_active, created_at) VALUES (?, ?, 1, ?)`,
		"default-reduce", defaultReducePrompt, now)
	if err != nil {
		return err
	}
	reduceID, _ := reduceRes.LastInsertId()

	seed := map[string]string{
		"provider":                 boot.SeedProvider,
		"model":                    boot.SeedModel,
		"api_key":                  boot.SeedAPIKey,
		"analyzer_base_url":        boot.SeedAnalyzerBaseURL,
		"thread_count":             strconv.Itoa(boot.SeedThreadCount),
		"batch_size":               strconv.Itoa(boot.SeedBatchSize),
		"refresh_interval_ms":      strconv.FormatInt(boot.SeedRefreshInterval.Milliseconds(), 10),
		"retention_days":           strconv.Itoa(boot.SeedRetentionDays),
		"port":                     strconv.Itoa(boot.Port),
		"circuit_breaker_enabled":  "true",
		"ring_capacity":            "10000",
		"pool_threshold":           "50",
		"worker_queue_size":        "10000",
		"active_map_prompt_id":     strconv.FormatInt(mapID, 10),
		"active_reduce_prompt_id":  strconv.FormatInt(reduceID, 10),
	}
	for k, v := range seed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO app_config(config_key, config_value, description, updated_at) VALUES (?, ?, '', ?)`,
			k, v, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const defaultMapPrompt = `Classify this log line. Respond with summary, risk_level (critical|error|warning|info|safe), root_cause, solution.`
const defaultReducePrompt = `Given the per-log classifications in this batch, produce a short narrative: global_summary, global_risk_level, key_patterns.`

// reload reads all four tables and publishes a fresh snapshot. Called at
// startup and after every successful update.
func (s *Store) reload(ctx context.Context) error {
	app, err := s.loadAppConfig(ctx)
	if err != nil {
		return err
	}
	mapPrompts, err := s.loadPrompts(ctx, "map_prompts", PromptTypeMap)
	if err != nil {
		return err
	}
	reducePrompts, err := s.loadPrompts(ctx, "reduce_prompts", PromptTypeReduce)
	if err != nil {
		return err
	}
	channels, err := s.loadChannels(ctx)
	if err != nil {
		return err
	}

	s.publish(NewSystemConfig(app, mapPrompts, reducePrompts, channels))
	return nil
}

func (s *Store) publish(snap *SystemConfig) {
	s.current.Store(snap)
}

// GetSnapshot returns the current shared snapshot. Never fails.
func (s *Store) GetSnapshot() *SystemConfig {
	return s.current.Load()
}

// GetAppConfig is a thin view over the snapshot.
func (s *Store) GetAppConfig() AppConfig {
	return s.GetSnapshot().App
}

// GetAllPrompts returns Map and Reduce prompts in a single flat id space.
func (s *Store) GetAllPrompts() []PromptConfig {
	return s.GetSnapshot().FlatPrompts()
}

// GetAllChannels is a thin view over the snapshot.
func (s *Store) GetAllChannels() []AlertChannel {
	return s.GetSnapshot().Channels
}

func (s *Store) loadAppConfig(ctx context.Context) (AppConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_key, config_value FROM app_config`)
	if err != nil {
		return AppConfig{}, err
	}
	defer rows.Close()

	raw := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return AppConfig{}, err
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return AppConfig{}, err
	}

	app := AppConfig{}
	app.Provider = raw["provider"]
	app.Model = raw["model"]
	app.APIKey = raw["api_key"]
	app.AnalyzerBaseURL = raw["analyzer_base_url"]
	app.ThreadCount = parseIntOr(raw["thread_count"], 0)
	app.BatchSize = parseIntOr(raw["batch_size"], 100)
	app.RefreshInterval = time.Duration(parseIntOr(raw["refresh_interval_ms"], 300)) * time.Millisecond
	app.RetentionDays = parseIntOr(raw["retention_days"], 30)
	app.Port = parseIntOr(raw["port"], 8080)
	app.CircuitBreakerEnabled = parseBoolOr(raw["circuit_breaker_enabled"], true)
	app.RingCapacity = parseIntOr(raw["ring_capacity"], 10000)
	app.PoolThreshold = parseIntOr(raw["pool_threshold"], 50)
	app.WorkerQueueSize = parseIntOr(raw["worker_queue_size"], 10000)
	app.ActiveMapPromptID = int64(parseIntOr(raw["active_map_prompt_id"], 0))
	app.ActiveReducePromptID = int64(parseIntOr(raw["active_reduce_prompt_id"], 0))
	return app, nil
}

func (s *Store) loadPrompts(ctx context.Context, table string, kind PromptType) ([]PromptConfig, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, name, content, is_active, created_at FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PromptConfig
	for rows.Next() {
		var p PromptConfig
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.IsActive = active != 0
		p.Type = kind
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadChannels(ctx context.Context) ([]AlertChannel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, provider, webhook_url, alert_threshold, msg_template, is_active, created_at FROM alert_channels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertChannel
	for rows.Next() {
		var c AlertChannel
		var active int
		if err := rows.Scan(&c.ID, &c.Name, &c.Provider, &c.WebhookURL, &c.AlertThreshold, &c.MsgTemplate, &active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.IsActive = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func parseIntOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBoolOr(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

// UpdateAppConfig writes a subset of keys transactionally. On success it
// constructs a new AppConfig from the old one with those keys applied,
// builds a new snapshot sharing the same prompts/channels, and swaps the
// pointer. Unknown keys are ignored with a warning; parse failures on
// numeric/bool keys are logged and the old value retained. The key
// active_reduce_prompt_id has ReduceIDOffset subtracted before storage,
// since callers address it in the flat id space.
func (s *Store) UpdateAppConfig(ctx context.Context, updates map[string]string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	known := map[string]bool{
		"provider": true, "model": true, "api_key": true, "analyzer_base_url": true,
		"thread_count": true, "batch_size": true, "refresh_interval_ms": true,
		"retention_days": true, "port": true, "circuit_breaker_enabled": true,
		"ring_capacity": true, "pool_threshold": true, "worker_queue_size": true,
		"active_map_prompt_id": true, "active_reduce_prompt_id": true,
	}
	numeric := map[string]bool{
		"thread_count": true, "batch_size": true, "refresh_interval_ms": true,
		"retention_days": true, "port": true, "ring_capacity": true,
		"pool_threshold": true, "worker_queue_size": true,
		"active_map_prompt_id": true, "active_reduce_prompt_id": true,
	}
	boolean := map[string]bool{"circuit_breaker_enabled": true}

	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	defer tx.Rollback()

	for key, value := range updates {
		if !known[key] {
			s.logger.Warn("ignoring unknown app_config key", "key", key)
			continue
		}
		storedValue := value
		if numeric[key] {
			if _, err := strconv.Atoi(value); err != nil {
				s.logger.Warn("invalid numeric app_config value, keeping old", "key", key, "value", value)
				continue
			}
		}
		if boolean[key] {
			if _, err := strconv.ParseBool(value); err != nil {
				s.logger.Warn("invalid bool app_config value, keeping old", "key", key, "value", value)
				continue
			}
		}
		if key == "active_reduce_prompt_id" {
			n, _ := strconv.ParseInt(value, 10, 64)
			storedValue = strconv.FormatInt(n-ReduceIDOffset, 10)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO app_config(config_key, config_value, description, updated_at) VALUES (?, ?, '', ?)
			 ON CONFLICT(config_key) DO UPDATE SET config_value = excluded.config_value, updated_at = excluded.updated_at`,
			key, storedValue, now); err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}

	return s.reload(ctx)
}

// UpdatePrompts applies upsert-and-prune semantics, independently for Map
// and Reduce lists (selected by each item's Type field). Items with ID > 0
// are updates; ID <= 0 are inserts and receive a new id. Rows not present
// in the accepted list for that type are deleted.
func (s *Store) UpdatePrompts(ctx context.Context, items []PromptConfig) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var mapItems, reduceItems []PromptConfig
	for _, it := range items {
		if it.Type == PromptTypeReduce {
			reduceItems = append(reduceItems, it)
		} else {
			mapItems = append(mapItems, it)
		}
	}

	if err := s.upsertPrunePrompts(ctx, "map_prompts", mapItems); err != nil {
		return err
	}
	if err := s.upsertPrunePrompts(ctx, "reduce_prompts", reduceItems); err != nil {
		return err
	}

	return s.reload(ctx)
}

func (s *Store) upsertPrunePrompts(ctx context.Context, table string, items []PromptConfig) error {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	defer tx.Rollback()

	keepIDs := make([]int64, 0, len(items))
	for _, it := range items {
		active := 0
		if it.IsActive {
			active = 1
		}
		if it.ID > 0 {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET name = ?, content = ?, is_active = ? WHERE id = ?`, table),
				it.Name, it.Content, active, it.ID); err != nil {
				return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
			}
			keepIDs = append(keepIDs, it.ID)
		} else {
			res, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s(name, content, is_active, created_at) VALUES (?, ?, ?, ?)`, table),
				it.Name, it.Content, active, now)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
			}
			newID, _ := res.LastInsertId()
			keepIDs = append(keepIDs, newID)
		}
	}

	if err := pruneNotIn(ctx, tx, table, keepIDs); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	return nil
}

// UpdateChannels applies upsert-and-prune semantics over alert_channels.
func (s *Store) UpdateChannels(ctx context.Context, items []AlertChannel) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	defer tx.Rollback()

	keepIDs := make([]int64, 0, len(items))
	for _, it := range items {
		active := 0
		if it.IsActive {
			active = 1
		}
		if it.ID > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE alert_channels SET name=?, provider=?, webhook_url=?, alert_threshold=?, msg_template=?, is_active=? WHERE id=?`,
				it.Name, it.Provider, it.WebhookURL, it.AlertThreshold, it.MsgTemplate, active, it.ID); err != nil {
				return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
			}
			keepIDs = append(keepIDs, it.ID)
		} else {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO alert_channels(name, provider, webhook_url, alert_threshold, msg_template, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.Name, it.Provider, it.WebhookURL, it.AlertThreshold, it.MsgTemplate, active, now)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
			}
			newID, _ := res.LastInsertId()
			keepIDs = append(keepIDs, newID)
		}
	}

	if err := pruneNotIn(ctx, tx, "alert_channels", keepIDs); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, err.Error())
	}
	return s.reload(ctx)
}

func pruneNotIn(ctx context.Context, tx *sql.Tx, table string, keepIDs []int64) error {
	if len(keepIDs) == 0 {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table))
		return err
	}
	placeholders := make([]byte, 0, len(keepIDs)*2)
	args := make([]any, 0, len(keepIDs))
	for i, id := range keepIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id NOT IN (%s)`, table, string(placeholders))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
