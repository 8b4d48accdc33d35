package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/terraguard/climate-alerts/internal/models"
)

// SQLiteDB implements AlertRepository, SubscriberRepository and
// DispatchRepository on a single sqlite database.
type SQLiteDB struct {
	db       *sql.DB
	alertTTL time.Duration
	clock    clockwork.Clock

	// upsertMu serializes the read-decide-write inside UpsertFromAssessment.
	// sqlite has a single writer anyway; the mutex extends that to the
	// decision read so overlapping cycles cannot both see "no active alert".
	upsertMu sync.Mutex

	// subscriberMu does the same for the subscriber find-then-insert, so two
	// concurrent subscribes for one identity cannot both miss the lookup and
	// race into the unique index.
	subscriberMu sync.Mutex
}

func NewSQLiteDB(path string, alertTTL time.Duration, clock clockwork.Clock) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &SQLiteDB{
		db:       db,
		alertTTL: alertTTL,
		clock:    clock,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			region TEXT NOT NULL,
			hazard TEXT NOT NULL,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			narrative TEXT,
			recommended_actions TEXT,
			immediate_actions TEXT,
			source_snapshot TEXT,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS subscribers (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER,
			phone_number TEXT,
			region TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			subscribed INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS dispatch_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT NOT NULL,
			subscriber_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			attempted_at DATETIME NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_tuple ON alerts(region, hazard, status);
		CREATE INDEX IF NOT EXISTS idx_alerts_status_expiry ON alerts(status, expires_at);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_subscribers_telegram
			ON subscribers(telegram_id) WHERE telegram_id IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS idx_subscribers_phone
			ON subscribers(phone_number) WHERE phone_number IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_subscribers_region ON subscribers(region, subscribed);
		CREATE INDEX IF NOT EXISTS idx_dispatch_triple
			ON dispatch_log(alert_id, subscriber_id, channel);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// --- alerts ---

func (s *SQLiteDB) UpsertFromAssessment(ctx context.Context, draft models.AlertDraft) (UpsertResult, error) {
	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("error beginning upsert tx: %w", err)
	}
	defer tx.Rollback()

	active, err := s.activeForTuple(ctx, tx, draft.Region, draft.Hazard)
	if err != nil {
		return UpsertResult{}, err
	}

	now := s.clock.Now().UTC()
	var superseded *models.Alert

	if len(active) > 1 {
		// Two active alerts for one tuple is an internal bug. Self-heal by
		// collapsing to the most recent row.
		slog.Error("invariant violation: multiple active alerts for tuple",
			"region", draft.Region, "hazard", draft.Hazard, "count", len(active))
		for _, extra := range active[1:] {
			if err := s.expireRow(ctx, tx, extra.ID); err != nil {
				return UpsertResult{}, err
			}
		}
		active = active[:1]
	}

	if len(active) == 1 {
		current := active[0]
		if current.Severity == draft.Severity {
			// Unchanged ongoing hazard: suppress.
			if err := tx.Commit(); err != nil {
				return UpsertResult{}, err
			}
			return UpsertResult{Alert: &current, Created: false}, nil
		}
		// Severity changed: supersede.
		if err := s.expireRow(ctx, tx, current.ID); err != nil {
			return UpsertResult{}, err
		}
		expired := current
		expired.Status = models.AlertStatusExpired
		superseded = &expired
	}

	alert := &models.Alert{
		ID:                 uuid.NewString(),
		Region:             draft.Region,
		Hazard:             draft.Hazard,
		Severity:           draft.Severity,
		Title:              draft.Title,
		Narrative:          draft.Narrative,
		RecommendedActions: draft.RecommendedActions,
		ImmediateActions:   draft.ImmediateActions,
		SourceSnapshot:     draft.SourceSnapshot,
		Status:             models.AlertStatusActive,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.alertTTL),
	}

	recommended, _ := json.Marshal(alert.RecommendedActions)
	immediate, _ := json.Marshal(alert.ImmediateActions)
	snapshot, _ := json.Marshal(alert.SourceSnapshot)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO alerts (id, region, hazard, severity, title, narrative,
			recommended_actions, immediate_actions, source_snapshot,
			status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.Region, string(alert.Hazard), string(alert.Severity),
		alert.Title, alert.Narrative, string(recommended), string(immediate),
		string(snapshot), string(alert.Status), alert.CreatedAt, alert.ExpiresAt,
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("error inserting alert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, err
	}

	return UpsertResult{Alert: alert, Created: true, Superseded: superseded}, nil
}

func (s *SQLiteDB) activeForTuple(ctx context.Context, tx *sql.Tx, region string, hazard models.HazardKind) ([]models.Alert, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, region, hazard, severity, title, narrative,
			recommended_actions, immediate_actions, source_snapshot,
			status, created_at, expires_at
		FROM alerts
		WHERE region = ? AND hazard = ? AND status = ?
		ORDER BY created_at DESC`,
		region, string(hazard), string(models.AlertStatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active tuple: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *SQLiteDB) expireRow(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE alerts SET status = ? WHERE id = ?`,
		string(models.AlertStatusExpired), id)
	if err != nil {
		return fmt.Errorf("error expiring alert %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteDB) ListActive(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	query := `
		SELECT id, region, hazard, severity, title, narrative,
			recommended_actions, immediate_actions, source_snapshot,
			status, created_at, expires_at
		FROM alerts
		WHERE status = ?`
	args := []any{string(models.AlertStatusActive)}

	if f.Region != "" {
		query += " AND region = ?"
		args = append(args, f.Region)
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing active alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, region, hazard, severity, title, narrative,
			recommended_actions, immediate_actions, source_snapshot,
			status, created_at, expires_at
		FROM alerts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("error getting alert: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, ErrNotFound
	}
	return &alerts[0], nil
}

func (s *SQLiteDB) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = ? WHERE status = ? AND expires_at < ?`,
		string(models.AlertStatusExpired), string(models.AlertStatusActive), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("error expiring overdue alerts: %w", err)
	}
	return res.RowsAffected()
}

func scanAlerts(rows *sql.Rows) ([]models.Alert, error) {
	var alerts []models.Alert
	for rows.Next() {
		var (
			a                                models.Alert
			hazard, severity, status         string
			recommended, immediate, snapshot sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Region, &hazard, &severity, &a.Title,
			&a.Narrative, &recommended, &immediate, &snapshot,
			&status, &a.CreatedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		a.Hazard = models.HazardKind(hazard)
		a.Severity = models.Severity(severity)
		a.Status = models.AlertStatus(status)
		if recommended.Valid && recommended.String != "" {
			_ = json.Unmarshal([]byte(recommended.String), &a.RecommendedActions)
		}
		if immediate.Valid && immediate.String != "" {
			_ = json.Unmarshal([]byte(immediate.String), &a.ImmediateActions)
		}
		if snapshot.Valid && snapshot.String != "" {
			_ = json.Unmarshal([]byte(snapshot.String), &a.SourceSnapshot)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// --- subscribers ---

func (s *SQLiteDB) Upsert(ctx context.Context, sub *models.Subscriber) (*models.Subscriber, error) {
	hasTelegram := sub.TelegramID != 0
	hasPhone := sub.PhoneNumber != ""
	if hasTelegram == hasPhone {
		return nil, fmt.Errorf("subscriber must have exactly one channel identity")
	}

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()

	now := s.clock.Now().UTC()

	var (
		existing models.Subscriber
		err      error
	)
	if hasTelegram {
		err = s.findSubscriber(ctx, &existing, `telegram_id = ?`, sub.TelegramID)
	} else {
		err = s.findSubscriber(ctx, &existing, `phone_number = ?`, sub.PhoneNumber)
	}

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE subscribers
			SET region = ?, latitude = ?, longitude = ?, subscribed = ?, updated_at = ?
			WHERE id = ?`,
			sub.Region, sub.Latitude, sub.Longitude, boolInt(sub.Subscribed), now, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("error updating subscriber: %w", err)
		}
		existing.Region = sub.Region
		existing.Latitude = sub.Latitude
		existing.Longitude = sub.Longitude
		existing.Subscribed = sub.Subscribed
		existing.UpdatedAt = now
		return &existing, nil

	case err == ErrNotFound:
		created := *sub
		created.ID = uuid.NewString()
		created.CreatedAt = now
		created.UpdatedAt = now

		var telegramID any
		if hasTelegram {
			telegramID = created.TelegramID
		}
		var phone any
		if hasPhone {
			phone = created.PhoneNumber
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO subscribers (id, telegram_id, phone_number, region,
				latitude, longitude, subscribed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			created.ID, telegramID, phone, created.Region,
			created.Latitude, created.Longitude, boolInt(created.Subscribed),
			created.CreatedAt, created.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error inserting subscriber: %w", err)
		}
		return &created, nil

	default:
		return nil, err
	}
}

func (s *SQLiteDB) findSubscriber(ctx context.Context, out *models.Subscriber, where string, arg any) error {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(telegram_id, 0), COALESCE(phone_number, ''),
			region, latitude, longitude, subscribed, created_at, updated_at
		FROM subscribers WHERE `+where, arg)

	var (
		subscribed int
		lat, lon   sql.NullFloat64
	)
	err := row.Scan(&out.ID, &out.TelegramID, &out.PhoneNumber, &out.Region,
		&lat, &lon, &subscribed, &out.CreatedAt, &out.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error scanning subscriber: %w", err)
	}
	out.Subscribed = subscribed != 0
	out.Latitude, out.Longitude = nullFloat(lat), nullFloat(lon)
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *SQLiteDB) ListSubscribed(ctx context.Context, region string) ([]models.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(telegram_id, 0), COALESCE(phone_number, ''),
			region, latitude, longitude, subscribed, created_at, updated_at
		FROM subscribers
		WHERE region = ? AND subscribed = 1`, region)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var (
			sub        models.Subscriber
			subscribed int
			lat, lon   sql.NullFloat64
		)
		if err := rows.Scan(&sub.ID, &sub.TelegramID, &sub.PhoneNumber, &sub.Region,
			&lat, &lon, &subscribed, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning subscriber: %w", err)
		}
		sub.Subscribed = subscribed != 0
		sub.Latitude, sub.Longitude = nullFloat(lat), nullFloat(lon)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteDB) DistinctRegions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT region FROM subscribers
		WHERE subscribed = 1 AND region != ''
		ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("error listing subscriber regions: %w", err)
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

func (s *SQLiteDB) SetSubscribed(ctx context.Context, id string, subscribed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET subscribed = ?, updated_at = ? WHERE id = ?`,
		boolInt(subscribed), s.clock.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("error updating subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- dispatch log ---

func (s *SQLiteDB) Record(ctx context.Context, r *models.DispatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_log (alert_id, subscriber_id, channel, attempted_at, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.AlertID, r.SubscriberID, string(r.Channel), r.AttemptedAt.UTC(),
		string(r.Outcome), r.Error)
	if err != nil {
		return fmt.Errorf("error recording dispatch: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Delivered(ctx context.Context, alertID, subscriberID string, channel models.Channel) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM dispatch_log
			WHERE alert_id = ? AND subscriber_id = ? AND channel = ? AND outcome = ?
		)`,
		alertID, subscriberID, string(channel), string(models.DispatchDelivered),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking dispatch history: %w", err)
	}
	return exists != 0, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
