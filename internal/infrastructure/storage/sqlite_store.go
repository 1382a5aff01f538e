package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/domain"
	"github.com/archivecast/podgen/internal/ports"
)

var _ ports.CatalogStore = (*SQLiteStore)(nil)

// UpsertSpeeches inserts new speeches and updates existing ones by id,
// returning the count of genuinely new records (§4.1: "re-ingesting the
// same external item upserts without duplication").
func (s *SQLiteStore) UpsertSpeeches(ctx context.Context, records []domain.Speech) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Store(err, apperr.StoreIO, "begin upsert speeches tx")
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, r := range records {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM speeches WHERE id = ?`, r.ID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			inserted++
		case err != nil:
			return 0, apperr.Store(err, apperr.StoreIO, "check existing speech %s", r.ID)
		}

		now := time.Now().UTC().Format(timeLayout)
		q := s.sql.Insert("speeches").
			Columns("id", "title", "date", "source", "rally_location", "video_url", "audio_url",
				"transcript_url", "transcript", "duration", "thumbnail_url", "status", "created_at", "updated_at").
			Values(r.ID, r.Title, nullableStr(r.Date), r.Source, nullableStr(r.RallyLocation), r.VideoURL,
				r.AudioURL, r.TranscriptURL, nullableStr(r.Transcript), r.Duration, r.ThumbnailURL,
				string(orDefault(r.Status, domain.SpeechActive)), now, now).
			Suffix(`ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, date=excluded.date, rally_location=excluded.rally_location,
				video_url=excluded.video_url, transcript_url=excluded.transcript_url,
				transcript=excluded.transcript, duration=excluded.duration,
				thumbnail_url=excluded.thumbnail_url, updated_at=excluded.updated_at`)

		sqlStr, args, err := q.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build upsert speech query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return 0, apperr.Store(err, apperr.StoreIO, "upsert speech %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Store(err, apperr.StoreIO, "commit upsert speeches")
	}
	return inserted, nil
}

func orDefault(status domain.SpeechStatus, fallback domain.SpeechStatus) domain.SpeechStatus {
	if status == "" {
		return fallback
	}
	return status
}

// SearchSpeeches applies the bounded, paginated keyword/date-range search
// contract (§4.1) over active speeches only.
func (s *SQLiteStore) SearchSpeeches(ctx context.Context, filter domain.SearchFilter) (domain.SearchResult, error) {
	filter.Clamp()

	where := sq.Eq{"status": string(domain.SpeechActive)}
	countQ := s.sql.Select("COUNT(*)").From("speeches").Where(where)
	selectQ := s.sql.Select("id", "title", "date", "source", "rally_location", "video_url", "audio_url",
		"transcript_url", "transcript", "duration", "thumbnail_url", "status", "created_at", "updated_at").
		From("speeches").Where(where).OrderBy("date DESC, id ASC").
		Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))

	if filter.Keyword != "" {
		like := "%" + strings.ToLower(filter.Keyword) + "%"
		kw := sq.Or{
			sq.Like{"LOWER(title)": like},
			sq.Like{"LOWER(transcript)": like},
			sq.Like{"LOWER(rally_location)": like},
		}
		countQ = countQ.Where(kw)
		selectQ = selectQ.Where(kw)
	}
	if filter.StartDate != "" {
		countQ = countQ.Where(sq.GtOrEq{"date": filter.StartDate})
		selectQ = selectQ.Where(sq.GtOrEq{"date": filter.StartDate})
	}
	if filter.EndDate != "" {
		countQ = countQ.Where(sq.LtOrEq{"date": filter.EndDate})
		selectQ = selectQ.Where(sq.LtOrEq{"date": filter.EndDate})
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return domain.SearchResult{}, apperr.Store(err, apperr.StoreIO, "count search speeches")
	}

	selectSQL, selectArgs, err := selectQ.ToSql()
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("build search query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, selectSQL, selectArgs...)
	if err != nil {
		return domain.SearchResult{}, apperr.Store(err, apperr.StoreIO, "search speeches")
	}
	defer rows.Close()

	speeches, err := scanSpeeches(rows)
	if err != nil {
		return domain.SearchResult{}, err
	}
	return domain.SearchResult{Rows: speeches, Total: total}, nil
}

// CountSpeeches returns the total number of active speeches in the catalog.
func (s *SQLiteStore) CountSpeeches(ctx context.Context) (int, error) {
	sqlStr, args, err := s.sql.Select("COUNT(*)").From("speeches").
		Where(sq.Eq{"status": string(domain.SpeechActive)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count speeches query: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, apperr.Store(err, apperr.StoreIO, "count speeches")
	}
	return count, nil
}

// ResolveSpeeches fetches speeches by id, silently omitting unknown ids.
func (s *SQLiteStore) ResolveSpeeches(ctx context.Context, ids []string) ([]domain.Speech, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	anyIDs := make([]any, len(ids))
	for i, id := range ids {
		anyIDs[i] = id
	}
	sqlStr, args, err := s.sql.Select("id", "title", "date", "source", "rally_location", "video_url",
		"audio_url", "transcript_url", "transcript", "duration", "thumbnail_url", "status", "created_at", "updated_at").
		From("speeches").Where(sq.Eq{"id": anyIDs}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build resolve speeches query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperr.Store(err, apperr.StoreIO, "resolve speeches")
	}
	defer rows.Close()
	return scanSpeeches(rows)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSpeech(row scannable) (domain.Speech, error) {
	var sp domain.Speech
	var date, rallyLocation, transcript sql.NullString
	var status, created, updated string
	err := row.Scan(&sp.ID, &sp.Title, &date, &sp.Source, &rallyLocation, &sp.VideoURL, &sp.AudioURL,
		&sp.TranscriptURL, &transcript, &sp.Duration, &sp.ThumbnailURL, &status, &created, &updated)
	if err != nil {
		return sp, fmt.Errorf("scan speech: %w", err)
	}
	sp.Date = nullableToPtr(date)
	sp.RallyLocation = nullableToPtr(rallyLocation)
	sp.Transcript = nullableToPtr(transcript)
	sp.Status = domain.SpeechStatus(status)
	sp.CreatedAt, _ = time.Parse(timeLayout, created)
	sp.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return sp, nil
}

func scanSpeeches(rows *sql.Rows) ([]domain.Speech, error) {
	out := make([]domain.Speech, 0)
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// CreateWorkflow inserts a new draft-stage workflow with a generated id.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, name string, speechIDs []string) (domain.Workflow, error) {
	idsJSON, err := json.Marshal(speechIDs)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("marshal speech ids: %w", err)
	}

	now := time.Now().UTC()
	w := domain.Workflow{
		ID:        uuid.NewString(),
		Name:      name,
		SpeechIDs: speechIDs,
		Status:    domain.WorkflowDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sqlStr, args, err := s.sql.Insert("workflows").
		Columns("id", "name", "speech_ids", "status", "created_at", "updated_at").
		Values(w.ID, w.Name, string(idsJSON), string(w.Status), now.Format(timeLayout), now.Format(timeLayout)).
		ToSql()
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("build create workflow query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return domain.Workflow{}, apperr.Store(err, apperr.StoreIO, "create workflow")
	}
	return w, nil
}

// GetWorkflow returns a workflow by id, or apperr.NotFound.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	sqlStr, args, err := s.sql.Select("id", "name", "speech_ids", "script", "audio_url", "rss_url",
		"status", "created_at", "updated_at").From("workflows").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("build get workflow query: %w", err)
	}
	row := s.db.QueryRowContext(ctx, sqlStr, args...)
	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Workflow{}, apperr.NotFound("workflow %s not found", id)
	}
	if err != nil {
		return domain.Workflow{}, apperr.Store(err, apperr.StoreIO, "get workflow %s", id)
	}
	return w, nil
}

// UpdateWorkflow applies a partial update, leaving nil fields untouched.
func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, id string, update domain.WorkflowUpdate) (domain.Workflow, error) {
	set := sq.Eq{"updated_at": time.Now().UTC().Format(timeLayout)}
	if update.Script != nil {
		set["script"] = *update.Script
	}
	if update.AudioURL != nil {
		set["audio_url"] = *update.AudioURL
	}
	if update.RSSURL != nil {
		set["rss_url"] = *update.RSSURL
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}

	sqlStr, args, err := s.sql.Update("workflows").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("build update workflow query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return domain.Workflow{}, apperr.Store(err, apperr.StoreIO, "update workflow %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Workflow{}, apperr.NotFound("workflow %s not found", id)
	}
	return s.GetWorkflow(ctx, id)
}

func scanWorkflow(row scannable) (domain.Workflow, error) {
	var w domain.Workflow
	var idsJSON string
	var script, audioURL, rssURL sql.NullString
	var status, created, updated string
	err := row.Scan(&w.ID, &w.Name, &idsJSON, &script, &audioURL, &rssURL, &status, &created, &updated)
	if err != nil {
		return w, err
	}
	_ = json.Unmarshal([]byte(idsJSON), &w.SpeechIDs)
	w.Script = nullableToPtr(script)
	w.AudioURL = nullableToPtr(audioURL)
	w.RSSURL = nullableToPtr(rssURL)
	w.Status = domain.WorkflowStatus(status)
	w.CreatedAt, _ = time.Parse(timeLayout, created)
	w.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return w, nil
}

// CuratedModelsBy returns every curated model in a category (every model
// when category is empty), best score first.
func (s *SQLiteStore) CuratedModelsBy(ctx context.Context, category domain.ModelCategory) ([]domain.CuratedModel, error) {
	q := s.sql.Select("id", "name", "provider", "description", "category",
		"performance_score", "usage_count", "avg_response_ms", "success_rate", "last_used", "created_at", "updated_at").
		From("curated_models")
	if category != "" {
		q = q.Where(sq.Eq{"category": string(category)})
	}
	sqlStr, args, err := q.OrderBy("performance_score DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build curated models query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperr.Store(err, apperr.StoreIO, "list curated models")
	}
	defer rows.Close()

	out := make([]domain.CuratedModel, 0)
	for rows.Next() {
		m, err := scanCuratedModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertCuratedModels seeds or refreshes the model catalog.
func (s *SQLiteStore) UpsertCuratedModels(ctx context.Context, models []domain.CuratedModel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store(err, apperr.StoreIO, "begin upsert models tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	for _, m := range models {
		q := s.sql.Insert("curated_models").
			Columns("id", "name", "provider", "description", "category", "performance_score",
				"usage_count", "avg_response_ms", "success_rate", "last_used", "created_at", "updated_at").
			Values(m.ID, m.Name, m.Provider, m.Description, string(m.Category), m.PerformanceScore,
				m.UsageCount, m.AvgResponseTime.Milliseconds(), m.SuccessRate, nullableTime(m.LastUsed), now, now).
			Suffix(`ON CONFLICT(id) DO UPDATE SET
				name=excluded.name, provider=excluded.provider, description=excluded.description,
				category=excluded.category, performance_score=excluded.performance_score, updated_at=excluded.updated_at`)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build upsert model query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return apperr.Store(err, apperr.StoreIO, "upsert model %s", m.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Store(err, apperr.StoreIO, "commit upsert models")
	}
	return nil
}

// RecordModelUsage applies domain.CuratedModel.RecordUsage's EMA update
// under a read-modify-write transaction.
func (s *SQLiteStore) RecordModelUsage(ctx context.Context, modelID string, at time.Time, elapsed time.Duration, ok bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store(err, apperr.StoreIO, "begin record usage tx")
	}
	defer func() { _ = tx.Rollback() }()

	sqlStr, args, err := s.sql.Select("id", "name", "provider", "description", "category",
		"performance_score", "usage_count", "avg_response_ms", "success_rate", "last_used", "created_at", "updated_at").
		From("curated_models").Where(sq.Eq{"id": modelID}).ToSql()
	if err != nil {
		return fmt.Errorf("build select model query: %w", err)
	}
	row := tx.QueryRowContext(ctx, sqlStr, args...)
	m, err := scanCuratedModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("curated model %s not found", modelID)
	}
	if err != nil {
		return apperr.Store(err, apperr.StoreIO, "load model %s", modelID)
	}

	m.RecordUsage(at, elapsed, ok)

	updSQL, updArgs, err := s.sql.Update("curated_models").
		Set("usage_count", m.UsageCount).
		Set("avg_response_ms", m.AvgResponseTime.Milliseconds()).
		Set("success_rate", m.SuccessRate).
		Set("last_used", nullableTime(m.LastUsed)).
		Set("updated_at", time.Now().UTC().Format(timeLayout)).
		Where(sq.Eq{"id": modelID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update model usage query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updSQL, updArgs...); err != nil {
		return apperr.Store(err, apperr.StoreIO, "record model usage %s", modelID)
	}
	return tx.Commit()
}

func scanCuratedModel(row scannable) (domain.CuratedModel, error) {
	var m domain.CuratedModel
	var category, created, updated string
	var lastUsed sql.NullString
	var avgMS int64
	err := row.Scan(&m.ID, &m.Name, &m.Provider, &m.Description, &category, &m.PerformanceScore,
		&m.UsageCount, &avgMS, &m.SuccessRate, &lastUsed, &created, &updated)
	if err != nil {
		return m, err
	}
	m.Category = domain.ModelCategory(category)
	m.AvgResponseTime = time.Duration(avgMS) * time.Millisecond
	if lastUsed.Valid {
		t, _ := time.Parse(timeLayout, lastUsed.String)
		m.LastUsed = &t
	}
	m.CreatedAt, _ = time.Parse(timeLayout, created)
	m.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return m, nil
}

// CacheKeyValidation upserts a validation verdict keyed by key hash.
func (s *SQLiteStore) CacheKeyValidation(ctx context.Context, result domain.KeyValidation) error {
	var errCode *string
	if result.ErrorCode != nil {
		s := string(*result.ErrorCode)
		errCode = &s
	}
	q := s.sql.Insert("key_validations").
		Columns("key_hash", "is_valid", "model_count", "error_code", "validated_at", "expires_at").
		Values(result.KeyHash, boolToInt(result.IsValid), result.ModelCount, errCode,
			result.ValidatedAt.UTC().Format(timeLayout), result.ExpiresAt.UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT(key_hash) DO UPDATE SET
			is_valid=excluded.is_valid, model_count=excluded.model_count, error_code=excluded.error_code,
			validated_at=excluded.validated_at, expires_at=excluded.expires_at`)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build cache key validation query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return apperr.Store(err, apperr.StoreIO, "cache key validation")
	}
	return nil
}

// LookupKeyValidation returns the cached verdict for a key hash, or nil if
// no row exists (the caller checks Fresh() for expiry).
func (s *SQLiteStore) LookupKeyValidation(ctx context.Context, keyHash string) (*domain.KeyValidation, error) {
	sqlStr, args, err := s.sql.Select("key_hash", "is_valid", "model_count", "error_code", "validated_at", "expires_at").
		From("key_validations").Where(sq.Eq{"key_hash": keyHash}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lookup key validation query: %w", err)
	}
	row := s.db.QueryRowContext(ctx, sqlStr, args...)

	var kv domain.KeyValidation
	var isValid int
	var errCode sql.NullString
	var validated, expires string
	err = row.Scan(&kv.KeyHash, &isValid, &kv.ModelCount, &errCode, &validated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store(err, apperr.StoreIO, "lookup key validation")
	}
	kv.IsValid = isValid == 1
	if errCode.Valid {
		code := domain.KeyErrorCode(errCode.String)
		kv.ErrorCode = &code
	}
	kv.ValidatedAt, _ = time.Parse(timeLayout, validated)
	kv.ExpiresAt, _ = time.Parse(timeLayout, expires)
	return &kv, nil
}

// AppendEvent inserts one row into the append-only event log (§4.1).
func (s *SQLiteStore) AppendEvent(ctx context.Context, event domain.Event) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	sqlStr, args, err := s.sql.Insert("events").
		Columns("event_type", "data_json", "ip", "user_agent", "created_at").
		Values(event.EventType, string(dataJSON), event.IP, event.UserAgent, ts.Format(timeLayout)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append event query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return apperr.Store(err, apperr.StoreIO, "append event")
	}
	return nil
}

// AppendFeedback inserts one end-of-episode feedback row.
func (s *SQLiteStore) AppendFeedback(ctx context.Context, feedback domain.FeedbackRecord) error {
	ts := feedback.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	sqlStr, args, err := s.sql.Insert("feedback").
		Columns("overall_rating", "script_rating", "audio_rating", "comments", "recommend", "session_id", "created_at").
		Values(feedback.OverallRating, feedback.ScriptRating, feedback.AudioRating, feedback.Comments,
			boolToInt(feedback.Recommend), feedback.SessionID, ts.Format(timeLayout)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build append feedback query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return apperr.Store(err, apperr.StoreIO, "append feedback")
	}
	return nil
}

// CountEventsByType tallies events since a cutoff, grouped by type, for the
// Prometheus metrics view (§4.1: "metrics are a derived view over Event").
func (s *SQLiteStore) CountEventsByType(ctx context.Context, since time.Time) (map[string]int, error) {
	sqlStr, args, err := s.sql.Select("event_type", "COUNT(*)").From("events").
		Where(sq.GtOrEq{"created_at": since.UTC().Format(timeLayout)}).
		GroupBy("event_type").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count events query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperr.Store(err, apperr.StoreIO, "count events by type")
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan event count row: %w", err)
		}
		out[eventType] = count
	}
	return out, rows.Err()
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableToPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
