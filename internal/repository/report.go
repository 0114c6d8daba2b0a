package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/windfall/fgl_practice/internal/client"
)

// Report is one persisted pronunciation assessment.
type Report struct {
	ID                 int64           `json:"id"`
	AudioID            string          `json:"audio_id"`
	Username           string          `json:"username"`
	PronunciationScore float64         `json:"pronunciation_score"`
	AccuracyScore      float64         `json:"accuracy_score"`
	FluencyScore       float64         `json:"fluency_score"`
	ProsodyScore       float64         `json:"prosody_score"`
	TotalScore         float64         `json:"total_score"`
	RecognizedText     string          `json:"recognized_text"`
	Mispronunciations  json.RawMessage `json:"mispronunciations_json"`
	SpeechType         string          `json:"speech_type"`
	Source             string          `json:"source"`
	CreatedAt          time.Time       `json:"created_at"`
}

type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	ListByAudio(ctx context.Context, username, source, audioID string, limit int) ([]*Report, error)
}

type PostgresReportRepository struct {
	db *client.PostgresClient
}

func NewPostgresReportRepository(db *client.PostgresClient) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

func (r *PostgresReportRepository) Create(ctx context.Context, report *Report) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
		INSERT INTO pronunciation_reports (
			audio_id, username, pronunciation_score, accuracy_score, fluency_score,
			prosody_score, total_score, recognized_text, mispronunciations_json,
			speech_type, source
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		report.AudioID,
		report.Username,
		report.PronunciationScore,
		report.AccuracyScore,
		report.FluencyScore,
		report.ProsodyScore,
		report.TotalScore,
		report.RecognizedText,
		report.Mispronunciations,
		report.SpeechType,
		report.Source,
	).Scan(&report.ID, &report.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create pronunciation report: %w", err)
	}
	return nil
}

// ListByAudio returns a user's most recent reports for one recording
// target, newest first.
func (r *PostgresReportRepository) ListByAudio(ctx context.Context, username, source, audioID string, limit int) ([]*Report, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, audio_id, username, pronunciation_score, accuracy_score, fluency_score,
			prosody_score, total_score, recognized_text, mispronunciations_json,
			speech_type, source, created_at
		FROM pronunciation_reports
		WHERE username = $1 AND source = $2 AND audio_id = $3
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query, username, source, audioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pronunciation reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var rep Report
		if err := rows.Scan(
			&rep.ID,
			&rep.AudioID,
			&rep.Username,
			&rep.PronunciationScore,
			&rep.AccuracyScore,
			&rep.FluencyScore,
			&rep.ProsodyScore,
			&rep.TotalScore,
			&rep.RecognizedText,
			&rep.Mispronunciations,
			&rep.SpeechType,
			&rep.Source,
			&rep.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pronunciation report: %w", err)
		}
		reports = append(reports, &rep)
	}
	return reports, nil
}
