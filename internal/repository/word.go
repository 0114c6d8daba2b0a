package repository

import (
	"context"
	"fmt"

	"github.com/windfall/fgl_practice/internal/client"
)

// Word is one vocabulary entry with its formal and informal example
// sentences and pre-generated reference audio.
type Word struct {
	ID                int64   `json:"id"`
	Word              string  `json:"word"`
	Pos               string  `json:"pos"`
	Level             string  `json:"level"`
	SentenceFormal    *string `json:"sentence_formal"`
	SentenceInformal  *string `json:"sentence_informal"`
	AudioFormalPath   *string `json:"audio_formal_path"`
	AudioInformalPath *string `json:"audio_informal_path"`
}

// WordProgress is one user's progress on a word: known flag, their
// latest recordings and transcriptions per register.
type WordProgress struct {
	IsKnown               bool    `json:"is_known"`
	UserAudioFormalPath   *string `json:"user_audio_formal_path"`
	UserAudioInformalPath *string `json:"user_audio_informal_path"`
	TranscriptionFormal   *string `json:"user_transcription_formal"`
	TranscriptionInformal *string `json:"user_transcription_informal"`
}

// Card is a word joined with the requesting user's progress.
type Card struct {
	Word
	Progress WordProgress `json:"progress"`
}

type WordRepository interface {
	Levels(ctx context.Context) ([]string, error)
	RandomCard(ctx context.Context, username, level string) (*Card, error)
	GetCard(ctx context.Context, username, word, pos, level string) (*Card, error)
	MarkKnown(ctx context.Context, username, word, pos, level string) error
	SetUserAudio(ctx context.Context, username, word, pos, level, register, path string) error
	SetTranscription(ctx context.Context, username, word, pos, level, register, text string) error
}

type PostgresWordRepository struct {
	db *client.PostgresClient
}

func NewPostgresWordRepository(db *client.PostgresClient) *PostgresWordRepository {
	return &PostgresWordRepository{db: db}
}

// Levels returns the distinct CEFR levels present in the word list.
func (r *PostgresWordRepository) Levels(ctx context.Context) ([]string, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `SELECT DISTINCT level FROM oxford_words WHERE level IS NOT NULL ORDER BY level`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	defer rows.Close()

	var levels []string
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

const cardColumns = `
	w.id, w.word, w.pos, w.level,
	w.sentence_formal, w.sentence_informal,
	w.audio_formal_path, w.audio_informal_path,
	COALESCE(p.is_known, FALSE),
	p.user_audio_formal_path, p.user_audio_informal_path,
	p.user_transcription_formal, p.user_transcription_informal
`

func scanCard(row interface{ Scan(dest ...any) error }) (*Card, error) {
	var c Card
	err := row.Scan(
		&c.ID,
		&c.Word.Word,
		&c.Pos,
		&c.Level,
		&c.SentenceFormal,
		&c.SentenceInformal,
		&c.AudioFormalPath,
		&c.AudioInformalPath,
		&c.Progress.IsKnown,
		&c.Progress.UserAudioFormalPath,
		&c.Progress.UserAudioInformalPath,
		&c.Progress.TranscriptionFormal,
		&c.Progress.TranscriptionInformal,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RandomCard draws one not-yet-known word for the user, restricted to
// words that carry reference audio and at least one example sentence.
// level "all" (or empty) disables the level filter.
func (r *PostgresWordRepository) RandomCard(ctx context.Context, username, level string) (*Card, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT ` + cardColumns + `
		FROM oxford_words w
		LEFT JOIN user_words p
			ON p.username = $1 AND p.word = w.word AND p.pos = w.pos AND p.level = w.level
		WHERE COALESCE(p.is_known, FALSE) = FALSE
			AND (w.audio_formal_path IS NOT NULL OR w.audio_informal_path IS NOT NULL)
			AND (COALESCE(w.sentence_formal, '') <> '' OR COALESCE(w.sentence_informal, '') <> '')
	`
	args := []any{username}

	if level != "" && level != "all" {
		query += ` AND w.level = $2`
		args = append(args, level)
	}

	// Word list is a few thousand rows; random order is fine here.
	query += ` ORDER BY RANDOM() LIMIT 1`

	card, err := scanCard(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to draw card: %w", err)
	}
	return card, nil
}

// GetCard fetches one specific word with the user's progress.
func (r *PostgresWordRepository) GetCard(ctx context.Context, username, word, pos, level string) (*Card, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT ` + cardColumns + `
		FROM oxford_words w
		LEFT JOIN user_words p
			ON p.username = $1 AND p.word = w.word AND p.pos = w.pos AND p.level = w.level
		WHERE w.word = $2 AND w.pos = $3 AND w.level = $4
	`

	card, err := scanCard(r.db.Pool.QueryRow(ctx, query, username, word, pos, level))
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// MarkKnown flags a word as known for the user so it stops appearing.
func (r *PostgresWordRepository) MarkKnown(ctx context.Context, username, word, pos, level string) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	query := `
		INSERT INTO user_words (username, word, pos, level, is_known)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (username, word, pos, level) DO UPDATE SET is_known = TRUE
	`
	if _, err := r.db.Pool.Exec(ctx, query, username, word, pos, level); err != nil {
		return fmt.Errorf("failed to mark word known: %w", err)
	}
	return nil
}

func registerColumn(register, formal, informal string) (string, error) {
	switch register {
	case "formal":
		return formal, nil
	case "informal":
		return informal, nil
	default:
		return "", fmt.Errorf("unknown register %q", register)
	}
}

// SetUserAudio records the storage path of the user's latest recording
// for one register of the word.
func (r *PostgresWordRepository) SetUserAudio(ctx context.Context, username, word, pos, level, register, path string) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	column, err := registerColumn(register, "user_audio_formal_path", "user_audio_informal_path")
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO user_words (username, word, pos, level, %s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username, word, pos, level) DO UPDATE SET %s = $5
	`, column, column)

	if _, err := r.db.Pool.Exec(ctx, query, username, word, pos, level, path); err != nil {
		return fmt.Errorf("failed to set user audio path: %w", err)
	}
	return nil
}

// SetTranscription records the recognized text of the user's recording
// for one register of the word.
func (r *PostgresWordRepository) SetTranscription(ctx context.Context, username, word, pos, level, register, text string) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	column, err := registerColumn(register, "user_transcription_formal", "user_transcription_informal")
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO user_words (username, word, pos, level, %s)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username, word, pos, level) DO UPDATE SET %s = $5
	`, column, column)

	if _, err := r.db.Pool.Exec(ctx, query, username, word, pos, level, text); err != nil {
		return fmt.Errorf("failed to set transcription: %w", err)
	}
	return nil
}
