package repository

import (
	"context"
	"fmt"

	"github.com/windfall/fgl_practice/internal/client"
)

// Paragraph is one shadowing passage of a book chapter.
type Paragraph struct {
	ID            int64   `json:"id"`
	Book          string  `json:"book"`
	Chapter       *string `json:"chapter"`
	Subtitle      *string `json:"subtitle"`
	Content       string  `json:"content"`
	AudioPath     *string `json:"audio_path"`
	TtsAudioPath  *string `json:"tts_audio_path"`
	UserAudioPath *string `json:"user_audio_path"`
}

// ChapterGroup is one chapter with its subtitles in reading order.
type ChapterGroup struct {
	Chapter   string   `json:"chapter"`
	Subtitles []string `json:"subtitles"`
}

// ParagraphFilter narrows paragraph queries; empty fields match all.
type ParagraphFilter struct {
	Book     string
	Chapter  string
	Subtitle string
}

type ParagraphRepository interface {
	Books(ctx context.Context) ([]string, error)
	Structure(ctx context.Context, book string) ([]ChapterGroup, error)
	List(ctx context.Context, filter ParagraphFilter, limit, offset int) ([]*Paragraph, error)
	GetByID(ctx context.Context, id int64) (*Paragraph, error)
	SetUserAudioPath(ctx context.Context, id int64, path string) error
	SetTtsAudioPath(ctx context.Context, id int64, path string) error
}

type PostgresParagraphRepository struct {
	db *client.PostgresClient
}

func NewPostgresParagraphRepository(db *client.PostgresClient) *PostgresParagraphRepository {
	return &PostgresParagraphRepository{db: db}
}

// Books returns the distinct books available for shadowing.
func (r *PostgresParagraphRepository) Books(ctx context.Context) ([]string, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `SELECT DISTINCT book FROM paragraphs WHERE book IS NOT NULL ORDER BY book`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []string
	for rows.Next() {
		var book string
		if err := rows.Scan(&book); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, nil
}

// Structure returns a book's chapters with their subtitles, in the
// order the paragraphs appear.
func (r *PostgresParagraphRepository) Structure(ctx context.Context, book string) ([]ChapterGroup, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT chapter, subtitle, MIN(id) AS first_id
		FROM paragraphs
		WHERE chapter IS NOT NULL
	`
	var args []any
	if book != "" {
		query += ` AND book = $1`
		args = append(args, book)
	}
	query += `
		GROUP BY chapter, subtitle
		ORDER BY first_id
	`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load structure: %w", err)
	}
	defer rows.Close()

	var groups []ChapterGroup
	index := make(map[string]int)
	for rows.Next() {
		var chapter string
		var subtitle *string
		var firstID int64
		if err := rows.Scan(&chapter, &subtitle, &firstID); err != nil {
			return nil, fmt.Errorf("failed to scan structure row: %w", err)
		}

		i, ok := index[chapter]
		if !ok {
			i = len(groups)
			index[chapter] = i
			groups = append(groups, ChapterGroup{Chapter: chapter})
		}
		if subtitle != nil && *subtitle != "" && !contains(groups[i].Subtitles, *subtitle) {
			groups[i].Subtitles = append(groups[i].Subtitles, *subtitle)
		}
	}
	return groups, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// List returns a page of paragraphs in reading order.
func (r *PostgresParagraphRepository) List(ctx context.Context, filter ParagraphFilter, limit, offset int) ([]*Paragraph, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT id, book, chapter, subtitle, content, audio_path, tts_audio_path, user_audio_path
		FROM paragraphs
		WHERE 1=1
	`
	var args []any
	if filter.Book != "" {
		args = append(args, filter.Book)
		query += fmt.Sprintf(" AND book = $%d", len(args))
	}
	if filter.Chapter != "" {
		args = append(args, filter.Chapter)
		query += fmt.Sprintf(" AND chapter = $%d", len(args))
	}
	if filter.Subtitle != "" {
		args = append(args, filter.Subtitle)
		query += fmt.Sprintf(" AND subtitle = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list paragraphs: %w", err)
	}
	defer rows.Close()

	var paragraphs []*Paragraph
	for rows.Next() {
		var p Paragraph
		if err := rows.Scan(
			&p.ID,
			&p.Book,
			&p.Chapter,
			&p.Subtitle,
			&p.Content,
			&p.AudioPath,
			&p.TtsAudioPath,
			&p.UserAudioPath,
		); err != nil {
			return nil, fmt.Errorf("failed to scan paragraph: %w", err)
		}
		paragraphs = append(paragraphs, &p)
	}
	return paragraphs, nil
}

// GetByID fetches a single paragraph.
func (r *PostgresParagraphRepository) GetByID(ctx context.Context, id int64) (*Paragraph, error) {
	if r.db == nil || r.db.Pool == nil {
		return nil, fmt.Errorf("database not configured")
	}

	query := `
		SELECT id, book, chapter, subtitle, content, audio_path, tts_audio_path, user_audio_path
		FROM paragraphs
		WHERE id = $1
	`

	var p Paragraph
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Book,
		&p.Chapter,
		&p.Subtitle,
		&p.Content,
		&p.AudioPath,
		&p.TtsAudioPath,
		&p.UserAudioPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get paragraph: %w", err)
	}
	return &p, nil
}

// SetUserAudioPath stores the ref of the user's latest recording for a
// paragraph.
func (r *PostgresParagraphRepository) SetUserAudioPath(ctx context.Context, id int64, path string) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	query := `UPDATE paragraphs SET user_audio_path = $1 WHERE id = $2`
	if _, err := r.db.Pool.Exec(ctx, query, path, id); err != nil {
		return fmt.Errorf("failed to set user audio path: %w", err)
	}
	return nil
}

// SetTtsAudioPath stores the ref of the generated reference audio.
func (r *PostgresParagraphRepository) SetTtsAudioPath(ctx context.Context, id int64, path string) error {
	if r.db == nil || r.db.Pool == nil {
		return fmt.Errorf("database not configured")
	}

	query := `UPDATE paragraphs SET tts_audio_path = $1 WHERE id = $2`
	if _, err := r.db.Pool.Exec(ctx, query, path, id); err != nil {
		return fmt.Errorf("failed to set tts audio path: %w", err)
	}
	return nil
}
