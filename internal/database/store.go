package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lessoncast/pkg/interfaces"
	"lessoncast/pkg/types"
)

var _ interfaces.LessonStore = (*Manager)(nil)

const lessonColumns = "id, lesson_order, title, description, emoji, published, created_at, updated_at"

// FetchLessonList returns published lessons ordered by course position.
func (m *Manager) FetchLessonList(ctx context.Context) ([]types.LessonSummary, error) {
	query := `
		SELECT l.id, l.lesson_order, l.title, l.description, l.emoji, l.published,
		       COUNT(s.number), COALESCE(SUM(s.duration_ms), 0)
		FROM lessons l
		LEFT JOIN slides s ON s.lesson_id = l.id
		WHERE l.published = 1
		GROUP BY l.id
		ORDER BY l.lesson_order ASC`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	summaries := []types.LessonSummary{}
	for rows.Next() {
		var s types.LessonSummary
		if err := rows.Scan(&s.ID, &s.Order, &s.Title, &s.Description, &s.Emoji, &s.Published,
			&s.SlideCount, &s.TotalDurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// FetchLessonDetail returns a lesson and its slides.
func (m *Manager) FetchLessonDetail(ctx context.Context, lessonID string) (*types.Lesson, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+lessonColumns+" FROM lessons WHERE id = ?", lessonID)
	return m.loadLesson(ctx, row)
}

// FetchLessonByOrder returns the lesson at a course position.
func (m *Manager) FetchLessonByOrder(ctx context.Context, order int) (*types.Lesson, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+lessonColumns+" FROM lessons WHERE lesson_order = ?", order)
	return m.loadLesson(ctx, row)
}

func (m *Manager) loadLesson(ctx context.Context, row *sql.Row) (*types.Lesson, error) {
	var l types.Lesson
	err := row.Scan(&l.ID, &l.Order, &l.Title, &l.Description, &l.Emoji, &l.Published, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT number, title, text, audio_url, duration_ms, theme_kind, emoji, illustration
		FROM slides WHERE lesson_id = ? ORDER BY number ASC`, l.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slides: %w", err)
	}
	defer rows.Close()

	l.Slides = []types.Slide{}
	for rows.Next() {
		var s types.Slide
		var kind string
		if err := rows.Scan(&s.Number, &s.Title, &s.Text, &s.AudioURL, &s.EstimatedDurationMs,
			&kind, &s.Theme.Emoji, &s.Theme.Illustration); err != nil {
			return nil, fmt.Errorf("failed to scan slide: %w", err)
		}
		s.Theme.Kind = types.ThemeKind(kind)
		l.Slides = append(l.Slides, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveLesson upserts the lesson row and replaces its slides in one transaction.
func (m *Manager) SaveLesson(ctx context.Context, lesson *types.Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lessons (id, lesson_order, title, description, emoji, published, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				lesson_order = excluded.lesson_order,
				title = excluded.title,
				description = excluded.description,
				emoji = excluded.emoji,
				published = excluded.published,
				updated_at = excluded.updated_at`,
			lesson.ID, lesson.Order, lesson.Title, lesson.Description, lesson.Emoji, lesson.Published, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert lesson: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM slides WHERE lesson_id = ?", lesson.ID); err != nil {
			return fmt.Errorf("failed to clear slides: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO slides (lesson_id, number, title, text, audio_url, duration_ms, theme_kind, emoji, illustration)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range lesson.Slides {
			kind := s.Theme.Kind
			if kind == "" {
				kind = types.ThemePlain
			}
			if _, err := stmt.ExecContext(ctx, lesson.ID, s.Number, s.Title, s.Text, s.AudioURL,
				s.EstimatedDurationMs, string(kind), s.Theme.Emoji, s.Theme.Illustration); err != nil {
				return fmt.Errorf("failed to insert slide %d: %w", s.Number, err)
			}
		}
		return tx.Commit()
	})
}

// SetSlideAudio records the public URL of a generated clip.
func (m *Manager) SetSlideAudio(ctx context.Context, lessonID string, slideNumber int, audioURL string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			"UPDATE slides SET audio_url = ? WHERE lesson_id = ? AND number = ?",
			audioURL, lessonID, slideNumber)
		if err != nil {
			return fmt.Errorf("failed to set slide audio: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: lesson %s slide %d", ErrSlideNotFound, lessonID, slideNumber)
		}
		return nil
	})
}

// ClearSlideAudio forgets every clip URL of a lesson.
func (m *Manager) ClearSlideAudio(ctx context.Context, lessonID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "UPDATE slides SET audio_url = '' WHERE lesson_id = ?", lessonID)
		return err
	})
}

// SaveQuestions replaces the question set of a lesson.
func (m *Manager) SaveQuestions(ctx context.Context, lessonID string, questions []types.Question) error {
	for i := range questions {
		if err := questions[i].Validate(); err != nil {
			return fmt.Errorf("question %d: %w", questions[i].ID, err)
		}
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE lesson_id = ?", lessonID); err != nil {
			return err
		}
		for _, q := range questions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO questions (lesson_id, id, question, correct_answer, difficulty, points)
				VALUES (?, ?, ?, ?, ?, ?)`,
				lessonID, q.ID, q.Question, q.CorrectAnswer, string(q.Difficulty), q.Points)
			if err != nil {
				return fmt.Errorf("failed to insert question %d: %w", q.ID, err)
			}
		}
		return tx.Commit()
	})
}

// ListQuestions returns the questions of a lesson ordered by ID.
func (m *Manager) ListQuestions(ctx context.Context, lessonID string) ([]types.Question, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, question, correct_answer, difficulty, points
		FROM questions WHERE lesson_id = ? ORDER BY id ASC`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := []types.Question{}
	for rows.Next() {
		var q types.Question
		var difficulty string
		if err := rows.Scan(&q.ID, &q.Question, &q.CorrectAnswer, &difficulty, &q.Points); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		q.Difficulty = types.Difficulty(difficulty)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// MarkCompleted records a completion. Repeating it refreshes the timestamp.
func (m *Manager) MarkCompleted(ctx context.Context, completion *types.Completion) error {
	if !types.IsValidUserID(completion.UserID) {
		return types.ErrInvalidUserID
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO completions (user_id, lesson_id, completed_at) VALUES (?, ?, ?)
			ON CONFLICT(user_id, lesson_id) DO UPDATE SET completed_at = excluded.completed_at`,
			completion.UserID, completion.LessonID, completion.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to record completion: %w", err)
		}
		return nil
	})
}

// ListCompletions returns the lessons a user has finished, oldest first.
func (m *Manager) ListCompletions(ctx context.Context, userID string) ([]types.Completion, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT user_id, lesson_id, completed_at FROM completions
		WHERE user_id = ? ORDER BY completed_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	completions := []types.Completion{}
	for rows.Next() {
		var c types.Completion
		if err := rows.Scan(&c.UserID, &c.LessonID, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

// RecordPipelineRun stores a generation report for audit.
func (m *Manager) RecordPipelineRun(ctx context.Context, report *types.PipelineReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO pipeline_runs (id, lesson_id, lesson_order, cleared, succeeded, failed, deployed, report, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, report.LessonID, report.LessonOrder, report.Cleared, report.Succeeded,
			report.Failed, report.Deployed, string(data), report.StartedAt, report.FinishedAt)
		if err != nil {
			return fmt.Errorf("failed to record pipeline run: %w", err)
		}
		return nil
	})
}

// CountPipelineRuns returns how many runs have been recorded for a lesson.
func (m *Manager) CountPipelineRuns(ctx context.Context, lessonID string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_runs WHERE lesson_id = ?", lessonID).Scan(&n)
	return n, err
}
