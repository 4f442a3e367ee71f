package types

import (
	"time"
)

// PlayState is the coarse transport state exposed to clients.
type PlayState string

const (
	PlayStateStopped PlayState = "stopped"
	PlayStatePlaying PlayState = "playing"
)

// State is the fine-grained state of a playback session.
// StateLoading is transient: a play attempt is resolving audio for the
// current slide and no driver is armed yet.
type State string

const (
	StateIdle            State = "idle"
	StateLoading         State = "loading"
	StatePlayingAudio    State = "playing_audio"
	StatePlayingFallback State = "playing_fallback"
	StatePaused          State = "paused"
	StateCompleted       State = "completed"
)

// IsPlaying reports whether the state belongs to PlayStatePlaying.
func (s State) IsPlaying() bool {
	switch s {
	case StateLoading, StatePlayingAudio, StatePlayingFallback:
		return true
	default:
		return false
	}
}

// PlayState maps a fine-grained state onto the transport state.
func (s State) PlayState() PlayState {
	if s.IsPlaying() {
		return PlayStatePlaying
	}
	return PlayStateStopped
}

// ThemeKind selects how a slide is presented. It has no effect on playback.
type ThemeKind string

const (
	ThemePlain       ThemeKind = "plain"
	ThemeIllustrated ThemeKind = "illustrated"
	ThemeFormula     ThemeKind = "formula"
	ThemeExercise    ThemeKind = "exercise"
	ThemeSummary     ThemeKind = "summary"
)

// SlideTheme is the presentation variant attached to a slide.
type SlideTheme struct {
	Kind         ThemeKind `json:"kind" yaml:"kind"`
	Emoji        string    `json:"emoji,omitempty" yaml:"emoji"`
	Illustration string    `json:"illustration,omitempty" yaml:"illustration"`
}

// Slide is one narrated unit of a lesson. Number is 1-based.
type Slide struct {
	Number              int        `json:"number" yaml:"number"`
	Title               string     `json:"title,omitempty" yaml:"title"`
	Text                string     `json:"text" yaml:"text"`
	AudioURL            string     `json:"audio_url,omitempty" yaml:"audio_url"`
	EstimatedDurationMs int64      `json:"estimated_duration_ms" yaml:"estimated_duration_ms"`
	Theme               SlideTheme `json:"theme" yaml:"theme"`
}

// Duration returns the estimated narration length of the slide.
func (s Slide) Duration() time.Duration {
	return time.Duration(s.EstimatedDurationMs) * time.Millisecond
}

// Lesson is an ordered list of slides. It is treated as immutable once a
// playback session has been built from it.
type Lesson struct {
	ID          string    `json:"id" yaml:"id"`
	Order       int       `json:"order" yaml:"order"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Emoji       string    `json:"emoji,omitempty" yaml:"emoji"`
	Published   bool      `json:"published" yaml:"published"`
	Slides      []Slide   `json:"slides" yaml:"slides"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// SlideCount returns the number of slides.
func (l *Lesson) SlideCount() int {
	return len(l.Slides)
}

// TotalDuration is the sum of all slide durations.
func (l *Lesson) TotalDuration() time.Duration {
	return l.DurationBefore(len(l.Slides))
}

// DurationBefore sums the durations of the slides preceding index.
func (l *Lesson) DurationBefore(index int) time.Duration {
	if index > len(l.Slides) {
		index = len(l.Slides)
	}
	var total time.Duration
	for i := 0; i < index; i++ {
		total += l.Slides[i].Duration()
	}
	return total
}

// Summary returns the list view of the lesson.
func (l *Lesson) Summary() LessonSummary {
	return LessonSummary{
		ID:              l.ID,
		Order:           l.Order,
		Title:           l.Title,
		Description:     l.Description,
		Emoji:           l.Emoji,
		Published:       l.Published,
		SlideCount:      len(l.Slides),
		TotalDurationMs: l.TotalDuration().Milliseconds(),
	}
}

// LessonSummary is the catalog entry for a lesson.
type LessonSummary struct {
	ID              string `json:"id"`
	Order           int    `json:"order"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Emoji           string `json:"emoji,omitempty"`
	Published       bool   `json:"published"`
	SlideCount      int    `json:"slide_count"`
	TotalDurationMs int64  `json:"total_duration_ms"`
	Completed       bool   `json:"completed,omitempty"`
}

// PlaybackSnapshot is the observable state of a playback session.
type PlaybackSnapshot struct {
	SessionID           string    `json:"session_id"`
	LessonID            string    `json:"lesson_id"`
	UserID              string    `json:"user_id,omitempty"`
	CurrentSlideIndex   int       `json:"current_slide_index"`
	SlideCount          int       `json:"slide_count"`
	PlayState           PlayState `json:"play_state"`
	State               State     `json:"state"`
	SlideProgress       float64   `json:"slide_progress"`
	TotalProgress       float64   `json:"total_progress"`
	AudioFallbackActive bool      `json:"audio_fallback_active"`
	AudioURL            string    `json:"audio_url,omitempty"`
	SlideElapsedMs      int64     `json:"slide_elapsed_ms"`
	Generation          uint64    `json:"generation"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EventType names the kind of playback event pushed to clients.
type EventType string

const (
	EventState     EventType = "playback.state"
	EventProgress  EventType = "playback.progress"
	EventCompleted EventType = "playback.completed"
	EventClosed    EventType = "playback.closed"
	EventError     EventType = "error"
)

// PlaybackEvent carries a snapshot to observers and connected clients.
type PlaybackEvent struct {
	Type      EventType        `json:"type"`
	SessionID string           `json:"session_id"`
	Snapshot  PlaybackSnapshot `json:"snapshot"`
	Message   string           `json:"message,omitempty"`
	Origin    string           `json:"origin,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// CommandType is a transport control.
type CommandType string

const (
	CommandPlay     CommandType = "play"
	CommandPause    CommandType = "pause"
	CommandNext     CommandType = "next"
	CommandPrevious CommandType = "previous"
	CommandGoTo     CommandType = "goto"
)

// Command is a transport control sent by a client.
type Command struct {
	Type  CommandType `json:"type"`
	Index int         `json:"index,omitempty"`
}

// Difficulty of a quiz question.
type Difficulty string

const (
	DifficultyEasy  Difficulty = "easy"
	DifficultyHard  Difficulty = "hard"
	DifficultyMixed Difficulty = "mixed"
)

// Question is a spoken or typed quiz question attached to a lesson.
type Question struct {
	ID            int        `json:"id"`
	Question      string     `json:"question"`
	CorrectAnswer string     `json:"correctAnswer"`
	Difficulty    Difficulty `json:"difficulty"`
	Points        int        `json:"points"`
}

// Verdict is the outcome class of a graded answer.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictPartial   Verdict = "partial"
	VerdictIncorrect Verdict = "incorrect"
)

// GradeMethod records which grading stage produced the verdict.
type GradeMethod string

const (
	GradeExact    GradeMethod = "exact"
	GradeKeywords GradeMethod = "keywords"
	GradeLLM      GradeMethod = "llm"
	GradeFallback GradeMethod = "fallback"
)

// GradeResult is the outcome of checking one answer.
type GradeResult struct {
	Correct      bool        `json:"correct"`
	Verdict      Verdict     `json:"verdict"`
	Score        int         `json:"score"`
	Method       GradeMethod `json:"method"`
	EarnedPoints int         `json:"earned_points"`
	Feedback     string      `json:"feedback,omitempty"`
	Degraded     bool        `json:"degraded,omitempty"`
}

// AudioSource is a resolved narration clip.
type AudioSource struct {
	URL  string `json:"url"`
	Key  string `json:"key,omitempty"`
	Size int64  `json:"size,omitempty"`
	// Estimate times the clip when Size is unknown.
	Estimate time.Duration `json:"-"`
}

// Asset is a stored object in an asset backend.
type Asset struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

// ItemStatus is the outcome of one slide in a generation run.
type ItemStatus string

const (
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
)

// ItemResult reports one slide of a generation run.
type ItemResult struct {
	SlideNumber int        `json:"slide_number"`
	Status      ItemStatus `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	AudioURL    string     `json:"audio_url,omitempty"`
	Bytes       int        `json:"bytes,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// PipelineReport aggregates a generation run. Nothing is rolled back on
// partial failure.
type PipelineReport struct {
	RunID       string       `json:"run_id"`
	LessonID    string       `json:"lesson_id"`
	LessonOrder int          `json:"lesson_order"`
	Cleared     int          `json:"cleared"`
	Items       []ItemResult `json:"items"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Deployed    bool         `json:"deployed"`
	DeployError string       `json:"deploy_error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// QuestionAudioResult is the outcome of narrating one quiz question.
type QuestionAudioResult struct {
	Question int        `json:"question"`
	Key      string     `json:"key"`
	Status   ItemStatus `json:"status"`
	Stage    string     `json:"stage,omitempty"`
	AudioURL string     `json:"audio_url,omitempty"`
	Bytes    int        `json:"bytes,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// QuestionAudioReport aggregates a question narration run.
type QuestionAudioReport struct {
	LessonID    string                `json:"lesson_id"`
	LessonOrder int                   `json:"lesson_order"`
	Cleared     int                   `json:"cleared"`
	Items       []QuestionAudioResult `json:"items"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
}

// JobStatus is the lifecycle of an asynchronous generation job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
)

// Job is an asynchronous generation run tracked by the admin API.
type Job struct {
	ID        string          `json:"id"`
	LessonID  string          `json:"lesson_id"`
	Status    JobStatus       `json:"status"`
	Report    *PipelineReport `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Completion records that a user finished a lesson.
type Completion struct {
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}
