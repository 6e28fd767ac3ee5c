package editsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpattn/clubhouse/internal/audit"
	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/metrics"
	"github.com/rpattn/clubhouse/internal/repository"
	"github.com/rpattn/clubhouse/pkg/validator"

	"github.com/google/uuid"
)

var (
	ErrSectionBusy = errors.New("another section is being edited")
	ErrNotEditing  = errors.New("no section is being edited")
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle    State = "idle"
	StateEditing State = "editing"
	StateSaving  State = "saving"
)

// Save outcome reasons.
const (
	ReasonSaved    = ""
	ReasonNoChange = "no-change"
	ReasonError    = "error"
)

// SaveResult reports what a save wrote. Saved is nil unless a change record
// was appended.
type SaveResult struct {
	Saved  *domain.ChangeRecord `json:"saved"`
	Reason string               `json:"reason"`
}

// Draft is the editable copy of one section handed to the caller.
type Draft struct {
	MemberID uuid.UUID             `json:"memberId"`
	Section  string                `json:"section"`
	Values   map[string]any        `json:"values"`
	Fields   []domain.SectionField `json:"fields"`
	Version  int64                 `json:"version"`
}

// Editor holds the collaborators shared by every session.
type Editor struct {
	members   repository.MemberRepository
	trail     *audit.Trail
	tx        repository.Transactor
	layout    domain.SectionLayout
	validator *validator.JSONBValidator
	strict    bool
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Editor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Editor) {
		e.metrics = m
	}
}

// WithLayout replaces the default section layout.
func WithLayout(layout domain.SectionLayout) Option {
	return func(e *Editor) {
		if len(layout) > 0 {
			e.layout = layout
		}
	}
}

// WithStrictVersion rejects saves whose section changed underneath the
// session with domain.ErrStaleWrite instead of warning.
func WithStrictVersion(strict bool) Option {
	return func(e *Editor) {
		e.strict = strict
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEditor constructs an Editor. tx groups the member replace and the
// change record append.
func NewEditor(members repository.MemberRepository, trail *audit.Trail, tx repository.Transactor, opts ...Option) *Editor {
	e := &Editor{
		members:   members,
		trail:     trail,
		tx:        tx,
		layout:    domain.DefaultSectionLayout(),
		validator: validator.NewJSONBValidator(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Layout returns the configured sections.
func (e *Editor) Layout() domain.SectionLayout {
	return e.layout
}

// Open returns an idle session for memberID acting as actor.
func (e *Editor) Open(memberID uuid.UUID, actor string) *Session {
	return &Session{editor: e, memberID: memberID, actor: actor, state: StateIdle}
}

// Session tracks one member screen. At most one section is edited at a time.
type Session struct {
	editor   *Editor
	memberID uuid.UUID
	actor    string

	mu       sync.Mutex
	state    State
	section  domain.Section
	baseline map[string]any
	draft    map[string]any
	version  int64
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns a copy of the pending draft, if any.
func (s *Session) Draft() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return Draft{}, false
	}
	return s.draftLocked(), true
}

func (s *Session) draftLocked() Draft {
	return Draft{
		MemberID: s.memberID,
		Section:  s.section.Name,
		Values:   domain.CloneRecord(s.draft),
		Fields:   s.section.Fields,
		Version:  s.version,
	}
}

// StartEdit loads the member and opens sectionName for editing. Restarting
// the section already being edited returns the pending draft.
func (s *Session) StartEdit(ctx context.Context, sectionName string) (Draft, error) {
	section, err := s.editor.layout.Find(sectionName)
	if err != nil {
		return Draft{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSaving:
		return Draft{}, ErrSectionBusy
	case StateEditing:
		if s.section.Name == section.Name {
			return s.draftLocked(), nil
		}
		return Draft{}, fmt.Errorf("%w: %q is open", ErrSectionBusy, s.section.Name)
	}

	member, err := s.editor.members.FindMember(ctx, s.memberID)
	if err != nil {
		return Draft{}, err
	}

	s.state = StateEditing
	s.section = section
	s.baseline = section.Extract(member.Record)
	s.draft = section.Extract(member.Record)
	s.version = member.Version

	s.editor.logger.DebugContext(ctx, "section edit started",
		"member_id", s.memberID, "section", section.Name, "actor", s.actor)
	return s.draftLocked(), nil
}

// CancelEdit discards the draft.
func (s *Session) CancelEdit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return ErrNotEditing
	case StateSaving:
		return ErrSectionBusy
	}
	s.editor.logger.DebugContext(ctx, "section edit cancelled",
		"member_id", s.memberID, "section", s.section.Name, "actor", s.actor)
	s.reset()
	return nil
}

func (s *Session) reset() {
	s.state = StateIdle
	s.section = domain.Section{}
	s.baseline = nil
	s.draft = nil
	s.version = 0
}

// SaveEdit validates payload against the open section and persists it. The
// member is re-read inside the transaction, only the section's fields are
// merged onto that fresh copy, and the diff is taken against it. A save that
// changes nothing returns ReasonNoChange and writes nothing. On failure the
// session stays in Editing with payload as its draft and the baseline
// untouched.
func (s *Session) SaveEdit(ctx context.Context, payload map[string]any) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return SaveResult{Reason: ReasonError}, ErrNotEditing
	case StateSaving:
		return SaveResult{Reason: ReasonError}, ErrSectionBusy
	}

	s.state = StateSaving
	s.draft = domain.CloneRecord(payload)

	saved, err := s.persist(ctx, payload)
	switch {
	case err != nil:
		s.state = StateEditing
		s.editor.metrics.IncrementSectionSave("error")
		s.editor.logger.WarnContext(ctx, "section save failed",
			"member_id", s.memberID, "section", s.section.Name, "actor", s.actor, "error", err)
		return SaveResult{Reason: ReasonError}, err
	case saved == nil:
		s.editor.metrics.IncrementSectionSave("no-change")
		s.reset()
		return SaveResult{Reason: ReasonNoChange}, nil
	default:
		s.editor.metrics.IncrementSectionSave("saved")
		s.reset()
		return SaveResult{Saved: saved, Reason: ReasonSaved}, nil
	}
}

func (s *Session) persist(ctx context.Context, payload map[string]any) (*domain.ChangeRecord, error) {
	if err := s.editor.validator.ValidateSection(s.section, payload).Err(); err != nil {
		return nil, err
	}

	var saved *domain.ChangeRecord
	err := s.editor.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		fresh, err := s.editor.members.FindMember(ctx, s.memberID)
		if err != nil {
			return err
		}
		if err := s.checkStale(ctx, fresh); err != nil {
			return err
		}

		merged := s.section.Merge(fresh.Record, payload)
		changes := domain.DiffRecords(fresh.Record, merged)
		if changes.Empty() {
			return nil
		}

		if _, err := s.editor.members.ReplaceMember(ctx, fresh.WithRecord(merged)); err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrStaleWrite) {
				return err
			}
			return fmt.Errorf("%w: replace member %s: %w", domain.ErrPersistence, s.memberID, err)
		}

		rec, err := domain.NewChangeRecord(s.memberID, s.section.Name, changes, s.actor, s.editor.now())
		if err != nil {
			return err
		}
		if err := s.editor.trail.Append(ctx, rec); err != nil {
			return err
		}
		saved = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// checkStale compares the persisted section with the one the session loaded.
func (s *Session) checkStale(ctx context.Context, fresh domain.MemberProfile) error {
	current := s.section.Extract(fresh.Record)
	if sameSection(s.baseline, current) {
		return nil
	}

	s.editor.metrics.IncrementStaleWriteRisk()
	if s.editor.strict {
		return fmt.Errorf("%w: section %q of member %s is at version %d, loaded at %d",
			domain.ErrStaleWrite, s.section.Name, s.memberID, fresh.Version, s.version)
	}
	s.editor.logger.WarnContext(ctx, "section changed since edit started; last edit wins per field",
		"member_id", s.memberID, "section", s.section.Name, "actor", s.actor,
		"loaded_version", s.version, "current_version", fresh.Version)
	return nil
}

func sameSection(a, b map[string]any) bool {
	return domain.DiffRecords(a, b).Empty() && domain.DiffRecords(b, a).Empty()
}
