package editsession

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type sessionKey struct {
	memberID uuid.UUID
	actor    string
}

// Registry keeps one server-side session per (member, actor) so a screen can
// span several requests. Idle sessions are dropped once no request holds them.
type Registry struct {
	editor *Editor

	mu       sync.Mutex
	sessions map[sessionKey]*entry
}

type entry struct {
	session *Session
	refs    int
}

// NewRegistry constructs an empty Registry over editor.
func NewRegistry(editor *Editor) *Registry {
	return &Registry{editor: editor, sessions: map[sessionKey]*entry{}}
}

func (r *Registry) lookup(key sessionKey) *entry {
	e, ok := r.sessions[key]
	if !ok {
		e = &entry{session: r.editor.Open(key.memberID, key.actor)}
		r.sessions[key] = e
	}
	return e
}

// acquire pins the session until the matching release.
func (r *Registry) acquire(memberID uuid.UUID, actor string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.lookup(sessionKey{memberID: memberID, actor: actor})
	e.refs++
	return e.session
}

func (r *Registry) release(memberID uuid.UUID, actor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey{memberID: memberID, actor: actor}
	e, ok := r.sessions[key]
	if !ok {
		return
	}
	if e.refs > 0 {
		e.refs--
	}
	if e.refs == 0 && e.session.State() == StateIdle {
		delete(r.sessions, key)
	}
}

func (r *Registry) StartEdit(ctx context.Context, memberID uuid.UUID, actor, section string) (Draft, error) {
	session := r.acquire(memberID, actor)
	defer r.release(memberID, actor)
	return session.StartEdit(ctx, section)
}

// SaveEdit saves the open draft. section must name the section being edited.
func (r *Registry) SaveEdit(ctx context.Context, memberID uuid.UUID, actor, section string, payload map[string]any) (SaveResult, error) {
	wanted, err := r.editor.layout.Find(section)
	if err != nil {
		return SaveResult{Reason: ReasonError}, err
	}
	session := r.acquire(memberID, actor)
	defer r.release(memberID, actor)
	if draft, open := session.Draft(); open && draft.Section != wanted.Name {
		return SaveResult{Reason: ReasonError}, fmt.Errorf("%w: %q is open", ErrSectionBusy, draft.Section)
	}
	return session.SaveEdit(ctx, payload)
}

func (r *Registry) CancelEdit(ctx context.Context, memberID uuid.UUID, actor string) error {
	session := r.acquire(memberID, actor)
	defer r.release(memberID, actor)
	return session.CancelEdit(ctx)
}

// Len reports how many sessions are open.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
