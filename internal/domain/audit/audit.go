// Package audit records administrative operations into the operation log.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	appctx "backoffice/internal/core/context"
)

// Action is the kind of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
	ActionPurge   Action = "purge"
	ActionAssign  Action = "assign"
	ActionSync    Action = "sync"
	ActionLogin   Action = "login"
	ActionLogout  Action = "logout"
)

// Modules used by the back office.
const (
	ModulePermission = "permission"
	ModuleRole       = "role"
	ModuleAuth       = "auth"
)

// Entry status values.
const (
	StatusFailed  = 0
	StatusSuccess = 1
)

// Entry is a single operation log row.
type Entry struct {
	ID          int64           `db:"id" json:"id"`
	AdminID     *int64          `db:"admin_id" json:"adminId"`
	AdminName   string          `db:"admin_name" json:"adminName"`
	Type        Action          `db:"type" json:"type"`
	Module      string          `db:"module" json:"module"`
	Description string          `db:"description" json:"description"`
	Method      string          `db:"method" json:"method"`
	URL         string          `db:"url" json:"url"`
	Params      json.RawMessage `db:"params" json:"params,omitempty"`
	Code        int             `db:"code" json:"code"`
	Message     string          `db:"message" json:"message"`
	IP          string          `db:"ip" json:"ip"`
	UserAgent   string          `db:"user_agent" json:"userAgent"`
	Status      int             `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// Sink persists entries. Implementations must use the transaction carried by ctx
// so that an entry commits or rolls back together with the mutation it describes.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Filter narrows an operation log listing. Zero values match everything.
type Filter struct {
	Module  string
	Action  Action
	AdminID *int64
	Page    int
	Limit   int
}

// Reader lists operation log entries, newest first.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Entry, int64, error)
}

// Event is what a service reports; the Recorder fills in who and where.
type Event struct {
	Action      Action
	Module      string
	Description string
	Params      any
	Err         error
}

// Recorder turns events into entries using the principal and request info in ctx.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Record writes one entry. A nil recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	if r == nil || r.sink == nil {
		return nil
	}
	entry, err := r.build(ctx, ev)
	if err != nil {
		return err
	}
	return r.sink.Write(ctx, entry)
}

func (r *Recorder) build(ctx context.Context, ev Event) (Entry, error) {
	info := appctx.GetRequestInfo(ctx)
	entry := Entry{
		Type:        ev.Action,
		Module:      ev.Module,
		Description: ev.Description,
		Method:      info.Method,
		URL:         info.Path,
		IP:          info.ClientIP,
		UserAgent:   info.UserAgent,
		Code:        200,
		Message:     "ok",
		Status:      StatusSuccess,
		CreatedAt:   r.now().UTC(),
	}
	if p := appctx.GetPrincipal(ctx); p != nil {
		id := p.UserID
		entry.AdminID = &id
		entry.AdminName = p.Username
	}
	if ev.Err != nil {
		entry.Code = 400
		entry.Message = ev.Err.Error()
		entry.Status = StatusFailed
	}
	if ev.Params != nil {
		raw, err := json.Marshal(ev.Params)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal audit params: %w", err)
		}
		entry.Params = raw
	}
	return entry, nil
}

// Diff calculates the difference between old and new states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

// MemorySink keeps entries in memory. Used by tests and the dry-run sync.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// Write appends entry.
func (m *MemorySink) Write(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

// List filters the recorded entries, newest first.
func (m *MemorySink) List(_ context.Context, filter Filter) ([]Entry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Module != "" && e.Module != filter.Module {
			continue
		}
		if filter.Action != "" && e.Type != filter.Action {
			continue
		}
		if filter.AdminID != nil && (e.AdminID == nil || *e.AdminID != *filter.AdminID) {
			continue
		}
		matched = append(matched, e)
	}

	total := int64(len(matched))
	if filter.Limit > 0 {
		page := max(filter.Page, 1)
		start := min((page-1)*filter.Limit, len(matched))
		end := min(start+filter.Limit, len(matched))
		matched = matched[start:end]
	}
	return matched, total, nil
}

// Entries returns a copy of the recorded entries.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

var (
	_ Sink   = (*MemorySink)(nil)
	_ Reader = (*MemorySink)(nil)
)
