package relay

import (
	"context"
	"sync"

	"github.com/Jobcall26/jobdial-server/internal/auth"
	logpkg "github.com/Jobcall26/jobdial-server/internal/log"
	"github.com/Jobcall26/jobdial-server/internal/relay/proto"
	"github.com/Jobcall26/jobdial-server/internal/store"
)

// fakeTransport records every frame the relay writes to it.
type fakeTransport struct {
	mu          sync.Mutex
	frames      []proto.Outbound
	sendErr     error
	closed      bool
	closeCode   int
	closeReason string
}

func (f *fakeTransport) Send(_ context.Context, frame proto.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
	return nil
}

func (f *fakeTransport) Frames() []proto.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]proto.Outbound, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeTransport) Types() []string {
	frames := f.Frames()
	types := make([]string, 0, len(frames))
	for _, fr := range frames {
		types = append(types, fr.Type)
	}
	return types
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// statusRecorder captures presence writes.
type statusRecorder struct {
	mu      sync.Mutex
	updates []statusUpdate
	err     error
}

type statusUpdate struct {
	userID int64
	status string
}

func (r *statusRecorder) UpdateAgentStatus(_ context.Context, userID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusUpdate{userID: userID, status: status})
	return r.err
}

func (r *statusRecorder) Updates() []statusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]statusUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

// fakeDirectory serves roles for bare-userId handshakes.
type fakeDirectory struct {
	users map[int64]*store.User
}

func (d *fakeDirectory) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

// fakeValidator accepts tokens from a fixed table.
type fakeValidator struct {
	claims map[string]*auth.Claims
}

func (v *fakeValidator) ValidateToken(token string) (*auth.Claims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidCredentials
}

type sessionEnv struct {
	reg    *Registry
	disp   *Dispatcher
	status *statusRecorder
	dir    *fakeDirectory
	tokens *fakeValidator
}

func newSessionEnv() *sessionEnv {
	reg := NewRegistry()
	return &sessionEnv{
		reg:    reg,
		disp:   NewDispatcher(reg, logpkg.Nop()),
		status: &statusRecorder{},
		dir:    &fakeDirectory{users: map[int64]*store.User{}},
		tokens: &fakeValidator{claims: map[string]*auth.Claims{}},
	}
}

func (e *sessionEnv) newSession() (*Session, *fakeTransport) {
	tr := &fakeTransport{}
	s := NewSession(SessionDeps{
		Registry:   e.reg,
		Dispatcher: e.disp,
		Status:     e.status,
		Directory:  e.dir,
		Tokens:     e.tokens,
	}, tr, logpkg.Nop())
	return s, tr
}
