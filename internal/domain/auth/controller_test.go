package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/iconicplus/shell/internal/shared/types"
)

// fakeProvider is a scriptable identity provider.
type fakeProvider struct {
	session     *types.SessionRecord
	sessionErr  error
	signOutErr  error
	signOuts    int
	listener    func(*types.SessionRecord)
	unsubscribe int
}

func (f *fakeProvider) CurrentSession(ctx context.Context) (*types.SessionRecord, error) {
	return f.session, f.sessionErr
}

func (f *fakeProvider) OnSessionChange(fn func(*types.SessionRecord)) func() {
	f.listener = fn
	return func() { f.unsubscribe++ }
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.signOuts++
	return f.signOutErr
}

func (f *fakeProvider) push(rec *types.SessionRecord) {
	if f.listener != nil {
		f.listener(rec)
	}
}

type fakeNav struct {
	switches []types.Mode
}

func (f *fakeNav) SwitchTo(mode types.Mode) {
	f.switches = append(f.switches, mode)
}

func record(id, email string) *types.SessionRecord {
	return &types.SessionRecord{UserID: id, Email: email, Provider: types.ProviderEmail}
}

func TestBootstrapSignedIn(t *testing.T) {
	p := &fakeProvider{session: record("u1", "ada@example.com")}
	c := NewController(p, nil, nil)

	c.Bootstrap(context.Background())

	user := c.User()
	if user == nil || user.ID != "u1" {
		t.Fatalf("Expected user u1, got %+v", user)
	}
	if !c.SignedIn() {
		t.Error("SignedIn should report true")
	}
}

func TestBootstrapNoSession(t *testing.T) {
	p := &fakeProvider{}
	c := NewController(p, nil, nil)

	c.Bootstrap(context.Background())

	if c.User() != nil {
		t.Error("No provider session should mean no user")
	}
}

func TestBootstrapProviderError(t *testing.T) {
	p := &fakeProvider{sessionErr: errors.New("network down")}
	c := NewController(p, nil, nil)

	c.Bootstrap(context.Background())

	if c.User() != nil {
		t.Error("Provider failure at startup should degrade to signed out")
	}
	if p.listener == nil {
		t.Error("Bootstrap should still follow later session changes")
	}
}

func TestMalformedRecordTreatedAsSignedOut(t *testing.T) {
	p := &fakeProvider{session: &types.SessionRecord{UserID: "u1"}}
	c := NewController(p, nil, nil)

	c.Bootstrap(context.Background())

	if c.User() != nil {
		t.Error("Record without email should project to signed out")
	}
}

func TestProviderEventsReplaceUser(t *testing.T) {
	p := &fakeProvider{}
	c := NewController(p, nil, nil)
	c.Bootstrap(context.Background())

	p.push(record("u1", "ada@example.com"))
	if user := c.User(); user == nil || user.ID != "u1" {
		t.Fatalf("Expected u1 after push, got %+v", user)
	}

	p.push(record("u2", "grace@example.com"))
	if user := c.User(); user == nil || user.ID != "u2" {
		t.Fatalf("Later record should replace the user, got %+v", user)
	}

	p.push(nil)
	if c.User() != nil {
		t.Error("Nil record should sign the user out")
	}
}

func TestSignOutClearsLocallyDespiteProviderError(t *testing.T) {
	nav := &fakeNav{}
	p := &fakeProvider{session: record("u1", "ada@example.com"), signOutErr: errors.New("revocation failed")}
	c := NewController(p, nav, nil)
	c.Bootstrap(context.Background())

	c.SignOut(context.Background())

	if c.User() != nil {
		t.Error("Local state should clear even when the provider call fails")
	}
	if p.signOuts != 1 {
		t.Errorf("Provider SignOut should still be attempted, got %d calls", p.signOuts)
	}
	if len(nav.switches) == 0 || nav.switches[len(nav.switches)-1] != types.ModeChat {
		t.Errorf("Sign-out should reset navigation to chat, got %v", nav.switches)
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	p := &fakeProvider{}
	c := NewController(p, nil, nil)
	c.Bootstrap(context.Background())

	var seen []*types.User
	dispose := c.Subscribe(func(u *types.User) { seen = append(seen, u) })

	p.push(record("u1", "ada@example.com"))
	p.push(nil)

	if len(seen) != 2 || seen[0] == nil || seen[0].ID != "u1" || seen[1] != nil {
		t.Fatalf("Subscriber should see sign-in then sign-out, got %v", seen)
	}

	dispose()
	dispose()
	p.push(record("u2", "grace@example.com"))
	if len(seen) != 2 {
		t.Error("Disposed subscriber should not fire")
	}
}

func TestCloseStopsFollowingProvider(t *testing.T) {
	p := &fakeProvider{}
	c := NewController(p, nil, nil)
	c.Bootstrap(context.Background())

	c.Close()
	if p.unsubscribe != 1 {
		t.Errorf("Close should dispose the provider subscription, got %d", p.unsubscribe)
	}
	c.Close()
	if p.unsubscribe != 1 {
		t.Error("Close should be idempotent")
	}
}

func TestStats(t *testing.T) {
	p := &fakeProvider{session: record("u1", "ada@example.com")}
	c := NewController(p, nil, nil)
	c.Bootstrap(context.Background())

	stats := c.Stats()
	if !stats.SignedIn || stats.UserID == nil || *stats.UserID != "u1" {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
