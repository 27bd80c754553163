package handlers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgard/bymbot/internal/bot/handlers"
	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/database"
	"github.com/edgard/bymbot/internal/face"
	"github.com/edgard/bymbot/internal/logger"
)

type fakeStore struct {
	database.Store

	mu       sync.Mutex
	saved    []database.Message
	failures int
	recent   []database.Message
}

func (s *fakeStore) SaveMessage(_ context.Context, msg *database.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("database is locked")
	}
	s.saved = append(s.saved, *msg)
	return nil
}

func (s *fakeStore) GetRecentMessagesInChat(_ context.Context, chatID int64, limit int) ([]database.Message, error) {
	var out []database.Message
	for _, m := range s.recent {
		if m.ChatID == chatID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeReplier struct {
	err   error
	calls int
}

func (r *fakeReplier) Reply(context.Context, *bym.Message, []face.Part, bym.ReplyOptions) error {
	r.calls++
	return r.err
}

func testDeps(store database.Store) handlers.HandlerDeps {
	cfg := &config.Config{}
	cfg.Engine.ImagePlaceholder = "[图片]"
	return handlers.HandlerDeps{
		Logger:  logger.Discard(),
		Config:  cfg,
		Store:   store,
		Strikes: bym.NewStrikeRegistry(),
	}
}

func TestStoreHistory(t *testing.T) {
	t.Parallel()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{recent: []database.Message{
		{ChatID: 1, UserID: 7, DisplayName: "小明", Role: "admin", Title: "群宠", Content: "第二条", Timestamp: ts, PlatformMessageID: "m2"},
		{ChatID: 2, UserID: 8, Content: "别的群"},
		{ChatID: 1, UserID: 8, DisplayName: "小红", Role: "member", Content: "第一条", Timestamp: ts.Add(-time.Minute)},
	}}

	entries, err := handlers.StoreHistory{Store: store}.RecentHistory(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("RecentHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("RecentHistory() returned %d entries, want 2", len(entries))
	}
	got := entries[0]
	want := bym.HistoryEntry{SenderID: 7, DisplayName: "小明", Role: bym.RoleAdmin, Title: "群宠", Time: ts, Text: "第二条", MessageID: "m2"}
	if got != want {
		t.Errorf("RecentHistory()[0] = %+v, want %+v", got, want)
	}
	if entries[1].Text != "第一条" {
		t.Errorf("RecentHistory()[1].Text = %q, want %q", entries[1].Text, "第一条")
	}
}

func TestRecordInbound(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     bym.Message
		want    string
		skipped bool
	}{
		{name: "text", msg: bym.Message{Text: "早上好"}, want: "早上好"},
		{name: "image only", msg: bym.Message{Images: []string{"http://x/1.png"}}, want: "[图片]"},
		{name: "text with image", msg: bym.Message{Text: "看这个", Images: []string{"http://x/1.png"}}, want: "看这个"},
		{name: "empty", msg: bym.Message{}, skipped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeStore{}
			msg := tt.msg
			msg.GroupID, msg.SenderID, msg.SenderRole = 42, 7, bym.RoleOwner
			handlers.RecordInbound(context.Background(), testDeps(store), &msg)

			if tt.skipped {
				if len(store.saved) != 0 {
					t.Fatalf("RecordInbound() saved %d messages, want 0", len(store.saved))
				}
				return
			}
			if len(store.saved) != 1 {
				t.Fatalf("RecordInbound() saved %d messages, want 1", len(store.saved))
			}
			saved := store.saved[0]
			if saved.Content != tt.want {
				t.Errorf("saved Content = %q, want %q", saved.Content, tt.want)
			}
			if saved.ChatID != 42 || saved.UserID != 7 || saved.Role != "owner" {
				t.Errorf("saved = %+v, want chat 42 user 7 role owner", saved)
			}
		})
	}
}

func TestRecordingReplier(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	next := &fakeReplier{}
	r := &handlers.RecordingReplier{
		Next:    next,
		Store:   store,
		Logger:  logger.Discard(),
		BotID:   func() int64 { return 100 },
		BotName: "小助手",
		Now:     func() time.Time { return now },
	}
	msg := &bym.Message{GroupID: 42, BotRole: bym.RoleAdmin}
	parts := []face.Part{face.Text("你好"), {Kind: face.KindFace, FaceID: 14}}

	if err := r.Reply(context.Background(), msg, parts, bym.ReplyOptions{}); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if next.calls != 1 {
		t.Errorf("next.Reply calls = %d, want 1", next.calls)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d messages, want 1", len(store.saved))
	}
	saved := store.saved[0]
	if saved.Content != "你好[微笑]" {
		t.Errorf("saved Content = %q, want %q", saved.Content, "你好[微笑]")
	}
	if saved.UserID != 100 || saved.Role != "admin" || saved.DisplayName != "小助手" || !saved.Timestamp.Equal(now) {
		t.Errorf("saved = %+v, want bot 100 admin 小助手 at %v", saved, now)
	}
}

func TestRecordingReplierSkips(t *testing.T) {
	t.Parallel()
	t.Run("send failure", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{}
		sendErr := errors.New("boom")
		r := &handlers.RecordingReplier{
			Next:   &fakeReplier{err: sendErr},
			Store:  store,
			Logger: logger.Discard(),
			BotID:  func() int64 { return 100 },
		}
		err := r.Reply(context.Background(), &bym.Message{GroupID: 1}, []face.Part{face.Text("x")}, bym.ReplyOptions{})
		if !errors.Is(err, sendErr) {
			t.Errorf("Reply() error = %v, want %v", err, sendErr)
		}
		if len(store.saved) != 0 {
			t.Errorf("saved %d messages, want 0", len(store.saved))
		}
	})
	t.Run("unknown bot id", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{}
		r := &handlers.RecordingReplier{
			Next:   &fakeReplier{},
			Store:  store,
			Logger: logger.Discard(),
			BotID:  func() int64 { return 0 },
		}
		if err := r.Reply(context.Background(), &bym.Message{GroupID: 1}, []face.Part{face.Text("x")}, bym.ReplyOptions{}); err != nil {
			t.Fatalf("Reply() error = %v", err)
		}
		if len(store.saved) != 0 {
			t.Errorf("saved %d messages, want 0", len(store.saved))
		}
	})
}

func TestSaveMessageWithRetry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		failures  int
		wantSaved int
	}{
		{name: "first try", failures: 0, wantSaved: 1},
		{name: "after retry", failures: 1, wantSaved: 1},
		{name: "gives up", failures: 5, wantSaved: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeStore{failures: tt.failures}
			handlers.SaveMessageWithRetry(context.Background(), store, logger.Discard(), &database.Message{ChatID: 1, Content: "x"}, "test message")
			if len(store.saved) != tt.wantSaved {
				t.Errorf("saved %d messages, want %d", len(store.saved), tt.wantSaved)
			}
		})
	}
}

func TestSaveMessageWithRetryCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := &fakeStore{}
	handlers.SaveMessageWithRetry(ctx, store, logger.Discard(), &database.Message{ChatID: 1, Content: "x"}, "test message")
	if len(store.saved) != 0 {
		t.Errorf("saved %d messages, want 0", len(store.saved))
	}
}

func TestFormatStrikes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		snapshot map[int64]int
		want     string
	}{
		{name: "empty", snapshot: nil, want: "当前没有被标记的用户。"},
		{
			name:     "ordered",
			snapshot: map[int64]int{9: 1, 3: 2, 5: 1},
			want:     "被标记的用户：\n3：2 次\n5：1 次\n9：1 次",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := handlers.FormatStrikes(tt.snapshot); got != tt.want {
				t.Errorf("FormatStrikes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	cmds := handlers.RegisterAllCommands(testDeps(&fakeStore{}))
	for _, name := range []string{"/start", "/bym_strikes", "/bym_reset_strikes"} {
		h, ok := cmds[name]
		if !ok {
			t.Errorf("RegisterAllCommands() missing %s", name)
			continue
		}
		if h.Handler == nil {
			t.Errorf("%s handler is nil", name)
		}
	}
	if len(cmds["/start"].Middleware) != 0 {
		t.Errorf("/start has middleware, want none")
	}
	if len(cmds["/bym_reset_strikes"].Middleware) != 1 {
		t.Errorf("/bym_reset_strikes middleware = %d, want 1", len(cmds["/bym_reset_strikes"].Middleware))
	}
}
