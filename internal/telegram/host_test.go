package telegram_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/face"
	"github.com/edgard/bymbot/internal/telegram"
)

const testToken = "123456:TEST"

type apiCall struct {
	method string
	form   map[string]string
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)
	form := map[string]string{}
	for k, v := range r.Form {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	method := path.Base(r.URL.Path)
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: form})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getChatMember":
		status := "member"
		switch form["user_id"] {
		case "100":
			status = "administrator"
		case "7":
			status = "creator"
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"status":"` + status + `","user":{"id":` + form["user_id"] + `,"is_bot":false,"first_name":"x"},"custom_title":"头衔"}}`))
	case "sendMessage":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":55,"date":0,"chat":{"id":-42,"type":"supergroup"}}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeAPI) callsFor(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type staticMembers map[string]int64

func (s staticMembers) ChatMembers(context.Context, int64) (map[string]int64, error) {
	return s, nil
}

func newTestHost(t *testing.T) (*telegram.Host, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := bot.New(testToken, bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}
	self := &models.User{ID: 100, Username: "bym_bot", IsBot: true}
	host := telegram.NewHost(b, testToken, self, staticMembers{"小明": 7}, nil, telegram.WithFileBaseURL(srv.URL))
	return host, api
}

func TestHostMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      *models.Message
		wantText string
		wantAtMe bool
		wantImgs int
	}{
		{
			name:     "mention",
			msg:      &models.Message{ID: 9, Text: "@bym_bot 你好", From: &models.User{ID: 7, FirstName: "Ming"}, Chat: models.Chat{ID: -42, Type: models.ChatTypeSupergroup}},
			wantText: "你好",
			wantAtMe: true,
		},
		{
			name: "reply to bot",
			msg: &models.Message{ID: 9, Text: "真的吗", From: &models.User{ID: 7, FirstName: "Ming"}, Chat: models.Chat{ID: -42, Type: models.ChatTypeSupergroup},
				ReplyToMessage: &models.Message{ID: 8, From: &models.User{ID: 100}}},
			wantText: "真的吗",
			wantAtMe: true,
		},
		{
			name: "photo with caption",
			msg: &models.Message{ID: 9, Caption: "看", From: &models.User{ID: 7, FirstName: "Ming"}, Chat: models.Chat{ID: -42, Type: models.ChatTypeSupergroup},
				Photo: []models.PhotoSize{{FileID: "small"}, {FileID: "large"}}},
			wantText: "看",
			wantImgs: 1,
		},
		{
			name: "forwarded",
			msg: &models.Message{ID: 9, Text: "转来的长消息", From: &models.User{ID: 7, FirstName: "Ming"}, Chat: models.Chat{ID: -42, Type: models.ChatTypeSupergroup},
				ForwardOrigin: &models.MessageOrigin{}},
			wantText: "[转发]转来的长消息",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			host, _ := newTestHost(t)
			got := host.Message(context.Background(), tt.msg)

			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.AtMe != tt.wantAtMe {
				t.Errorf("AtMe = %v, want %v", got.AtMe, tt.wantAtMe)
			}
			if len(got.Images) != tt.wantImgs {
				t.Errorf("Images = %v, want %d", got.Images, tt.wantImgs)
			}
			if tt.wantImgs > 0 && got.Images[0] != "large" {
				t.Errorf("Images[0] = %q, want largest size", got.Images[0])
			}
			if got.GroupID != -42 || got.SenderID != 7 || got.ID != "9" || got.SenderName != "Ming" {
				t.Errorf("ids = %d/%d/%s/%s", got.GroupID, got.SenderID, got.ID, got.SenderName)
			}
			if got.SenderRole != bym.RoleOwner || got.SenderTitle != "头衔" {
				t.Errorf("sender role = %q/%q, want owner/头衔", got.SenderRole, got.SenderTitle)
			}
			if got.BotRole != bym.RoleAdmin {
				t.Errorf("BotRole = %q, want admin", got.BotRole)
			}
		})
	}
}

func TestHostRoleCache(t *testing.T) {
	t.Parallel()

	host, api := newTestHost(t)
	m := &models.Message{ID: 1, Text: "a", From: &models.User{ID: 7}, Chat: models.Chat{ID: -42, Type: models.ChatTypeGroup}}
	host.Message(context.Background(), m)
	host.Message(context.Background(), m)

	if n := len(api.callsFor("getChatMember")); n != 2 {
		t.Errorf("getChatMember calls = %d, want 2 (sender and bot, cached)", n)
	}
}

func TestHostReply(t *testing.T) {
	t.Parallel()

	host, api := newTestHost(t)
	msg := &bym.Message{ID: "9", GroupID: -42}
	parts := []face.Part{face.Text("你好"), {Kind: face.KindFace, Text: "微笑", FaceID: 14}, {Kind: face.KindAt, Text: "小明", UserID: 7}}

	err := host.Reply(context.Background(), msg, parts, bym.ReplyOptions{Quote: true, RecallAfter: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	sends := api.callsFor("sendMessage")
	if len(sends) != 1 {
		t.Fatalf("sendMessage calls = %d, want 1", len(sends))
	}
	if got, want := sends[0].form["text"], "你好[微笑]@小明"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if sends[0].form["reply_parameters"] == "" {
		t.Error("reply_parameters missing for quoted reply")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dels := api.callsFor("deleteMessage"); len(dels) == 1 {
			if dels[0].form["message_id"] != "55" {
				t.Errorf("deleteMessage message_id = %q, want 55", dels[0].form["message_id"])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("deleteMessage was not called")
}

func TestHostAdministration(t *testing.T) {
	t.Parallel()

	host, api := newTestHost(t)
	ctx := context.Background()

	if err := host.SetCard(ctx, -42, 7, "x"); !errors.Is(err, telegram.ErrUnsupported) {
		t.Errorf("SetCard() error = %v, want ErrUnsupported", err)
	}
	if err := host.Mute(ctx, -42, 7, time.Minute); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	if r := api.callsFor("restrictChatMember"); len(r) != 1 || r[0].form["until_date"] == "" {
		t.Errorf("restrictChatMember calls = %v", r)
	}
	if err := host.Kick(ctx, -42, 7); err != nil {
		t.Fatalf("Kick() error = %v", err)
	}
	if len(api.callsFor("banChatMember")) != 1 || len(api.callsFor("unbanChatMember")) != 1 {
		t.Error("Kick() should ban then unban")
	}

	ids, err := host.MemberIDs(ctx, -42)
	if err != nil || ids["小明"] != 7 {
		t.Errorf("MemberIDs() = %v, %v", ids, err)
	}
}

func TestIsGroup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		chatType models.ChatType
		expected bool
	}{
		{models.ChatTypeGroup, true},
		{models.ChatTypeSupergroup, true},
		{models.ChatTypePrivate, false},
		{models.ChatTypeChannel, false},
	}
	for _, tt := range tests {
		got := telegram.IsGroup(&models.Message{Chat: models.Chat{Type: tt.chatType}})
		if got != tt.expected {
			t.Errorf("IsGroup(%s) = %v, want %v", tt.chatType, got, tt.expected)
		}
	}
}
