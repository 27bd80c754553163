package onebot_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/edgard/bymbot/internal/bym"
	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/face"
	"github.com/edgard/bymbot/internal/llm"
	"github.com/edgard/bymbot/internal/onebot"
)

const groupEvent = `{"post_type":"message","message_type":"group","group_id":42,"user_id":7,"self_id":100,
	"message_id":11,"sender":{"user_id":7,"nickname":"小明","card":"明","role":"member"},
	"message":[{"type":"at","data":{"qq":"100"}},{"type":"text","data":{"text":"在吗"}}]}`

// fakeOneBot is a minimal OneBot implementation that records API calls.
type fakeOneBot struct {
	t     *testing.T
	token string

	mu    sync.Mutex
	calls []gjson.Result
	fail  map[string]bool
}

func (f *fakeOneBot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("Upgrade() error = %v", err)
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(v)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","self_id":100}`))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(groupEvent))
	_ = conn.WriteMessage(websocket.TextMessage, []byte(groupEvent))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req := gjson.ParseBytes(payload)
		f.mu.Lock()
		f.calls = append(f.calls, req)
		fail := f.fail[req.Get("action").String()]
		f.mu.Unlock()

		resp := map[string]any{"status": "ok", "retcode": 0, "echo": req.Get("echo").String()}
		if fail {
			resp = map[string]any{"status": "failed", "retcode": 100, "wording": "权限不足", "echo": req.Get("echo").String()}
		} else {
			switch req.Get("action").String() {
			case "send_group_msg":
				resp["data"] = map[string]any{"message_id": 99}
			case "get_group_member_list":
				resp["data"] = []map[string]any{
					{"user_id": 100, "nickname": "bot", "role": "admin"},
					{"user_id": 7, "nickname": "小明", "card": "明", "role": "member"},
					{"user_id": 8, "nickname": "小红", "role": "owner"},
				}
			}
		}
		write(resp)
	}
}

func (f *fakeOneBot) callsFor(action string) []gjson.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gjson.Result
	for _, c := range f.calls {
		if c.Get("action").String() == action {
			out = append(out, c)
		}
	}
	return out
}

type harness struct {
	server *fakeOneBot
	client *onebot.Client
	host   *onebot.Host
	events chan *onebot.Event
}

func startHarness(t *testing.T) *harness {
	t.Helper()

	fake := &fakeOneBot{t: t, token: "secret", fail: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.OneBotConfig{
		WSURL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		AccessToken: "secret",
		APITimeout:  2 * time.Second,
	}
	client, err := onebot.NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	events := make(chan *onebot.Event, 4)
	go func() {
		done <- client.Run(ctx, func(_ context.Context, evt *onebot.Event) { events <- evt })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	})

	h := &harness{server: fake, client: client, host: onebot.NewHost(client, cfg, srv.Client(), nil), events: events}
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("no event received from fake OneBot")
	}
	return h
}

func TestClientDeliversDeduplicatedEvents(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	select {
	case evt := <-h.events:
		t.Errorf("duplicate event delivered: %+v", evt)
	case <-time.After(200 * time.Millisecond):
	}
	if got := h.client.SelfID(); got != 100 {
		t.Errorf("SelfID() = %d, want 100", got)
	}
}

func TestHostMessage(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	msg := h.host.Message(context.Background(), onebot.ParseEvent([]byte(groupEvent)))

	if msg.GroupID != 42 || msg.SenderID != 7 || msg.ID != "11" {
		t.Errorf("ids = %d/%d/%s", msg.GroupID, msg.SenderID, msg.ID)
	}
	if msg.SenderName != "明" || msg.SenderRole != bym.RoleMember {
		t.Errorf("sender = %q/%q", msg.SenderName, msg.SenderRole)
	}
	if msg.Text != "在吗" || !msg.AtMe {
		t.Errorf("text = %q atMe = %v", msg.Text, msg.AtMe)
	}
	if msg.BotRole != bym.RoleAdmin {
		t.Errorf("BotRole = %q, want admin", msg.BotRole)
	}
}

func TestHostReply(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	msg := &bym.Message{ID: "11", GroupID: 42}
	parts := []face.Part{
		face.Text("你好"),
		{Kind: face.KindFace, Text: "微笑", FaceID: 14},
		{Kind: face.KindAt, Text: "小明", UserID: 7},
	}

	if err := h.host.Reply(context.Background(), msg, parts, bym.ReplyOptions{Quote: true}); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	sends := h.server.callsFor("send_group_msg")
	if len(sends) != 1 {
		t.Fatalf("send_group_msg calls = %d, want 1", len(sends))
	}
	params := sends[0].Get("params")
	if params.Get("group_id").Int() != 42 {
		t.Errorf("group_id = %d, want 42", params.Get("group_id").Int())
	}
	var types []string
	params.Get("message.#.type").ForEach(func(_, v gjson.Result) bool {
		types = append(types, v.String())
		return true
	})
	if got, want := strings.Join(types, ","), "reply,text,face,at"; got != want {
		t.Errorf("segment types = %q, want %q", got, want)
	}
	if got := params.Get("message.0.data.id").String(); got != "11" {
		t.Errorf("reply id = %q, want 11", got)
	}
	if got := params.Get("message.2.data.id").Int(); got != 14 {
		t.Errorf("face id = %d, want 14", got)
	}
	if got := params.Get("message.3.data.qq").Int(); got != 7 {
		t.Errorf("at qq = %d, want 7", got)
	}
}

func TestHostReplyRecall(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	msg := &bym.Message{ID: "11", GroupID: 42}
	opts := bym.ReplyOptions{RecallAfter: 50 * time.Millisecond}
	if err := h.host.Reply(context.Background(), msg, []face.Part{face.Text("滚")}, opts); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := h.server.callsFor("delete_msg"); len(calls) == 1 {
			if got := calls[0].Get("params.message_id").Int(); got != 99 {
				t.Errorf("delete_msg message_id = %d, want 99", got)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("delete_msg was not called")
}

func TestHostMemberIDsCached(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	ctx := context.Background()

	ids, err := h.host.MemberIDs(ctx, 42)
	if err != nil {
		t.Fatalf("MemberIDs() error = %v", err)
	}
	want := map[string]int64{"bot": 100, "小明": 7, "明": 7, "小红": 8}
	for name, id := range want {
		if ids[name] != id {
			t.Errorf("MemberIDs()[%q] = %d, want %d", name, ids[name], id)
		}
	}
	if _, err := h.host.MemberIDs(ctx, 42); err != nil {
		t.Fatalf("MemberIDs() second call error = %v", err)
	}
	if n := len(h.server.callsFor("get_group_member_list")); n != 1 {
		t.Errorf("get_group_member_list calls = %d, want 1", n)
	}
}

func TestHostAdministration(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	ctx := context.Background()

	if err := h.host.Mute(ctx, 42, 7, 10*time.Minute); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	bans := h.server.callsFor("set_group_ban")
	if len(bans) != 1 || bans[0].Get("params.duration").Int() != 600 {
		t.Errorf("set_group_ban calls = %v", bans)
	}

	h.server.mu.Lock()
	h.server.fail["set_group_kick"] = true
	h.server.mu.Unlock()

	err := h.host.Kick(ctx, 42, 7)
	var apiErr *onebot.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Kick() error = %v, want *APIError", err)
	}
	if apiErr.RetCode != 100 || apiErr.Message != "权限不足" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestHostSendImageData(t *testing.T) {
	t.Parallel()

	h := startHarness(t)
	img := &llm.Image{Data: []byte("GIF89a"), MIMEType: "image/gif"}
	if err := h.host.SendImageData(context.Background(), 42, img); err != nil {
		t.Fatalf("SendImageData() error = %v", err)
	}
	sends := h.server.callsFor("send_group_msg")
	if len(sends) != 1 {
		t.Fatalf("send_group_msg calls = %d, want 1", len(sends))
	}
	seg := sends[0].Get("params.message.0")
	if got, want := seg.Get("data.file").String(), "base64://R0lGODlh"; seg.Get("type").String() != "image" || got != want {
		t.Errorf("segment = %s, want image with file %q", seg.Raw, want)
	}
}

func TestClientCallNotConnected(t *testing.T) {
	t.Parallel()

	client, err := onebot.NewClient(config.OneBotConfig{WSURL: "ws://127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Call(context.Background(), "get_login_info", nil); !errors.Is(err, onebot.ErrNotConnected) {
		t.Errorf("Call() error = %v, want ErrNotConnected", err)
	}
	if _, err := onebot.NewClient(config.OneBotConfig{}, nil); err == nil {
		t.Error("NewClient() without url error = nil, want error")
	}
}

func TestFetchImage(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.png":
			_, _ = w.Write(png)
		case "/text":
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, _ := onebot.NewClient(config.OneBotConfig{WSURL: "ws://unused"}, nil)
	host := onebot.NewHost(client, config.OneBotConfig{}, srv.Client(), nil)
	ctx := context.Background()

	img, err := host.FetchImage(ctx, srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("FetchImage() error = %v", err)
	}
	if img.MIMEType != "image/png" || len(img.Data) != len(png) {
		t.Errorf("FetchImage() = %s (%d bytes)", img.MIMEType, len(img.Data))
	}

	for _, ref := range []string{srv.URL + "/text", srv.URL + "/missing", "file.jpg"} {
		if _, err := host.FetchImage(ctx, ref); err == nil {
			t.Errorf("FetchImage(%q) error = nil, want error", ref)
		}
	}
}

func TestSegments(t *testing.T) {
	t.Parallel()

	segs := onebot.Segments([]face.Part{face.Text(""), face.Text("a"), {Kind: face.KindAt, UserID: 5}})
	data, err := json.Marshal(segs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(data), `[{"type":"text","data":{"text":"a"}},{"type":"at","data":{"qq":5}}]`; got != want {
		t.Errorf("Segments() = %s, want %s", got, want)
	}
}
