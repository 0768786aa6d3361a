package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/devchat/internal/chat"
	"github.com/standardbeagle/devchat/internal/dom"
	"github.com/standardbeagle/devchat/internal/page"
	"github.com/standardbeagle/devchat/internal/picker"
)

const shopHTML = `<html><head><title>Shop</title><script src="/app.js"></script></head>
<body>
<ul class="list"><li>One</li><li>Two</li></ul>
<button id="buy" class="btn">Buy now</button>
</body></html>`

type recordingPort struct {
	id  string
	ch  chan Reply
	err error
}

func newRecordingPort(id string) *recordingPort {
	return &recordingPort{id: id, ch: make(chan Reply, 16)}
}

func (p *recordingPort) ID() string { return p.id }

func (p *recordingPort) Send(r Reply) error {
	if p.err != nil {
		return p.err
	}
	p.ch <- r
	return nil
}

type stubProvider struct {
	mu    sync.Mutex
	calls [][]chat.Message
	err   error
}

func (p *stubProvider) Name() string       { return "stub" }
func (p *stubProvider) IsConfigured() bool { return true }

func (p *stubProvider) Chat(_ context.Context, _ chat.Options, messages []chat.Message) (*chat.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, messages)
	if p.err != nil {
		return nil, p.err
	}
	return &chat.Response{Content: "Looks fine."}, nil
}

func newTestState(t *testing.T, cfg Config) (*State, *Router) {
	t.Helper()
	s := NewState(cfg)
	t.Cleanup(s.Close)
	return s, Routes(s)
}

func send(t *testing.T, r *Router, kind Kind, tab int, data any) (any, error) {
	t.Helper()
	msg, err := NewMessage(kind, tab, data)
	require.NoError(t, err)
	return r.Dispatch(context.Background(), msg)
}

func openShop(t *testing.T, r *Router) TabInfo {
	t.Helper()
	out, err := send(t, r, KindOpenTab, 0, OpenTabData{URL: "https://shop.test/", HTML: shopHTML})
	require.NoError(t, err)
	return out.(TabInfo)
}

func TestRouter_UnknownKind(t *testing.T) {
	r := NewRouter()
	_, err := r.Dispatch(context.Background(), Message{Type: "NOPE"})
	assert.True(t, errors.Is(err, ErrUnknownKind))

	reply := r.Handle(context.Background(), Message{ID: "7", Type: "NOPE"})
	assert.False(t, reply.OK)
	assert.Equal(t, "7", reply.ID)
	assert.Contains(t, reply.Error, "unknown message type")
}

func TestRoutes_RegistersEveryKind(t *testing.T) {
	_, r := newTestState(t, Config{})
	assert.ElementsMatch(t, []Kind{
		KindOpenTab, KindCloseTab, KindOpenDevtools, KindGetPageInfo,
		KindGetAvailableModels, KindSendToAI, KindToggleElementPicker,
		KindElementSelected, KindPointerMove, KindClick, KindResolveSelector,
	}, r.Kinds())
}

func TestOpenTabAndPageInfo(t *testing.T) {
	s, r := newTestState(t, Config{})

	info := openShop(t, r)
	assert.Equal(t, 1, info.ID)
	assert.Equal(t, "Shop", info.Title)
	assert.Equal(t, 1, s.ActiveTab())

	out, err := send(t, r, KindGetPageInfo, 0, nil)
	require.NoError(t, err)
	pi := out.(page.Info)
	assert.Equal(t, "https://shop.test/", pi.URL)
	assert.Equal(t, []string{"https://shop.test/app.js"}, pi.Scripts)

	_, err = send(t, r, KindGetPageInfo, 99, nil)
	assert.ErrorIs(t, err, ErrTabNotFound)
}

func TestOpenTab_LoadsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, shopHTML)
	}))
	defer srv.Close()

	_, r := newTestState(t, Config{})
	out, err := send(t, r, KindOpenTab, 0, OpenTabData{URL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, "Shop", out.(TabInfo).Title)

	_, err = send(t, r, KindOpenTab, 0, OpenTabData{})
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestCloseTabDropsHistory(t *testing.T) {
	svc := chat.NewService(&stubProvider{}, chat.ServiceConfig{})
	s, r := newTestState(t, Config{Chat: svc})
	tab := openShop(t, r)

	out, err := send(t, r, KindSendToAI, tab.ID, chat.Request{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Looks fine.", out)
	assert.Equal(t, 1, svc.History().Len())

	_, err = send(t, r, KindCloseTab, tab.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.History().Len())
	assert.Equal(t, 0, s.ActiveTab())

	_, err = send(t, r, KindCloseTab, tab.ID, nil)
	assert.ErrorIs(t, err, ErrTabNotFound)
}

func TestSendToAI_UsesTabPageInfo(t *testing.T) {
	sp := &stubProvider{}
	_, r := newTestState(t, Config{Chat: chat.NewService(sp, chat.ServiceConfig{})})
	openShop(t, r)

	_, err := send(t, r, KindSendToAI, 0, chat.Request{Message: "What is this page?"})
	require.NoError(t, err)
	require.Len(t, sp.calls, 1)
	assert.Equal(t, "You are an AI assistant helping with web development.\nCurrent page: https://shop.test/\nTitle: Shop", sp.calls[0][0].Content)
}

func TestSendToAI_ErrorsAsText(t *testing.T) {
	_, r := newTestState(t, Config{})
	out, err := send(t, r, KindSendToAI, 0, chat.Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Error: API key not configured", out)

	_, r = newTestState(t, Config{Chat: chat.NewService(&stubProvider{err: errors.New("quota exceeded")}, chat.ServiceConfig{})})
	out, err = send(t, r, KindSendToAI, 0, chat.Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Error: quota exceeded", out)
}

func TestGetAvailableModels(t *testing.T) {
	_, r := newTestState(t, Config{})
	out, err := send(t, r, KindGetAvailableModels, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo-preview"}, out)
}

func TestTogglePicker(t *testing.T) {
	s, r := newTestState(t, Config{})
	tab := openShop(t, r)

	out, err := send(t, r, KindToggleElementPicker, tab.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, picker.Ack{Success: true}, out)

	tb, err := s.Tab(tab.ID)
	require.NoError(t, err)
	require.NoError(t, tb.Do(func(doc *dom.Document, p *picker.Picker) error {
		assert.Equal(t, picker.Active, p.State())
		assert.Equal(t, "crosshair", dom.StyleValue(doc.Body(), "cursor"))
		return nil
	}))

	out, err = send(t, r, KindToggleElementPicker, tab.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, picker.Ack{Success: true}, out)
	require.NoError(t, tb.Do(func(doc *dom.Document, p *picker.Picker) error {
		assert.Equal(t, picker.Idle, p.State())
		assert.Equal(t, 0, doc.ListenerCount(dom.EventClick))
		return nil
	}))
}

func TestClickPushesSelectionOnce(t *testing.T) {
	s, r := newTestState(t, Config{})
	tab := openShop(t, r)

	panelA := newRecordingPort("a")
	panelB := newRecordingPort("b")
	s.Connect(panelA)
	s.Connect(panelB)

	_, err := send(t, r, KindToggleElementPicker, tab.ID, nil)
	require.NoError(t, err)

	out, err := send(t, r, KindPointerMove, tab.ID, PointerData{Target: "#buy"})
	require.NoError(t, err)
	assert.True(t, out.(EventResult).PropagationStopped)

	out, err = send(t, r, KindClick, tab.ID, PointerData{Target: "#buy"})
	require.NoError(t, err)
	assert.True(t, out.(EventResult).DefaultPrevented)

	for _, p := range []*recordingPort{panelA, panelB} {
		select {
		case push := <-p.ch:
			assert.Equal(t, KindElementSelected, push.Type)
			assert.Equal(t, tab.ID, push.TabID)
			sel := push.Data.(picker.Selection)
			assert.Equal(t, "document.querySelector('#buy')", sel.Selector)
			assert.Equal(t, "button", sel.TagName)
			assert.Equal(t, "Buy now", sel.Text)
		case <-time.After(2 * time.Second):
			t.Fatalf("panel %s got no selection", p.id)
		}
	}

	// A second click with the picker idle emits nothing.
	out, err = send(t, r, KindClick, tab.ID, PointerData{Target: "#buy"})
	require.NoError(t, err)
	assert.False(t, out.(EventResult).DefaultPrevented)
	select {
	case push := <-panelA.ch:
		t.Fatalf("unexpected second push %+v", push)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastSkipsFailingPorts(t *testing.T) {
	s, _ := newTestState(t, Config{})
	good := newRecordingPort("good")
	bad := newRecordingPort("bad")
	bad.err = errors.New("closed")
	s.Connect(good)
	s.Connect(bad)
	assert.Equal(t, 2, s.Ports())

	n := s.Broadcast(Reply{Type: KindElementSelected, OK: true})
	assert.Equal(t, 1, n)

	s.Disconnect("bad")
	assert.Equal(t, 1, s.Ports())
}

func TestOutboxDropsWhenFull(t *testing.T) {
	s := &State{
		outbox: make(chan pending, 1),
		done:   make(chan struct{}),
	}
	s.enqueue(1, picker.Selection{Selector: "a"})
	s.enqueue(1, picker.Selection{Selector: "b"})
	assert.Len(t, s.outbox, 1)
	assert.Equal(t, "a", (<-s.outbox).sel.Selector)

	close(s.done)
	s.enqueue(1, picker.Selection{Selector: "c"})
	assert.Len(t, s.outbox, 0)
}

func TestElementSelectedRelay(t *testing.T) {
	s, r := newTestState(t, Config{})
	p := newRecordingPort("panel")
	s.Connect(p)

	_, err := send(t, r, KindElementSelected, 3, picker.Selection{Selector: "document.querySelector('#x')", TagName: "div"})
	require.NoError(t, err)

	select {
	case push := <-p.ch:
		assert.Equal(t, 3, push.TabID)
		assert.Equal(t, "div", push.Data.(picker.Selection).TagName)
	case <-time.After(2 * time.Second):
		t.Fatal("no relay")
	}

	_, err = send(t, r, KindElementSelected, 3, picker.Selection{})
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestResolveSelector(t *testing.T) {
	_, r := newTestState(t, Config{})
	tab := openShop(t, r)

	out, err := send(t, r, KindResolveSelector, tab.ID, PointerData{Target: "ul.list > li:nth-of-type(2)"})
	require.NoError(t, err)
	res := out.(ResolveResult)
	assert.True(t, res.Unique)
	assert.Equal(t, "text", res.Strategy)
	assert.Equal(t, "xpath", res.Kind)

	out, err = send(t, r, KindResolveSelector, tab.ID, PointerData{Path: []int{0, 1, 1}})
	require.NoError(t, err)
	assert.Equal(t, "document.querySelector('#buy')", out.(ResolveResult).Selector)

	_, err = send(t, r, KindResolveSelector, tab.ID, PointerData{Path: []int{5}})
	assert.ErrorIs(t, err, ErrNoTarget)

	_, err = send(t, r, KindResolveSelector, tab.ID, PointerData{Target: "#missing"})
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestOpenDevtoolsSetsActive(t *testing.T) {
	s, r := newTestState(t, Config{})
	first := openShop(t, r)
	second := openShop(t, r)
	assert.Equal(t, second.ID, s.ActiveTab())

	_, err := send(t, r, KindOpenDevtools, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, s.ActiveTab())
	assert.Len(t, s.Tabs(), 2)
}

func TestDecodeBadPayload(t *testing.T) {
	_, r := newTestState(t, Config{})
	openShop(t, r)
	_, err := r.Dispatch(context.Background(), Message{Type: KindClick, Data: []byte(`{"path": "nope"}`)})
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestTabDo_ReturnsError(t *testing.T) {
	s, r := newTestState(t, Config{})
	tab := openShop(t, r)

	tb, err := s.Tab(tab.ID)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tb.Do(func(*dom.Document, *picker.Picker) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = send(t, r, KindClick, tab.ID, PointerData{Target: "table"})
	assert.ErrorIs(t, err, ErrNoTarget)

	assert.Equal(t, "Shop", tb.Describe().Title)
}

func TestCheckRemote(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		data any
		ok   bool
	}{
		{"https page", KindOpenTab, OpenTabData{URL: "https://shop.test/"}, true},
		{"inline html", KindOpenTab, OpenTabData{URL: "/etc/passwd", HTML: "<p>x</p>"}, true},
		{"empty url", KindOpenTab, OpenTabData{}, true},
		{"local path", KindOpenTab, OpenTabData{URL: "/home/me/.ssh/id_rsa"}, false},
		{"file url", KindOpenTab, OpenTabData{URL: "file:///etc/passwd"}, false},
		{"padded path", KindOpenTab, OpenTabData{URL: "  ./secrets.html"}, false},
		{"other kind", KindGetPageInfo, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.kind, 0, tt.data)
			require.NoError(t, err)
			err = CheckRemote(msg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrLocalTarget)
			}
		})
	}
}
