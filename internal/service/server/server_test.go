package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"tpa_auth/internal/config"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/cryptographic/encryption"
	"tpa_auth/internal/model"
	"tpa_auth/internal/protocol/tpa"
	"tpa_auth/internal/protocol/wire"
	"tpa_auth/internal/transport"
	"tpa_auth/internal/utils/bytesutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeJournal struct {
	mu       sync.Mutex
	messages map[string][]*model.Message
}

func (j *fakeJournal) Append(_ context.Context, peer string, m *model.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.messages == nil {
		j.messages = make(map[string][]*model.Message)
	}
	j.messages[peer] = append(j.messages[peer], m)
	return nil
}

func (j *fakeJournal) Recent(_ context.Context, peer string) ([]*model.Message, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.messages[peer], nil
}

type fakeAudit struct {
	mu       sync.Mutex
	created  []model.Session
	outcomes map[string]string
}

func (a *fakeAudit) Create(_ context.Context, s *model.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, *s)
	return nil
}

func (a *fakeAudit) Finish(_ context.Context, id, outcome, _ string, _ int, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcomes == nil {
		a.outcomes = make(map[string]string)
	}
	a.outcomes[id] = outcome
	return nil
}

func (a *fakeAudit) snapshot() ([]model.Session, map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.outcomes))
	for k, v := range a.outcomes {
		out[k] = v
	}
	return append([]model.Session(nil), a.created...), out
}

func testConfig(t *testing.T) *config.Server {
	cfg, err := config.LoadServer([]byte("[Listen]\nReadTimeout = 5\n"))
	require.NoError(t, err)
	return cfg
}

// talk runs a client session over ch with the given symmetric key.
func talk(t *testing.T, ch wire.Channel, key []byte, texts ...string) error {
	defer ch.Close()

	c, err := cipher.New(algorithm.AES, key)
	require.NoError(t, err)

	client := tpa.NewClient(wire.NewConn(ch, wire.WithReadTimeout(5*time.Second)), c, tpa.WithLogger(zap.NewNop()))
	authErr := client.Authenticate()
	if authErr == nil {
		for _, text := range texts {
			require.NoError(t, client.SendMessage([]byte(text)))
		}
	}
	require.NoError(t, client.Stop())
	return authErr
}

func TestServeTCP(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cfg := testConfig(t)
	journal, audit := &fakeJournal{}, &fakeAudit{}
	s, err := New(cfg, WithJournal(journal), WithAudit(audit))
	require.NoError(err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	key := bytesutil.MustHex(cfg.Key.Key)

	ch, err := transport.Dial(ctx, transport.TCP, ln.Addr().String())
	require.NoError(err)
	require.NoError(talk(t, ch, key, "first message", "second message"))
	require.Eventually(func() bool { return s.Served() == 1 }, 5*time.Second, 10*time.Millisecond)

	// A client with the wrong key fails the handshake, the loop goes on.
	ch, err = transport.Dial(ctx, transport.TCP, ln.Addr().String())
	require.NoError(err)
	err = talk(t, ch, bytesutil.MustHex("7788554411224455DD66E8F6F2B4A54E"))
	require.ErrorIs(err, tpa.ErrAuthentication)
	require.Eventually(func() bool { return s.Served() == 2 }, 5*time.Second, 10*time.Millisecond)

	// A client that disappears mid-session.
	ch, err = transport.Dial(ctx, transport.TCP, ln.Addr().String())
	require.NoError(err)
	require.NoError(wire.NewConn(ch).Send(wire.GetChallenge()))
	_, err = wire.NewConn(ch).ReadMessage()
	require.NoError(err)
	require.NoError(ch.Close())
	require.Eventually(func() bool { return s.Served() == 3 }, 5*time.Second, 10*time.Millisecond)

	messages, err := journal.Recent(ctx, "127.0.0.1")
	require.NoError(err)
	require.Len(messages, 2)
	require.Equal("first message", messages[0].Text)
	require.Equal("AES", messages[0].Algorithm)
	require.NotEmpty(messages[0].Checksum)

	created, outcomes := audit.snapshot()
	require.Len(created, 3)
	require.Equal(transport.TCP, created[0].Transport)
	require.Equal(model.OutcomeCompleted, outcomes[created[0].ID])
	require.Equal(model.OutcomeCompleted, outcomes[created[1].ID])
	require.Equal(model.OutcomeChannelLost, outcomes[created[2].ID])
	require.NotEqual(created[0].ID, created[1].ID)

	cancel()
	require.NoError(<-done)
}

func TestServeCancelIdleSession(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	// No read timeout: only cancellation ends the idle session.
	cfg, err := config.LoadServer(nil)
	require.NoError(err)
	audit := &fakeAudit{}
	s, err := New(cfg, WithAudit(audit))
	require.NoError(err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	ch, err := transport.Dial(context.Background(), transport.TCP, ln.Addr().String())
	require.NoError(err)
	defer ch.Close()
	require.Eventually(func() bool { return s.current.Load() != nil }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(5 * time.Second):
		require.FailNow("Serve still blocked after cancel")
	}

	require.EqualValues(1, s.Served())
	created, outcomes := audit.snapshot()
	require.Len(created, 1)
	require.Equal(model.OutcomeCancelled, outcomes[created[0].ID])
}

func TestServeChannelCancelWS(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cfg, err := config.LoadServer(nil)
	require.NoError(err)
	s, err := New(cfg)
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewUnstartedServer(s.Router())
	srv.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	srv.Start()
	defer srv.Close()

	ch, err := transport.Dial(context.Background(), transport.WS, "ws"+strings.TrimPrefix(srv.URL, "http")+"/channel")
	require.NoError(err)
	defer ch.Close()
	require.Eventually(func() bool { return s.current.Load() != nil }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(func() bool { return s.Served() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestAdminAPI(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cfg := testConfig(t)
	s, err := New(cfg, WithJournal(&fakeJournal{}))
	require.NoError(err)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ch, err := transport.Dial(context.Background(), transport.WS, "ws"+strings.TrimPrefix(srv.URL, "http")+"/channel")
	require.NoError(err)
	require.NoError(talk(t, ch, bytesutil.MustHex(cfg.Key.Key), "over websocket"))
	require.Eventually(func() bool { return s.Served() == 1 }, 5*time.Second, 10*time.Millisecond)

	var st Status
	getJSON(t, srv.URL+"/status", &st)
	require.Equal("AES", st.Algorithm)
	require.EqualValues(1, st.Served)
	require.False(st.Active)

	var messages []*model.Message
	getJSON(t, srv.URL+"/messages/127.0.0.1", &messages)
	require.Len(messages, 1)
	require.Equal("over websocket", messages[0].Text)

	getJSON(t, srv.URL+"/messages/10.1.1.1", &messages)
	require.Empty(messages)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.Contains(string(body), "tpa_messages_total 1")
	require.Contains(string(body), `tpa_connections_total{transport="ws"} 1`)
	require.Contains(string(body), `tpa_handshakes_total{result="established"} 1`)
}

func TestMessagesWithoutJournal(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	s, err := New(testConfig(t))
	require.NoError(err)

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/messages/127.0.0.1")
	require.NoError(err)
	resp.Body.Close()
	require.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestServeRSA(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	cfg, err := config.LoadServer([]byte("[Key]\nAlgorithm = \"RSA\"\n"))
	require.NoError(err)

	_, err = New(cfg)
	require.Error(err)

	serverKey, err := encryption.GenerateRSAKey(1024)
	require.NoError(err)
	s, err := New(cfg, WithPrivateKey(serverKey))
	require.NoError(err)

	a, b := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- s.ServeChannel(context.Background(), b, "pipe", transport.TCP) }()

	clientKey, err := encryption.GenerateRSAKey(1024)
	require.NoError(err)
	c, err := cipher.NewRSA(clientKey)
	require.NoError(err)

	client := tpa.NewClient(wire.NewConn(a), c, tpa.WithLogger(zap.NewNop()))
	require.NoError(client.Authenticate())
	require.NoError(client.SendMessage([]byte("SECRET MESSAGE")))
	require.NoError(client.Stop())
	require.NoError(<-done)
	require.NoError(a.Close())
	require.EqualValues(1, s.Served())
}

func getJSON(t *testing.T, url string, v any) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestPeerKey(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("127.0.0.1", peerKey("127.0.0.1:5555"))
	require.Equal("::1", peerKey("[::1]:5555"))
	require.Equal("pipe", peerKey("pipe"))
}
