package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"problem-map/auth"
	"problem-map/contract"
	"problem-map/domain/chat"
	"problem-map/domain/event"
	"problem-map/domain/problem"
	"problem-map/errors"
	"problem-map/mocks"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	server   *httptest.Server
	auth     *mocks.MockIAuthService
	users    *mocks.MockIUserService
	problems *mocks.MockIProblemService
	chats    *mocks.MockIChatService
	token    string
	admin    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	issuer := auth.NewTokenIssuer("a-test-secret-long-enough-for-hs256", time.Hour)
	token, err := issuer.GenerateToken("user-7", []string{"user"})
	require.NoError(t, err)
	admin, err := issuer.GenerateToken("admin-1", []string{auth.RoleUser, auth.RoleAdmin})
	require.NoError(t, err)

	f := fixture{
		auth:     mocks.NewMockIAuthService(ctrl),
		users:    mocks.NewMockIUserService(ctrl),
		problems: mocks.NewMockIProblemService(ctrl),
		chats:    mocks.NewMockIChatService(ctrl),
		token:    token,
		admin:    admin,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(log, f.auth, f.users, f.problems, f.chats, issuer, 8)
	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f fixture) do(t *testing.T, method, path, body string, authenticated bool) *http.Response {
	t.Helper()
	token := ""
	if authenticated {
		token = f.token
	}
	return f.doAs(t, token, method, path, body)
}

func (f fixture) doAs(t *testing.T, token, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_Register(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Register("a@b.io", "ComplexPass123!").Return(auth.Session{UserID: "u-1", Token: "tok"}, nil)

	resp := f.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@b.io","password":"ComplexPass123!"}`, false)

	req.Equal(http.StatusCreated, resp.StatusCode)
	req.Equal(auth.Session{UserID: "u-1", Token: "tok"}, decode[auth.Session](t, resp))
}

func TestServer_Login_Rejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Login("a@b.io", "nope").Return(auth.Session{}, errors.ErrInvalidCredentials)

	resp := f.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.io","password":"nope"}`, false)

	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Equal(errors.ErrInvalidCredentials.Error(), decode[errorResponse](t, resp).Error)
}

func TestServer_ProtectedRoutesNeedAToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.problems.EXPECT().List().Times(0)

	resp := f.do(t, http.MethodGet, "/api/problems", "", false)

	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Users(t *testing.T) {
	f := newFixture(t)
	body := `{"email":"ed@city.io","password":"Str0ngPassword!","role":"editor"}`

	t.Run("any authenticated user lists accounts", func(t *testing.T) {
		req := require.New(t)
		f.users.EXPECT().List().Return([]auth.Account{{ID: "u-1", Email: "adam@example.com", Roles: []string{auth.RoleAdmin}}}, nil)

		resp := f.do(t, http.MethodGet, "/api/users", "", true)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Len(decode[[]auth.Account](t, resp), 1)
	})

	t.Run("creating an account needs the admin role", func(t *testing.T) {
		req := require.New(t)
		f.users.EXPECT().Create(gomock.Any()).Times(0)

		resp := f.do(t, http.MethodPost, "/api/users", body, true)

		req.Equal(http.StatusForbidden, resp.StatusCode)
	})

	t.Run("creating an account without a token is unauthorized", func(t *testing.T) {
		req := require.New(t)

		resp := f.do(t, http.MethodPost, "/api/users", body, false)

		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("an admin creates an account", func(t *testing.T) {
		req := require.New(t)
		expected := auth.CreateUserRequest{Email: "ed@city.io", Password: "Str0ngPassword!", Role: auth.RoleEditor}
		f.users.EXPECT().Create(expected).Return(auth.Account{ID: "u-2", Email: "ed@city.io", Roles: []string{auth.RoleEditor}}, nil)

		resp := f.doAs(t, f.admin, http.MethodPost, "/api/users", body)

		req.Equal(http.StatusCreated, resp.StatusCode)
		req.Equal("u-2", decode[auth.Account](t, resp).ID)
	})
}

func TestServer_Problems(t *testing.T) {
	f := newFixture(t)
	p := problem.New("user-7", "Broken street light", "The light at the corner has been off for a week", 2.35, 48.85, time.Now())

	t.Run("list returns wire views", func(t *testing.T) {
		req := require.New(t)
		f.problems.EXPECT().List().Return([]problem.Problem{p})

		resp := f.do(t, http.MethodGet, "/api/problems", "", true)

		req.Equal(http.StatusOK, resp.StatusCode)
		views := decode[[]event.ProblemView](t, resp)
		req.Equal([]event.ProblemView{event.ToProblemView(p)}, views)
	})

	t.Run("unknown problem is a 404", func(t *testing.T) {
		req := require.New(t)
		f.problems.EXPECT().Get("missing").Return(problem.Problem{}, errors.ErrNotFound)

		resp := f.do(t, http.MethodGet, "/api/problems/missing", "", true)

		req.Equal(http.StatusNotFound, resp.StatusCode)
	})

	t.Run("search is not mistaken for an id", func(t *testing.T) {
		req := require.New(t)
		f.problems.EXPECT().Search(gomock.Any(), "light", 5).Return([]problem.Problem{p}, nil)

		resp := f.do(t, http.MethodGet, "/api/problems/search?q=light&limit=5", "", true)

		req.Equal(http.StatusOK, resp.StatusCode)
		req.Len(decode[[]event.ProblemView](t, resp), 1)
	})

	t.Run("creation is accepted for the token subject", func(t *testing.T) {
		req := require.New(t)
		f.problems.EXPECT().Create(gomock.Any(), "user-7", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, r auth.CreateProblemRequest) (problem.Problem, error) {
				req.Equal("Broken street light", r.Title)
				req.InDelta(2.35, *r.Longitude, 1e-9)
				return p, nil
			})

		resp := f.do(t, http.MethodPost, "/api/problems",
			`{"title":"Broken street light","description":"The light at the corner has been off for a week","long":2.35,"lat":48.85}`, true)

		req.Equal(http.StatusAccepted, resp.StatusCode)
		req.Equal(p.ID, decode[event.ProblemView](t, resp).ID)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		req := require.New(t)
		f.problems.EXPECT().Update(gomock.Any(), gomock.Any()).Times(0)

		resp := f.do(t, http.MethodPatch, "/api/problems", `{"id":`, true)

		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("log failure is a 503", func(t *testing.T) {
		req := require.New(t)
		f.problems.EXPECT().Update(gomock.Any(), gomock.Any()).Return("", errors.ErrTransport)

		resp := f.do(t, http.MethodPatch, "/api/problems", `{"id":"`+p.ID+`","status":"open"}`, true)

		req.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestServer_Chats(t *testing.T) {
	f := newFixture(t)

	t.Run("chat id is required", func(t *testing.T) {
		req := require.New(t)
		resp := f.do(t, http.MethodGet, "/api/chats", "", true)
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("a new chat is an empty list", func(t *testing.T) {
		req := require.New(t)
		f.chats.EXPECT().GetMessages("c-1").Return(nil)

		resp := f.do(t, http.MethodGet, "/api/chats?chat_id=c-1", "", true)

		req.Equal(http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		req.NoError(err)
		req.Equal("[]", strings.TrimSpace(string(body)))
	})

	t.Run("posted message is accepted", func(t *testing.T) {
		req := require.New(t)
		m := chat.New("c-1", "user-7", "hello", time.Now())
		f.chats.EXPECT().PostMessage(gomock.Any(), "user-7", auth.PostMessageRequest{ChatID: "c-1", Message: "hello"}).Return(m, nil)

		resp := f.do(t, http.MethodPost, "/api/chats", `{"chat_id":"c-1","message":"hello"}`, true)

		req.Equal(http.StatusAccepted, resp.StatusCode)
		req.Equal(m.MessageID, decode[event.MessageView](t, resp).MessageID)
	})
}

func TestServer_Websocket(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a client joining the map
	joined := make(chan contract.EventSink, 1)
	f.chats.EXPECT().JoinRoom(gomock.Any(), event.MapRoom, gomock.Any()).
		DoAndReturn(func(_ string, room event.Room, sink contract.EventSink) event.Notification {
			joined <- sink
			return event.Notification{Room: room, Name: event.MapJoined, Payload: []event.ProblemView{}, Revision: 4}
		})
	f.chats.EXPECT().LeaveRoom(gomock.Any(), event.Room("map"))
	disconnected := make(chan struct{})
	f.chats.EXPECT().Disconnect(gomock.Any()).Do(func(string) { close(disconnected) })

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + f.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()

	var frame map[string]any
	req.NoError(conn.WriteJSON(map[string]any{"event": "join_map"}))
	req.NoError(conn.ReadJSON(&frame))
	req.Equal("map_joined", frame["event"])
	req.Equal("map", frame["room"])

	req.Equal(float64(4), frame["revision"])

	// When the fan-out delivers a snapshot older than the join reply, then a newer one
	sink := <-joined
	req.NoError(sink.Consume(context.Background(), event.Notification{
		Room: event.MapRoom, Name: event.NewProblem, Payload: []event.ProblemView{{ID: "p-0"}, {ID: "p-1"}}, Revision: 3,
	}))
	req.NoError(sink.Consume(context.Background(), event.Notification{
		Room: event.MapRoom, Name: event.NewProblem, Payload: []event.ProblemView{{ID: "p-1"}}, Revision: 5,
	}))

	// Then the client only receives the newer one
	frame = nil
	req.NoError(conn.ReadJSON(&frame))
	req.Equal("new_problem", frame["event"])
	req.Equal(float64(5), frame["revision"])
	req.Len(frame["data"], 1)

	// And protocol errors are answered with an error frame
	frame = nil
	req.NoError(conn.WriteJSON(map[string]any{"event": "join_chat", "data": map[string]any{}}))
	req.NoError(conn.ReadJSON(&frame))
	req.Equal("error", frame["event"])

	frame = nil
	req.NoError(conn.WriteJSON(map[string]any{"event": "leave", "data": map[string]any{"room": "map"}}))
	req.NoError(conn.ReadJSON(&frame))
	req.Equal("left", frame["event"])

	// And closing the socket drops the participant from every room
	req.NoError(conn.Close())
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		req.Fail("participant was never disconnected")
	}
}

func TestServer_Websocket_NeedsAToken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}
