package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"keeper-notes/internal/apperror"
	"keeper-notes/internal/config"
	"keeper-notes/internal/model"
	"keeper-notes/internal/repository/memory"
	"keeper-notes/internal/repository/rest"
	"keeper-notes/internal/service/notes"
	"keeper-notes/internal/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newLoggedServer(t, zerolog.Nop())
}

func newLoggedServer(t *testing.T, log zerolog.Logger) *httptest.Server {
	t.Helper()
	accounts := memory.NewAccounts(
		memory.WithBcryptCost(bcrypt.MinCost),
		memory.WithNoteOptions(memory.WithShareBaseURL("https://keeper.example")),
	)
	cfg := &config.ServerConfig{}
	cfg.Normalize()
	cfg.Gateway.RateLimitRPS = 1000
	cfg.Gateway.RateLimitBurst = 1000

	srv := httptest.NewServer(NewRouter(NewHandler(accounts, log), cfg.Gateway, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

// client собирает клиентский стек так же, как CLI
type client struct {
	api   *rest.Client
	sess  *session.Manager
	store *notes.Store
}

func newClient(t *testing.T, baseURL string) *client {
	t.Helper()
	api := rest.NewClient(baseURL)
	sess := session.NewManager(api)
	api.SetCredentials(sess)
	store := notes.NewStore(api)
	t.Cleanup(func() {
		store.Close()
		sess.Close()
	})
	return &client{api: api, sess: sess, store: store}
}

func call(t *testing.T, method, url, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRouter_NotesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, http.MethodGet, srv.URL+"/notes", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = call(t, http.MethodGet, srv.URL+"/notes", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_SignupLoginAndErrors(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, http.MethodPost, srv.URL+"/signup", "", `{"email":"jane@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])

	status, body = call(t, http.MethodPost, srv.URL+"/signup", "", `{"email":"jane@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists", body["message"])

	status, body = call(t, http.MethodPost, srv.URL+"/login", "", `{"email":"jane@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", body["message"])

	status, _ = call(t, http.MethodPost, srv.URL+"/login", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, http.MethodPost, srv.URL+"/auth/google", "", `{"credential":"x"}`)
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Equal(t, false, body["success"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, http.MethodGet, srv.URL+"/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not found", body["message"])
}

func TestEndToEnd_NoteLifecycle(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, c.sess.Signup(ctx, "jane@example.com", "pw"))
	user, ok := c.sess.Current()
	require.True(t, ok)
	assert.Equal(t, "jane", user.Name)

	require.NoError(t, c.store.Refresh(ctx))
	assert.Empty(t, c.store.All())

	first, err := c.store.Create(ctx, model.Draft{Title: "Groceries", Content: "<p>milk</p>"})
	require.NoError(t, err)
	second, err := c.store.Create(ctx, model.Draft{Content: "no title", Drawing: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, second.Title)
	assert.Equal(t, []string{second.ID, first.ID}, ids(c.store.All()))

	fav, err := c.store.ToggleFavorite(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, fav)

	// Очистка рисунка должна дойти до кэша
	none := ""
	updated, err := c.store.Update(ctx, second.ID, model.NotePatch{Drawing: &none})
	require.NoError(t, err)
	assert.Empty(t, updated.Drawing)
	assert.Equal(t, model.DefaultTitle, updated.Title)

	share, err := c.store.Share(ctx, first.ID, model.ShareOptions{Type: model.ShareVisibilityPublic})
	require.NoError(t, err)
	assert.Equal(t, "https://keeper.example/shared/"+first.ID, share.URL)

	status, body := call(t, http.MethodGet, srv.URL+"/shared/"+first.ID, "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	require.NoError(t, c.store.Delete(ctx, second.ID))

	// Кэш совпадает с сервером после полной перезагрузки
	cached := c.store.All()
	require.NoError(t, c.store.Refresh(ctx))
	assert.Equal(t, ids(cached), ids(c.store.All()))
	assert.Equal(t, model.Stats{Total: 1, Favorites: 1}, c.store.Stats())
}

func TestEndToEnd_ServerMessagesReachCaller(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, c.sess.Signup(ctx, "jane@example.com", "pw"))

	err := c.store.Delete(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, "Note not found", apperror.Message(err))

	_, err = c.store.Share(ctx, "missing", model.ShareOptions{Type: "private"})
	require.Error(t, err)
	assert.Equal(t, "Unsupported share type", apperror.Message(err))
}

func TestEndToEnd_EncodedIDs(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, c.sess.Signup(ctx, "jane@example.com", "pw"))

	_, err := c.store.ToggleFavorite(ctx, "a/b?c")
	require.Error(t, err)
	assert.Equal(t, "Note not found", apperror.Message(err),
		"Expected the ID to reach the handler instead of another route")
}

func TestEndToEnd_BoundStoreFollowsSession(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	changes := c.store.Subscribe()
	c.store.Bind(ctx, c.sess)

	require.NoError(t, c.sess.Signup(ctx, "jane@example.com", "pw"))
	waitFor(t, changes, notes.ChangeRefreshed)

	_, err := c.store.Create(ctx, model.Draft{Title: "mine"})
	require.NoError(t, err)

	c.sess.Logout()
	waitFor(t, changes, notes.ChangeReset)
	assert.Empty(t, c.store.All())

	require.NoError(t, c.sess.Signup(ctx, "john@example.com", "pw"))
	waitFor(t, changes, notes.ChangeRefreshed)
	assert.Empty(t, c.store.All(), "Expected a new user not to see previous notes")
}

func TestEndToEnd_UnauthorizedSignsOut(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, c.sess.Signup(ctx, "jane@example.com", "pw"))
	events := c.sess.Subscribe()

	// Токен, неизвестный серверу (например, выданный до перезапуска)
	stale := rest.NewClient(srv.URL, rest.WithCredentials(staticToken{token: "stale", onUnauthorized: c.sess.Unauthorized}))

	_, err := stale.List(ctx)
	require.Error(t, err)
	assert.True(t, rest.IsUnauthorized(err))

	select {
	case ev := <-events:
		assert.Equal(t, session.SignedOut, ev.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("Expected session to end after 401")
	}
}

// syncBuffer буфер лога, безопасный для записи из горутин сервера
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// otp ищет в логе последний выданный код
func (b *syncBuffer) otp(t *testing.T) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	code := ""
	for _, line := range strings.Split(b.buf.String(), "\n") {
		var entry struct {
			OTP string `json:"otp"`
		}
		if json.Unmarshal([]byte(line), &entry) == nil && entry.OTP != "" {
			code = entry.OTP
		}
	}
	require.NotEmpty(t, code, "Expected the code in the server log")
	return code
}

func TestEndToEnd_PhoneLogin(t *testing.T) {
	logs := &syncBuffer{}
	srv := newLoggedServer(t, zerolog.New(logs))
	c := newClient(t, srv.URL)
	ctx := context.Background()

	msg, err := c.sess.SendOTP(ctx, "+15550100")
	require.NoError(t, err)
	assert.Equal(t, "OTP sent", msg)

	err = c.sess.PhoneLogin(ctx, "+15550100", "not-a-code")
	require.Error(t, err)
	assert.Equal(t, "Invalid OTP", apperror.Message(err))
	assert.False(t, c.sess.IsAuthenticated())

	_, err = c.sess.SendOTP(ctx, "+15550100")
	require.NoError(t, err)
	require.NoError(t, c.sess.PhoneLogin(ctx, "+15550100", logs.otp(t)))

	user, ok := c.sess.Current()
	require.True(t, ok)
	assert.Equal(t, "+15550100", user.Name)

	require.NoError(t, c.sess.Restore(ctx), "Expected the issued token to verify")
}

type staticToken struct {
	token          string
	onUnauthorized func()
}

func (s staticToken) Token() string { return s.token }
func (s staticToken) Unauthorized() { s.onUnauthorized() }

func ids(list []model.Note) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func waitFor(t *testing.T, ch chan notes.ChangeEvent, kind notes.ChangeKind) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return
			}
		case <-timeout:
			t.Fatalf("Expected %s event", kind)
		}
	}
}

func TestRouter_ServesSwagger(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
