package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeper-notes/internal/apperror"
	"keeper-notes/internal/model"
)

// mockAuthenticator - мок удаленной аутентификации
type mockAuthenticator struct {
	loginFunc         func(ctx context.Context, email, password string) (model.AuthResult, error)
	signupFunc        func(ctx context.Context, email, password string) (model.AuthResult, error)
	googleLoginFunc   func(ctx context.Context, credential string) (model.AuthResult, error)
	phoneLoginFunc    func(ctx context.Context, phone, otp string) (model.AuthResult, error)
	sendOTPFunc       func(ctx context.Context, phone string) (string, error)
	verifyFunc        func(ctx context.Context, token string) (model.VerifyResult, error)
	updateProfileFunc func(ctx context.Context, token string, patch model.ProfilePatch) (model.User, error)
}

func (m *mockAuthenticator) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return model.AuthResult{}, errors.New("not implemented")
}

func (m *mockAuthenticator) Signup(ctx context.Context, email, password string) (model.AuthResult, error) {
	if m.signupFunc != nil {
		return m.signupFunc(ctx, email, password)
	}
	return model.AuthResult{}, errors.New("not implemented")
}

func (m *mockAuthenticator) GoogleLogin(ctx context.Context, credential string) (model.AuthResult, error) {
	if m.googleLoginFunc != nil {
		return m.googleLoginFunc(ctx, credential)
	}
	return model.AuthResult{}, errors.New("not implemented")
}

func (m *mockAuthenticator) PhoneLogin(ctx context.Context, phone, otp string) (model.AuthResult, error) {
	if m.phoneLoginFunc != nil {
		return m.phoneLoginFunc(ctx, phone, otp)
	}
	return model.AuthResult{}, errors.New("not implemented")
}

func (m *mockAuthenticator) SendOTP(ctx context.Context, phone string) (string, error) {
	if m.sendOTPFunc != nil {
		return m.sendOTPFunc(ctx, phone)
	}
	return "", errors.New("not implemented")
}

func (m *mockAuthenticator) Verify(ctx context.Context, token string) (model.VerifyResult, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, token)
	}
	return model.VerifyResult{}, errors.New("not implemented")
}

func (m *mockAuthenticator) UpdateProfile(ctx context.Context, token string, patch model.ProfilePatch) (model.User, error) {
	if m.updateProfileFunc != nil {
		return m.updateProfileFunc(ctx, token, patch)
	}
	return model.User{}, errors.New("not implemented")
}

// rejection имитирует отказ сервера с сообщением
type rejection struct{ msg string }

func (r *rejection) Error() string       { return "rejected: " + r.msg }
func (r *rejection) UserMessage() string { return r.msg }

func loginAs(email string) func(ctx context.Context, e, p string) (model.AuthResult, error) {
	return func(ctx context.Context, e, p string) (model.AuthResult, error) {
		return model.AuthResult{Token: "tok-" + email, User: model.User{Email: email}}, nil
	}
}

func TestManager_LoginPublishesSignedIn(t *testing.T) {
	ctx := context.Background()
	tokens := &MemoryTokenStore{}
	m := NewManager(&mockAuthenticator{loginFunc: loginAs("jane@example.com")}, WithTokenStore(tokens))
	ch := m.Subscribe()

	require.NoError(t, m.Login(ctx, "jane@example.com", "pw"))

	ev := <-ch
	assert.Equal(t, SignedIn, ev.Kind)
	assert.Equal(t, "jane", ev.User.Name, "Expected name to default to the email local part")

	user, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, "tok-jane@example.com", m.Token())

	saved, _ := tokens.Load()
	assert.Equal(t, "tok-jane@example.com", saved)
}

func TestManager_RepeatedLoginSameUserIsNotSignedIn(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&mockAuthenticator{loginFunc: loginAs("jane@example.com")})
	ch := m.Subscribe()

	require.NoError(t, m.Login(ctx, "jane@example.com", "pw"))
	require.NoError(t, m.Login(ctx, "jane@example.com", "pw"))

	assert.Equal(t, SignedIn, (<-ch).Kind)
	assert.Equal(t, ProfileUpdated, (<-ch).Kind)
}

func TestManager_LoginFailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "server message", err: &rejection{msg: "Invalid password"}, wantMsg: "Invalid password"},
		{name: "rejected without message", err: &rejection{}, wantMsg: "Login failed"},
		{name: "network error", err: errors.New("dial tcp: refused"), wantMsg: "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(&mockAuthenticator{
				loginFunc: func(ctx context.Context, e, p string) (model.AuthResult, error) {
					return model.AuthResult{}, tt.err
				},
			})

			err := m.Login(context.Background(), "a@b.c", "pw")
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, apperror.Message(err))
			assert.False(t, m.IsAuthenticated())
		})
	}
}

func TestManager_PhoneLoginNameFallsBackToPhone(t *testing.T) {
	m := NewManager(&mockAuthenticator{
		phoneLoginFunc: func(ctx context.Context, phone, otp string) (model.AuthResult, error) {
			assert.Equal(t, "123456", otp)
			return model.AuthResult{Token: "t", User: model.User{Email: "p@example.com"}}, nil
		},
	})

	require.NoError(t, m.PhoneLogin(context.Background(), " +15550100 ", "123456"))

	user, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "+15550100", user.Name)
	assert.Equal(t, "+15550100", user.Phone)
}

func TestManager_SendOTP(t *testing.T) {
	m := NewManager(&mockAuthenticator{
		sendOTPFunc: func(ctx context.Context, phone string) (string, error) {
			return "OTP sent", nil
		},
	})

	msg, err := m.SendOTP(context.Background(), "+15550100")
	require.NoError(t, err)
	assert.Equal(t, "OTP sent", msg)
	assert.False(t, m.IsAuthenticated(), "Expected OTP request not to sign in")
}

func TestManager_RestoreVerifiesStoredToken(t *testing.T) {
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.Save("stored"))

	m := NewManager(&mockAuthenticator{
		verifyFunc: func(ctx context.Context, token string) (model.VerifyResult, error) {
			assert.Equal(t, "stored", token)
			return model.VerifyResult{Username: "jane@example.com", Avatar: "a.png"}, nil
		},
	}, WithTokenStore(tokens))

	require.NoError(t, m.Restore(context.Background()))

	user, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "jane", user.Name)
	assert.Equal(t, "a.png", user.Avatar)
	assert.Equal(t, "stored", m.Token())
}

func TestManager_RestoreWithInvalidTokenClearsIt(t *testing.T) {
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.Save("expired"))

	m := NewManager(&mockAuthenticator{
		verifyFunc: func(ctx context.Context, token string) (model.VerifyResult, error) {
			return model.VerifyResult{}, &rejection{}
		},
	}, WithTokenStore(tokens))

	err := m.Restore(context.Background())
	require.Error(t, err)
	assert.False(t, m.IsAuthenticated())

	saved, _ := tokens.Load()
	assert.Empty(t, saved)
}

func TestManager_RestoreWithoutToken(t *testing.T) {
	m := NewManager(&mockAuthenticator{})
	assert.NoError(t, m.Restore(context.Background()))
	assert.False(t, m.IsAuthenticated())
}

func TestManager_UnauthorizedSignsOut(t *testing.T) {
	m := NewManager(&mockAuthenticator{loginFunc: loginAs("jane@example.com")})
	require.NoError(t, m.Login(context.Background(), "jane@example.com", "pw"))
	ch := m.Subscribe()

	m.Unauthorized()

	ev := <-ch
	assert.Equal(t, SignedOut, ev.Kind)
	assert.Equal(t, "jane@example.com", ev.User.Email)
	assert.Empty(t, m.Token())

	m.Unauthorized() // без сессии ничего не публикует
	assert.Len(t, ch, 0)
}

func TestManager_UpdateProfileMergesServerFields(t *testing.T) {
	m := NewManager(&mockAuthenticator{
		loginFunc: loginAs("jane@example.com"),
		updateProfileFunc: func(ctx context.Context, token string, patch model.ProfilePatch) (model.User, error) {
			assert.Equal(t, "tok-jane@example.com", token)
			return model.User{Name: *patch.Name}, nil
		},
	})
	require.NoError(t, m.Login(context.Background(), "jane@example.com", "pw"))
	ch := m.Subscribe()

	name := "Jane Doe"
	require.NoError(t, m.UpdateProfile(context.Background(), model.ProfilePatch{Name: &name}))

	ev := <-ch
	assert.Equal(t, ProfileUpdated, ev.Kind)

	user, _ := m.Current()
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "jane@example.com", user.Email, "Expected fields absent from the response to be kept")
}

func TestManager_UpdateProfileRequiresSession(t *testing.T) {
	m := NewManager(&mockAuthenticator{})

	err := m.UpdateProfile(context.Background(), model.ProfilePatch{})
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
