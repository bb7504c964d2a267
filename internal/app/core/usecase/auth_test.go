package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

const testSecret = "unit-test-secret"

func newAuthFixture(t *testing.T, ttl time.Duration) (*usecase.AuthUseCase, *memory.Ledger) {
	t.Helper()
	store, err := memory.NewLedger(nil, time.Second)
	require.NoError(t, err)
	auth := usecase.NewAuthUseCase(store, usecase.AuthConfig{Secret: testSecret, TokenTTL: ttl}, zap.NewNop())
	return auth, store
}

func TestRegisterAndLogin(t *testing.T) {
	auth, store := newAuthFixture(t, time.Hour)

	user, token, err := auth.Register(context.Background(), "alice@example.com", "s3cret-pass", "Alice", "Wang")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	// 密碼不得以明文落地
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	stored, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	loggedIn, loginToken, err := auth.Login(context.Background(), "alice@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := auth.Verify(loginToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	auth, _ := newAuthFixture(t, time.Hour)

	_, _, err := auth.Register(context.Background(), "bob@example.com", "password-1", "Bob", "Chen")
	require.NoError(t, err)

	_, _, err = auth.Register(context.Background(), "bob@example.com", "password-2", "Bobby", "Chen")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLoginFailures(t *testing.T) {
	auth, store := newAuthFixture(t, time.Hour)

	_, _, err := auth.Register(context.Background(), "carol@example.com", "right-pass", "Carol", "Lin")
	require.NoError(t, err)

	// 密碼錯誤與帳號不存在回同一種錯誤
	_, _, err = auth.Login(context.Background(), "carol@example.com", "wrong-pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, err = auth.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// 停用的使用者不可登入
	hash, err := bcrypt.GenerateFromPassword([]byte("dave-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	disabled := domain.NewUser("dave@example.com", string(hash), "Dave", "Liu")
	disabled.IsActive = false
	require.NoError(t, store.CreateUser(context.Background(), disabled))

	_, _, err = auth.Login(context.Background(), "dave@example.com", "dave-pass")
	assert.ErrorIs(t, err, domain.ErrUserDisabled)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	auth, _ := newAuthFixture(t, time.Hour)

	_, token, err := auth.Register(context.Background(), "erin@example.com", "erin-pass", "Erin", "Kao")
	require.NoError(t, err)

	_, err = auth.Verify("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// 別把不同 secret 簽的 Token 當有效
	store, err := memory.NewLedger(nil, time.Second)
	require.NoError(t, err)
	foreign := usecase.NewAuthUseCase(store, usecase.AuthConfig{Secret: "other-secret"}, zap.NewNop())
	_, err = foreign.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

// Refresh 接受簽章有效但已過期的 Token，換發的新 Token 可用
func TestRefreshExpiredToken(t *testing.T) {
	store, err := memory.NewLedger(nil, time.Second)
	require.NoError(t, err)
	shortLived := usecase.NewAuthUseCase(store, usecase.AuthConfig{Secret: testSecret, TokenTTL: time.Nanosecond}, zap.NewNop())

	user, token, err := shortLived.Register(context.Background(), "gina@example.com", "gina-pass", "Gina", "Su")
	require.NoError(t, err)

	time.Sleep(time.Second + time.Millisecond)
	_, err = shortLived.Verify(token)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	auth, _ := newAuthFixture(t, time.Hour)
	fresh, err := auth.Refresh(token)
	require.NoError(t, err)
	claims, err := auth.Verify(fresh)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "gina@example.com", claims.Email)
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	auth, _ := newAuthFixture(t, time.Hour)

	_, err := auth.Refresh("not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// 簽章不符的 Token 不可換發
	store, err := memory.NewLedger(nil, time.Second)
	require.NoError(t, err)
	foreign := usecase.NewAuthUseCase(store, usecase.AuthConfig{Secret: "other-secret"}, zap.NewNop())
	_, token, err := foreign.Register(context.Background(), "hank@example.com", "hank-pass", "Hank", "Yu")
	require.NoError(t, err)
	_, err = auth.Refresh(token)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	store, err := memory.NewLedger(nil, time.Second)
	require.NoError(t, err)
	// TokenTTL <= 0 會落回預設值，這裡直接用極短 TTL 讓 Token 立即過期
	auth := usecase.NewAuthUseCase(store, usecase.AuthConfig{Secret: testSecret, TokenTTL: time.Nanosecond}, zap.NewNop())

	_, token, err := auth.Register(context.Background(), "frank@example.com", "frank-pass", "Frank", "Wu")
	require.NoError(t, err)

	time.Sleep(time.Second + time.Millisecond) // exp 以秒為粒度
	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
