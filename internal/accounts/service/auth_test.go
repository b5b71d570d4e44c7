package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/pixelgrove/pixelgrove/internal/accounts/cache"
	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/internal/accounts/store"
	"github.com/pixelgrove/pixelgrove/pkg/cryptox"
	"github.com/pixelgrove/pixelgrove/pkg/idx"
	"github.com/pixelgrove/pixelgrove/pkg/jwtx"
)

// memUsers is an in-memory store.Users that counts email lookups so tests
// can observe cache-aside behaviour.
type memUsers struct {
	mu           sync.Mutex
	byEmail      map[string]domain.User
	emailLookups int
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]domain.User)}
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailLookups++
	u, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id idx.ID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *memUsers) CreateUser(_ context.Context, nu store.NewUser) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[nu.Email]; ok {
		return domain.User{}, store.ErrAlreadyExists
	}

	role := domain.RoleUser
	if len(m.byEmail) == 0 {
		role = domain.RoleAdmin
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New(),
		Nickname:     nu.Nickname,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byEmail[nu.Email] = u
	return u, nil
}

func (m *memUsers) UpdateRefreshToken(_ context.Context, id idx.ID, token string) error {
	return m.update(id, func(u *domain.User) { u.RefreshToken = token })
}

func (m *memUsers) ConfirmEmail(_ context.Context, id idx.ID) error {
	return m.update(id, func(u *domain.User) { u.Confirmed = true })
}

func (m *memUsers) SetActive(_ context.Context, id idx.ID, active bool) error {
	return m.update(id, func(u *domain.User) { u.IsActive = active })
}

func (m *memUsers) update(id idx.ID, f func(*domain.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.byEmail {
		if u.ID == id {
			f(&u)
			u.UpdatedAt = time.Now().UTC()
			m.byEmail[email] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memUsers) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailLookups
}

type memStore struct{ users *memUsers }

func (s *memStore) Users() store.Users         { return s.users }
func (s *memStore) ApplyMigrations() error     { return nil }
func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

type authFixture struct {
	svc   *AuthService
	users *memUsers
	redis *miniredis.Miniredis
	clock *time.Time
}

func (f *authFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
	f.redis.FastForward(d)
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cryptox.SetPepperPath(t.TempDir() + "/pepper")

	codec, err := jwtx.NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	codec.Now = func() time.Time { return *clock }

	mr := miniredis.RunT(t)
	sessions, err := cache.New(context.Background(), cache.Config{
		URL: "redis://" + mr.Addr(),
		TTL: 5 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	users := newMemUsers()

	return &authFixture{
		svc: &AuthService{
			Store:    &memStore{users: users},
			Sessions: sessions,
			Codec:    codec,
		},
		users: users,
		redis: mr,
		clock: clock,
	}
}

// register, confirm and return an account ready to log in.
func (f *authFixture) signup(t *testing.T, email, password string) domain.User {
	t.Helper()

	u, err := f.svc.Register(context.Background(), "tester", email, password)
	require.NoError(t, err)
	require.NoError(t, f.users.ConfirmEmail(context.Background(), u.ID))
	u.Confirmed = true
	return u
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw123456")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, first.Role)
	require.False(t, first.Confirmed)
	require.NotEqual(t, "pw123456", first.PasswordHash)

	second, err := f.svc.Register(ctx, "bob", "bob@example.com", "pw123456")
	require.NoError(t, err)
	require.Equal(t, domain.RoleUser, second.Role)

	_, err = f.svc.Register(ctx, "eve", "alice@example.com", "pw123456")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_ErrorOrder(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "ghost@example.com", "pw123456")
	require.ErrorIs(t, err, ErrNoSuchUser)

	u, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw123456")
	require.NoError(t, err)

	// unconfirmed beats everything else, even a wrong password
	_, err = f.svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrEmailNotConfirmed)

	require.NoError(t, f.users.ConfirmEmail(ctx, u.ID))
	require.NoError(t, f.users.SetActive(ctx, u.ID, false))

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrUserInactive)

	require.NoError(t, f.users.SetActive(ctx, u.ID, true))

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)
	require.Equal(t, "bearer", pair.TokenType)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := f.users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, stored.RefreshToken)
}

func TestRefresh_Rotation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "pw123456")
	pair1, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	// identical issue times would mint identical tokens
	f.advance(time.Second)

	pair2, err := f.svc.Refresh(ctx, pair1.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	stored, err := f.users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, pair2.RefreshToken, stored.RefreshToken)

	// replaying the displaced token revokes the whole session
	_, err = f.svc.Refresh(ctx, pair1.RefreshToken)
	require.ErrorIs(t, err, ErrStaleRefresh)

	stored, err = f.users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)

	// the current token was collateral damage
	_, err = f.svc.Refresh(ctx, pair2.RefreshToken)
	require.ErrorIs(t, err, ErrStaleRefresh)
}

func TestRefresh_RejectsWrongTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "pw123456")
	pair, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	// an access token is structurally identical but carries the wrong scope
	_, err = f.svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidScope)

	_, err = f.svc.Refresh(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrUnauthenticated)

	f.advance(8 * 24 * time.Hour)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCurrentUser_CacheAside(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u := f.signup(t, "alice@example.com", "pw123456")
	pair, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	base := f.users.lookups()

	got, err := f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, base+1, f.users.lookups())

	// second resolution is served from the cache
	_, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, base+1, f.users.lookups())

	// after the TTL lapses the directory is consulted again
	f.advance(5*time.Minute + time.Second)
	_, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, base+2, f.users.lookups())
}

func TestCurrentUser_StalenessWindow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u := f.signup(t, "alice@example.com", "pw123456")
	pair, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	got, err := f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	// deactivation does not evict the snapshot
	require.NoError(t, f.users.SetActive(ctx, u.ID, false))

	got, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	f.advance(5*time.Minute + time.Second)

	got, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestCurrentUser_RejectsWrongTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.signup(t, "alice@example.com", "pw123456")
	pair, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	_, err = f.svc.CurrentUser(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.CurrentUser(ctx, "garbage")
	require.ErrorIs(t, err, ErrUnauthenticated)

	f.advance(16 * time.Minute)
	_, err = f.svc.CurrentUser(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u := f.signup(t, "alice@example.com", "pw123456")
	pair, err := f.svc.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, u.ID))

	stored, err := f.users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Empty(t, stored.RefreshToken)

	require.NoError(t, f.svc.Logout(ctx, u.ID))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrStaleRefresh)
}

func TestEmailTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, "alice", "alice@example.com", "pw123456")
	require.NoError(t, err)
	require.False(t, u.Confirmed)

	token, err := f.svc.CreateEmailToken("alice@example.com")
	require.NoError(t, err)

	email, err := f.svc.EmailFromToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", email)

	require.NoError(t, f.svc.ConfirmEmail(ctx, token))

	stored, err := f.users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, stored.Confirmed)

	// confirming twice is a no-op
	require.NoError(t, f.svc.ConfirmEmail(ctx, token))

	// forged and expired tokens are indistinguishable to the caller
	_, err = f.svc.EmailFromToken(token + "x")
	require.ErrorIs(t, err, ErrVerification)

	f.advance(25 * time.Hour)
	_, err = f.svc.EmailFromToken(token)
	require.ErrorIs(t, err, ErrVerification)

	require.ErrorIs(t, f.svc.ConfirmEmail(ctx, "nonsense"), ErrVerification)
}
