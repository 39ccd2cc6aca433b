package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

// -- Mock Repository --

type mockUserRepo struct {
	store  map[int64]*User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{store: make(map[int64]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.store {
		if existing.Username == u.Username {
			return ErrDuplicateUsername
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.store[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	for _, u := range m.store {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockUserRepo) ListByRole(_ context.Context, role auth.Role) ([]*User, error) {
	var out []*User
	for id := int64(1); id <= m.nextID; id++ {
		if u, ok := m.store[id]; ok && u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) seed(t *testing.T, username, password string, role auth.Role, active bool) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &User{Username: username, Name: username, Role: role, PasswordHash: string(hash), IsActive: active}
	if err := m.Create(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return u
}

var testSecret = []byte("identity-test-secret-0123456789abcdef")

func newTestService() (*Service, *mockUserRepo, *auth.MemoryBlacklist) {
	repo := newMockUserRepo()
	bl := auth.NewMemoryBlacklist(time.Minute)
	issuer := auth.NewIssuer(testSecret, time.Hour, 24*time.Hour)
	return NewService(repo, issuer, bl, zerolog.Nop()), repo, bl
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Errorf("expected %s error, got %s (%v)", want, got, err)
	}
}

// -- Service Tests --

func TestLogin_Success(t *testing.T) {
	svc, repo, _ := newTestService()
	alice := repo.seed(t, "alice", "s3cret", auth.RoleMR, true)

	resp, err := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "alice", Password: "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Access == "" || resp.Refresh == "" {
		t.Fatal("expected token pair")
	}
	if resp.User.ID != alice.ID {
		t.Errorf("expected user %d, got %d", alice.ID, resp.User.ID)
	}

	claims, err := svc.issuer.Parse(resp.Access, auth.TokenAccess)
	if err != nil {
		t.Fatalf("access token did not parse: %v", err)
	}
	if claims.Role != auth.RoleMR || claims.Username != "alice" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "alice"})
	assertKind(t, err, apperr.KindValidation)
	_, err = svc.Login(context.Background(), auth.RoleMR, LoginRequest{Password: "x"})
	assertKind(t, err, apperr.KindValidation)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.seed(t, "alice", "s3cret", auth.RoleMR, true)
	repo.seed(t, "bob", "s3cret", auth.RoleMR, false)

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"wrong password", LoginRequest{Username: "alice", Password: "nope"}},
		{"unknown user", LoginRequest{Username: "carol", Password: "s3cret"}},
		{"inactive user", LoginRequest{Username: "bob", Password: "s3cret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), auth.RoleMR, tt.req)
			assertKind(t, err, apperr.KindUnauthenticated)
			if err.Error() != msgInvalidCredentials {
				t.Errorf("expected %q, got %q", msgInvalidCredentials, err.Error())
			}
		})
	}
}

func TestLogin_RoleMismatch(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.seed(t, "root", "pw", auth.RoleAdmin, true)
	repo.seed(t, "alice", "pw", auth.RoleMR, true)

	_, err := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "root", Password: "pw"})
	assertKind(t, err, apperr.KindPermissionDenied)
	if err.Error() != msgNotMR {
		t.Errorf("expected %q, got %q", msgNotMR, err.Error())
	}

	_, err = svc.Login(context.Background(), auth.RoleAdmin, LoginRequest{Username: "alice", Password: "pw"})
	assertKind(t, err, apperr.KindPermissionDenied)
	if err.Error() != msgNotAdmin {
		t.Errorf("expected %q, got %q", msgNotAdmin, err.Error())
	}
}

func TestLogout_BlacklistsRefreshToken(t *testing.T) {
	svc, repo, bl := newTestService()
	repo.seed(t, "alice", "pw", auth.RoleMR, true)
	resp, err := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), resp.Refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if bl.Count() != 1 {
		t.Errorf("expected 1 blacklisted token, got %d", bl.Count())
	}
	// Second logout with the same token is idempotent.
	if err := svc.Logout(context.Background(), resp.Refresh); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if bl.Count() != 1 {
		t.Errorf("expected 1 blacklisted token after repeat, got %d", bl.Count())
	}
}

func TestLogout_RejectsBadTokens(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.seed(t, "alice", "pw", auth.RoleMR, true)
	resp, _ := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "alice", Password: "pw"})

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"malformed", "not-a-jwt"},
		{"access token", resp.Access},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertKind(t, svc.Logout(context.Background(), tt.token), apperr.KindValidation)
		})
	}
}

func TestRefresh(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.seed(t, "alice", "pw", auth.RoleMR, true)
	resp, _ := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "alice", Password: "pw"})

	out, err := svc.Refresh(context.Background(), resp.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.issuer.Parse(out.Access, auth.TokenAccess); err != nil {
		t.Errorf("refreshed access token did not parse: %v", err)
	}

	if err := svc.Logout(context.Background(), resp.Refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = svc.Refresh(context.Background(), resp.Refresh)
	assertKind(t, err, apperr.KindUnauthenticated)
}

func TestRefresh_InactiveUser(t *testing.T) {
	svc, repo, _ := newTestService()
	u := repo.seed(t, "alice", "pw", auth.RoleMR, true)
	resp, _ := svc.Login(context.Background(), auth.RoleMR, LoginRequest{Username: "alice", Password: "pw"})

	u.IsActive = false
	_, err := svc.Refresh(context.Background(), resp.Refresh)
	assertKind(t, err, apperr.KindUnauthenticated)

	_, err = svc.Refresh(context.Background(), "garbage")
	assertKind(t, err, apperr.KindUnauthenticated)
}

func TestListMRs_OrderedAndFiltered(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.seed(t, "zed", "pw", auth.RoleMR, true)
	repo.seed(t, "root", "pw", auth.RoleAdmin, true)
	repo.seed(t, "amy", "pw", auth.RoleMR, true)

	mrs, err := svc.ListMRs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mrs) != 2 {
		t.Fatalf("expected 2 MRs, got %d", len(mrs))
	}
	if mrs[0].Username != "zed" || mrs[1].Username != "amy" {
		t.Errorf("expected id order [zed amy], got %+v", mrs)
	}
}

func TestMe_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Me(context.Background(), 99)
	assertKind(t, err, apperr.KindNotFound)
}

func TestCreateUser(t *testing.T) {
	svc, _, _ := newTestService()
	u, err := svc.CreateUser(context.Background(), NewUser{Username: "alice", Password: "pw", Role: auth.RoleMR, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == 0 || !u.IsActive {
		t.Errorf("expected persisted active user, got %+v", u)
	}
	if u.Email == nil || *u.Email != "a@example.com" {
		t.Errorf("expected email to be set, got %v", u.Email)
	}
	if !auth.CheckPassword(u.PasswordHash, "pw") {
		t.Error("expected stored hash to verify")
	}

	_, err = svc.CreateUser(context.Background(), NewUser{Username: "alice", Password: "pw", Role: auth.RoleMR})
	assertKind(t, err, apperr.KindConflict)

	_, err = svc.CreateUser(context.Background(), NewUser{Username: "bob", Password: "pw", Role: "nurse"})
	assertKind(t, err, apperr.KindValidation)

	_, err = svc.CreateUser(context.Background(), NewUser{Username: "bob", Role: auth.RoleMR})
	assertKind(t, err, apperr.KindValidation)
}
