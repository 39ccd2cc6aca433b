//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/domain/identity"
	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
)

func TestLoginLogoutRefresh(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)

	createUser(t, ctx, "alice", auth.RoleMR)
	createUser(t, ctx, "root", auth.RoleAdmin)

	issuer := auth.NewIssuer([]byte("integration-secret"), 5*time.Minute, time.Hour)
	svc := identity.NewService(identity.NewUserRepoPG(globalPool), issuer, auth.NewPGBlacklist(globalPool), zerolog.Nop())

	t.Run("wrong portal", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.RoleMR, identity.LoginRequest{Username: "root", Password: "secret-root"})
		if apperr.KindOf(err) != apperr.KindPermissionDenied {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	t.Run("bad password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.RoleMR, identity.LoginRequest{Username: "alice", Password: "nope"})
		if apperr.KindOf(err) != apperr.KindUnauthenticated {
			t.Fatalf("expected unauthenticated, got %v", err)
		}
	})

	login, err := svc.Login(ctx, auth.RoleMR, identity.LoginRequest{Username: "alice", Password: "secret-alice"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.Username != "alice" || login.Access == "" || login.Refresh == "" {
		t.Fatalf("unexpected login response %+v", login)
	}

	if _, err := svc.Refresh(ctx, login.Refresh); err != nil {
		t.Fatalf("Refresh before logout: %v", err)
	}
	if err := svc.Logout(ctx, login.Refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	// Logging out twice is idempotent on the blacklist.
	if err := svc.Logout(ctx, login.Refresh); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	_, err = svc.Refresh(ctx, login.Refresh)
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected blacklisted refresh to be rejected, got %v", err)
	}

	var listed int
	if err := globalPool.QueryRow(ctx, `SELECT COUNT(*) FROM token_blacklist`).Scan(&listed); err != nil {
		t.Fatalf("count blacklist: %v", err)
	}
	if listed != 1 {
		t.Errorf("expected one blacklist row, got %d", listed)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)

	createUser(t, ctx, "alice", auth.RoleMR)
	svc := identity.NewService(identity.NewUserRepoPG(globalPool), nil, nil, zerolog.Nop())
	_, err := svc.CreateUser(ctx, identity.NewUser{Username: "alice", Password: "another-pass", Role: auth.RoleMR})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}
