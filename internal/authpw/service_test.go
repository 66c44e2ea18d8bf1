package authpw

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"synopsis/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]store.User{}}
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.users[strings.ToLower(email)]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	user.ID = "usr_" + user.DisplayName
	f.users[strings.ToLower(user.Email)] = user
	return user, nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "dana@example.com",
		Password:    "correct-horse",
		DisplayName: "Dana",
		Role:        "manager",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Role != "manager" {
		t.Fatalf("role not kept: %q", user.Role)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in clear")
	}

	signedIn, err := svc.SignIn(ctx, SignInRequest{Email: "dana@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("got user %q, want %q", signedIn.ID, user.ID)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email: "dana@example.com", Password: "correct-horse", DisplayName: "Dana",
	}); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	_, err := svc.SignIn(ctx, SignInRequest{Email: "dana@example.com", Password: "wrong"})
	if err == nil || err.Error() != "invalid email or password" {
		t.Fatalf("expected generic auth error, got %v", err)
	}
}

func TestSignInUnknownEmailSameError(t *testing.T) {
	svc := NewService(newFakeUserStore())

	_, err := svc.SignIn(context.Background(), SignInRequest{Email: "nobody@example.com", Password: "x"})
	if err == nil || err.Error() != "invalid email or password" {
		t.Fatalf("expected generic auth error, got %v", err)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	svc := NewService(newFakeUserStore())

	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "dana@example.com", Password: "short", DisplayName: "Dana",
	})
	if err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email: "dana@example.com", Password: "correct-horse", DisplayName: "Dana",
	}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpRequest{
		Email: "Dana@example.com", Password: "correct-horse", DisplayName: "Dana2",
	}); err == nil {
		t.Fatal("expected duplicate email rejection")
	}
}

func TestSignUpNormalizesUnknownRole(t *testing.T) {
	svc := NewService(newFakeUserStore())

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email: "dana@example.com", Password: "correct-horse", DisplayName: "Dana", Role: "superuser",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Role != "external" {
		t.Fatalf("unknown role should normalize to external, got %q", user.Role)
	}
	if !user.IsExternal {
		t.Fatal("external role should flag the user external")
	}
}
