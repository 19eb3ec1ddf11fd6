package auth

import (
	"context"
	"errors"
	"testing"
)

type stubUserRepo struct {
	created  CreateUserParams
	user     User
	err      error
	byEmail  string
	creation bool
}

func (s *stubUserRepo) CreateUser(_ context.Context, params CreateUserParams) (User, error) {
	s.created = params
	s.creation = true
	if s.err != nil {
		return User{}, s.err
	}
	return User{
		ID:           "u1",
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
	}, nil
}

func (s *stubUserRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.byEmail = email
	return s.user, s.err
}

func (s *stubUserRepo) GetUserByID(_ context.Context, _ string) (User, error) {
	return s.user, s.err
}

func TestRegister_DefaultsToAgentRole(t *testing.T) {
	repo := &stubUserRepo{}
	svc := NewService(repo, "secret")

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "jane@example.com",
		Password: "longenough",
		FullName: "Jane Doe",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if user.Role != RoleAgent {
		t.Errorf("role = %s, want %s", user.Role, RoleAgent)
	}
	if repo.created.PasswordHash == "longenough" {
		t.Error("password stored unhashed")
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	repo := &stubUserRepo{}
	svc := NewService(repo, "secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "jane@example.com",
		Password: "short",
		FullName: "Jane Doe",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if repo.creation {
		t.Error("repository called for weak password")
	}
}

func TestRegister_InvalidRole(t *testing.T) {
	svc := NewService(&stubUserRepo{}, "secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "jane@example.com",
		Password: "longenough",
		FullName: "Jane Doe",
		Role:     "superuser",
	})
	if err == nil {
		t.Fatal("expected invalid role to be rejected")
	}
}

func TestLogin_RoundTripsToken(t *testing.T) {
	repo := &stubUserRepo{}
	svc := NewService(repo, "secret")

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "jane@example.com",
		Password: "longenough",
		FullName: "Jane Doe",
		Role:     RoleOfficeAdmin,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.user = *registered

	result, err := svc.Login(context.Background(), LoginRequest{
		Email:    "jane@example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token")
	}

	userID, role, err := svc.VerifyToken(result.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if userID != "u1" || role != RoleOfficeAdmin {
		t.Errorf("token claims = (%s, %s), want (u1, office_admin)", userID, role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := &stubUserRepo{}
	svc := NewService(repo, "secret")

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "jane@example.com",
		Password: "longenough",
		FullName: "Jane Doe",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	repo.user = *registered

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "jane@example.com",
		Password: "wrongpass",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := &stubUserRepo{err: ErrUserNotFound}
	svc := NewService(repo, "secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever1",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyToken_RejectsGarbage(t *testing.T) {
	svc := NewService(&stubUserRepo{}, "secret")

	if _, _, err := svc.VerifyToken("not-a-token"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}

	other := NewService(&stubUserRepo{}, "different-secret")
	token, err := other.generateToken("u1", RoleAgent)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, _, err := svc.VerifyToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}
