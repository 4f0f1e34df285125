package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	t.Run("validates input fields including email format", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(nil, nil, nil)

		_, err := svc.CreateUser(context.Background(), UserInput{
			Email:         "not-an-email",
			WalletAddress: "wallet",
			Nickname:      strings.Repeat("n", maxNicknameLength+1),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "wallet_address", "nickname"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("requires an identity", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(nil, nil, nil)

		_, err := svc.CreateUser(context.Background(), UserInput{Nickname: "Ghost"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["email"] == "" {
			t.Fatalf("expected identity error, got %v", err)
		}
	})

	t.Run("normalizes and defaults", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub()
		svc := NewUserServiceWithLogger(repo, sequenceIDs("user-"), fixedNow, discardLogger())

		user, err := svc.CreateUser(context.Background(), UserInput{Email: " Ada@Example.COM "})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.ID != "user-1" || user.Email != "ada@example.com" || user.Nickname != DefaultNickname {
			t.Fatalf("unexpected user: %#v", user)
		}
		if !user.CreatedAt.Equal(testNow) || !user.UpdatedAt.Equal(testNow) {
			t.Fatalf("unexpected timestamps: %#v", user)
		}
	})

	t.Run("maps duplicate email violations to sentinel errors", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub(User{ID: "existing", Email: "ada@example.com"})
		svc := NewUserServiceWithLogger(repo, sequenceIDs("user-"), fixedNow, discardLogger())

		_, err := svc.CreateUser(context.Background(), UserInput{Email: "ada@example.com"})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	t.Run("propagates ErrNotFound when the user is missing", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newUserRepoStub(), nil, fixedNow)

		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{UserID: "missing", Input: UserInput{Email: "a@example.com"}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("persists changes", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub(User{ID: "u1", Email: "ada@example.com", Nickname: "Ada"})
		svc := NewUserService(repo, nil, fixedNow)

		user, err := svc.UpdateUser(context.Background(), UpdateUserParams{
			UserID: "u1",
			Input:  UserInput{Email: "ada@example.com", WalletAddress: testWallet, Nickname: "Countess"},
		})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if user.Nickname != "Countess" || user.WalletAddress != testWallet || !user.UpdatedAt.Equal(testNow) {
			t.Fatalf("unexpected user: %#v", user)
		}
	})

	t.Run("rejects taken email", func(t *testing.T) {
		t.Parallel()
		repo := newUserRepoStub(
			User{ID: "u1", Email: "ada@example.com"},
			User{ID: "u2", Email: "bob@example.com"},
		)
		svc := NewUserService(repo, nil, fixedNow)

		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{UserID: "u2", Input: UserInput{Email: "ada@example.com"}})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_GetListDelete(t *testing.T) {
	t.Parallel()

	repo := newUserRepoStub(
		User{ID: "u1", Email: "ada@example.com"},
		User{ID: "u2", Email: "bob@example.com"},
	)
	svc := NewUserService(repo, nil, fixedNow)

	users, err := svc.ListUsers(context.Background())
	if err != nil || len(users) != 2 {
		t.Fatalf("expected two users, got %#v %v", users, err)
	}

	if _, err := svc.GetUser(context.Background(), "u1"); err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if err := svc.DeleteUser(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := svc.GetUser(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.DeleteUser(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated delete, got %v", err)
	}
}
