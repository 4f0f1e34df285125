package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const maxNicknameLength = 64

var walletPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByWallet(ctx context.Context, wallet string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// UserService orchestrates validation and persistence for users.
type UserService struct {
	users       UserRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specific logger.
func NewUserServiceWithLogger(users UserRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user.
func (s *UserService) CreateUser(ctx context.Context, input UserInput) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	normalized := normalizeUserInput(input)
	if vErr := validateUserInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	user = User{
		ID:            s.idGenerator(),
		Email:         normalized.Email,
		WalletAddress: normalized.WalletAddress,
		Nickname:      normalized.Nickname,
		CreatedAt:     s.now(),
	}
	user.UpdatedAt = user.CreatedAt

	if s.users == nil {
		return
	}

	var persisted User
	persisted, err = s.users.CreateUser(ctx, user)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	user = persisted
	return
}

// UpdateUser validates input and updates an existing user.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser", "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	normalized := normalizeUserInput(params.Input)
	if vErr := validateUserInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Email = normalized.Email
	updated.WalletAddress = normalized.WalletAddress
	updated.Nickname = normalized.Nickname
	updated.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, updated)
	if err != nil {
		err = mapUserRepoError(err)
		user = User{}
	}
	return
}

// GetUser returns the user with id.
func (s *UserService) GetUser(ctx context.Context, id string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, ErrNotFound
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// DeleteUser removes a user together with the events they proposed.
func (s *UserService) DeleteUser(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "user_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if err = s.users.DeleteUser(ctx, id); err != nil {
		err = mapUserRepoError(err)
	}
	return
}

// ListUsers returns all users in creation order.
func (s *UserService) ListUsers(ctx context.Context) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	return users, nil
}

func mapUserRepoError(err error) error {
	err = mapRepoError(err)
	if errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("%w: email or wallet address already registered", ErrAlreadyExists)
	}
	return err
}

func normalizeUserInput(input UserInput) UserInput {
	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		nickname = DefaultNickname
	}
	return UserInput{
		Email:         normalizeEmail(input.Email),
		WalletAddress: strings.ToLower(strings.TrimSpace(input.WalletAddress)),
		Nickname:      nickname,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" && input.WalletAddress == "" {
		vErr.add("email", "email or wallet address is required")
	}
	vErr.merge(validateIdentity(input.Email, input.WalletAddress))

	if utf8.RuneCountInString(input.Nickname) > maxNicknameLength {
		vErr.add("nickname", fmt.Sprintf("nickname must be at most %d characters", maxNicknameLength))
	}

	return vErr
}

// validateIdentity checks the optional identity fields of an attendee.
func validateIdentity(email, wallet string) *ValidationError {
	vErr := &ValidationError{}
	if email != "" {
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			vErr.add("email", "email is invalid")
		}
	}
	if wallet != "" && !walletPattern.MatchString(wallet) {
		vErr.add("wallet_address", "wallet address must be 0x followed by 40 hex digits")
	}
	return vErr
}
