package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gear-rental/shared/auth"
	"gear-rental/shared/config"
	"gear-rental/shared/models"
	"gear-rental/shared/storage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService owns customer accounts. Profiles and password hashes live in
// separate collections; profile reads never load credentials.
type UserService struct {
	config *config.Config
	store  storage.Store
	keys   storage.Keys
	now    func() time.Time
}

func NewUserService(cfg *config.Config, store storage.Store) *UserService {
	return &UserService{
		config: cfg,
		store:  store,
		keys:   storage.Keys{Prefix: cfg.Storage.KeyPrefix},
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and signs it in.
func (s *UserService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:        "user_" + uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Pincode:   strings.TrimSpace(req.Pincode),
		IsAdmin:   s.config.IsAdmin(email),
		CreatedAt: s.now().UTC(),
	}

	// The credentials collection is the uniqueness guard for emails.
	var creds []models.Credential
	err = s.store.Update(ctx, s.keys.For(storage.KeyCredentials), &creds, func() error {
		for _, c := range creds {
			if c.Email == email {
				return ErrEmailTaken
			}
		}
		creds = append(creds, models.Credential{UserID: user.ID, Email: email, PasswordHash: hash})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	var users []models.User
	err = s.store.Update(ctx, s.keys.For(storage.KeyUsers), &users, func() error {
		users = append(users, user)
		return nil
	})
	if err != nil {
		s.dropCredential(ctx, user.ID)
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	zap.S().Infof("User %s signed up", user.ID)
	return s.issue(user)
}

func (s *UserService) dropCredential(ctx context.Context, userID string) {
	var creds []models.Credential
	err := s.store.Update(ctx, s.keys.For(storage.KeyCredentials), &creds, func() error {
		kept := creds[:0]
		for _, c := range creds {
			if c.UserID != userID {
				kept = append(kept, c)
			}
		}
		creds = kept
		return nil
	})
	if err != nil {
		zap.S().Errorf("Failed to roll back credentials for %s: %v", userID, err)
	}
}

// SignIn checks the password and returns a fresh token.
func (s *UserService) SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	var creds []models.Credential
	if err := s.store.Load(ctx, s.keys.For(storage.KeyCredentials), &creds); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var cred *models.Credential
	for i := range creds {
		if creds[i].Email == email {
			cred = &creds[i]
			break
		}
	}
	if cred == nil || !auth.CheckPassword(cred.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	user, err := s.Get(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	return s.issue(*user)
}

func (s *UserService) issue(user models.User) (*models.AuthResponse, error) {
	// Admin rights follow the allow-list, not what was stored at sign-up.
	user.IsAdmin = s.config.IsAdmin(user.Email)
	role := auth.RoleCustomer
	if user.IsAdmin {
		role = auth.RoleAdmin
	}

	token, err := auth.GenerateToken(user.ID, role, user.Email, s.config.JWT.Expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			u := users[i]
			u.IsAdmin = s.config.IsAdmin(u.Email)
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
}

// UpdateProfile changes the fields present in req. Email is the login key
// and cannot be changed.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	var (
		users   []models.User
		updated models.User
	)
	err := s.store.Update(ctx, s.keys.For(storage.KeyUsers), &users, func() error {
		for i := range users {
			if users[i].ID != id {
				continue
			}
			if req.Name != nil {
				users[i].Name = strings.TrimSpace(*req.Name)
			}
			if req.Phone != nil {
				users[i].Phone = strings.TrimSpace(*req.Phone)
			}
			if req.Pincode != nil {
				users[i].Pincode = strings.TrimSpace(*req.Pincode)
			}
			updated = users[i]
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	})
	if err != nil {
		return nil, err
	}
	updated.IsAdmin = s.config.IsAdmin(updated.Email)
	return &updated, nil
}

func (s *UserService) load(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.store.Load(ctx, s.keys.For(storage.KeyUsers), &users)
	switch {
	case err == nil:
		return users, nil
	case errors.Is(err, storage.ErrNotFound):
		return []models.User{}, nil
	default:
		zap.S().Errorf("Error reading users: %v", err)
		return []models.User{}, nil
	}
}
