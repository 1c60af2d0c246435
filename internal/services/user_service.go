package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/isdelr/acquisitions-api/internal/auth"
	"github.com/isdelr/acquisitions-api/internal/common"
	"github.com/isdelr/acquisitions-api/internal/models"
	"gorm.io/gorm"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, in NewUser) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	UpdateUser(ctx context.Context, id int64, upd UserUpdate) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	DeleteAllUsers(ctx context.Context) (int64, error)
}

// NewUser is the input to CreateUser. Password is plaintext.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// UserUpdate carries the fields to change; nil means untouched.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *models.Role
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil && u.Role == nil
}

// UserService provides business logic for user management.
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService.
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser hashes the password and inserts the record. The email must not
// be taken; a duplicate leaves the table untouched.
func (s *UserService) CreateUser(ctx context.Context, in NewUser) (models.User, error) {
	email := normalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.User{}, fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, email, 0); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user with email %s: %w", email, common.ErrConflict)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// AuthenticateUser verifies a user's credentials. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, common.ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup user by email: %w", err)
	}

	ok, err := auth.ComparePassword(user.PasswordHash, password)
	if err != nil {
		return models.User{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return models.User{}, common.ErrInvalidCredentials
	}
	return user, nil
}

// ListUsers returns every user ordered by id.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("user %d: %w", id, common.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

// UpdateUser applies upd to the user. A new password is hashed before it is
// stored and a new email must not belong to another user.
func (s *UserService) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (models.User, error) {
	if upd.Empty() {
		return models.User{}, fmt.Errorf("%w: no fields to update", common.ErrValidation)
	}

	changes := map[string]interface{}{}
	if upd.Name != nil {
		changes["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return models.User{}, fmt.Errorf("%w: unknown role %q", common.ErrValidation, *upd.Role)
		}
		changes["role"] = *upd.Role
	}
	if upd.Password != nil {
		hash, err := hashPassword(*upd.Password)
		if err != nil {
			return models.User{}, err
		}
		changes["password"] = hash
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d: %w", id, common.ErrNotFound)
			}
			return fmt.Errorf("get user %d: %w", id, err)
		}

		if upd.Email != nil {
			email := normalizeEmail(*upd.Email)
			if email != user.Email {
				if err := ensureEmailFree(tx, email, id); err != nil {
					return err
				}
			}
			changes["email"] = email
		}

		if err := tx.Model(&user).Updates(changes).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("update user %d: %w", id, common.ErrConflict)
			}
			return fmt.Errorf("update user %d: %w", id, err)
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// DeleteUser removes a user. Deleting a missing id is NotFound every time.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteAllUsers wipes the users table and reports how many rows went.
func (s *UserService) DeleteAllUsers(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete all users: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func ensureEmailFree(tx *gorm.DB, email string, exceptID int64) error {
	var count int64
	q := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("user with email %s: %w", email, common.ErrConflict)
	}
	return nil
}

// isUniqueViolation catches the race where two inserts pass the pre-check.
// The SQLite driver's errors are not translated by GORM, hence the text match.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashPassword reports input bcrypt cannot take as a validation error, not an
// internal one.
func hashPassword(plain string) (string, error) {
	hash, err := auth.HashPassword(plain)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password exceeds %d bytes", common.ErrValidation, auth.MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}
