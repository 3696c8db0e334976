package auth

import (
	"sync"
	"time"
)

// mockRepository mirrors the keyed-update semantics of the SQL store: writes
// that match no row succeed silently, touching nothing.
type mockRepository struct {
	users map[string]*User
	mu    sync.RWMutex
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*User),
	}
}

func (r *mockRepository) CreateUser(user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrUserExists
		}
	}

	stored := *user
	stored.ID = uint(len(r.users) + 1)
	r.users[user.Username] = &stored
	return nil
}

func (r *mockRepository) GetUserByUsername(username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (r *mockRepository) GetUserByEmail(email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(u *User) bool { return u.Email == email })
}

func (r *mockRepository) GetUserByVerificationToken(token string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(u *User) bool { return u.VerificationToken == token })
}

func (r *mockRepository) GetUserByTempToken(tempToken string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(u *User) bool { return u.TempToken != nil && *u.TempToken == tempToken })
}

func (r *mockRepository) findLocked(match func(*User) bool) (*User, error) {
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *mockRepository) MarkVerified(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, err := r.findLocked(func(u *User) bool { return u.VerificationToken == token }); err == nil {
		u.Verified = true
		u.VerificationAttempts++
	}
	return nil
}

func (r *mockRepository) IncrementVerificationAttempts(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, err := r.findLocked(func(u *User) bool { return u.VerificationToken == token }); err == nil {
		u.VerificationAttempts++
	}
	return nil
}

func (r *mockRepository) SetLoginChallenge(username, code string, codeExpiry time.Time, tempToken string, tokenExpiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, exists := r.users[username]; exists {
		u.TwoFACode = &code
		u.TwoFAExpiry = &codeExpiry
		u.TempToken = &tempToken
		u.TempTokenExpiry = &tokenExpiry
	}
	return nil
}

func (r *mockRepository) ClearLoginChallenge(tempToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, err := r.findLocked(func(u *User) bool { return u.TempToken != nil && *u.TempToken == tempToken }); err == nil {
		u.TempToken = nil
		u.TempTokenExpiry = nil
	}
	return nil
}

func (r *mockRepository) SetActivationChallenge(username, code, tempToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, exists := r.users[username]; exists {
		u.TempTwoFACode = &code
		u.TempToken = &tempToken
	}
	return nil
}

func (r *mockRepository) EnableTwoFA(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, exists := r.users[username]; exists {
		u.HasTwoFA = true
		u.TempTwoFACode = nil
		u.TempToken = nil
	}
	return nil
}

func (r *mockRepository) DisableTwoFA(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, exists := r.users[username]; exists {
		u.HasTwoFA = false
		u.TwoFACode = nil
		u.TwoFAExpiry = nil
		u.TempTwoFACode = nil
		u.TempToken = nil
	}
	return nil
}

func (r *mockRepository) SetResetToken(email, token string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, err := r.findLocked(func(u *User) bool { return u.Email == email }); err == nil {
		u.ResetPasswordToken = &token
		u.ResetTokenExpiry = &expiry
	}
	return nil
}

func (r *mockRepository) UpdatePassword(email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, err := r.findLocked(func(u *User) bool { return u.Email == email }); err == nil {
		u.PasswordHash = passwordHash
		u.ResetPasswordToken = nil
		u.ResetTokenExpiry = nil
	}
	return nil
}
