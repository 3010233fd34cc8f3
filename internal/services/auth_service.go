package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/hive/internal/auth"
	"github.com/yukikurage/hive/internal/constants"
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/notify"
	"github.com/yukikurage/hive/internal/otp"
	"github.com/yukikurage/hive/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmailTaken           = errors.New("a member with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPasswordTooShort     = fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, constants.MinPasswordLength)
	ErrInvalidRole          = fmt.Errorf("%w: unknown role", ErrInvalidInput)
	ErrMemberNotFound       = errors.New("member not found")
	ErrInvalidOTP           = errors.New("invalid or expired OTP")
	ErrRoleMismatch         = errors.New("account does not have the requested role")
	ErrInvalidPIN           = errors.New("invalid PIN")
	ErrSignupDisabled       = errors.New("signup is disabled for this role")
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrOTPDelivery          = errors.New("failed to deliver OTP")
)

// AuthService handles accounts: OTP email verification, signup, login and
// password reset.
type AuthService struct {
	members    repository.MemberRepository
	verifier   *otp.Verifier
	notifier   *notify.Notifier
	tokens     *auth.TokenManager
	signupPINs map[models.Role]string
}

// NewAuthService creates a new AuthService. signupPINs holds the PIN a Head
// or Admin must present to sign up; a missing or empty entry disables signup
// for that role.
func NewAuthService(
	members repository.MemberRepository,
	verifier *otp.Verifier,
	notifier *notify.Notifier,
	tokens *auth.TokenManager,
	signupPINs map[models.Role]string,
) *AuthService {
	return &AuthService{
		members:    members,
		verifier:   verifier,
		notifier:   notifier,
		tokens:     tokens,
		signupPINs: signupPINs,
	}
}

// SendOTP issues a code for email and mails it. When requireExisting is set
// the email must belong to a member (password reset); otherwise it must not
// (signup).
func (s *AuthService) SendOTP(ctx context.Context, email string, requireExisting bool) error {
	email = otp.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	exists, err := s.emailExists(ctx, email)
	if err != nil {
		return err
	}
	if requireExisting && !exists {
		return ErrMemberNotFound
	}
	if !requireExisting && exists {
		return ErrEmailTaken
	}

	code, err := s.verifier.Issue(ctx, email)
	if err != nil {
		return err
	}

	if err := s.notifier.Send(ctx, notify.OTPMessage(email, code, constants.OTPTTL)); err != nil {
		return fmt.Errorf("%w: %w", ErrOTPDelivery, err)
	}
	return nil
}

// VerifyOTP consumes the code for email and leaves a verified marker that a
// later signup or password reset can use instead of the code.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	email = otp.NormalizeEmail(email)
	if err := s.verifier.Verify(ctx, email, code); err != nil {
		return mapOTPError(err)
	}
	return s.verifier.MarkVerified(ctx, email)
}

// SignupInput represents the required information to create a new member.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	PIN      string
	OTP      string
}

// Signup creates a member after the email was proven with an OTP and returns
// it with a fresh token.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.Member, string, error) {
	member, err := s.newMember(input.Name, input.Email, input.Password, input.Role, input.PIN)
	if err != nil {
		return nil, "", err
	}

	if member.Role.CanTakeQueries() {
		expected := s.signupPINs[member.Role]
		if expected == "" {
			return nil, "", ErrSignupDisabled
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(input.PIN)) != 1 {
			return nil, "", ErrInvalidPIN
		}
	}

	exists, err := s.emailExists(ctx, member.Email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", ErrEmailTaken
	}

	if err := s.verifier.Check(ctx, member.Email, input.OTP); err != nil {
		return nil, "", mapOTPError(err)
	}

	if err := s.members.Create(ctx, member); err != nil {
		return nil, "", fmt.Errorf("failed to create member: %w", err)
	}

	token, err := s.tokens.Issue(member)
	if err != nil {
		return nil, "", err
	}
	return member, token, nil
}

// CreateMemberInput describes an account created by an operator.
type CreateMemberInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	PIN      string
}

// CreateMember creates an account without OTP or signup PIN checks. Head and
// Admin accounts still need a personal PIN to log in with.
func (s *AuthService) CreateMember(ctx context.Context, input CreateMemberInput) (*models.Member, error) {
	member, err := s.newMember(input.Name, input.Email, input.Password, input.Role, input.PIN)
	if err != nil {
		return nil, err
	}
	if member.Role.CanTakeQueries() && input.PIN == "" {
		return nil, fmt.Errorf("%w: pin is required for %s accounts", ErrInvalidInput, member.Role)
	}

	exists, err := s.emailExists(ctx, member.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	if err := s.members.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	return member, nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
	Role     models.Role
	PIN      string
}

// Login verifies credentials and returns the member with a fresh token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.Member, string, error) {
	member, err := s.members.FindByEmail(ctx, otp.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find member: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(input.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if input.Role != "" && input.Role != member.Role {
		return nil, "", ErrRoleMismatch
	}

	if member.Role.CanTakeQueries() {
		if member.PinHash == "" || input.PIN == "" {
			return nil, "", ErrInvalidPIN
		}
		if err := bcrypt.CompareHashAndPassword([]byte(member.PinHash), []byte(input.PIN)); err != nil {
			return nil, "", ErrInvalidPIN
		}
	}

	token, err := s.tokens.Issue(member)
	if err != nil {
		return nil, "", err
	}
	return member, token, nil
}

// ResetPassword replaces the password of the member owning email once the
// OTP (or a verified marker) checks out.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < constants.MinPasswordLength {
		return ErrPasswordTooShort
	}

	member, err := s.members.FindByEmail(ctx, otp.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to find member: %w", err)
	}

	if err := s.verifier.Check(ctx, member.Email, code); err != nil {
		return mapOTPError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrFailedToHashPassword
	}

	if err := s.members.UpdatePassword(ctx, member.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// GetMember retrieves a member by ID.
func (s *AuthService) GetMember(ctx context.Context, id uint64) (*models.Member, error) {
	member, err := s.members.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

func (s *AuthService) newMember(name, email, password string, role models.Role, pin string) (*models.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email = otp.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if len(password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	member := &models.Member{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}

	if role.CanTakeQueries() && pin != "" {
		pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, ErrFailedToHashPassword
		}
		member.PinHash = string(pinHash)
	}

	return member, nil
}

func (s *AuthService) emailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.members.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check email: %w", err)
}

func mapOTPError(err error) error {
	if errors.Is(err, otp.ErrNotFound) || errors.Is(err, otp.ErrExpired) || errors.Is(err, otp.ErrInvalid) {
		return ErrInvalidOTP
	}
	return err
}
