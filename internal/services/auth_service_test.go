package services

import (
	"github.com/yukikurage/hive/internal/models"
	"github.com/yukikurage/hive/internal/otp"
	"github.com/yukikurage/hive/internal/testutil"
)

func (s *serviceSuite) signupUser(name, email string) *models.Member {
	s.Require().NoError(s.auth.SendOTP(s.ctx, email, false))
	code := s.mailer.LastCode(otp.NormalizeEmail(email))
	s.Require().Len(code, 6)

	member, token, err := s.auth.Signup(s.ctx, SignupInput{
		Name:     name,
		Email:    email,
		Password: "secret1",
		OTP:      code,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(token)
	return member
}

func (s *serviceSuite) TestSignup_WithInlineOTP() {
	member := s.signupUser("Ann", "Ann@Example.com ")

	s.Equal("ann@example.com", member.Email)
	s.Equal(models.RoleUser, member.Role)
	s.Empty(member.PinHash)

	_, token, err := s.auth.Login(s.ctx, LoginInput{Email: "ann@example.com", Password: "secret1"})
	s.Require().NoError(err)
	claims, err := s.tokens.Parse(token)
	s.Require().NoError(err)
	s.Equal(models.RoleUser, claims.Role)
}

func (s *serviceSuite) TestSignup_AfterVerifyOTP() {
	s.Require().NoError(s.auth.SendOTP(s.ctx, "bo@example.com", false))
	code := s.mailer.LastCode("bo@example.com")
	s.Require().NoError(s.auth.VerifyOTP(s.ctx, "bo@example.com", code))

	// The code is spent, but the verified marker carries the signup.
	_, _, err := s.auth.Signup(s.ctx, SignupInput{
		Name:     "Bo",
		Email:    "bo@example.com",
		Password: "secret1",
		OTP:      code,
	})
	s.Require().NoError(err)

	// No code and no marker.
	_, _, err = s.auth.Signup(s.ctx, SignupInput{
		Name:     "Bo2",
		Email:    "bo2@example.com",
		Password: "secret1",
	})
	s.ErrorIs(err, ErrInvalidOTP)
}

func (s *serviceSuite) TestSignup_Rejections() {
	s.signupUser("Ann", "ann@example.com")

	_, _, err := s.auth.Signup(s.ctx, SignupInput{Name: "Ann", Email: "ann@example.com", Password: "secret1", OTP: "123456"})
	s.ErrorIs(err, ErrEmailTaken)

	_, _, err = s.auth.Signup(s.ctx, SignupInput{Name: "Cy", Email: "cy@example.com", Password: "123"})
	s.ErrorIs(err, ErrPasswordTooShort)
	s.ErrorIs(err, ErrInvalidInput)

	_, _, err = s.auth.Signup(s.ctx, SignupInput{Name: "Cy", Email: "cy@example.com", Password: "secret1", OTP: "000000"})
	s.ErrorIs(err, ErrInvalidOTP)

	_, _, err = s.auth.Signup(s.ctx, SignupInput{Name: "Cy", Email: "cy@example.com", Password: "secret1", Role: "Owner"})
	s.ErrorIs(err, ErrInvalidRole)

	_, _, err = s.auth.Signup(s.ctx, SignupInput{Name: "Cy", Email: "cy@example.com", Password: "secret1", Role: models.RoleHead, PIN: "wrong"})
	s.ErrorIs(err, ErrInvalidPIN)

	_, _, err = s.auth.Signup(s.ctx, SignupInput{Name: "Cy", Email: "cy@example.com", Password: "secret1", Role: models.RoleAdmin, PIN: "anything"})
	s.ErrorIs(err, ErrSignupDisabled)
}

func (s *serviceSuite) TestSignup_HeadWithPIN() {
	s.Require().NoError(s.auth.SendOTP(s.ctx, "hd@example.com", false))

	member, _, err := s.auth.Signup(s.ctx, SignupInput{
		Name:     "Hd",
		Email:    "hd@example.com",
		Password: "secret1",
		Role:     models.RoleHead,
		PIN:      "head-pin",
		OTP:      s.mailer.LastCode("hd@example.com"),
	})
	s.Require().NoError(err)
	s.NotEmpty(member.PinHash)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "hd@example.com", Password: "secret1", PIN: "head-pin"})
	s.NoError(err)
}

func (s *serviceSuite) TestSendOTP_ExistenceRules() {
	testutil.CreateMember(s.T(), s.db, "Ann", "ann@example.com", models.RoleUser)

	s.ErrorIs(s.auth.SendOTP(s.ctx, "ann@example.com", false), ErrEmailTaken)
	s.ErrorIs(s.auth.SendOTP(s.ctx, "nobody@example.com", true), ErrMemberNotFound)
	s.NoError(s.auth.SendOTP(s.ctx, "ann@example.com", true))
	s.Len(s.mailer.Sent(), 1)
}

func (s *serviceSuite) TestSendOTP_DeliveryFailureIsReported() {
	s.mailer.Fail = true
	s.ErrorIs(s.auth.SendOTP(s.ctx, "new@example.com", false), ErrOTPDelivery)
}

func (s *serviceSuite) TestLogin() {
	testutil.CreateMember(s.T(), s.db, "Ann", "ann@example.com", models.RoleUser)
	testutil.CreateMember(s.T(), s.db, "Ada", "ada@example.com", models.RoleAdmin)

	member, token, err := s.auth.Login(s.ctx, LoginInput{Email: "ANN@example.com", Password: "password123"})
	s.Require().NoError(err)
	s.Equal("Ann", member.Name)
	s.NotEmpty(token)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "ann@example.com", Password: "wrong"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "nobody@example.com", Password: "password123"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "ann@example.com", Password: "password123", Role: models.RoleAdmin})
	s.ErrorIs(err, ErrRoleMismatch)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "ada@example.com", Password: "password123", PIN: "0000"})
	s.ErrorIs(err, ErrInvalidPIN)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "ada@example.com", Password: "password123"})
	s.ErrorIs(err, ErrInvalidPIN)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "ada@example.com", Password: "password123", Role: models.RoleAdmin, PIN: "4242"})
	s.NoError(err)
}

func (s *serviceSuite) TestResetPassword() {
	testutil.CreateMember(s.T(), s.db, "Ann", "ann@example.com", models.RoleUser)

	s.ErrorIs(s.auth.ResetPassword(s.ctx, "ann@example.com", "", "newsecret"), ErrInvalidOTP)
	s.ErrorIs(s.auth.ResetPassword(s.ctx, "nobody@example.com", "123456", "newsecret"), ErrMemberNotFound)
	s.ErrorIs(s.auth.ResetPassword(s.ctx, "ann@example.com", "123456", "123"), ErrPasswordTooShort)

	s.Require().NoError(s.auth.SendOTP(s.ctx, "ann@example.com", true))
	code := s.mailer.LastCode("ann@example.com")
	s.Require().NoError(s.auth.ResetPassword(s.ctx, "ann@example.com", code, "newsecret"))

	_, _, err := s.auth.Login(s.ctx, LoginInput{Email: "ann@example.com", Password: "newsecret"})
	s.NoError(err)
	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "ann@example.com", Password: "password123"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *serviceSuite) TestVerifyOTP_WrongCode() {
	s.Require().NoError(s.auth.SendOTP(s.ctx, "new@example.com", false))
	s.ErrorIs(s.auth.VerifyOTP(s.ctx, "new@example.com", "000000"), ErrInvalidOTP)
	s.NoError(s.auth.VerifyOTP(s.ctx, "new@example.com", s.mailer.LastCode("new@example.com")))
	s.ErrorIs(s.auth.VerifyOTP(s.ctx, "new@example.com", s.mailer.LastCode("new@example.com")), ErrInvalidOTP)
}

func (s *serviceSuite) TestCreateMember() {
	member, err := s.auth.CreateMember(s.ctx, CreateMemberInput{
		Name:     "Root",
		Email:    "root@example.com",
		Password: "rootpass",
		Role:     models.RoleAdmin,
		PIN:      "9999",
	})
	s.Require().NoError(err)
	s.Equal(models.RoleAdmin, member.Role)

	_, err = s.auth.CreateMember(s.ctx, CreateMemberInput{Name: "X", Email: "x@example.com", Password: "rootpass", Role: models.RoleHead})
	s.ErrorIs(err, ErrInvalidInput)

	_, err = s.auth.CreateMember(s.ctx, CreateMemberInput{Name: "Root", Email: "root@example.com", Password: "rootpass"})
	s.ErrorIs(err, ErrEmailTaken)

	_, _, err = s.auth.Login(s.ctx, LoginInput{Email: "root@example.com", Password: "rootpass", PIN: "9999"})
	s.NoError(err)
}
