// Package auth содержит сценарии аутентификации и самообслуживания пользователя:
// регистрацию, вход, сброс и смену пароля, изменение профиля.
//
// Каждый сценарий прерывается на первой ошибке и возвращает *apperr.Error.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storefront/internal/cache"
	"github.com/magabrotheeeer/storefront/internal/events"
	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/lib/sl"
	"github.com/magabrotheeeer/storefront/internal/mail"
	"github.com/magabrotheeeer/storefront/internal/media"
	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

// Сообщения, которые видит клиент.
const (
	MsgLoginMissing         = "Please Enter Email And Password"
	MsgInvalidCredentials   = "Invalid Email or Password"
	MsgSomethingWentWrong   = "Something went wrong. Please try again later."
	MsgAvatarUploadFailed   = "Failed to upload avatar"
	MsgEmailRegistered      = "Email already registered"
	MsgInvalidEmail         = "Please Enter a valid Email"
	MsgInvalidGender        = "Gender must be one of: male, female, other"
	MsgUserNotFound         = "User Not Found"
	MsgInvalidResetToken    = "Invalid reset password token"
	MsgPasswordRequired     = "Please Enter Your Password"
	MsgOldPasswordInvalid   = "Old Password is Invalid"
	MsgPasswordFieldsNeeded = "Please Enter Old And New Password"
	MsgPasswordTooLong      = "Password must not exceed 72 bytes"
)

// Названия сценариев для метрик.
const (
	FlowRegister       = "register"
	FlowLogin          = "login"
	FlowForgotPassword = "forgot_password"
	FlowResetPassword  = "reset_password"
	FlowUpdatePassword = "update_password"
	FlowUpdateProfile  = "update_profile"
)

// UserRepository операции хранилища, нужные сценариям аутентификации.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserWithPassword(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SetResetToken(ctx context.Context, id string, hash *string, expire *time.Time) error
	UpdateProfile(ctx context.Context, id string, name, email *string, avatar *models.Avatar) error
}

// Hasher хэширует и проверяет пароли.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// SessionIssuer выпускает токены сессии.
type SessionIssuer interface {
	GenerateToken(userID, role string) (string, error)
	TTL() time.Duration
}

// ResetIssuer выпускает токены сброса пароля.
type ResetIssuer interface {
	Issue() (raw, hash string, expire time.Time, err error)
}

// Cache кеш профилей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// FlowRecorder учитывает результат сценария.
type FlowRecorder interface {
	Flow(flow string, err error)
}

// Deps внешние зависимости сервиса.
type Deps struct {
	Hasher   Hasher
	Sessions SessionIssuer
	Resets   ResetIssuer
	Digest   func(raw string) string
	Media    media.Host
	Mailer   mail.Mailer
	Events   events.Publisher
	Cache    Cache
	CacheTTL time.Duration
	Metrics  FlowRecorder

	// ResetTemplateID шаблон письма со ссылкой сброса.
	ResetTemplateID string
	// ResetBaseURL заменяет https://<host> в ссылке сброса, если задан.
	ResetBaseURL string
}

// Service сценарии аутентификации.
type Service struct {
	log      *slog.Logger
	users    UserRepository
	deps     Deps
	validate *validator.Validate
	now      func() time.Time
}

// New создаёт сервис. Необязательные зависимости (кеш, события, метрики) можно не задавать.
func New(log *slog.Logger, users UserRepository, deps Deps) *Service {
	if deps.Cache == nil {
		deps.Cache = cache.Noop{}
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Service{
		log:      log,
		users:    users,
		deps:     deps,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithClock подменяет источник времени, используется в тестах.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RegisterInput поля формы регистрации. Avatar, data URI изображения.
type RegisterInput struct {
	Name     string
	Email    string
	Gender   string
	Password string
	Avatar   string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) record(flow string, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Flow(flow, err)
	}
}

func (s *Service) issueSession(user *models.User) (*models.Session, error) {
	token, err := s.deps.Sessions.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, err)
	}
	return &models.Session{
		Token:     token,
		ExpiresAt: s.now().Add(s.deps.Sessions.TTL()),
		User:      user.Public(),
	}, nil
}

func (s *Service) invalidate(ctx context.Context, log *slog.Logger, id string) {
	if err := s.deps.Cache.Invalidate(ctx, cache.UserKey(id)); err != nil {
		log.Warn("failed to invalidate cache", sl.Err(err))
	}
}

func event(u *models.User) events.UserEvent {
	return events.UserEvent{UserID: u.ID, Name: u.Name, Email: u.Email}
}

// passwordError переводит ошибку установки пароля в ошибку для клиента.
func passwordError(err error) error {
	switch {
	case errors.Is(err, models.ErrPasswordTooLong):
		return apperr.NewValidation(MsgPasswordTooLong)
	case errors.Is(err, models.ErrEmptyPassword):
		return apperr.NewValidation(MsgPasswordRequired)
	}
	return apperr.NewUnexpected(MsgSomethingWentWrong, err)
}

func (s *Service) validateEmail(email string) error {
	if err := s.validate.Var(email, "email"); err != nil {
		return apperr.NewValidation(MsgInvalidEmail)
	}
	return nil
}

// Register создаёт пользователя и выдаёт сессию.
func (s *Service) Register(ctx context.Context, in RegisterInput) (session *models.Session, err error) {
	const op = "auth.Register"
	defer func() { s.record(FlowRegister, err) }()
	log := s.log.With(sl.Op(op))

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", in.Name}, {"email", in.Email}, {"gender", in.Gender},
		{"password", in.Password}, {"avatar", in.Avatar},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidation("Missing fields: " + strings.Join(missing, ", "))
	}

	email := normalizeEmail(in.Email)
	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	gender := models.Gender(in.Gender)
	if !gender.Valid() {
		return nil, apperr.NewValidation(MsgInvalidGender)
	}
	if err := models.ValidatePassword(in.Password); err != nil {
		return nil, passwordError(err)
	}

	img, err := s.deps.Media.Upload(ctx, in.Avatar, media.AvatarOptions())
	if err != nil {
		log.Error("avatar upload failed", sl.Err(err))
		return nil, apperr.NewUpstream(MsgAvatarUploadFailed, err)
	}

	user := &models.User{
		Name:   strings.TrimSpace(in.Name),
		Email:  email,
		Gender: gender,
		Role:   models.RoleUser,
		Avatar: models.Avatar{PublicID: img.PublicID, URL: img.SecureURL},
	}
	if err := user.SetPassword(s.deps.Hasher, in.Password); err != nil {
		return nil, passwordError(err)
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrEmailExists) {
			return nil, apperr.New(apperr.Validation, MsgEmailRegistered, err)
		}
		log.Error("failed to create user", sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}

	session, err = s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.deps.Events.UserRegistered(ctx, event(user))
	log.Info("user registered", slog.String("user_id", user.ID))
	return session, nil
}

// Login проверяет email и пароль. Неизвестный email и неверный пароль неразличимы.
func (s *Service) Login(ctx context.Context, email, password string) (session *models.Session, err error) {
	const op = "auth.Login"
	defer func() { s.record(FlowLogin, err) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.NewValidation(MsgLoginMissing)
	}

	user, err := s.users.GetUserByEmailWithPassword(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.NewAuthentication(MsgInvalidCredentials, apperr.ErrInvalidCredentials)
		}
		s.log.Error("failed to get user", sl.Op(op), sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	if !s.deps.Hasher.Verify(password, user.PasswordHash) {
		return nil, apperr.NewAuthentication(MsgInvalidCredentials, apperr.ErrInvalidCredentials)
	}
	return s.issueSession(user)
}

// GetUserDetails возвращает собственный профиль пользователя, сначала из кеша.
func (s *Service) GetUserDetails(ctx context.Context, id models.Identity) (*models.User, error) {
	const op = "auth.GetUserDetails"
	log := s.log.With(sl.Op(op), slog.String("user_id", id.UserID))

	var cached models.User
	found, err := s.deps.Cache.Get(ctx, cache.UserKey(id.UserID), &cached)
	if err != nil {
		log.Warn("cache read failed", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.users.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.NewNotFound(MsgUserNotFound, err)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	user = user.Public()
	if err := s.deps.Cache.Set(ctx, cache.UserKey(user.ID), user, s.deps.CacheTTL); err != nil {
		log.Warn("cache write failed", sl.Err(err))
	}
	return user, nil
}

// ResetURL строит ссылку сброса для письма.
func (s *Service) ResetURL(host, raw string) string {
	base := "https://" + host
	if s.deps.ResetBaseURL != "" {
		base = strings.TrimRight(s.deps.ResetBaseURL, "/")
	}
	return base + "/password/reset/" + raw
}

// ForgotPassword выпускает токен сброса и отправляет ссылку на почту.
// При ошибке доставки токен сразу очищается. Email ищется как есть.
func (s *Service) ForgotPassword(ctx context.Context, email, host string) (message string, err error) {
	const op = "auth.ForgotPassword"
	defer func() { s.record(FlowForgotPassword, err) }()
	log := s.log.With(sl.Op(op))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", apperr.NewNotFound(MsgUserNotFound, err)
		}
		log.Error("failed to get user", sl.Err(err))
		return "", apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}

	raw, hash, expire, err := s.deps.Resets.Issue()
	if err != nil {
		return "", apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	if err := s.users.SetResetToken(ctx, user.ID, &hash, &expire); err != nil {
		log.Error("failed to store reset token", sl.Err(err))
		return "", apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}

	err = s.deps.Mailer.Send(ctx, mail.Message{
		To:         user.Email,
		TemplateID: s.deps.ResetTemplateID,
		Data:       map[string]string{"reset_url": s.ResetURL(host, raw), "name": user.Name},
	})
	if err != nil {
		log.Error("reset email delivery failed", slog.String("user_id", user.ID), sl.Err(err))
		if clearErr := s.users.SetResetToken(ctx, user.ID, nil, nil); clearErr != nil {
			log.Error("failed to clear reset token", slog.String("user_id", user.ID), sl.Err(clearErr))
		}
		return "", apperr.NewUpstream(err.Error(), err)
	}

	return fmt.Sprintf("Email sent to %s successfully", user.Email), nil
}

// ResetPassword меняет пароль по токену сброса. Токен одноразовый;
// неизвестный и истёкший токены неразличимы.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) (session *models.Session, err error) {
	const op = "auth.ResetPassword"
	defer func() { s.record(FlowResetPassword, err) }()
	log := s.log.With(sl.Op(op))

	if err := models.ValidatePassword(newPassword); err != nil {
		return nil, passwordError(err)
	}

	user, err := s.users.GetUserByResetToken(ctx, s.deps.Digest(rawToken), s.now())
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.NewAuthentication(MsgInvalidResetToken, apperr.ErrInvalidResetToken)
		}
		log.Error("failed to find reset token", sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	if err := user.SetPassword(s.deps.Hasher, newPassword); err != nil {
		return nil, passwordError(err)
	}
	user.ClearResetToken()
	if err := s.users.SaveUser(ctx, user); err != nil {
		log.Error("failed to save user", sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	s.invalidate(ctx, log, user.ID)

	session, err = s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.deps.Events.PasswordChanged(ctx, event(user))
	return session, nil
}

// UpdatePassword меняет пароль после проверки старого.
func (s *Service) UpdatePassword(ctx context.Context, id models.Identity, oldPassword, newPassword string) (session *models.Session, err error) {
	const op = "auth.UpdatePassword"
	defer func() { s.record(FlowUpdatePassword, err) }()
	log := s.log.With(sl.Op(op), slog.String("user_id", id.UserID))

	if oldPassword == "" || newPassword == "" {
		return nil, apperr.NewValidation(MsgPasswordFieldsNeeded)
	}
	if len(newPassword) > models.MaxPasswordBytes {
		return nil, passwordError(models.ErrPasswordTooLong)
	}

	user, err := s.users.GetUserWithPassword(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apperr.NewNotFound(MsgUserNotFound, err)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	if !s.deps.Hasher.Verify(oldPassword, user.PasswordHash) {
		return nil, apperr.NewValidation(MsgOldPasswordInvalid)
	}

	if err := user.SetPassword(s.deps.Hasher, newPassword); err != nil {
		return nil, passwordError(err)
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		log.Error("failed to save user", sl.Err(err))
		return nil, apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	s.invalidate(ctx, log, user.ID)

	session, err = s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.deps.Events.PasswordChanged(ctx, event(user))
	return session, nil
}

// UpdateProfile меняет имя, email и, если передан, аватар. Пароль не затрагивается.
func (s *Service) UpdateProfile(ctx context.Context, id models.Identity, upd models.ProfileUpdate) (err error) {
	const op = "auth.UpdateProfile"
	defer func() { s.record(FlowUpdateProfile, err) }()
	log := s.log.With(sl.Op(op), slog.String("user_id", id.UserID))

	var name, email *string
	if upd.Name != nil && strings.TrimSpace(*upd.Name) != "" {
		n := strings.TrimSpace(*upd.Name)
		name = &n
	}
	if upd.Email != nil && strings.TrimSpace(*upd.Email) != "" {
		e := normalizeEmail(*upd.Email)
		if err := s.validateEmail(e); err != nil {
			return err
		}
		email = &e
	}

	var avatar *models.Avatar
	if upd.Avatar != nil && *upd.Avatar != "" {
		current, err := s.users.GetUser(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				return apperr.NewNotFound(MsgUserNotFound, err)
			}
			return apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
		}
		if err := s.deps.Media.Destroy(ctx, current.Avatar.PublicID); err != nil {
			log.Error("failed to destroy previous avatar", sl.Err(err))
			return apperr.NewUpstream(err.Error(), err)
		}
		img, err := s.deps.Media.Upload(ctx, *upd.Avatar, media.AvatarOptions())
		if err != nil {
			log.Error("avatar upload failed", sl.Err(err))
			return apperr.NewUpstream(MsgAvatarUploadFailed, err)
		}
		avatar = &models.Avatar{PublicID: img.PublicID, URL: img.SecureURL}
	}

	if err := s.users.UpdateProfile(ctx, id.UserID, name, email, avatar); err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailExists):
			return apperr.New(apperr.Validation, MsgEmailRegistered, err)
		case errors.Is(err, storage.ErrUserNotFound):
			return apperr.NewNotFound(MsgUserNotFound, err)
		}
		log.Error("failed to update profile", sl.Err(err))
		return apperr.NewUnexpected(MsgSomethingWentWrong, fmt.Errorf("%s: %w", op, err))
	}
	s.invalidate(ctx, log, id.UserID)
	return nil
}
