package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront/internal/cache"
	"github.com/magabrotheeeer/storefront/internal/config"
	"github.com/magabrotheeeer/storefront/internal/events"
	"github.com/magabrotheeeer/storefront/internal/lib/apperr"
	"github.com/magabrotheeeer/storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/storefront/internal/lib/password"
	"github.com/magabrotheeeer/storefront/internal/lib/resettoken"
	"github.com/magabrotheeeer/storefront/internal/mail"
	"github.com/magabrotheeeer/storefront/internal/media"
	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/services/auth"
	"github.com/magabrotheeeer/storefront/internal/storage/memory"
)

const avatarData = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type recordingPublisher struct {
	registered []events.UserEvent
	changed    []events.UserEvent
}

func (p *recordingPublisher) UserRegistered(_ context.Context, e events.UserEvent) {
	p.registered = append(p.registered, e)
}

func (p *recordingPublisher) PasswordChanged(_ context.Context, e events.UserEvent) {
	p.changed = append(p.changed, e)
}

type failingHost struct{}

func (failingHost) Upload(context.Context, string, media.UploadOptions) (media.Image, error) {
	return media.Image{}, errors.New("media host unavailable")
}

func (failingHost) Destroy(context.Context, string) error { return nil }

type fixture struct {
	svc       *auth.Service
	store     *memory.Storage
	mailer    *MailerMock
	publisher *recordingPublisher
	host      *media.MemoryHost
	resets    *resettoken.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		mailer:    &MailerMock{},
		publisher: &recordingPublisher{},
		host:      media.NewMemoryHost(),
		resets:    resettoken.NewIssuer(15 * time.Minute),
	}
	f.svc = auth.New(slog.New(slog.NewTextHandler(io.Discard, nil)), f.store, auth.Deps{
		Hasher:          password.NewHasher(),
		Sessions:        jwt.NewJWTMaker("test-secret", time.Hour),
		Resets:          f.resets,
		Digest:          resettoken.Digest,
		Media:           f.host,
		Mailer:          f.mailer,
		Events:          f.publisher,
		ResetTemplateID: "reset",
	})
	return f
}

func (f *fixture) register(t *testing.T, email, pass string) *models.Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Name: "Alice", Email: email, Gender: "female", Password: pass, Avatar: avatarData,
	})
	require.NoError(t, err)
	return s
}

// captureReset настраивает мок почты так, чтобы он запоминал сырой токен из ссылки.
func (f *fixture) captureReset(result error) *string {
	var raw string
	f.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mail.Message) bool {
		return m.TemplateID == "reset"
	})).Run(func(args mock.Arguments) {
		msg := args.Get(1).(mail.Message)
		raw = msg.Data["reset_url"][strings.LastIndex(msg.Data["reset_url"], "/")+1:]
	}).Return(result)
	return &raw
}

func assertKind(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err))
	msg, ok := apperr.MessageOf(err)
	require.True(t, ok)
	assert.Equal(t, message, msg)
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name    string
		input   auth.RegisterInput
		host    media.Host
		kind    apperr.Kind
		wantMsg string
	}{
		{
			name:    "all fields missing",
			input:   auth.RegisterInput{},
			kind:    apperr.Validation,
			wantMsg: "Missing fields: name, email, gender, password, avatar",
		},
		{
			name:    "password and avatar missing",
			input:   auth.RegisterInput{Name: "A", Email: "a@b.com", Gender: "male"},
			kind:    apperr.Validation,
			wantMsg: "Missing fields: password, avatar",
		},
		{
			name:    "invalid gender",
			input:   auth.RegisterInput{Name: "A", Email: "a@b.com", Gender: "robot", Password: "p", Avatar: avatarData},
			kind:    apperr.Validation,
			wantMsg: auth.MsgInvalidGender,
		},
		{
			name:    "invalid email",
			input:   auth.RegisterInput{Name: "A", Email: "not-an-email", Gender: "male", Password: "p", Avatar: avatarData},
			kind:    apperr.Validation,
			wantMsg: auth.MsgInvalidEmail,
		},
		{
			name:    "upload failure",
			input:   auth.RegisterInput{Name: "A", Email: "a@b.com", Gender: "male", Password: "p", Avatar: avatarData},
			host:    failingHost{},
			kind:    apperr.Upstream,
			wantMsg: auth.MsgAvatarUploadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			var host media.Host = media.NewMemoryHost()
			if tt.host != nil {
				host = tt.host
			}
			svc := auth.New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, auth.Deps{
				Hasher:   password.NewHasher(),
				Sessions: jwt.NewJWTMaker("k", time.Hour),
				Media:    host,
			})

			session, err := svc.Register(context.Background(), tt.input)
			assert.Nil(t, session)
			assertKind(t, err, tt.kind, tt.wantMsg)

			users, err := store.ListUsers(context.Background())
			require.NoError(t, err)
			assert.Empty(t, users)
		})
	}
}

func TestService_Register_NormalizesEmailAndHashesPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.register(t, "  A@B.com ", "p1")
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "a@b.com", session.User.Email)
	assert.Equal(t, models.RoleUser, session.User.Role)
	assert.Empty(t, session.User.PasswordHash)
	assert.Equal(t, 1, f.host.Len())

	stored, err := f.store.GetUserByEmailWithPassword(ctx, "a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, "p1", stored.PasswordHash)
	assert.True(t, password.NewHasher().Verify("p1", stored.PasswordHash))
	assert.True(t, strings.HasPrefix(stored.Avatar.PublicID, media.AvatarFolder+"/"))

	for _, email := range []string{"a@b.com", "A@B.COM"} {
		s, err := f.svc.Login(ctx, email, "p1")
		require.NoError(t, err, email)
		assert.Equal(t, stored.ID, s.User.ID)
	}

	require.Len(t, f.publisher.registered, 1)
	assert.Equal(t, "a@b.com", f.publisher.registered[0].Email)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "p1")

	_, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Name: "Other", Email: "A@b.com", Gender: "male", Password: "p2", Avatar: avatarData,
	})
	assertKind(t, err, apperr.Validation, auth.MsgEmailRegistered)
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)
	f.register(t, "user@example.com", "correct")

	tests := []struct {
		name     string
		email    string
		password string
		kind     apperr.Kind
		wantMsg  string
	}{
		{name: "missing email", password: "x", kind: apperr.Validation, wantMsg: auth.MsgLoginMissing},
		{name: "missing password", email: "user@example.com", kind: apperr.Validation, wantMsg: auth.MsgLoginMissing},
		{name: "wrong password", email: "user@example.com", password: "wrong", kind: apperr.Authentication, wantMsg: auth.MsgInvalidCredentials},
		{name: "unknown email", email: "nobody@example.com", password: "correct", kind: apperr.Authentication, wantMsg: auth.MsgInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := f.svc.Login(context.Background(), tt.email, tt.password)
			assert.Nil(t, session)
			assertKind(t, err, tt.kind, tt.wantMsg)
		})
	}

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, errWrong := f.svc.Login(context.Background(), "user@example.com", "wrong")
		_, errUnknown := f.svc.Login(context.Background(), "nobody@example.com", "correct")
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
		assert.ErrorIs(t, errWrong, apperr.ErrInvalidCredentials)
		assert.ErrorIs(t, errUnknown, apperr.ErrInvalidCredentials)
	})

	t.Run("session carries identity", func(t *testing.T) {
		session, err := f.svc.Login(context.Background(), "USER@example.com", "correct")
		require.NoError(t, err)
		claims, err := jwt.NewJWTMaker("test-secret", time.Hour).ParseToken(session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, claims.UserID)
		assert.Equal(t, "user", claims.Role)
	})
}

func TestService_ForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "p1")

	_, err := f.svc.ForgotPassword(context.Background(), "other@b.com", "shop.example")
	assertKind(t, err, apperr.NotFound, auth.MsgUserNotFound)

	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	users, err := f.store.ListUsers(context.Background())
	require.NoError(t, err)
	u, err := f.store.GetUserByEmail(context.Background(), users[0].Email)
	require.NoError(t, err)
	assert.Nil(t, u.ResetPasswordToken)
}

func TestService_ForgotPassword_EmailIsNotNormalized(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "p1")

	_, err := f.svc.ForgotPassword(context.Background(), "A@B.com", "shop.example")
	assertKind(t, err, apperr.NotFound, auth.MsgUserNotFound)
}

func TestService_ResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "old-pass")
	raw := f.captureReset(nil)

	msg, err := f.svc.ForgotPassword(ctx, "a@b.com", "shop.example")
	require.NoError(t, err)
	assert.Equal(t, "Email sent to a@b.com successfully", msg)
	require.Len(t, *raw, resettoken.TokenBytes*2)
	f.mailer.AssertCalled(t, "Send", mock.Anything, mock.MatchedBy(func(m mail.Message) bool {
		return m.To == "a@b.com" && m.Data["reset_url"] == "https://shop.example/password/reset/"+*raw
	}))

	stored, err := f.store.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, stored.ResetPasswordToken)
	assert.NotEqual(t, *raw, *stored.ResetPasswordToken)

	session, err := f.svc.ResetPassword(ctx, *raw, "new-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	require.Len(t, f.publisher.changed, 1)

	_, err = f.svc.Login(ctx, "a@b.com", "old-pass")
	assertKind(t, err, apperr.Authentication, auth.MsgInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@b.com", "new-pass")
	require.NoError(t, err)

	t.Run("token is single use", func(t *testing.T) {
		_, err := f.svc.ResetPassword(ctx, *raw, "another")
		assertKind(t, err, apperr.Authentication, auth.MsgInvalidResetToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.ResetPassword(ctx, "deadbeef", "another")
		assertKind(t, err, apperr.Authentication, auth.MsgInvalidResetToken)
		assert.ErrorIs(t, err, apperr.ErrInvalidResetToken)
	})
}

func TestService_ResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "old-pass")

	issued := time.Now()
	f.resets.WithClock(func() time.Time { return issued })
	raw := f.captureReset(nil)
	_, err := f.svc.ForgotPassword(ctx, "a@b.com", "shop.example")
	require.NoError(t, err)

	f.svc.WithClock(func() time.Time { return issued.Add(16 * time.Minute) })
	_, errExpired := f.svc.ResetPassword(ctx, *raw, "new-pass")
	_, errUnknown := f.svc.ResetPassword(ctx, "0000", "new-pass")
	assertKind(t, errExpired, apperr.Authentication, auth.MsgInvalidResetToken)
	assert.Equal(t, errUnknown.Error(), errExpired.Error())

	_, err = f.svc.Login(ctx, "a@b.com", "old-pass")
	require.NoError(t, err)
}

func TestService_ResetPassword_EmptyPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "old-pass")
	raw := f.captureReset(nil)
	_, err := f.svc.ForgotPassword(ctx, "a@b.com", "shop.example")
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, *raw, "")
	assertKind(t, err, apperr.Validation, auth.MsgPasswordRequired)
}

func TestService_PasswordOverBcryptLimit(t *testing.T) {
	tooLong := []struct {
		name     string
		password string
	}{
		{name: "ascii", password: strings.Repeat("x", 100)},
		{name: "multibyte within 72 runes", password: strings.Repeat("é", 72)},
	}

	for _, tt := range tooLong {
		t.Run("register/"+tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), auth.RegisterInput{
				Name: "Alice", Email: "a@b.com", Gender: "female", Password: tt.password, Avatar: avatarData,
			})
			assertKind(t, err, apperr.Validation, auth.MsgPasswordTooLong)
			assert.Zero(t, f.host.Len(), "rejected registration must not upload an avatar")
			_, err = f.store.GetUserByEmail(context.Background(), "a@b.com")
			assert.Error(t, err)
		})

		t.Run("reset/"+tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.register(t, "a@b.com", "old-pass")
			raw := f.captureReset(nil)
			_, err := f.svc.ForgotPassword(ctx, "a@b.com", "shop.example")
			require.NoError(t, err)

			_, err = f.svc.ResetPassword(ctx, *raw, tt.password)
			assertKind(t, err, apperr.Validation, auth.MsgPasswordTooLong)

			// токен не израсходован, пароль прежний
			_, err = f.svc.ResetPassword(ctx, *raw, "new-pass")
			require.NoError(t, err)
		})

		t.Run("update/"+tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			session := f.register(t, "a@b.com", "p1")
			id := models.Identity{UserID: session.User.ID, Role: session.User.Role}

			_, err := f.svc.UpdatePassword(ctx, id, "p1", tt.password)
			assertKind(t, err, apperr.Validation, auth.MsgPasswordTooLong)

			_, err = f.svc.Login(ctx, "a@b.com", "p1")
			require.NoError(t, err)
			assert.Empty(t, f.publisher.changed)
		})
	}
}

func TestService_ForgotPassword_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "p1")
	raw := f.captureReset(errors.New("smtp: connection refused"))

	_, err := f.svc.ForgotPassword(ctx, "a@b.com", "shop.example")
	assertKind(t, err, apperr.Upstream, "smtp: connection refused")

	stored, err := f.store.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, stored.ResetPasswordToken)
	assert.Nil(t, stored.ResetPasswordExpire)

	_, err = f.svc.ResetPassword(ctx, *raw, "new-pass")
	assertKind(t, err, apperr.Authentication, auth.MsgInvalidResetToken)
}

func TestService_ResetURL_BaseOverride(t *testing.T) {
	svc := auth.New(slog.New(slog.NewTextHandler(io.Discard, nil)), memory.New(), auth.Deps{
		ResetBaseURL: "https://front.example/",
	})
	assert.Equal(t, "https://front.example/password/reset/abc", svc.ResetURL("api.example", "abc"))
}

func TestService_UpdatePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.register(t, "a@b.com", "p1")
	id := models.Identity{UserID: session.User.ID, Role: session.User.Role}

	before, err := f.store.GetUserWithPassword(ctx, id.UserID)
	require.NoError(t, err)

	_, err = f.svc.UpdatePassword(ctx, id, "wrong", "p2")
	assertKind(t, err, apperr.Validation, auth.MsgOldPasswordInvalid)

	after, err := f.store.GetUserWithPassword(ctx, id.UserID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	_, err = f.svc.UpdatePassword(ctx, id, "", "p2")
	assertKind(t, err, apperr.Validation, auth.MsgPasswordFieldsNeeded)

	next, err := f.svc.UpdatePassword(ctx, id, "p1", "p2")
	require.NoError(t, err)
	assert.NotEmpty(t, next.Token)
	_, err = f.svc.Login(ctx, "a@b.com", "p2")
	require.NoError(t, err)
	assert.Len(t, f.publisher.changed, 1)

	_, err = f.svc.UpdatePassword(ctx, models.Identity{UserID: "missing"}, "p1", "p2")
	assertKind(t, err, apperr.NotFound, auth.MsgUserNotFound)
}

func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.register(t, "a@b.com", "p1")
	id := models.Identity{UserID: session.User.ID}
	oldAvatar := session.User.Avatar.PublicID

	name := "Alice Cooper"
	email := "Cooper@B.com"
	err := f.svc.UpdateProfile(ctx, id, models.ProfileUpdate{Name: &name, Email: &email})
	require.NoError(t, err)

	u, err := f.store.GetUser(ctx, id.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", u.Name)
	assert.Equal(t, "cooper@b.com", u.Email)
	assert.Equal(t, oldAvatar, u.Avatar.PublicID)

	avatar := avatarData
	require.NoError(t, f.svc.UpdateProfile(ctx, id, models.ProfileUpdate{Avatar: &avatar}))
	u, err = f.store.GetUser(ctx, id.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, oldAvatar, u.Avatar.PublicID)
	assert.Equal(t, 1, f.host.Len())

	_, err = f.svc.Login(ctx, "cooper@b.com", "p1")
	require.NoError(t, err)

	t.Run("email taken", func(t *testing.T) {
		f.register(t, "taken@b.com", "p")
		taken := "taken@b.com"
		err := f.svc.UpdateProfile(ctx, id, models.ProfileUpdate{Email: &taken})
		assertKind(t, err, apperr.Validation, auth.MsgEmailRegistered)
	})
}

func TestService_GetUserDetails_Cached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)

	store := memory.New()
	svc := auth.New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, auth.Deps{
		Hasher:   password.NewHasher(),
		Sessions: jwt.NewJWTMaker("k", time.Hour),
		Media:    media.NewMemoryHost(),
		Cache:    c,
		CacheTTL: time.Minute,
	})
	ctx := context.Background()
	session, err := svc.Register(ctx, auth.RegisterInput{
		Name: "Alice", Email: "a@b.com", Gender: "female", Password: "p1", Avatar: avatarData,
	})
	require.NoError(t, err)
	id := models.Identity{UserID: session.User.ID}

	u, err := svc.GetUserDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.True(t, mr.Exists(cache.UserKey(id.UserID)))

	name := "Renamed"
	require.NoError(t, svc.UpdateProfile(ctx, id, models.ProfileUpdate{Name: &name}))
	assert.False(t, mr.Exists(cache.UserKey(id.UserID)))

	u, err = svc.GetUserDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.Name)

	_, err = svc.GetUserDetails(ctx, models.Identity{UserID: "missing"})
	assertKind(t, err, apperr.NotFound, auth.MsgUserNotFound)
}
