// Package mongo реализует хранилище пользователей на MongoDB.
//
// Все операции затрагивают один документ и атомарны на уровне документа.
// Уникальность email обеспечивается уникальным индексом.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/magabrotheeeer/storefront/internal/models"
	"github.com/magabrotheeeer/storefront/internal/storage"
)

const usersCollection = "users"

// Storage хранилище пользователей в коллекции users.
type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New подключается к MongoDB и создаёт индексы коллекции users.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	const op = "storage.mongo.New"

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Storage{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}
	if err = s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "reset_password_token", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reset_password_token"),
		},
	})
	return err
}

// Close отключает клиента.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping проверяет соединение с сервером.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Drop удаляет все документы коллекции, используется в тестах.
func (s *Storage) Drop(ctx context.Context) error {
	_, err := s.users.DeleteMany(ctx, bson.D{})
	return err
}

func withoutPassword() *options.FindOneOptions {
	return options.FindOne().SetProjection(bson.D{{Key: "password_hash", Value: 0}})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return storage.ErrEmailExists
	}
	return err
}

// CreateUser вставляет документ пользователя. Пустой ID заполняется uuid.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongo.CreateUser"
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	user.MarkPersisted()
	return nil
}

func (s *Storage) findOne(ctx context.Context, op string, filter bson.D, withPassword bool) (*models.User, error) {
	var opts []*options.FindOneOptions
	if !withPassword {
		opts = append(opts, withoutPassword())
	}
	var u models.User
	if err := s.users.FindOne(ctx, filter, opts...).Decode(&u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &u, nil
}

// GetUser возвращает пользователя по ID без хэша пароля.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, "storage.mongo.GetUser", bson.D{{Key: "_id", Value: id}}, false)
}

// GetUserWithPassword возвращает пользователя по ID вместе с хэшем пароля.
func (s *Storage) GetUserWithPassword(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, "storage.mongo.GetUserWithPassword", bson.D{{Key: "_id", Value: id}}, true)
}

// GetUserByEmail ищет пользователя по точному совпадению email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "storage.mongo.GetUserByEmail", bson.D{{Key: "email", Value: email}}, false)
}

// GetUserByEmailWithPassword ищет пользователя по email и возвращает хэш пароля.
func (s *Storage) GetUserByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "storage.mongo.GetUserByEmailWithPassword", bson.D{{Key: "email", Value: email}}, true)
}

// GetUserByResetToken ищет пользователя с совпадающим хэшем токена и неистёкшим сроком.
func (s *Storage) GetUserByResetToken(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	filter := bson.D{
		{Key: "reset_password_token", Value: hash},
		{Key: "reset_password_expire", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	return s.findOne(ctx, "storage.mongo.GetUserByResetToken", filter, true)
}

// resetUpdate добавляет в обновление оба поля сброса: $set или $unset.
func resetUpdate(set, unset bson.D, hash *string, expire *time.Time) (bson.D, bson.D) {
	if hash == nil || expire == nil {
		return set, append(unset,
			bson.E{Key: "reset_password_token", Value: ""},
			bson.E{Key: "reset_password_expire", Value: ""})
	}
	return append(set,
		bson.E{Key: "reset_password_token", Value: *hash},
		bson.E{Key: "reset_password_expire", Value: *expire}), unset
}

func buildUpdate(set, unset bson.D) bson.D {
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func (s *Storage) updateOne(ctx context.Context, id string, set, unset bson.D) error {
	update := buildUpdate(set, unset)
	if len(update) == 0 {
		n, err := s.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrUserNotFound
		}
		return nil
	}
	res, err := s.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// SaveUser записывает все поля документа. password_hash обновляется только после SetPassword.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongo.SaveUser"
	set := bson.D{
		{Key: "name", Value: user.Name},
		{Key: "email", Value: user.Email},
		{Key: "gender", Value: user.Gender},
		{Key: "role", Value: user.Role},
		{Key: "avatar", Value: user.Avatar},
	}
	if user.PasswordChanged() {
		set = append(set, bson.E{Key: "password_hash", Value: user.PasswordHash})
	}
	set, unset := resetUpdate(set, nil, user.ResetPasswordToken, user.ResetPasswordExpire)
	if err := s.updateOne(ctx, user.ID, set, unset); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.MarkPersisted()
	return nil
}

// SetResetToken записывает только поля сброса пароля. nil удаляет оба поля.
func (s *Storage) SetResetToken(ctx context.Context, id string, hash *string, expire *time.Time) error {
	const op = "storage.mongo.SetResetToken"
	set, unset := resetUpdate(nil, nil, hash, expire)
	if err := s.updateOne(ctx, id, set, unset); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateProfile меняет только переданные поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, id string, name, email *string, avatar *models.Avatar) error {
	const op = "storage.mongo.UpdateProfile"
	set := bson.D{}
	if name != nil {
		set = append(set, bson.E{Key: "name", Value: *name})
	}
	if email != nil {
		set = append(set, bson.E{Key: "email", Value: *email})
	}
	if avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *avatar})
	}
	if err := s.updateOne(ctx, id, set, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUserByAdmin меняет имя, email, пол и роль.
func (s *Storage) UpdateUserByAdmin(ctx context.Context, id string, upd models.AdminUpdate) error {
	const op = "storage.mongo.UpdateUserByAdmin"
	set := bson.D{}
	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *upd.Email})
	}
	if upd.Gender != nil {
		set = append(set, bson.E{Key: "gender", Value: *upd.Gender})
	}
	if upd.Role != nil {
		set = append(set, bson.E{Key: "role", Value: *upd.Role})
	}
	if err := s.updateOne(ctx, id, set, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUsers возвращает всех пользователей, старые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.mongo.ListUsers"
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "password_hash", Value: 0}})
	cur, err := s.users.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result := make([]*models.User, 0)
	if err = cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteUser удаляет пользователя.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.mongo.DeleteUser"
	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	return nil
}
