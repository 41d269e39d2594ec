package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/xela07ax/reflections-auth/internal/audit"
	"github.com/xela07ax/reflections-auth/internal/domain"
	"github.com/xela07ax/reflections-auth/internal/infra"
)

const (
	usersCollection = "users"
	auditCollection = "auth_audit_logs"
)

// Connect подключается к MongoDB и проверяет соединение.
func Connect(ctx context.Context, cfg infra.DatabaseConfig) (*mongo.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("mongo: uri is empty")
	}
	opts := options.Client().ApplyURI(cfg.URL)
	if cfg.MaxConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxConns))
	}
	if cfg.MinConns > 0 {
		opts.SetMinPoolSize(uint64(cfg.MinConns))
	}

	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return cli, nil
}

type UserRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewUserRepo создает репозиторий и уникальные индексы на email и username.
// Индексы — окончательная защита от дубликатов при конкурентной регистрации.
func NewUserRepo(ctx context.Context, client *mongo.Client, dbName string) (*UserRepo, error) {
	coll := client.Database(dbName).Collection(usersCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: create indexes: %w", err)
	}
	return &UserRepo{client: client, coll: coll}, nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list users: %w", err)
	}
	users := make([]domain.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo: decode users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return mapWriteError("create user", err)
	}
	return nil
}

func (r *UserRepo) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return mapWriteError("update user", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: user %s not found", u.ID)
	}
	return nil
}

func (r *UserRepo) DeleteUser(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo: delete user: %w", err)
	}
	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func mapWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo: %s: %w", op, domain.ErrUniqueViolation)
	}
	return fmt.Errorf("mongo: %s: %w", op, err)
}

// AuditRepo пишет события аудита пачкой через InsertMany.
type AuditRepo struct {
	coll *mongo.Collection
}

func NewAuditRepo(client *mongo.Client, dbName string) *AuditRepo {
	return &AuditRepo{coll: client.Database(dbName).Collection(auditCollection)}
}

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	// Порядок не важен: одна битая запись не блокирует остальные
	if _, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("mongo: write audit batch: %w", err)
	}
	return nil
}

// FetchLogs читает последние события; пустой email — без фильтра.
func (r *AuditRepo) FetchLogs(ctx context.Context, email string, limit int) ([]audit.Event, error) {
	filter := bson.M{}
	if email != "" {
		filter["email"] = email
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: fetch audit logs: %w", err)
	}
	events := make([]audit.Event, 0)
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("mongo: decode audit logs: %w", err)
	}
	return events, nil
}
