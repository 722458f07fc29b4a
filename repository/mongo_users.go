package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holymark/auth"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersCollection is the collection holding user documents
const UsersCollection = "users"

type userDocument struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	Name          string        `bson:"name"`
	Email         string        `bson:"email"`
	Username      string        `bson:"username"`
	Password      string        `bson:"password,omitempty"`
	Image         string        `bson:"image,omitempty"`
	EmailVerified *time.Time    `bson:"emailVerified,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt"`
}

func (d *userDocument) toUser() *auth.User {
	return &auth.User{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		Username:      d.Username,
		PasswordHash:  d.Password,
		Image:         d.Image,
		EmailVerified: d.EmailVerified,
		CreatedAt:     d.CreatedAt,
	}
}

func newUserDocument(u *auth.User) *userDocument {
	return &userDocument{
		Name:          u.Name,
		Email:         u.Email,
		Username:      u.Username,
		Password:      u.PasswordHash,
		Image:         u.Image,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.CreatedAt,
	}
}

// MongoUsers implements auth.UserStore over a MongoDB collection
type MongoUsers struct {
	conn       *MongoConnector
	database   string
	collection string

	indexMu       sync.Mutex
	indexedClient *mongo.Client
}

var _ auth.UserStore = (*MongoUsers)(nil)

// NewMongoUsers returns a store using the users collection of database
func NewMongoUsers(conn *MongoConnector, database string) *MongoUsers {
	return &MongoUsers{
		conn:       conn,
		database:   database,
		collection: UsersCollection,
	}
}

// EnsureIndexes creates the unique email and username indexes
func (r *MongoUsers) EnsureIndexes(ctx context.Context) error {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return err
	}
	return r.ensureIndexes(ctx, client)
}

// ensureIndexes runs once per client. Callers connect before taking the lock.
func (r *MongoUsers) ensureIndexes(ctx context.Context, client *mongo.Client) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	if r.indexedClient == client {
		return nil
	}

	_, err := client.Database(r.database).Collection(r.collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user indexes")
	}

	r.indexedClient = client
	return nil
}

func (r *MongoUsers) users(ctx context.Context) (*mongo.Collection, error) {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.ensureIndexes(ctx, client); err != nil {
		return nil, err
	}
	return client.Database(r.database).Collection(r.collection), nil
}

func (r *MongoUsers) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"username": identifier},
	}})
}

func (r *MongoUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUsers) FindByEmailOrUsername(ctx context.Context, email, username string) ([]*auth.User, error) {
	coll, err := r.users(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}}, options.Find().SetLimit(2))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query users")
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode users")
	}

	out := make([]*auth.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toUser())
	}
	return out, nil
}

func (r *MongoUsers) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	coll, err := r.users(ctx)
	if err != nil {
		return nil, err
	}

	doc := newUserDocument(user)
	doc.ID = bson.NewObjectID()

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if conflict := mongoConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}

	return doc.toUser(), nil
}

func (r *MongoUsers) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	coll, err := r.users(ctx)
	if err != nil {
		return nil, err
	}

	var doc userDocument
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrRecordNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to find user")
	}

	return doc.toUser(), nil
}

// mongoConflict maps a duplicate key error to the taken field
func mongoConflict(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return conflictFromMessage(err.Error(), "index: username")
}

// conflictFromMessage names the violated unique key from a driver message.
// Anything that does not mention the username key is reported as an email
// conflict.
func conflictFromMessage(msg string, usernameMarkers ...string) error {
	msg = strings.ToLower(msg)
	for _, marker := range usernameMarkers {
		if strings.Contains(msg, marker) {
			return auth.ErrUsernameTaken
		}
	}
	return auth.ErrEmailTaken
}
