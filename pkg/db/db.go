package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

var (
	// ErrNotFound means no row exists for the given key.
	ErrNotFound = errors.New("not found")
	// ErrConflict means another writer won the unique-constraint race for
	// this signature+version. Callers re-read the winner's row.
	ErrConflict = errors.New("write conflict")
)

// Store is the durable playlist storage contract.
type Store interface {
	EnsureIndexes(ctx context.Context) error
	InsertPlaylist(ctx context.Context, playlist models.Playlist) error
	LatestPlaylistBySignature(ctx context.Context, signature string) (*models.Playlist, error)
	PlaylistByID(ctx context.Context, id string) (*models.Playlist, error)
	SaveQueryRecord(ctx context.Context, record models.QueryRecord) error
	QueryRecordBySignature(ctx context.Context, signature string) (*models.QueryRecord, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type store struct {
	conn   *mongo.Client
	log    *zap.Logger
	dbname string
	url    string
}

func NewStore(ctx context.Context, log *zap.Logger, url, dbname string) (Store, error) {
	conn, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, err
	}

	return &store{
		conn:   conn,
		log:    log,
		dbname: dbname,
		url:    url,
	}, nil
}

func (s *store) reconnect() error {
	if err := s.conn.Disconnect(context.Background()); err != nil {
		s.log.Warn("error disconnecting from database", zap.Error(err))
	}

	conn, err := mongo.Connect(context.Background(), options.Client().ApplyURI(s.url))
	if err != nil {
		return err
	}

	s.conn = conn
	return nil
}

func (s *store) collection(name string) *mongo.Collection {
	if err := s.conn.Ping(context.Background(), nil); err != nil {
		s.log.Error("failed to ping database. reconnecting.", zap.Error(err))
		if reconnectErr := s.reconnect(); reconnectErr != nil {
			s.log.Error("failed to reconnect to database", zap.Error(reconnectErr))
		}
	}
	return s.conn.Database(s.dbname).Collection(name)
}

func (s *store) playlists() *mongo.Collection {
	return s.collection("playlists")
}

func (s *store) queries() *mongo.Collection {
	return s.collection("queries")
}

// EnsureIndexes installs the unique (signature, version) index that gives
// concurrent builders insert-once semantics.
func (s *store) EnsureIndexes(ctx context.Context) error {
	_, err := s.playlists().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "signature", Value: 1},
			{Key: "version", Value: -1},
		},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *store) InsertPlaylist(ctx context.Context, playlist models.Playlist) error {
	_, err := s.playlists().InsertOne(ctx, playlist)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (s *store) LatestPlaylistBySignature(ctx context.Context, signature string) (*models.Playlist, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var playlist models.Playlist
	err := s.playlists().FindOne(ctx, bson.M{"signature": signature}, opts).Decode(&playlist)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (s *store) PlaylistByID(ctx context.Context, id string) (*models.Playlist, error) {
	var playlist models.Playlist
	err := s.playlists().FindOne(ctx, bson.M{"_id": id}).Decode(&playlist)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (s *store) SaveQueryRecord(ctx context.Context, record models.QueryRecord) error {
	record.UpdatedAt = time.Now().UTC()
	_, err := s.queries().UpdateOne(
		ctx,
		bson.M{"_id": record.Signature},
		bson.M{
			"$set":         bson.M{"spec": record.Spec, "latest_version": record.LatestVersion, "updated_at": record.UpdatedAt},
			"$setOnInsert": bson.M{"created_at": record.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *store) QueryRecordBySignature(ctx context.Context, signature string) (*models.QueryRecord, error) {
	var record models.QueryRecord
	err := s.queries().FindOne(ctx, bson.M{"_id": signature}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx, nil)
}

func (s *store) Close(ctx context.Context) error {
	return s.conn.Disconnect(ctx)
}
