package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/tenderflow/internal/config"
	"github.com/Lllllllleong/tenderflow/internal/dispatch"
	"github.com/Lllllllleong/tenderflow/internal/gcp"
	"github.com/Lllllllleong/tenderflow/internal/inference"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/progress"
	"github.com/Lllllllleong/tenderflow/internal/vectorstore"
	"github.com/dgraph-io/badger/v4"
	"github.com/tmc/langchaingo/embeddings"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Stack builds the clients the tender functions share from Settings, creating each at most once.
type Stack struct {
	Settings config.Settings

	Documents objectstore.Store
	Exports   objectstore.Writer

	mu        sync.Mutex
	firestore *firestore.Client
	mongo     *mongo.Client
	badger    *badger.DB
	vertex    *gcp.VertexBackend
	closers   []func() error
}

// NewStack opens the document store: the GCS bucket when DOCUMENTS_BUCKET is set, else DOCUMENTS_DIR.
func NewStack(ctx context.Context, settings config.Settings) (*Stack, error) {
	s := &Stack{Settings: settings}
	switch {
	case settings.DocumentsBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Storage client: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		bucket := gcp.NewBucketStore(client, settings.DocumentsBucket)
		s.Documents, s.Exports = bucket, bucket
	case settings.DocumentsDir != "":
		dir := objectstore.NewDir(settings.DocumentsDir)
		s.Documents, s.Exports = dir, dir
	default:
		return nil, fmt.Errorf("DOCUMENTS_BUCKET or DOCUMENTS_DIR must be set")
	}
	return s, nil
}

// Close releases every client in reverse creation order.
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Ledger returns the progress store for ledger on the configured backend.
func (s *Stack) Ledger(ctx context.Context, ledger progress.Ledger) (progress.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Settings.ProgressBackend {
	case "firestore":
		client, err := s.firestoreClient(ctx)
		if err != nil {
			return nil, err
		}
		collection := s.Settings.DocsStatusCollection
		if ledger == progress.LedgerForms {
			collection = s.Settings.FormsCollection
		}
		return progress.NewFirestore(client, collection), nil
	case "mongo":
		client, err := s.mongoClient()
		if err != nil {
			return nil, err
		}
		coll := client.Database(s.Settings.DBName).Collection(s.Settings.DocsStatusCollection)
		store := progress.NewMongo(coll, ledger)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "badger":
		if s.badger == nil {
			db, err := progress.OpenBadgerDB(s.Settings.BadgerDir)
			if err != nil {
				return nil, err
			}
			s.badger = db
			s.closers = append(s.closers, db.Close)
		}
		return progress.NewBadgerWithDB(s.badger, ledger), nil
	}
	return nil, fmt.Errorf("unknown PROGRESS_BACKEND %q", s.Settings.ProgressBackend)
}

// Backends returns the image backend and the retrying text backend.
func (s *Stack) Backends(ctx context.Context) (inference.ImageBackend, inference.TextBackend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var image inference.ImageBackend
	switch s.Settings.ImageBackend {
	case "groq":
		b, err := inference.NewChatBackend(inference.GroqVision(s.Settings.GroqAPIKey, s.Settings.GroqBaseURL, s.Settings.GroqModel))
		if err != nil {
			return nil, nil, err
		}
		image = b
	case "vertex":
		v, err := s.vertexBackend(ctx)
		if err != nil {
			return nil, nil, err
		}
		image = v
	default:
		return nil, nil, fmt.Errorf("unknown IMAGE_BACKEND %q", s.Settings.ImageBackend)
	}

	var text inference.TextBackend
	switch s.Settings.TextBackend {
	case "deepseek":
		b, err := inference.NewChatBackend(inference.DeepSeekText(s.Settings.DeepSeekAPIKey, s.Settings.DeepSeekBaseURL, s.Settings.DeepSeekModel))
		if err != nil {
			return nil, nil, err
		}
		text = b
	case "vertex":
		v, err := s.vertexBackend(ctx)
		if err != nil {
			return nil, nil, err
		}
		text = v
	default:
		return nil, nil, fmt.Errorf("unknown TEXT_BACKEND %q", s.Settings.TextBackend)
	}
	return image, inference.NewRetrying(text), nil
}

func (s *Stack) Embedder() (embeddings.Embedder, error) {
	var (
		embedder *embeddings.EmbedderImpl
		err      error
	)
	batch := s.Settings.EmbeddingBatchSize
	switch s.Settings.EmbeddingBackend {
	case "openai":
		embedder, err = inference.NewOpenAIEmbedder(s.Settings.OpenAIAPIKey, "", s.Settings.EmbeddingModel, batch)
	case "ollama":
		embedder, err = inference.NewOllamaEmbedder(s.Settings.OllamaEmbeddingModel, batch)
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_BACKEND %q", s.Settings.EmbeddingBackend)
	}
	if err != nil {
		return nil, err
	}
	return embedder, nil
}

func (s *Stack) ChunkStore(ctx context.Context) (vectorstore.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Settings.ChunkBackend {
	case "mongo":
		client, err := s.mongoClient()
		if err != nil {
			return nil, err
		}
		return vectorstore.NewMongo(client.Database(s.Settings.DBName).Collection(s.Settings.VectorCollection)), nil
	case "sqlite":
		store, err := vectorstore.OpenSQLite(ctx, s.Settings.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open chunk store: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unknown CHUNK_BACKEND %q", s.Settings.ChunkBackend)
}

// Tenders returns the tender listing collection.
func (s *Stack) Tenders() (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, err := s.mongoClient()
	if err != nil {
		return nil, err
	}
	return client.Database(s.Settings.DBName).Collection(s.Settings.TendersCollection), nil
}

func (s *Stack) Dispatcher() (*dispatch.Dispatcher, error) {
	d, err := dispatch.New(s.Settings.ImageConcurrency, s.Settings.TextConcurrency, dispatch.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.closers = append(s.closers, func() error { d.Release(); return nil })
	s.mu.Unlock()
	return d, nil
}

func (s *Stack) firestoreClient(ctx context.Context) (*firestore.Client, error) {
	if s.firestore != nil {
		return s.firestore, nil
	}
	client, err := gcp.NewFirestoreClient(ctx, s.Settings.ProjectID, s.Settings.FirestoreDatabase)
	if err != nil {
		return nil, err
	}
	s.firestore = client
	s.closers = append(s.closers, client.Close)
	return client, nil
}

func (s *Stack) mongoClient() (*mongo.Client, error) {
	if s.mongo != nil {
		return s.mongo, nil
	}
	if s.Settings.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable must be set")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(s.Settings.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	s.mongo = client
	s.closers = append(s.closers, func() error { return client.Disconnect(context.Background()) })
	return client, nil
}

func (s *Stack) vertexBackend(ctx context.Context) (*gcp.VertexBackend, error) {
	if s.vertex != nil {
		return s.vertex, nil
	}
	v, err := gcp.NewVertexBackend(ctx, s.Settings.ProjectID, s.Settings.VertexRegion, s.Settings.VertexModel)
	if err != nil {
		return nil, err
	}
	s.vertex = v
	s.closers = append(s.closers, v.Close)
	return v, nil
}
