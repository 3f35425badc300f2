package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/tenderflow/internal/config"
	"github.com/Lllllllleong/tenderflow/internal/gcp"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/objectstore"
	"github.com/Lllllllleong/tenderflow/internal/progress"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AllowedIndustries are the sectors whose tenders are processed.
var AllowedIndustries = []string{"Water & Sanitation", "Power & Energy"}

type TenderFinder interface {
	FindTenders(ctx context.Context, minValue float64) ([]string, error)
}

type WorkflowStarter interface {
	StartTender(ctx context.Context, tenderID string) (string, error)
}

// MongoTenderFinder selects tenders from the listing collection.
type MongoTenderFinder struct {
	collection *mongo.Collection
}

func NewMongoTenderFinder(collection *mongo.Collection) *MongoTenderFinder {
	return &MongoTenderFinder{collection: collection}
}

func (m *MongoTenderFinder) FindTenders(ctx context.Context, minValue float64) ([]string, error) {
	filter := bson.D{
		{Key: "tender_value", Value: bson.D{{Key: "$gte", Value: minValue}}},
		{Key: "industries", Value: bson.D{{Key: "$in", Value: AllowedIndustries}}},
	}
	cursor, err := m.collection.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query tenders: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID any `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode tender: %w", err)
		}
		ids = append(ids, tenderIDString(doc.ID))
	}
	return ids, cursor.Err()
}

func tenderIDString(id any) string {
	if oid, ok := id.(bson.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

// TenderDispatcherFunction starts one workflow execution per tender that still has unfinished documents.
type TenderDispatcherFunction struct {
	finder    TenderFinder
	documents objectstore.Store
	ledger    progress.Store
	starter   WorkflowStarter
	minValue  float64
	stack     *Stack
}

func NewTenderDispatcher(ctx context.Context) (*TenderDispatcherFunction, error) {
	settings := config.Load()
	if _, err := config.Require("PROJECT_ID"); err != nil {
		return nil, err
	}
	stack, err := NewStack(ctx, settings)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*TenderDispatcherFunction, error) {
		_ = stack.Close()
		return nil, err
	}

	tenders, err := stack.Tenders()
	if err != nil {
		return fail(err)
	}
	ledger, err := stack.Ledger(ctx, progress.LedgerForms)
	if err != nil {
		return fail(fmt.Errorf("failed to open forms ledger: %w", err))
	}
	trigger, err := gcp.NewWorkflowTrigger(ctx, settings.ProjectID, settings.WorkflowLocation, settings.WorkflowID)
	if err != nil {
		return fail(err)
	}

	f := NewTenderDispatcherWith(NewMongoTenderFinder(tenders), stack.Documents, ledger, trigger, settings.MinTenderValue)
	f.stack = stack
	stack.mu.Lock()
	stack.closers = append(stack.closers, trigger.Close)
	stack.mu.Unlock()
	slog.Info("Tender dispatcher initialized.", "workflowId", settings.WorkflowID)
	return f, nil
}

func NewTenderDispatcherWith(finder TenderFinder, documents objectstore.Store, ledger progress.Store, starter WorkflowStarter, minValue float64) *TenderDispatcherFunction {
	return &TenderDispatcherFunction{finder: finder, documents: documents, ledger: ledger, starter: starter, minValue: minValue}
}

func (f *TenderDispatcherFunction) Close() error {
	if f.stack != nil {
		return f.stack.Close()
	}
	return nil
}

// Process selects tenders and starts their workflows. Per-tender failures are reported, not returned.
func (f *TenderDispatcherFunction) Process(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResponse, error) {
	minValue := f.minValue
	if req.MinTenderValue != nil {
		minValue = *req.MinTenderValue
	}
	logCtx := slog.With("minTenderValue", minValue, "dryRun", req.DryRun)

	ids, err := f.finder.FindTenders(ctx, minValue)
	if err != nil {
		logCtx.Error("Failed to select tenders", "error", err)
		return nil, err
	}

	res := &models.DispatchResponse{
		Status:     "success",
		Started:    map[string]string{},
		Failed:     map[string]string{},
		Considered: len(ids),
	}
	for _, id := range ids {
		tenderLog := logCtx.With("tenderId", id)
		pending, err := f.hasPendingDocuments(ctx, id)
		if err != nil {
			tenderLog.Error("Failed to check tender progress", "error", err)
			res.Failed[id] = err.Error()
			continue
		}
		if !pending {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if req.DryRun {
			res.Started[id] = ""
			continue
		}
		execution, err := f.starter.StartTender(ctx, id)
		if err != nil {
			tenderLog.Error("Failed to start workflow", "error", err)
			res.Failed[id] = err.Error()
			continue
		}
		tenderLog.Info("Workflow started.", "execution", execution)
		res.Started[id] = execution
	}
	logCtx.Info("Dispatch complete.", "considered", res.Considered, "started", len(res.Started), "skipped", len(res.Skipped), "failed", len(res.Failed))
	return res, nil
}

func (f *TenderDispatcherFunction) hasPendingDocuments(ctx context.Context, tenderID string) (bool, error) {
	keys, err := f.documents.List(ctx, objectstore.TenderPrefix(tenderID))
	if err != nil {
		return false, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range objectstore.PDFKeys(keys) {
		names = append(names, objectstore.DocumentName(tenderID, k))
	}
	if len(names) == 0 {
		return false, nil
	}
	done, err := progress.AllComplete(ctx, f.ledger, tenderID, names)
	if err != nil {
		return false, err
	}
	return !done, nil
}
