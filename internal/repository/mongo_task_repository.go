package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todoapp/internal/model"
)

type mongoTaskRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoTaskRepository stores tasks as documents with embedded subtasks.
func NewMongoTaskRepository(coll *mongo.Collection) TaskRepository {
	return &mongoTaskRepository{coll: coll, now: time.Now}
}

func (r *mongoTaskRepository) Create(ctx context.Context, task *model.Task) error {
	normalize(task)
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", translateMongoError(err))
	}
	return nil
}

func (r *mongoTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoTaskRepository) FindBySubtaskID(ctx context.Context, subtaskID string) (*model.Task, error) {
	return r.findOne(ctx, subtaskFilter(subtaskID))
}

func (r *mongoTaskRepository) findOne(ctx context.Context, filter bson.M) (*model.Task, error) {
	var task model.Task
	if err := r.coll.FindOne(ctx, filter).Decode(&task); err != nil {
		return nil, translateMongoError(err)
	}
	return &task, nil
}

func (r *mongoTaskRepository) ListByOwner(ctx context.Context, owner string, filter TaskFilter) ([]model.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, ownerFilter(owner, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var tasks []model.Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

func (r *mongoTaskRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) (*model.Task, error) {
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, completeTaskPipeline(completedAt.UTC(), r.now().UTC()))
}

func (r *mongoTaskRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *mongoTaskRepository) AppendSubtask(ctx context.Context, taskID string, subtask model.Subtask) (*model.Task, error) {
	update := bson.M{
		"$push": bson.M{"subtasks": subtask},
		"$set":  bson.M{"updated_at": r.now().UTC()},
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": taskID}, update)
}

func (r *mongoTaskRepository) CompleteSubtask(ctx context.Context, subtaskID string) (*model.Task, error) {
	return r.findOneAndUpdate(ctx, subtaskFilter(subtaskID), completeSubtaskUpdate(r.now().UTC()))
}

func (r *mongoTaskRepository) DeleteSubtask(ctx context.Context, subtaskID string) error {
	if _, err := r.coll.UpdateOne(ctx, subtaskFilter(subtaskID), deleteSubtaskUpdate(subtaskID, r.now().UTC())); err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return nil
}

func (r *mongoTaskRepository) ListPendingRollover(ctx context.Context) ([]model.Task, error) {
	filter := bson.M{
		"completed":   true,
		"rolled_over": bson.M{"$ne": true},
		"recurrence":  bson.M{"$ne": model.RecurrenceNone},
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list rollover tasks: %w", err)
	}
	var tasks []model.Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode rollover tasks: %w", err)
	}
	return tasks, nil
}

// Rollover stores next first and then claims the original with a conditional
// update. When the claim fails the stored copy is removed again, so the
// original is never flagged without its next occurrence existing.
func (r *mongoTaskRepository) Rollover(ctx context.Context, originalID string, next *model.Task) error {
	if err := r.Create(ctx, next); err != nil {
		return fmt.Errorf("create next occurrence: %w", err)
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": originalID, "rolled_over": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"rolled_over": true, "updated_at": r.now().UTC()}},
	)
	if err == nil && res.MatchedCount > 0 {
		return nil
	}

	claimErr := ErrNotFound
	if err != nil {
		claimErr = fmt.Errorf("flag rollover: %w", err)
	}
	if _, delErr := r.coll.DeleteOne(ctx, bson.M{"_id": next.ID}); delErr != nil {
		return fmt.Errorf("%w; remove next occurrence %s: %v", claimErr, next.ID, delErr)
	}
	return claimErr
}

func (r *mongoTaskRepository) findOneAndUpdate(ctx context.Context, filter bson.M, update interface{}) (*model.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var task model.Task
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&task); err != nil {
		return nil, translateMongoError(err)
	}
	return &task, nil
}

func subtaskFilter(subtaskID string) bson.M {
	return bson.M{"subtasks.id": subtaskID}
}

// ownerFilter builds the listing query for one owner.
func ownerFilter(owner string, filter TaskFilter) bson.M {
	q := bson.M{"owner_username": owner}
	if filter.Category != "" {
		q["category"] = filter.Category
	}
	if len(filter.Tags) > 0 {
		q["tags"] = bson.M{"$in": filter.Tags}
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		q["text"] = bson.M{"$regex": regexp.QuoteMeta(kw), "$options": "i"}
	}
	return q
}

// completeTaskPipeline keeps the first completion time and only backfills a
// missing end time. Field references inside one $set stage see the document
// as it was before the update.
func completeTaskPipeline(completedAt, now time.Time) mongo.Pipeline {
	firstCompletion := bson.D{{Key: "$ifNull", Value: bson.A{"$completed_at", completedAt}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "completed", Value: true},
			{Key: "completed_at", Value: firstCompletion},
			{Key: "end_time", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$end_time", firstCompletion}}}},
			{Key: "updated_at", Value: now},
		}}},
	}
}

func completeSubtaskUpdate(now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"subtasks.$.completed": true,
		"updated_at":           now,
	}}
}

func deleteSubtaskUpdate(subtaskID string, now time.Time) bson.M {
	return bson.M{
		"$pull": bson.M{"subtasks": bson.M{"id": subtaskID}},
		"$set":  bson.M{"updated_at": now},
	}
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
