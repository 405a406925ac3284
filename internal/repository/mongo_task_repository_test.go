package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"todoapp/internal/model"
)

func TestOwnerFilter(t *testing.T) {
	assert.Equal(t, bson.M{"owner_username": "alice"}, ownerFilter("alice", TaskFilter{}))

	q := ownerFilter("alice", TaskFilter{Category: "Work", Tags: []string{"a", "b"}, Keyword: " c++ "})
	assert.Equal(t, "Work", q["category"])
	assert.Equal(t, bson.M{"$in": []string{"a", "b"}}, q["tags"])
	assert.Equal(t, bson.M{"$regex": `c\+\+`, "$options": "i"}, q["text"])
}

func TestCompleteTaskPipeline(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	pipeline := completeTaskPipeline(at, at)

	require.Len(t, pipeline, 1)
	stage := pipeline[0]
	require.Equal(t, "$set", stage[0].Key)

	set, ok := stage[0].Value.(bson.D)
	require.True(t, ok)
	fields := set.Map()

	assert.Equal(t, true, fields["completed"])
	first := bson.D{{Key: "$ifNull", Value: bson.A{"$completed_at", at}}}
	assert.Equal(t, first, fields["completed_at"])
	assert.Equal(t, bson.D{{Key: "$ifNull", Value: bson.A{"$end_time", first}}}, fields["end_time"])
}

func TestSubtaskUpdates(t *testing.T) {
	now := time.Now().UTC()

	assert.Equal(t, bson.M{"subtasks.id": "s1"}, subtaskFilter("s1"))

	complete := completeSubtaskUpdate(now)["$set"].(bson.M)
	assert.Equal(t, true, complete["subtasks.$.completed"])

	del := deleteSubtaskUpdate("s1", now)
	assert.Equal(t, bson.M{"subtasks": bson.M{"id": "s1"}}, del["$pull"])
}

func TestTranslateMongoError(t *testing.T) {
	assert.NoError(t, translateMongoError(nil))
	assert.ErrorIs(t, translateMongoError(mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.ErrorIs(t, translateMongoError(dup), ErrDuplicate)

	other := errors.New("socket closed")
	assert.Equal(t, other, translateMongoError(other))
}

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func toDoc(t *testing.T, v interface{}) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func commandNames(mt *mtest.T) []string {
	var names []string
	for _, evt := range mt.GetAllStartedEvents() {
		names = append(names, evt.CommandName)
	}
	return names
}

func storedTask() *model.Task {
	sub := model.NewSubtask("outline")
	return &model.Task{
		ID:            uuid.NewString(),
		OwnerUsername: "alice",
		Text:          "Write report",
		StartTime:     time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC),
		Priority:      model.PriorityHigh,
		Category:      "Work",
		Tags:          []string{"q1"},
		Recurrence:    model.RecurrenceDaily,
		Subtasks:      []model.Subtask{sub},
	}
}

func TestMongoTaskRepository_CreateAndFind(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("round trip", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		task := storedTask()

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, toDoc(mt.T, task)),
		)

		require.NoError(mt, repo.Create(context.Background(), task))
		found, err := repo.FindByID(context.Background(), task.ID)
		require.NoError(mt, err)
		assert.Equal(mt, task.Text, found.Text)
		assert.Equal(mt, []string{"q1"}, found.Tags)
		require.Len(mt, found.Subtasks, 1)
		assert.Equal(mt, task.Subtasks[0].ID, found.Subtasks[0].ID)
		assert.Equal(mt, []string{"insert", "find"}, commandNames(mt))
	})

	mt.Run("missing task", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := repo.FindByID(context.Background(), uuid.NewString())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("duplicate id", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Code: 11000, Message: "E11000 duplicate key"}))

		err := repo.Create(context.Background(), storedTask())
		assert.ErrorIs(mt, err, ErrDuplicate)
	})
}

func TestMongoTaskRepository_ListByOwner(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("decodes every document", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		first, second := storedTask(), storedTask()
		second.Text = "Review PR"

		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, toDoc(mt.T, first), toDoc(mt.T, second)))

		tasks, err := repo.ListByOwner(context.Background(), "alice", TaskFilter{Keyword: "r"})
		require.NoError(mt, err)
		require.Len(mt, tasks, 2)
		assert.Equal(mt, "Review PR", tasks[1].Text)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "alice", evt.Command.Lookup("filter", "owner_username").StringValue())
		assert.Equal(mt, "i", evt.Command.Lookup("filter", "text", "$options").StringValue())
	})
}

func TestMongoTaskRepository_MarkCompleted(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("sends a pipeline update", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		task := storedTask()
		done := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
		task.Completed = true
		task.CompletedAt = &done
		task.EndTime = &done

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(mt.T, task)}))

		got, err := repo.MarkCompleted(context.Background(), task.ID, done)
		require.NoError(mt, err)
		assert.True(mt, got.Completed)
		require.NotNil(mt, got.EndTime)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "findAndModify", evt.CommandName)
		assert.Equal(mt, task.ID, evt.Command.Lookup("query", "_id").StringValue())
		assert.Equal(mt, bsontype.Array, evt.Command.Lookup("update").Type)
		assert.True(mt, evt.Command.Lookup("new").Boolean())
	})

	mt.Run("missing task", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.MarkCompleted(context.Background(), uuid.NewString(), time.Now())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoTaskRepository_Subtasks(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("complete uses the positional operator", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		task := storedTask()
		subID := task.Subtasks[0].ID
		task.Subtasks[0].Completed = true

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(mt.T, task)}))

		got, err := repo.CompleteSubtask(context.Background(), subID)
		require.NoError(mt, err)
		assert.Equal(mt, 1, got.CompletedSubtasks())

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, subID, evt.Command.Lookup("query", "subtasks.id").StringValue())
		assert.True(mt, evt.Command.Lookup("update", "$set", "subtasks.$.completed").Boolean())
	})

	mt.Run("complete of unknown subtask", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.CompleteSubtask(context.Background(), uuid.NewString())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("append pushes onto the list", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		task := storedTask()
		added := model.NewSubtask("draft")
		task.Subtasks = append(task.Subtasks, added)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: toDoc(mt.T, task)}))

		got, err := repo.AppendSubtask(context.Background(), task.ID, added)
		require.NoError(mt, err)
		require.Len(mt, got.Subtasks, 2)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, added.ID, evt.Command.Lookup("update", "$push", "subtasks", "id").StringValue())
	})

	mt.Run("delete of unknown subtask is a no-op", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		require.NoError(mt, repo.DeleteSubtask(context.Background(), uuid.NewString()))
		assert.Equal(mt, []string{"update"}, commandNames(mt))
	})
}

func TestMongoTaskRepository_Rollover(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("stores next then flags original", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		next := storedTask()
		require.NoError(mt, repo.Rollover(context.Background(), uuid.NewString(), next))
		assert.Equal(mt, []string{"insert", "update"}, commandNames(mt))
	})

	mt.Run("already rolled over removes the copy", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		next := storedTask()
		err := repo.Rollover(context.Background(), uuid.NewString(), next)
		assert.ErrorIs(mt, err, ErrNotFound)
		assert.Equal(mt, []string{"insert", "update", "delete"}, commandNames(mt))
	})

	mt.Run("failed insert leaves the original untouched", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Code: 11000, Message: "E11000 duplicate key"}))

		err := repo.Rollover(context.Background(), uuid.NewString(), storedTask())
		assert.ErrorIs(mt, err, ErrDuplicate)
		assert.Equal(mt, []string{"insert"}, commandNames(mt))
	})

	mt.Run("failed flag removes the copy", func(mt *mtest.T) {
		repo := NewMongoTaskRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad update"}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		err := repo.Rollover(context.Background(), uuid.NewString(), storedTask())
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrNotFound)
		assert.Equal(mt, []string{"insert", "update", "delete"}, commandNames(mt))
	})
}
