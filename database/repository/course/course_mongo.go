package courseRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursebook/database/repository"
	"coursebook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCourseRepo implements CourseRepository using MongoDB.
type MongoCourseRepo struct {
	coll *mongo.Collection
}

// NewMongoCourseRepo creates a CourseRepository backed by the "courses" collection.
func NewMongoCourseRepo(db *mongo.Database) CourseRepository {
	repo := &MongoCourseRepo{coll: db.Collection("courses")}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create course indexes: %v\n", err)
	}
	return repo
}

func (r *MongoCourseRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "instructor", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// GetByID retrieves a course by its ID.
func (r *MongoCourseRepo) GetByID(ctx context.Context, id string) (*models.Course, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var course models.Course
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&course); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch course %s: %w", id, err)
	}
	return &course, nil
}

// ListByInstructor returns the courses owned by an instructor.
func (r *MongoCourseRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"students": 0})
	cursor, err := r.coll.Find(ctx, bson.M{"instructor": instructorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses for instructor %s: %w", instructorID, err)
	}
	defer cursor.Close(ctx)

	courses := []models.Course{}
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("failed to decode courses: %w", err)
	}
	return courses, nil
}

// AddStudent performs the capacity check and the append as one conditional update.
func (r *MongoCourseRepo) AddStudent(ctx context.Context, courseID, studentID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"id":       courseID,
		"isActive": true,
		"students": bson.M{"$ne": studentID},
		"$expr": bson.M{
			"$lt": bson.A{
				bson.M{"$size": bson.M{"$ifNull": bson.A{"$students", bson.A{}}}},
				"$capacity",
			},
		},
	}
	update := bson.M{
		"$addToSet": bson.M{"students": studentID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add student %s to course %s: %w", studentID, courseID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("course %s rejected student %s: %w", courseID, studentID, repository.ErrConditionFailed)
	}
	return nil
}

// RemoveStudent pulls studentID from the roster.
func (r *MongoCourseRepo) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$pull": bson.M{"students": studentID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": courseID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove student %s from course %s: %w", studentID, courseID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("failed to remove student from course %s: %w", courseID, repository.ErrNotFound)
	}
	return nil
}
