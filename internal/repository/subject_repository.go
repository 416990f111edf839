package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-schedule-api/internal/models"
)

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns every subject ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	subjects := []models.Subject{}
	const query = `SELECT id, name, description, created_at, updated_at FROM subjects ORDER BY name`
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID fetches a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if notFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// Create inserts a subject. A taken name yields ErrDuplicate.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now
	const query = `INSERT INTO subjects (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, subject.ID, subject.Name, subject.Description, subject.CreatedAt, subject.UpdatedAt); err != nil {
		return fmt.Errorf("create subject: %w", translate(err))
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = $2, description = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, subject.ID, subject.Name, subject.Description, subject.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subject: %w", translate(err))
	}
	return expectAffected(res, "update subject")
}

// Delete removes a subject. Slots still using it yield ErrReferenced.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", translate(err))
	}
	return expectAffected(res, "delete subject")
}

// CountSlots returns how many schedule slots reference the subject.
func (r *SubjectRepository) CountSlots(ctx context.Context, id string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_slots WHERE subject_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count subject slots: %w", err)
	}
	return total, nil
}
