package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-schedule-api/internal/models"
)

const userColumns = `id, username, password_hash, email, role, firstname, lastname, created_at, updated_at`

// UserRepository provides database access for accounts and student group membership.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if notFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByUsername returns a user by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if notFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindTeacher returns the public view of a user holding the teacher role.
func (r *UserRepository) FindTeacher(ctx context.Context, id string) (*models.TeacherSummary, error) {
	const query = `SELECT id, firstname, lastname FROM users WHERE id = $1 AND role = $2 LIMIT 1`
	var teacher models.TeacherSummary
	if err := r.db.GetContext(ctx, &teacher, query, id, models.RoleTeacher); err != nil {
		if notFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	return &teacher, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(username) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(firstname || ' ' || lastname) LIKE $%d)", n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"username":   true,
		"email":      true,
		"lastname":   true,
		"role":       true,
		"created_at": true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// CountByRole returns how many users hold role.
func (r *UserRepository) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}

// CountTeacherSlots returns the number of schedule slots taught by the user.
func (r *UserRepository) CountTeacherSlots(ctx context.Context, id string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_slots WHERE teacher_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count teacher slots: %w", err)
	}
	return total, nil
}

// Create inserts a new user. ErrDuplicate is returned for a taken username or email.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, username, password_hash, email, role, firstname, lastname, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.Email, user.Role, user.Firstname, user.Lastname, user.CreatedAt, user.UpdatedAt); err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

// Update updates the profile fields of a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET username = $2, email = $3, role = $4, firstname = $5, lastname = $6, updated_at = $7 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.Role, user.Firstname, user.Lastname, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	return expectAffected(res, "update user")
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", translate(err))
	}
	return expectAffected(res, "update password")
}

// Delete removes a user. Group memberships cascade; taught slots block the
// delete with ErrReferenced.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", translate(err))
	}
	return expectAffected(res, "delete user")
}

// ListGroups returns the groups a user belongs to, sorted by name.
func (r *UserRepository) ListGroups(ctx context.Context, userID string) ([]string, error) {
	groups := []string{}
	const query = `SELECT group_name FROM user_groups WHERE user_id = $1 ORDER BY group_name`
	if err := r.db.SelectContext(ctx, &groups, query, userID); err != nil {
		return nil, fmt.Errorf("list user groups: %w", err)
	}
	return groups, nil
}

// AssignGroup adds a membership. Assigning an existing membership is a no-op.
func (r *UserRepository) AssignGroup(ctx context.Context, userID, groupName string) error {
	const query = `INSERT INTO user_groups (user_id, group_name, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, group_name) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, groupName, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign group: %w", translate(err))
	}
	return nil
}

// RemoveGroup deletes a membership, returning sql.ErrNoRows when it did not exist.
func (r *UserRepository) RemoveGroup(ctx context.Context, userID, groupName string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1 AND group_name = $2`, userID, groupName)
	if err != nil {
		return fmt.Errorf("remove group: %w", translate(err))
	}
	return expectAffected(res, "remove group")
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
