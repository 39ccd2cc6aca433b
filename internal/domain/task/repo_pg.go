package task

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldforce/mrtracker/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type taskRepoPG struct{ pool *pgxpool.Pool }

func NewTaskRepoPG(pool *pgxpool.Pool) TaskRepository {
	return &taskRepoPG{pool: pool}
}

func (r *taskRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const taskCols = `id, assigned_to_id, assigned_by_id, assigned_doctor_id,
	assigned_date, due_date, due_time, notes, completed, visit_record_id`

func (r *taskRepoPG) scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var assigned, due pgtype.Date
	var dueTime pgtype.Time
	err := row.Scan(&t.ID, &t.AssignedToID, &t.AssignedByID, &t.AssignedDoctorID,
		&assigned, &due, &dueTime, &t.Notes, &t.Completed, &t.VisitRecordID)
	t.AssignedDate = db.DateValue(assigned)
	t.DueDate = db.DateValue(due)
	t.DueTime = db.TimeValue(dueTime)
	return &t, err
}

func (r *taskRepoPG) Create(ctx context.Context, t *Task) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_visit_task (assigned_to_id, assigned_by_id, assigned_doctor_id,
			assigned_date, due_date, due_time, notes, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING id`,
		t.AssignedToID, t.AssignedByID, t.AssignedDoctorID,
		db.DateParam(t.AssignedDate), db.DateParam(t.DueDate), db.TimeParam(t.DueTime), t.Notes,
	).Scan(&t.ID)
}

func (r *taskRepoPG) GetByID(ctx context.Context, id int64) (*Task, error) {
	return r.scanTask(r.conn(ctx).QueryRow(ctx, `SELECT `+taskCols+` FROM doctor_visit_task WHERE id = $1`, id))
}

func (r *taskRepoPG) GetForUpdate(ctx context.Context, id int64) (*Task, error) {
	return r.scanTask(r.conn(ctx).QueryRow(ctx,
		`SELECT `+taskCols+` FROM doctor_visit_task WHERE id = $1 FOR UPDATE`, id))
}

func (r *taskRepoPG) List(ctx context.Context, assignedTo *int64, limit, offset int) ([]*Task, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_visit_task WHERE ($1::bigint IS NULL OR assigned_to_id = $1)`, assignedTo,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+taskCols+` FROM doctor_visit_task
		WHERE ($1::bigint IS NULL OR assigned_to_id = $1)
		ORDER BY id LIMIT $2 OFFSET $3`, assignedTo, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Task
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *taskRepoPG) MarkCompleted(ctx context.Context, id, visitID int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_visit_task SET completed = TRUE, visit_record_id = $2
		WHERE id = $1 AND completed = FALSE`, id, visitID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
