package task

import (
	"cloud.google.com/go/civil"
)

// Task maps to the doctor_visit_task table. A task starts pending with no
// visit record and is completed exactly once.
type Task struct {
	ID               int64      `db:"id" json:"id"`
	AssignedToID     int64      `db:"assigned_to_id" json:"assigned_to"`
	AssignedByID     int64      `db:"assigned_by_id" json:"assigned_by"`
	AssignedDoctorID int64      `db:"assigned_doctor_id" json:"assigned_doctor"`
	AssignedDate     civil.Date `db:"assigned_date" json:"assigned_date"`
	DueDate          civil.Date `db:"due_date" json:"due_date"`
	DueTime          civil.Time `db:"due_time" json:"due_time"`
	Notes            string     `db:"notes" json:"notes"`
	Completed        bool       `db:"completed" json:"completed"`
	VisitRecordID    *int64     `db:"visit_record_id" json:"visit_record"`
}

// Status is the dashboard label of the task.
func (t *Task) Status() string {
	if t.Completed {
		return "completed"
	}
	return "pending"
}

// CreateInput is the body of a task assignment. Dates and times arrive as
// strings so that format errors can be reported per field.
type CreateInput struct {
	AssignedTo     *int64  `json:"assigned_to"`
	AssignedDoctor *int64  `json:"assigned_doctor"`
	DueDate        *string `json:"due_date"`
	DueTime        *string `json:"due_time"`
	Notes          string  `json:"notes"`
}

type CompleteInput struct {
	GPSLat  *float64 `json:"gps_lat"`
	GPSLong *float64 `json:"gps_long"`
	Notes   *string  `json:"notes"`
}

type CompleteResult struct {
	Message string `json:"message"`
	TaskID  int64  `json:"task_id"`
	VisitID int64  `json:"visit_id"`
}
