package visit

import (
	"time"

	"cloud.google.com/go/civil"
)

// VisitType records whether a visit was logged on the MR's own initiative
// or produced by completing an assigned task.
type VisitType string

const (
	VisitSelf VisitType = "self"
	VisitTask VisitType = "task"
)

func (t VisitType) Valid() bool {
	return t == VisitSelf || t == VisitTask
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Specialization string    `db:"specialization" json:"specialization"`
	CreatedByID    *int64    `db:"created_by_id" json:"created_by"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
}

// DoctorVisit maps to the doctor_visit table. The doctor reference keeps
// the doctor_name key on the wire; the joined doctor fields and the task
// back-link are read-only.
type DoctorVisit struct {
	ID        int64      `db:"id" json:"id"`
	MRID      int64      `db:"mr_id" json:"mr"`
	DoctorID  int64      `db:"doctor_id" json:"doctor_name"`
	GPSLat    *float64   `db:"gps_lat" json:"gps_lat"`
	GPSLong   *float64   `db:"gps_long" json:"gps_long"`
	Notes     string     `db:"notes" json:"notes"`
	VisitDate civil.Date `db:"visit_date" json:"visit_date"`
	VisitTime civil.Time `db:"visit_time" json:"visit_time"`
	Completed bool       `db:"completed" json:"completed"`
	VisitType VisitType  `db:"visit_type" json:"visit_type"`

	DoctorName           string `json:"doctor_name_display"`
	DoctorSpecialization string `json:"doctor_specialization"`
	TaskID               *int64 `json:"task_id"`
	IsAssignedTask       bool   `json:"is_assigned_task"`
}

// ShopVisit maps to the shop_visit table.
type ShopVisit struct {
	ID            int64      `db:"id" json:"id"`
	MRID          int64      `db:"mr_id" json:"mr"`
	ShopName      string     `db:"shop_name" json:"shop_name"`
	Location      *string    `db:"location" json:"location"`
	ContactPerson *string    `db:"contact_person" json:"contact_person"`
	Notes         string     `db:"notes" json:"notes"`
	VisitDate     civil.Date `db:"visit_date" json:"visit_date"`
	VisitTime     civil.Time `db:"visit_time" json:"visit_time"`
	Completed     bool       `db:"completed" json:"completed"`
	VisitType     VisitType  `db:"visit_type" json:"visit_type"`
}

// DoctorInput is the create/update body of a doctor. Nil fields are left
// untouched by a partial update.
type DoctorInput struct {
	Name           *string `json:"name"`
	Specialization *string `json:"specialization"`
}

// DoctorVisitInput is the create/update body of a doctor visit. The owner,
// date and time are server-assigned, so they have no field here.
type DoctorVisitInput struct {
	DoctorID  *int64   `json:"doctor_name"`
	GPSLat    *float64 `json:"gps_lat"`
	GPSLong   *float64 `json:"gps_long"`
	Notes     *string  `json:"notes"`
	Completed *bool    `json:"completed"`
}

type ShopVisitInput struct {
	ShopName      *string `json:"shop_name"`
	Location      *string `json:"location"`
	ContactPerson *string `json:"contact_person"`
	Notes         *string `json:"notes"`
	Completed     *bool   `json:"completed"`
}
