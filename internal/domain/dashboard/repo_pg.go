package dashboard

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldforce/mrtracker/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func optDate(d *civil.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return db.DateParam(*d)
}

func (f VisitFilter) args() []interface{} {
	var vt *string
	if f.VisitType != nil {
		s := string(*f.VisitType)
		vt = &s
	}
	return []interface{}{f.MRID, optDate(f.From), optDate(f.To), vt}
}

const visitWhere = ` WHERE ($1::bigint IS NULL OR v.mr_id = $1)
	AND ($2::date IS NULL OR v.visit_date >= $2)
	AND ($3::date IS NULL OR v.visit_date <= $3)
	AND ($4::text IS NULL OR v.visit_type = $4)`

const newestFirst = ` ORDER BY v.visit_date DESC, v.visit_time DESC, v.id DESC`

const doctorVisitSelect = `SELECT v.id, v.mr_id, v.doctor_id, v.gps_lat, v.gps_long, v.notes,
	v.visit_date, v.visit_time, v.completed, v.visit_type,
	d.name, d.specialization, t.id, u.username
	FROM doctor_visit v
	JOIN doctor d ON d.id = v.doctor_id
	JOIN users u ON u.id = v.mr_id
	LEFT JOIN doctor_visit_task t ON t.visit_record_id = v.id`

func scanDoctorVisit(row pgx.Row) (*DoctorVisitRow, error) {
	var v DoctorVisitRow
	var date pgtype.Date
	var tm pgtype.Time
	err := row.Scan(&v.ID, &v.MRID, &v.DoctorID, &v.GPSLat, &v.GPSLong, &v.Notes,
		&date, &tm, &v.Completed, &v.VisitType,
		&v.DoctorName, &v.DoctorSpecialization, &v.TaskID, &v.MRUsername)
	v.VisitDate = db.DateValue(date)
	v.VisitTime = db.TimeValue(tm)
	v.IsAssignedTask = v.TaskID != nil
	return &v, err
}

func (r *repoPG) collectDoctorVisits(ctx context.Context, sql string, args ...interface{}) ([]*DoctorVisitRow, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*DoctorVisitRow
	for rows.Next() {
		v, err := scanDoctorVisit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) DoctorVisits(ctx context.Context, f VisitFilter) ([]*DoctorVisitRow, error) {
	return r.collectDoctorVisits(ctx, doctorVisitSelect+visitWhere+newestFirst, f.args()...)
}

func (r *repoPG) RecentDoctorVisits(ctx context.Context, limit int) ([]*DoctorVisitRow, error) {
	return r.collectDoctorVisits(ctx, doctorVisitSelect+newestFirst+` LIMIT $1`, limit)
}

func (r *repoPG) ShopVisits(ctx context.Context, f VisitFilter) ([]*ShopVisitRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT v.id, v.mr_id, v.shop_name, v.location, v.contact_person,
		v.notes, v.visit_date, v.visit_time, v.completed, v.visit_type, u.username
		FROM shop_visit v
		JOIN users u ON u.id = v.mr_id`+visitWhere+newestFirst, f.args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ShopVisitRow
	for rows.Next() {
		var v ShopVisitRow
		var date pgtype.Date
		var tm pgtype.Time
		if err := rows.Scan(&v.ID, &v.MRID, &v.ShopName, &v.Location, &v.ContactPerson,
			&v.Notes, &date, &tm, &v.Completed, &v.VisitType, &v.MRUsername); err != nil {
			return nil, err
		}
		v.VisitDate = db.DateValue(date)
		v.VisitTime = db.TimeValue(tm)
		items = append(items, &v)
	}
	return items, rows.Err()
}

func (r *repoPG) Tasks(ctx context.Context, assignedTo *int64) ([]*TaskRow, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT t.id, t.assigned_to_id, t.assigned_by_id, t.assigned_doctor_id,
		t.assigned_date, t.due_date, t.due_time, t.notes, t.completed, t.visit_record_id,
		u.username, d.name
		FROM doctor_visit_task t
		JOIN users u ON u.id = t.assigned_to_id
		JOIN doctor d ON d.id = t.assigned_doctor_id
		WHERE ($1::bigint IS NULL OR t.assigned_to_id = $1)
		ORDER BY t.id`, assignedTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TaskRow
	for rows.Next() {
		var t TaskRow
		var assigned, due pgtype.Date
		var dueTime pgtype.Time
		if err := rows.Scan(&t.ID, &t.AssignedToID, &t.AssignedByID, &t.AssignedDoctorID,
			&assigned, &due, &dueTime, &t.Notes, &t.Completed, &t.VisitRecordID,
			&t.MRUsername, &t.DoctorName); err != nil {
			return nil, err
		}
		t.AssignedDate = db.DateValue(assigned)
		t.DueDate = db.DateValue(due)
		t.DueTime = db.TimeValue(dueTime)
		items = append(items, &t)
	}
	return items, rows.Err()
}

func (r *repoPG) CountMRsWithVisits(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users u
		WHERE u.role = 'MR'
		AND (EXISTS (SELECT 1 FROM doctor_visit v WHERE v.mr_id = u.id)
			OR EXISTS (SELECT 1 FROM shop_visit s WHERE s.mr_id = u.id))`).Scan(&n)
	return n, err
}
