package visit

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Doctor --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const doctorCols = `id, name, specialization, created_by_id, created_at`

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.CreatedByID, &d.CreatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (name, specialization, created_by_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		d.Name, d.Specialization, d.CreatedByID,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE doctor SET name = $2, specialization = $3 WHERE id = $1`,
		d.ID, d.Name, d.Specialization)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// -- DoctorVisit --

type doctorVisitRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorVisitRepoPG(pool *pgxpool.Pool) DoctorVisitRepository {
	return &doctorVisitRepoPG{pool: pool}
}

func (r *doctorVisitRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const doctorVisitSelect = `SELECT v.id, v.mr_id, v.doctor_id, v.gps_lat, v.gps_long, v.notes,
	v.visit_date, v.visit_time, v.completed, v.visit_type,
	d.name, d.specialization, t.id
	FROM doctor_visit v
	JOIN doctor d ON d.id = v.doctor_id
	LEFT JOIN doctor_visit_task t ON t.visit_record_id = v.id`

const newestFirst = ` ORDER BY v.visit_date DESC, v.visit_time DESC, v.id DESC`

func (r *doctorVisitRepoPG) scanVisit(row pgx.Row) (*DoctorVisit, error) {
	var v DoctorVisit
	var date pgtype.Date
	var tm pgtype.Time
	err := row.Scan(&v.ID, &v.MRID, &v.DoctorID, &v.GPSLat, &v.GPSLong, &v.Notes,
		&date, &tm, &v.Completed, &v.VisitType,
		&v.DoctorName, &v.DoctorSpecialization, &v.TaskID)
	v.VisitDate = db.DateValue(date)
	v.VisitTime = db.TimeValue(tm)
	v.IsAssignedTask = v.TaskID != nil
	return &v, err
}

func (r *doctorVisitRepoPG) Create(ctx context.Context, v *DoctorVisit) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_visit (mr_id, doctor_id, gps_lat, gps_long, notes, visit_date, visit_time, completed, visit_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		v.MRID, v.DoctorID, v.GPSLat, v.GPSLong, v.Notes,
		db.DateParam(v.VisitDate), db.TimeParam(v.VisitTime), v.Completed, v.VisitType,
	).Scan(&v.ID)
}

func (r *doctorVisitRepoPG) GetByID(ctx context.Context, id int64) (*DoctorVisit, error) {
	return r.scanVisit(r.conn(ctx).QueryRow(ctx, doctorVisitSelect+` WHERE v.id = $1`, id))
}

// Update writes the mutable columns only; owner, date, time and type are
// fixed at creation.
func (r *doctorVisitRepoPG) Update(ctx context.Context, v *DoctorVisit) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_visit SET doctor_id = $2, gps_lat = $3, gps_long = $4, notes = $5, completed = $6
		WHERE id = $1`,
		v.ID, v.DoctorID, v.GPSLat, v.GPSLong, v.Notes, v.Completed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *doctorVisitRepoPG) List(ctx context.Context, mrID *int64, limit, offset int) ([]*DoctorVisit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_visit WHERE ($1::bigint IS NULL OR mr_id = $1)`, mrID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		doctorVisitSelect+` WHERE ($1::bigint IS NULL OR v.mr_id = $1)`+newestFirst+` LIMIT $2 OFFSET $3`,
		mrID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*DoctorVisit
	for rows.Next() {
		v, err := r.scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

// -- ShopVisit --

type shopVisitRepoPG struct{ pool *pgxpool.Pool }

func NewShopVisitRepoPG(pool *pgxpool.Pool) ShopVisitRepository {
	return &shopVisitRepoPG{pool: pool}
}

func (r *shopVisitRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const shopVisitCols = `id, mr_id, shop_name, location, contact_person, notes,
	visit_date, visit_time, completed, visit_type`

func (r *shopVisitRepoPG) scanVisit(row pgx.Row) (*ShopVisit, error) {
	var v ShopVisit
	var date pgtype.Date
	var tm pgtype.Time
	err := row.Scan(&v.ID, &v.MRID, &v.ShopName, &v.Location, &v.ContactPerson, &v.Notes,
		&date, &tm, &v.Completed, &v.VisitType)
	v.VisitDate = db.DateValue(date)
	v.VisitTime = db.TimeValue(tm)
	return &v, err
}

func (r *shopVisitRepoPG) Create(ctx context.Context, v *ShopVisit) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO shop_visit (mr_id, shop_name, location, contact_person, notes, visit_date, visit_time, completed, visit_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		v.MRID, v.ShopName, v.Location, v.ContactPerson, v.Notes,
		db.DateParam(v.VisitDate), db.TimeParam(v.VisitTime), v.Completed, v.VisitType,
	).Scan(&v.ID)
}

func (r *shopVisitRepoPG) GetByID(ctx context.Context, id int64) (*ShopVisit, error) {
	return r.scanVisit(r.conn(ctx).QueryRow(ctx, `SELECT `+shopVisitCols+` FROM shop_visit WHERE id = $1`, id))
}

func (r *shopVisitRepoPG) Update(ctx context.Context, v *ShopVisit) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE shop_visit SET shop_name = $2, location = $3, contact_person = $4, notes = $5, completed = $6
		WHERE id = $1`,
		v.ID, v.ShopName, v.Location, v.ContactPerson, v.Notes, v.Completed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *shopVisitRepoPG) List(ctx context.Context, mrID *int64, limit, offset int) ([]*ShopVisit, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM shop_visit WHERE ($1::bigint IS NULL OR mr_id = $1)`, mrID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+shopVisitCols+` FROM shop_visit WHERE ($1::bigint IS NULL OR mr_id = $1)
		ORDER BY visit_date DESC, visit_time DESC, id DESC LIMIT $2 OFFSET $3`,
		mrID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ShopVisit
	for rows.Next() {
		v, err := r.scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}
