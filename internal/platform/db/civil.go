package db

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgtype"
)

// DATE and TIME columns are mapped to civil values so a visit date never
// drifts with the server's local zone.

func DateParam(d civil.Date) pgtype.Date {
	if !d.IsValid() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func DateValue(d pgtype.Date) civil.Date {
	if !d.Valid {
		return civil.Date{}
	}
	return civil.DateOf(d.Time)
}

func TimeParam(t civil.Time) pgtype.Time {
	if !t.IsValid() {
		return pgtype.Time{}
	}
	us := int64(t.Hour)*int64(time.Hour/time.Microsecond) +
		int64(t.Minute)*int64(time.Minute/time.Microsecond) +
		int64(t.Second)*int64(time.Second/time.Microsecond) +
		int64(t.Nanosecond)/int64(time.Microsecond)
	return pgtype.Time{Microseconds: us, Valid: true}
}

func TimeValue(t pgtype.Time) civil.Time {
	if !t.Valid {
		return civil.Time{}
	}
	d := time.Duration(t.Microseconds) * time.Microsecond
	return civil.Time{
		Hour:       int(d / time.Hour),
		Minute:     int(d % time.Hour / time.Minute),
		Second:     int(d % time.Minute / time.Second),
		Nanosecond: int(d % time.Second),
	}
}
