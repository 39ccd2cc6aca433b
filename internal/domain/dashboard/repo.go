package dashboard

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/fieldforce/mrtracker/internal/domain/visit"
)

// VisitFilter narrows a visit query. Nil fields are not applied; From and
// To are inclusive.
type VisitFilter struct {
	MRID      *int64
	From      *civil.Date
	To        *civil.Date
	VisitType *visit.VisitType
}

// Repository is the read side the dashboards aggregate over. Visit queries
// return rows newest first.
type Repository interface {
	DoctorVisits(ctx context.Context, f VisitFilter) ([]*DoctorVisitRow, error)
	ShopVisits(ctx context.Context, f VisitFilter) ([]*ShopVisitRow, error)
	RecentDoctorVisits(ctx context.Context, limit int) ([]*DoctorVisitRow, error)
	// Tasks returns tasks ordered by id, optionally for one assignee.
	Tasks(ctx context.Context, assignedTo *int64) ([]*TaskRow, error)
	CountMRsWithVisits(ctx context.Context) (int, error)
}
