package visit

import (
	"context"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

// DoctorVisitRepository lists newest first. A nil mrID lists every MR's
// visits.
type DoctorVisitRepository interface {
	Create(ctx context.Context, v *DoctorVisit) error
	GetByID(ctx context.Context, id int64) (*DoctorVisit, error)
	Update(ctx context.Context, v *DoctorVisit) error
	List(ctx context.Context, mrID *int64, limit, offset int) ([]*DoctorVisit, int, error)
}

type ShopVisitRepository interface {
	Create(ctx context.Context, v *ShopVisit) error
	GetByID(ctx context.Context, id int64) (*ShopVisit, error)
	Update(ctx context.Context, v *ShopVisit) error
	List(ctx context.Context, mrID *int64, limit, offset int) ([]*ShopVisit, int, error)
}
