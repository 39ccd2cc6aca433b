package visit

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
	"github.com/fieldforce/mrtracker/internal/platform/geo"
	"github.com/fieldforce/mrtracker/internal/platform/timefmt"
)

const (
	msgNotFound      = "Not found."
	msgNotOwner      = "You do not have permission to perform this action."
	msgFieldRequired = "%s: This field is required."
)

type Service struct {
	doctors      DoctorRepository
	doctorVisits DoctorVisitRepository
	shopVisits   ShopVisitRepository
	clock        timefmt.Clock
	logger       zerolog.Logger
}

func NewService(doctors DoctorRepository, doctorVisits DoctorVisitRepository, shopVisits ShopVisitRepository,
	clock timefmt.Clock, logger zerolog.Logger) *Service {
	return &Service{
		doctors:      doctors,
		doctorVisits: doctorVisits,
		shopVisits:   shopVisits,
		clock:        clock,
		logger:       logger.With().Str("component", "visit").Logger(),
	}
}

// scope returns the MR filter for list queries: MRs see their own rows,
// admins see everything.
func scope(caller auth.Principal) *int64 {
	if caller.IsAdmin() {
		return nil
	}
	id := caller.UserID
	return &id
}

func canAccess(caller auth.Principal, ownerID int64) bool {
	return caller.IsAdmin() || caller.UserID == ownerID
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(msgNotFound)
	}
	return err
}

// -- Doctor --

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (s *Service) CreateDoctor(ctx context.Context, caller auth.Principal, in DoctorInput) (*Doctor, error) {
	d := &Doctor{}
	if err := applyDoctor(d, in, false); err != nil {
		return nil, err
	}
	creator := caller.UserID
	d.CreatedByID = &creator
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("doctor_id", d.ID).Int64("user_id", caller.UserID).Msg("doctor created")
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, in DoctorInput, partial bool) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if err := applyDoctor(d, in, partial); err != nil {
		return nil, err
	}
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func applyDoctor(d *Doctor, in DoctorInput, partial bool) error {
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	} else if !partial {
		return apperr.Validation(msgFieldRequired, "name")
	}
	if in.Specialization != nil {
		d.Specialization = strings.TrimSpace(*in.Specialization)
	} else if !partial {
		return apperr.Validation(msgFieldRequired, "specialization")
	}
	if d.Name == "" {
		return apperr.Validation("name: This field may not be blank.")
	}
	if d.Specialization == "" {
		return apperr.Validation("specialization: This field may not be blank.")
	}
	return nil
}

// -- DoctorVisit --

// CreateDoctorVisit records a self-initiated visit by the caller. The date
// and time come from the server clock.
func (s *Service) CreateDoctorVisit(ctx context.Context, caller auth.Principal, in DoctorVisitInput) (*DoctorVisit, error) {
	if in.DoctorID == nil {
		return nil, apperr.Validation(msgFieldRequired, "doctor_name")
	}
	v := &DoctorVisit{
		MRID:      caller.UserID,
		VisitDate: s.clock.Today(),
		VisitTime: s.clock.TimeOfDay(),
		VisitType: VisitSelf,
	}
	if err := s.applyDoctorVisit(ctx, v, in); err != nil {
		return nil, err
	}
	if err := s.doctorVisits.Create(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("visit_id", v.ID).Int64("mr_id", v.MRID).Int64("doctor_id", v.DoctorID).Msg("doctor visit recorded")
	return v, nil
}

func (s *Service) ListDoctorVisits(ctx context.Context, caller auth.Principal, limit, offset int) ([]*DoctorVisit, int, error) {
	return s.doctorVisits.List(ctx, scope(caller), limit, offset)
}

func (s *Service) GetDoctorVisit(ctx context.Context, caller auth.Principal, id int64) (*DoctorVisit, error) {
	v, err := s.doctorVisits.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !canAccess(caller, v.MRID) {
		return nil, apperr.PermissionDenied(msgNotOwner)
	}
	return v, nil
}

// UpdateDoctorVisit changes the mutable fields of a visit. A full update
// requires the doctor reference; a partial update touches only the
// supplied fields.
func (s *Service) UpdateDoctorVisit(ctx context.Context, caller auth.Principal, id int64, in DoctorVisitInput, partial bool) (*DoctorVisit, error) {
	v, err := s.GetDoctorVisit(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !partial {
		if in.DoctorID == nil {
			return nil, apperr.Validation(msgFieldRequired, "doctor_name")
		}
		v.GPSLat, v.GPSLong = in.GPSLat, in.GPSLong
		v.Notes = ""
		v.Completed = false
	}
	if err := s.applyDoctorVisit(ctx, v, in); err != nil {
		return nil, err
	}
	if err := s.doctorVisits.Update(ctx, v); err != nil {
		return nil, notFound(err)
	}
	return s.doctorVisits.GetByID(ctx, v.ID)
}

func (s *Service) applyDoctorVisit(ctx context.Context, v *DoctorVisit, in DoctorVisitInput) error {
	if in.DoctorID != nil {
		d, err := s.doctors.GetByID(ctx, *in.DoctorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Validation(`doctor_name: Invalid pk "%d" - object does not exist.`, *in.DoctorID)
			}
			return err
		}
		v.DoctorID = d.ID
		v.DoctorName = d.Name
		v.DoctorSpecialization = d.Specialization
	}
	if in.GPSLat != nil {
		v.GPSLat = in.GPSLat
	}
	if in.GPSLong != nil {
		v.GPSLong = in.GPSLong
	}
	if err := geo.ValidateCoordinate(v.GPSLat, v.GPSLong); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if in.Notes != nil {
		v.Notes = *in.Notes
	}
	if in.Completed != nil {
		v.Completed = *in.Completed
	}
	return nil
}

// -- ShopVisit --

func (s *Service) CreateShopVisit(ctx context.Context, caller auth.Principal, in ShopVisitInput) (*ShopVisit, error) {
	v := &ShopVisit{
		MRID:      caller.UserID,
		VisitDate: s.clock.Today(),
		VisitTime: s.clock.TimeOfDay(),
		VisitType: VisitSelf,
	}
	if err := applyShopVisit(v, in, false); err != nil {
		return nil, err
	}
	if err := s.shopVisits.Create(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("visit_id", v.ID).Int64("mr_id", v.MRID).Msg("shop visit recorded")
	return v, nil
}

func (s *Service) ListShopVisits(ctx context.Context, caller auth.Principal, limit, offset int) ([]*ShopVisit, int, error) {
	return s.shopVisits.List(ctx, scope(caller), limit, offset)
}

func (s *Service) GetShopVisit(ctx context.Context, caller auth.Principal, id int64) (*ShopVisit, error) {
	v, err := s.shopVisits.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !canAccess(caller, v.MRID) {
		return nil, apperr.PermissionDenied(msgNotOwner)
	}
	return v, nil
}

func (s *Service) UpdateShopVisit(ctx context.Context, caller auth.Principal, id int64, in ShopVisitInput, partial bool) (*ShopVisit, error) {
	v, err := s.GetShopVisit(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := applyShopVisit(v, in, partial); err != nil {
		return nil, err
	}
	if err := s.shopVisits.Update(ctx, v); err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func applyShopVisit(v *ShopVisit, in ShopVisitInput, partial bool) error {
	if !partial {
		if in.ShopName == nil {
			return apperr.Validation(msgFieldRequired, "shop_name")
		}
		v.Location, v.ContactPerson = nil, nil
		v.Notes = ""
		v.Completed = false
	}
	if in.ShopName != nil {
		name := strings.TrimSpace(*in.ShopName)
		if name == "" {
			return apperr.Validation("shop_name: This field may not be blank.")
		}
		v.ShopName = name
	}
	if in.Location != nil {
		v.Location = in.Location
	}
	if in.ContactPerson != nil {
		v.ContactPerson = in.ContactPerson
	}
	if in.Notes != nil {
		v.Notes = *in.Notes
	}
	if in.Completed != nil {
		v.Completed = *in.Completed
	}
	return nil
}
