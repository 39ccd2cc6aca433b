package task

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/domain/identity"
	"github.com/fieldforce/mrtracker/internal/domain/visit"
	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
	"github.com/fieldforce/mrtracker/internal/platform/db"
	"github.com/fieldforce/mrtracker/internal/platform/geo"
	"github.com/fieldforce/mrtracker/internal/platform/timefmt"
)

const (
	msgSelfAssign       = "You cannot assign a task to yourself."
	msgAdminOnly        = "You do not have permission to perform this action."
	msgNotAssignee      = "You cannot complete a task not assigned to you."
	msgAlreadyCompleted = "This task has already been completed."
	msgCompleted        = "Task completed successfully."
	msgNotFound         = "Not found."
	msgInvalidPK        = `%s: Invalid pk "%d" - object does not exist.`
	msgFieldRequired    = "%s: This field is required."
)

type Service struct {
	tasks   TaskRepository
	doctors visit.DoctorRepository
	visits  visit.DoctorVisitRepository
	users   identity.UserRepository
	tx      db.Transactor
	clock   timefmt.Clock
	logger  zerolog.Logger
}

func NewService(tasks TaskRepository, doctors visit.DoctorRepository, visits visit.DoctorVisitRepository,
	users identity.UserRepository, tx db.Transactor, clock timefmt.Clock, logger zerolog.Logger) *Service {
	return &Service{
		tasks:   tasks,
		doctors: doctors,
		visits:  visits,
		users:   users,
		tx:      tx,
		clock:   clock,
		logger:  logger.With().Str("component", "task").Logger(),
	}
}

// CreateTask assigns a doctor visit to an MR. Self-assignment is rejected
// before the role check, so it is a validation error for every caller.
func (s *Service) CreateTask(ctx context.Context, caller auth.Principal, in CreateInput) (*Task, error) {
	if in.AssignedTo == nil {
		return nil, apperr.Validation(msgFieldRequired, "assigned_to")
	}
	if *in.AssignedTo == caller.UserID {
		return nil, apperr.Validation(msgSelfAssign)
	}
	if !caller.IsAdmin() {
		return nil, apperr.PermissionDenied(msgAdminOnly)
	}

	assignee, err := s.users.GetByID(ctx, *in.AssignedTo)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil || !assignee.IsMR() {
		return nil, apperr.Validation(msgInvalidPK, "assigned_to", *in.AssignedTo)
	}

	if in.AssignedDoctor == nil {
		return nil, apperr.Validation(msgFieldRequired, "assigned_doctor")
	}
	if _, err := s.doctors.GetByID(ctx, *in.AssignedDoctor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Validation(msgInvalidPK, "assigned_doctor", *in.AssignedDoctor)
		}
		return nil, err
	}

	if in.DueDate == nil {
		return nil, apperr.Validation(msgFieldRequired, "due_date")
	}
	dueDate, err := timefmt.ParseDate(*in.DueDate)
	if err != nil {
		return nil, apperr.Validation("due_date: %s", err.Error())
	}
	if in.DueTime == nil {
		return nil, apperr.Validation(msgFieldRequired, "due_time")
	}
	dueTime, err := timefmt.ParseTimeOfDay(*in.DueTime)
	if err != nil {
		return nil, apperr.Validation("due_time: %s", err.Error())
	}

	t := &Task{
		AssignedToID:     assignee.ID,
		AssignedByID:     caller.UserID,
		AssignedDoctorID: *in.AssignedDoctor,
		AssignedDate:     s.clock.Today(),
		DueDate:          dueDate,
		DueTime:          dueTime,
		Notes:            in.Notes,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("task_id", t.ID).Int64("assigned_to", t.AssignedToID).
		Int64("assigned_by", t.AssignedByID).Int64("doctor_id", t.AssignedDoctorID).Msg("task assigned")
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, caller auth.Principal, limit, offset int) ([]*Task, int, error) {
	var assignedTo *int64
	if !caller.IsAdmin() {
		id := caller.UserID
		assignedTo = &id
	}
	return s.tasks.List(ctx, assignedTo, limit, offset)
}

func (s *Service) GetTask(ctx context.Context, caller auth.Principal, id int64) (*Task, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, err
	}
	if !caller.IsAdmin() && t.AssignedToID != caller.UserID {
		return nil, apperr.PermissionDenied(msgAdminOnly)
	}
	return t, nil
}

// CompleteTask records the visit that fulfils a task and links it, in one
// transaction. The task row is locked first and the final update only
// matches a pending task, so concurrent completions produce one visit.
func (s *Service) CompleteTask(ctx context.Context, caller auth.Principal, id int64, in CompleteInput) (*CompleteResult, error) {
	if err := geo.ValidateCoordinate(in.GPSLat, in.GPSLong); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var result *CompleteResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.tasks.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound(msgNotFound)
			}
			return err
		}
		if t.AssignedToID != caller.UserID {
			return apperr.PermissionDenied(msgNotAssignee)
		}
		if t.Completed {
			return apperr.Conflict(msgAlreadyCompleted)
		}

		v := &visit.DoctorVisit{
			MRID:      caller.UserID,
			DoctorID:  t.AssignedDoctorID,
			GPSLat:    in.GPSLat,
			GPSLong:   in.GPSLong,
			VisitDate: s.clock.Today(),
			VisitTime: s.clock.TimeOfDay(),
			Completed: true,
			VisitType: visit.VisitTask,
		}
		if in.Notes != nil {
			v.Notes = *in.Notes
		}
		if err := s.visits.Create(ctx, v); err != nil {
			return err
		}

		ok, err := s.tasks.MarkCompleted(ctx, t.ID, v.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(msgAlreadyCompleted)
		}
		result = &CompleteResult{Message: msgCompleted, TaskID: t.ID, VisitID: v.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("task_id", result.TaskID).Int64("visit_id", result.VisitID).
		Int64("mr_id", caller.UserID).Msg("task completed")
	return result, nil
}
