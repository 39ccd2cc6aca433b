//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/domain/identity"
	"github.com/fieldforce/mrtracker/internal/domain/task"
	"github.com/fieldforce/mrtracker/internal/domain/visit"
	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
	"github.com/fieldforce/mrtracker/internal/platform/db"
)

func newTaskService() *task.Service {
	return task.NewService(
		task.NewTaskRepoPG(globalPool),
		visit.NewDoctorRepoPG(globalPool),
		visit.NewDoctorVisitRepoPG(globalPool),
		identity.NewUserRepoPG(globalPool),
		db.NewTransactor(globalPool),
		testClock,
		zerolog.Nop(),
	)
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)

	admin := createUser(t, ctx, "root", auth.RoleAdmin)
	mr := createUser(t, ctx, "alice", auth.RoleMR)
	doc := createDoctor(t, ctx, "Dr. Rao", "Cardiology")
	svc := newTaskService()

	created, err := svc.CreateTask(ctx, admin.Principal(), task.CreateInput{
		AssignedTo:     ptrInt64(mr.ID),
		AssignedDoctor: ptrInt64(doc.ID),
		DueDate:        ptrStr("2026-03-15"),
		DueTime:        ptrStr("11:30"),
		Notes:          "bring samples",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.ID == 0 || created.Completed || created.VisitRecordID != nil {
		t.Fatalf("unexpected new task %+v", created)
	}
	if created.AssignedDate != testClock.Today() {
		t.Errorf("assigned_date = %s, want %s", created.AssignedDate, testClock.Today())
	}

	t.Run("MR sees own task", func(t *testing.T) {
		tasks, total, err := svc.ListTasks(ctx, mr.Principal(), 20, 0)
		if err != nil {
			t.Fatalf("ListTasks: %v", err)
		}
		if total != 1 || len(tasks) != 1 || tasks[0].ID != created.ID {
			t.Fatalf("unexpected tasks %v (total %d)", tasks, total)
		}
	})

	t.Run("Complete", func(t *testing.T) {
		res, err := svc.CompleteTask(ctx, mr.Principal(), created.ID, task.CompleteInput{
			GPSLat:  ptrFloat(12.97),
			GPSLong: ptrFloat(77.59),
			Notes:   ptrStr("met at clinic"),
		})
		if err != nil {
			t.Fatalf("CompleteTask: %v", err)
		}

		got, err := svc.GetTask(ctx, mr.Principal(), created.ID)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if !got.Completed || got.VisitRecordID == nil || *got.VisitRecordID != res.VisitID {
			t.Fatalf("task not linked to visit: %+v", got)
		}

		v, err := visit.NewDoctorVisitRepoPG(globalPool).GetByID(ctx, res.VisitID)
		if err != nil {
			t.Fatalf("GetByID visit: %v", err)
		}
		if v.VisitType != visit.VisitTask || !v.Completed || v.DoctorID != doc.ID {
			t.Errorf("unexpected visit %+v", v)
		}
		if v.TaskID == nil || *v.TaskID != created.ID || !v.IsAssignedTask {
			t.Errorf("visit does not link back to the task: %+v", v)
		}
	})

	t.Run("Complete twice", func(t *testing.T) {
		_, err := svc.CompleteTask(ctx, mr.Principal(), created.ID, task.CompleteInput{})
		if apperr.KindOf(err) != apperr.KindConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})
}

func TestTaskCompletion_Concurrent(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)

	admin := createUser(t, ctx, "root", auth.RoleAdmin)
	mr := createUser(t, ctx, "alice", auth.RoleMR)
	doc := createDoctor(t, ctx, "Dr. Iyer", "Dermatology")
	svc := newTaskService()

	created, err := svc.CreateTask(ctx, admin.Principal(), task.CreateInput{
		AssignedTo:     ptrInt64(mr.ID),
		AssignedDoctor: ptrInt64(doc.ID),
		DueDate:        ptrStr("2026-03-14"),
		DueTime:        ptrStr("16:00"),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteTask(ctx, mr.Principal(), created.ID, task.CompleteInput{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", attempts-1, succeeded, conflicts)
	}

	var visits int
	err = globalPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_visit WHERE mr_id = $1 AND visit_type = 'task'`, mr.ID).Scan(&visits)
	if err != nil {
		t.Fatalf("count visits: %v", err)
	}
	if visits != 1 {
		t.Errorf("expected exactly one task visit, got %d", visits)
	}
}

func TestTaskCompletion_OtherMR(t *testing.T) {
	ctx := context.Background()
	resetTables(t, ctx)

	admin := createUser(t, ctx, "root", auth.RoleAdmin)
	alice := createUser(t, ctx, "alice", auth.RoleMR)
	bob := createUser(t, ctx, "bob", auth.RoleMR)
	doc := createDoctor(t, ctx, "Dr. Rao", "Cardiology")
	svc := newTaskService()

	created, err := svc.CreateTask(ctx, admin.Principal(), task.CreateInput{
		AssignedTo:     ptrInt64(alice.ID),
		AssignedDoctor: ptrInt64(doc.ID),
		DueDate:        ptrStr("2026-03-15"),
		DueTime:        ptrStr("10:00"),
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	_, err = svc.CompleteTask(ctx, bob.Principal(), created.ID, task.CompleteInput{})
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}

	var visits int
	if err := globalPool.QueryRow(ctx, `SELECT COUNT(*) FROM doctor_visit`).Scan(&visits); err != nil {
		t.Fatalf("count visits: %v", err)
	}
	if visits != 0 {
		t.Errorf("rejected completion left %d visit rows", visits)
	}
}
