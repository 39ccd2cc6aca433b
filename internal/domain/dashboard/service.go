package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/fieldforce/mrtracker/internal/domain/identity"
	"github.com/fieldforce/mrtracker/internal/domain/visit"
	"github.com/fieldforce/mrtracker/internal/platform/apperr"
	"github.com/fieldforce/mrtracker/internal/platform/auth"
	"github.com/fieldforce/mrtracker/internal/platform/geo"
	"github.com/fieldforce/mrtracker/internal/platform/timefmt"
)

const (
	msgNotFound = "Not found."

	recentVisitsLimit = 10
	dailyVisitDays    = 7
	detailTopDoctors  = 5
	analyticsTopLimit = 10
)

// Service computes the dashboards. Nothing is cached; every call reads the
// current rows.
type Service struct {
	repo   Repository
	users  identity.UserRepository
	clock  timefmt.Clock
	logger zerolog.Logger
}

func NewService(repo Repository, users identity.UserRepository, clock timefmt.Clock, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		clock:  clock,
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
}

// MRDashboard is the calling MR's view of today and of their tasks.
func (s *Service) MRDashboard(ctx context.Context, caller auth.Principal) (*MRDashboard, error) {
	today := s.clock.Today()
	f := VisitFilter{MRID: &caller.UserID, From: &today, To: &today}

	doctorVisits, err := s.repo.DoctorVisits(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("doctor visits: %w", err)
	}
	shopVisits, err := s.repo.ShopVisits(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("shop visits: %w", err)
	}
	tasks, err := s.repo.Tasks(ctx, &caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}

	out := &MRDashboard{
		TodayVisits:        len(doctorVisits) + len(shopVisits),
		AssignedTasks:      taskItems(tasks),
		TodaysDoctorVisits: doctorVisitItems(doctorVisits),
		TodaysShopVisits:   make([]ShopVisitItem, 0, len(shopVisits)),
	}
	for _, v := range shopVisits {
		out.TodaysShopVisits = append(out.TodaysShopVisits, ShopVisitItem{
			ID:       v.ID,
			ShopName: v.ShopName,
			Location: v.Location,
			Notes:    v.Notes,
			Time:     timefmt.Clock12(v.VisitTime),
		})
	}
	return out, nil
}

// AdminDashboard is the organisation-wide view of today and the last week.
func (s *Service) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	today := s.clock.Today()
	days := timefmt.DaysEndingAt(today, dailyVisitDays)
	week := VisitFilter{From: &days[0], To: &today}

	mrs, err := s.users.ListByRole(ctx, auth.RoleMR)
	if err != nil {
		return nil, fmt.Errorf("list MRs: %w", err)
	}
	doctorVisits, err := s.repo.DoctorVisits(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("doctor visits: %w", err)
	}
	shopVisits, err := s.repo.ShopVisits(ctx, week)
	if err != nil {
		return nil, fmt.Errorf("shop visits: %w", err)
	}
	recent, err := s.repo.RecentDoctorVisits(ctx, recentVisitsLimit)
	if err != nil {
		return nil, fmt.Errorf("recent visits: %w", err)
	}
	tasks, err := s.repo.Tasks(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tasks: %w", err)
	}

	perDay := make(map[civil.Date]int, len(days))
	for _, v := range doctorVisits {
		perDay[v.VisitDate]++
	}
	for _, v := range shopVisits {
		perDay[v.VisitDate]++
	}

	var doctorToday []*DoctorVisitRow
	for _, v := range doctorVisits {
		if v.VisitDate == today {
			doctorToday = append(doctorToday, v)
		}
	}

	out := &AdminDashboard{
		Summary: AdminSummary{
			TotalVisitsToday: perDay[today],
			ActiveMRs:        len(mrs),
			CoverageRate:     coverageRate(mrs, doctorToday),
		},
		DailyVisits:   make([]DayCount, 0, len(days)),
		RecentVisits:  doctorVisitItems(recent),
		MRTracking:    tracking(mrs, doctorToday),
		AssignedTasks: taskItems(sortByDueDesc(tasks)),
	}
	if top := rankDoctors(doctorToday, 1); len(top) > 0 {
		out.Summary.TopDoctorToday = &TopDoctorToday{ID: top[0].DoctorID, Name: top[0].Name, Visits: top[0].Count}
	}
	for _, d := range days {
		out.DailyVisits = append(out.DailyVisits, DayCount{Date: d, Count: perDay[d]})
	}
	return out, nil
}

// MRDetail is one MR's filtered visit history. Unparsable dates and unknown
// visit types are ignored; a start after the end matches nothing.
func (s *Service) MRDetail(ctx context.Context, mrID int64, q DetailQuery) (*MRDetail, error) {
	mr, err := s.users.GetByID(ctx, mrID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(msgNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !mr.IsMR() {
		return nil, apperr.NotFound(msgNotFound)
	}

	f := VisitFilter{
		MRID: &mr.ID,
		From: timefmt.ParseOptionalDate(q.StartDate),
		To:   timefmt.ParseOptionalDate(q.EndDate),
	}
	if vt := visit.VisitType(q.VisitType); vt.Valid() {
		f.VisitType = &vt
	}

	doctorVisits, err := s.repo.DoctorVisits(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("doctor visits: %w", err)
	}
	shopVisits, err := s.repo.ShopVisits(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("shop visits: %w", err)
	}
	if doctorVisits == nil {
		doctorVisits = []*DoctorVisitRow{}
	}
	if shopVisits == nil {
		shopVisits = []*ShopVisitRow{}
	}

	out := &MRDetail{
		MRID:         mr.ID,
		MRUsername:   mr.Username,
		MRName:       mr.Name,
		TopDoctors:   rankDoctors(doctorVisits, detailTopDoctors),
		DoctorVisits: doctorVisits,
		ShopVisits:   shopVisits,
		Route:        route(doctorVisits),
		DateRange:    DateRange{StartDate: f.From, EndDate: f.To},
	}

	st := &out.Statistics
	st.TotalDoctorVisits = len(doctorVisits)
	st.TotalShopVisits = len(shopVisits)
	st.TotalVisits = st.TotalDoctorVisits + st.TotalShopVisits

	var doctorDates, shopDates []civil.Date
	for _, v := range doctorVisits {
		if v.VisitType == visit.VisitTask {
			st.TaskBasedDoctorVisits++
		} else {
			st.SelfVisitDoctorVisits++
		}
		doctorDates = append(doctorDates, v.VisitDate)
	}
	for _, v := range shopVisits {
		if v.VisitType == visit.VisitTask {
			st.TaskBasedShopVisits++
		} else {
			st.SelfVisitShopVisits++
		}
		shopDates = append(shopDates, v.VisitDate)
	}
	out.DailyDoctorVisits = countByDate(doctorDates)
	out.DailyShopVisits = countByDate(shopDates)
	return out, nil
}

// Analytics aggregates the rolling window selected by period.
func (s *Service) Analytics(ctx context.Context, period Period) (*Analytics, error) {
	today := s.clock.Today()
	start := today.AddDays(-period.lookback())
	window := VisitFilter{From: &start, To: &today}

	mrs, err := s.users.ListByRole(ctx, auth.RoleMR)
	if err != nil {
		return nil, fmt.Errorf("list MRs: %w", err)
	}
	doctorVisits, err := s.repo.DoctorVisits(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("doctor visits: %w", err)
	}
	shopVisits, err := s.repo.ShopVisits(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("shop visits: %w", err)
	}
	withVisits, err := s.repo.CountMRsWithVisits(ctx)
	if err != nil {
		return nil, fmt.Errorf("count MRs with visits: %w", err)
	}

	out := &Analytics{
		Period:    period,
		StartDate: start,
		EndDate:   today,
		Summary: AnalyticsSummary{
			TotalVisits:       len(doctorVisits) + len(shopVisits),
			TotalDoctorVisits: len(doctorVisits),
			TotalShopVisits:   len(shopVisits),
			MRsWithVisits:     withVisits,
			TotalMRs:          len(mrs),
		},
		MRPerformance: performance(mrs, doctorVisits, shopVisits),
		TopDoctors:    make([]DoctorTotal, 0, analyticsTopLimit),
	}
	for _, d := range rankDoctors(doctorVisits, analyticsTopLimit) {
		out.TopDoctors = append(out.TopDoctors, DoctorTotal{
			DoctorID:       d.DoctorID,
			Name:           d.Name,
			Specialization: d.Specialization,
			TotalVisits:    d.Count,
		})
	}

	trendDays := timefmt.DaysEndingAt(today, period.trendDays())
	doctorPerDay := make(map[civil.Date]int)
	shopPerDay := make(map[civil.Date]int)
	for _, v := range doctorVisits {
		doctorPerDay[v.VisitDate]++
	}
	for _, v := range shopVisits {
		shopPerDay[v.VisitDate]++
	}
	out.DailyTrends = make([]DailyTrend, 0, len(trendDays))
	for _, d := range trendDays {
		out.DailyTrends = append(out.DailyTrends, DailyTrend{
			Date:         d,
			DoctorVisits: doctorPerDay[d],
			ShopVisits:   shopPerDay[d],
			Total:        doctorPerDay[d] + shopPerDay[d],
		})
	}
	return out, nil
}

// coverageRate is the share of MRs with a doctor visit in visits, rounded
// half to even. Visitors who are not MRs do not count.
func coverageRate(mrs []*identity.User, visits []*DoctorVisitRow) string {
	if len(mrs) == 0 {
		return "0%"
	}
	isMR := make(map[int64]bool, len(mrs))
	for _, u := range mrs {
		isMR[u.ID] = true
	}
	visited := make(map[int64]bool)
	for _, v := range visits {
		if isMR[v.MRID] {
			visited[v.MRID] = true
		}
	}
	rate := math.RoundToEven(float64(len(visited)) / float64(len(mrs)) * 100)
	return fmt.Sprintf("%d%%", int(math.Min(math.Max(rate, 0), 100)))
}

// tracking reports each MR's doctor visits in visits, which must all be
// from the same day.
func tracking(mrs []*identity.User, visits []*DoctorVisitRow) []MRTracking {
	out := make([]MRTracking, 0, len(mrs))
	for _, u := range mrs {
		row := MRTracking{MRID: u.ID, MR: u.Username}
		var first, last *civil.Time
		for _, v := range visits {
			if v.MRID != u.ID {
				continue
			}
			row.VisitsToday++
			t := v.VisitTime
			if first == nil || t.Before(*first) {
				first = &t
			}
			if last == nil || last.Before(t) {
				last = &t
			}
		}
		if first != nil {
			punchIn, punchOut := timefmt.Clock12(*first), timefmt.Clock12(*last)
			row.FirstPunch, row.LastPunch = &punchIn, &punchOut
		}
		out = append(out, row)
	}
	return out
}

func performance(mrs []*identity.User, doctorVisits []*DoctorVisitRow, shopVisits []*ShopVisitRow) []MRPerformance {
	byMR := make(map[int64]*MRPerformance, len(mrs))
	out := make([]MRPerformance, len(mrs))
	for i, u := range mrs {
		out[i] = MRPerformance{MRID: u.ID, MRUsername: u.Username, MRName: u.Name}
		byMR[u.ID] = &out[i]
	}
	tally := func(p *MRPerformance, vt visit.VisitType) {
		p.TotalVisits++
		if vt == visit.VisitTask {
			p.TaskBasedVisits++
		} else {
			p.SelfVisits++
		}
	}
	for _, v := range doctorVisits {
		if p, ok := byMR[v.MRID]; ok {
			p.DoctorVisits++
			tally(p, v.VisitType)
		}
	}
	for _, v := range shopVisits {
		if p, ok := byMR[v.MRID]; ok {
			p.ShopVisits++
			tally(p, v.VisitType)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalVisits != out[j].TotalVisits {
			return out[i].TotalVisits > out[j].TotalVisits
		}
		return out[i].MRID < out[j].MRID
	})
	return out
}

// rankDoctors returns the n most visited doctors, ties going to the lowest
// doctor id.
func rankDoctors(visits []*DoctorVisitRow, n int) []DoctorCount {
	byDoctor := make(map[int64]*DoctorCount)
	for _, v := range visits {
		d, ok := byDoctor[v.DoctorID]
		if !ok {
			d = &DoctorCount{DoctorID: v.DoctorID, Name: v.DoctorName, Specialization: v.DoctorSpecialization}
			byDoctor[v.DoctorID] = d
		}
		d.Count++
	}
	out := make([]DoctorCount, 0, len(byDoctor))
	for _, d := range byDoctor {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].DoctorID < out[j].DoctorID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// countByDate returns per-date counts in ascending date order, omitting
// dates without visits.
func countByDate(dates []civil.Date) []DayCount {
	counts := make(map[civil.Date]int)
	for _, d := range dates {
		counts[d]++
	}
	out := make([]DayCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DayCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// route joins the GPS-tagged visits in chronological order.
func route(visits []*DoctorVisitRow) Route {
	var tagged []*DoctorVisitRow
	for _, v := range visits {
		if v.GPSLat != nil && v.GPSLong != nil {
			tagged = append(tagged, v)
		}
	}
	sort.SliceStable(tagged, func(i, j int) bool {
		a, b := tagged[i], tagged[j]
		if a.VisitDate != b.VisitDate {
			return a.VisitDate.Before(b.VisitDate)
		}
		if a.VisitTime != b.VisitTime {
			return a.VisitTime.Before(b.VisitTime)
		}
		return a.ID < b.ID
	})

	r := Route{Points: make([]RoutePoint, 0, len(tagged))}
	path := make([]orb.Point, 0, len(tagged))
	for _, v := range tagged {
		r.Points = append(r.Points, RoutePoint{
			Lat:     *v.GPSLat,
			Lng:     *v.GPSLong,
			VisitID: v.ID,
			Date:    v.VisitDate,
			Time:    v.VisitTime,
		})
		path = append(path, geo.Point(*v.GPSLat, *v.GPSLong))
	}
	r.DistanceKm = geo.RouteKm(path)
	return r
}

func taskItems(tasks []*TaskRow) []TaskItem {
	out := make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskItem{
			ID:     t.ID,
			MR:     t.MRUsername,
			Doctor: t.DoctorName,
			Date:   t.DueDate,
			Time:   t.DueTime,
			Status: t.Status(),
			Notes:  t.Notes,
		})
	}
	return out
}

func doctorVisitItems(visits []*DoctorVisitRow) []DoctorVisitItem {
	out := make([]DoctorVisitItem, 0, len(visits))
	for _, v := range visits {
		out = append(out, DoctorVisitItem{
			ID:      v.ID,
			MR:      v.MRUsername,
			Doctor:  v.DoctorName,
			Time:    timefmt.Clock12(v.VisitTime),
			Notes:   v.Notes,
			GPSLat:  v.GPSLat,
			GPSLong: v.GPSLong,
		})
	}
	return out
}

// sortByDueDesc orders tasks newest due first, then by descending id.
func sortByDueDesc(tasks []*TaskRow) []*TaskRow {
	sorted := append([]*TaskRow(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.DueDate != b.DueDate {
			return b.DueDate.Before(a.DueDate)
		}
		if a.DueTime != b.DueTime {
			return b.DueTime.Before(a.DueTime)
		}
		return a.ID > b.ID
	})
	return sorted
}
