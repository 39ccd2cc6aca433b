package dashboard

import (
	"cloud.google.com/go/civil"

	"github.com/fieldforce/mrtracker/internal/domain/task"
	"github.com/fieldforce/mrtracker/internal/domain/visit"
)

// DoctorVisitRow is a doctor visit joined with the visiting user.
type DoctorVisitRow struct {
	visit.DoctorVisit
	MRUsername string `json:"-"`
}

type ShopVisitRow struct {
	visit.ShopVisit
	MRUsername string `json:"-"`
}

// TaskRow is a task joined with the assignee's username and the doctor's name.
type TaskRow struct {
	task.Task
	MRUsername string
	DoctorName string
}

// -- MR dashboard --

type TaskItem struct {
	ID     int64      `json:"id"`
	MR     string     `json:"mr"`
	Doctor string     `json:"doctor"`
	Date   civil.Date `json:"date"`
	Time   civil.Time `json:"time"`
	Status string     `json:"status"`
	Notes  string     `json:"notes"`
}

type DoctorVisitItem struct {
	ID      int64    `json:"id"`
	MR      string   `json:"mr"`
	Doctor  string   `json:"doctor"`
	Time    string   `json:"time"`
	Notes   string   `json:"notes"`
	GPSLat  *float64 `json:"gps_lat"`
	GPSLong *float64 `json:"gps_long"`
}

type ShopVisitItem struct {
	ID       int64   `json:"id"`
	ShopName string  `json:"shop_name"`
	Location *string `json:"location"`
	Notes    string  `json:"notes"`
	Time     string  `json:"time"`
}

type MRDashboard struct {
	TodayVisits        int               `json:"today_visits"`
	AssignedTasks      []TaskItem        `json:"assigned_tasks"`
	TodaysDoctorVisits []DoctorVisitItem `json:"todays_doctor_visits"`
	TodaysShopVisits   []ShopVisitItem   `json:"todays_shop_visits"`
}

// -- Admin dashboard --

type TopDoctorToday struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Visits int    `json:"visits"`
}

type AdminSummary struct {
	TotalVisitsToday int             `json:"total_visits_today"`
	ActiveMRs        int             `json:"active_mrs"`
	CoverageRate     string          `json:"coverage_rate"`
	TopDoctorToday   *TopDoctorToday `json:"top_doctor_today"`
}

type DayCount struct {
	Date  civil.Date `json:"date"`
	Count int        `json:"count"`
}

// MRTracking is one MR's punch-in/out for today. The punches are nil until
// the MR logs a doctor visit.
type MRTracking struct {
	MRID        int64   `json:"mr_id"`
	MR          string  `json:"mr"`
	VisitsToday int     `json:"visits_today"`
	FirstPunch  *string `json:"first_punch"`
	LastPunch   *string `json:"last_punch"`
}

type AdminDashboard struct {
	Summary       AdminSummary      `json:"summary"`
	DailyVisits   []DayCount        `json:"daily_visits"`
	RecentVisits  []DoctorVisitItem `json:"recent_visits"`
	MRTracking    []MRTracking      `json:"mr_tracking"`
	AssignedTasks []TaskItem        `json:"assigned_tasks"`
}

// -- MR detail --

// DetailQuery carries the raw MR detail filters. Values that do not parse
// are ignored rather than rejected.
type DetailQuery struct {
	StartDate string
	EndDate   string
	VisitType string
}

type VisitStatistics struct {
	TotalVisits           int `json:"total_visits"`
	TotalDoctorVisits     int `json:"total_doctor_visits"`
	TotalShopVisits       int `json:"total_shop_visits"`
	TaskBasedDoctorVisits int `json:"task_based_doctor_visits"`
	SelfVisitDoctorVisits int `json:"self_visit_doctor_visits"`
	TaskBasedShopVisits   int `json:"task_based_shop_visits"`
	SelfVisitShopVisits   int `json:"self_visit_shop_visits"`
}

type DoctorCount struct {
	DoctorID       int64  `json:"doctor_id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	Count          int    `json:"count"`
}

type RoutePoint struct {
	Lat     float64    `json:"lat"`
	Lng     float64    `json:"lng"`
	VisitID int64      `json:"visit_id"`
	Date    civil.Date `json:"date"`
	Time    civil.Time `json:"time"`
}

type Route struct {
	Points     []RoutePoint `json:"points"`
	DistanceKm float64      `json:"distance_km"`
}

type DateRange struct {
	StartDate *civil.Date `json:"start_date"`
	EndDate   *civil.Date `json:"end_date"`
}

type MRDetail struct {
	MRID              int64             `json:"mr_id"`
	MRUsername        string            `json:"mr_username"`
	MRName            string            `json:"mr_name"`
	Statistics        VisitStatistics   `json:"statistics"`
	TopDoctors        []DoctorCount     `json:"top_doctors"`
	DoctorVisits      []*DoctorVisitRow `json:"doctor_visits"`
	ShopVisits        []*ShopVisitRow   `json:"shop_visits"`
	DailyDoctorVisits []DayCount        `json:"daily_doctor_visits"`
	DailyShopVisits   []DayCount        `json:"daily_shop_visits"`
	Route             Route             `json:"route"`
	DateRange         DateRange         `json:"date_range"`
}

// -- Analytics --

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps unknown values to PeriodDay.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodWeek, PeriodMonth:
		return Period(s)
	}
	return PeriodDay
}

// lookback is how many days before today the window starts.
func (p Period) lookback() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 30
	}
	return 0
}

// trendDays is the length of the daily trend series ending today.
func (p Period) trendDays() int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodMonth:
		return 30
	}
	return 1
}

type AnalyticsSummary struct {
	TotalVisits       int `json:"total_visits"`
	TotalDoctorVisits int `json:"total_doctor_visits"`
	TotalShopVisits   int `json:"total_shop_visits"`
	MRsWithVisits     int `json:"mrs_with_visits"`
	TotalMRs          int `json:"total_mrs"`
}

type MRPerformance struct {
	MRID            int64  `json:"mr_id"`
	MRUsername      string `json:"mr_username"`
	MRName          string `json:"mr_name"`
	DoctorVisits    int    `json:"doctor_visits"`
	ShopVisits      int    `json:"shop_visits"`
	TotalVisits     int    `json:"total_visits"`
	TaskBasedVisits int    `json:"task_based_visits"`
	SelfVisits      int    `json:"self_visits"`
}

type DoctorTotal struct {
	DoctorID       int64  `json:"doctor_id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	TotalVisits    int    `json:"total_visits"`
}

type DailyTrend struct {
	Date         civil.Date `json:"date"`
	DoctorVisits int        `json:"doctor_visits"`
	ShopVisits   int        `json:"shop_visits"`
	Total        int        `json:"total"`
}

type Analytics struct {
	Period        Period           `json:"period"`
	StartDate     civil.Date       `json:"start_date"`
	EndDate       civil.Date       `json:"end_date"`
	Summary       AnalyticsSummary `json:"summary"`
	MRPerformance []MRPerformance  `json:"mr_performance"`
	TopDoctors    []DoctorTotal    `json:"top_doctors"`
	DailyTrends   []DailyTrend     `json:"daily_trends"`
}
