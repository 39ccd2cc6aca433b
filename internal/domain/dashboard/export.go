package dashboard

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"

	"github.com/fieldforce/mrtracker/internal/platform/timefmt"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetDoctorVisits = "Doctor Visits"
	sheetShopVisits   = "Shop Visits"
	sheetSummary      = "Summary"
)

// ExportMRDetail renders the MR detail for the same filters as a workbook.
// The caller owns the returned file and must Close it.
func (s *Service) ExportMRDetail(ctx context.Context, mrID int64, q DetailQuery) (*excelize.File, string, error) {
	d, err := s.MRDetail(ctx, mrID, q)
	if err != nil {
		return nil, "", err
	}
	f, err := buildWorkbook(d, s.clock)
	if err != nil {
		return nil, "", fmt.Errorf("build workbook: %w", err)
	}
	filename := fmt.Sprintf("mr_%s_visits_%s.xlsx", d.MRUsername, s.clock.Today())
	s.logger.Info().Int64("mr_id", d.MRID).
		Int("doctor_visits", len(d.DoctorVisits)).
		Int("shop_visits", len(d.ShopVisits)).
		Msg("MR visits exported")
	return f, filename, nil
}

func buildWorkbook(d *MRDetail, clock timefmt.Clock) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Color: "#FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	doctorRows := make([][]interface{}, 0, len(d.DoctorVisits))
	for _, v := range d.DoctorVisits {
		doctorRows = append(doctorRows, []interface{}{
			v.VisitDate.String(),
			timefmt.Clock12(v.VisitTime),
			v.DoctorName,
			v.DoctorSpecialization,
			string(v.VisitType),
			floatCell(v.GPSLat),
			floatCell(v.GPSLong),
			v.Notes,
		})
	}
	shopRows := make([][]interface{}, 0, len(d.ShopVisits))
	for _, v := range d.ShopVisits {
		shopRows = append(shopRows, []interface{}{
			v.VisitDate.String(),
			timefmt.Clock12(v.VisitTime),
			v.ShopName,
			stringCell(v.Location),
			stringCell(v.ContactPerson),
			string(v.VisitType),
			v.Notes,
		})
	}

	if err := writeTable(f, sheetDoctorVisits, headerStyle,
		[]string{"Date", "Time", "Doctor", "Specialization", "Visit Type", "GPS Lat", "GPS Long", "Notes"},
		doctorRows); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeTable(f, sheetShopVisits, headerStyle,
		[]string{"Date", "Time", "Shop", "Location", "Contact Person", "Visit Type", "Notes"},
		shopRows); err != nil {
		f.Close()
		return nil, err
	}

	st := d.Statistics
	summary := [][]interface{}{
		{"MR", d.MRName},
		{"Username", d.MRUsername},
		{"Start Date", dateCell(d.DateRange.StartDate)},
		{"End Date", dateCell(d.DateRange.EndDate)},
		{"Total Visits", st.TotalVisits},
		{"Doctor Visits", st.TotalDoctorVisits},
		{"Shop Visits", st.TotalShopVisits},
		{"Task-based Doctor Visits", st.TaskBasedDoctorVisits},
		{"Self Doctor Visits", st.SelfVisitDoctorVisits},
		{"Task-based Shop Visits", st.TaskBasedShopVisits},
		{"Self Shop Visits", st.SelfVisitShopVisits},
		{"Route Distance (km)", d.Route.DistanceKm},
		{"Generated", clock.Today().String() + " " + clock.TimeOfDay().String()},
	}
	if err := writeTable(f, sheetSummary, headerStyle, []string{"Metric", "Value"}, summary); err != nil {
		f.Close()
		return nil, err
	}

	if idx, err := f.GetSheetIndex(sheetDoctorVisits); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeTable(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheet, colName, colName, 20); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func dateCell(d *civil.Date) string {
	if d == nil {
		return "All"
	}
	return d.String()
}
