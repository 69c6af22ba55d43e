// Package export writes a plan as a spreadsheet for people who plan on paper.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/conflict"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
)

// Formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const (
	jobsSheet      = "Jobs"
	conflictsSheet = "Conflicts"
)

// JobHeader names the columns of a JobRow.
var JobHeader = []string{"Date", "Job", "Type", "Equipment", "Berth", "Description", "Hours", "Priority", "Start", "End", "Status", "Split", "Workers"}

// ConflictHeader names the columns of the conflict sheet.
var ConflictHeader = []string{"Conflict", "Type", "Severity", "Status", "Date", "Jobs", "Workers", "Description"}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Plan writes a plan's jobs (and, for xlsx, its conflicts) to w.
func Plan(db *gorm.DB, w io.Writer, planID uint, format string) error {
	switch format {
	case FormatXLSX, FormatCSV:
	default:
		return fmt.Errorf("export: %w", apperr.Business("no exporter for format %q", format))
	}
	jobs, err := JobRows(db, planID)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		return writeCSV(w, jobs)
	}
	conflicts, err := ConflictRows(db, planID)
	if err != nil {
		return err
	}
	return writeXLSX(w, jobs, conflicts)
}

// JobRows flattens a plan into one row per job, in day and start order.
func JobRows(db *gorm.DB, planID uint) ([][]string, error) {
	p, err := plan.GetTree(db, planID)
	if err != nil {
		return nil, err
	}
	users, equipment, err := names(db)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	for _, day := range p.Days {
		for _, j := range day.Jobs {
			eq := ""
			if j.EquipmentID != nil {
				eq = equipment[*j.EquipmentID]
			}
			workers := lo.Map(j.Assignments, func(a models.JobAssignment, _ int) string {
				if a.IsLead {
					return users[a.UserID] + " (lead)"
				}
				return users[a.UserID]
			})
			rows = append(rows, []string{
				day.Date.Format("2006-01-02"),
				strconv.FormatUint(uint64(j.ID), 10),
				j.JobType,
				eq,
				j.Berth,
				j.Description,
				strconv.FormatFloat(j.EstimatedHours, 'f', -1, 64),
				j.Priority,
				j.StartTime,
				j.EndTime,
				j.Status,
				splitLabel(j),
				strings.Join(workers, ", "),
			})
		}
	}
	return rows, nil
}

// ConflictRows lists a plan's conflicts, errors first.
func ConflictRows(db *gorm.DB, planID uint) ([][]string, error) {
	conflicts, err := conflict.List(db, planID, conflict.ListFilters{})
	if err != nil {
		return nil, err
	}
	p, err := plan.Get(db, planID)
	if err != nil {
		return nil, err
	}
	dates := make(map[uint]string, len(p.Days))
	for _, d := range p.Days {
		dates[d.ID] = d.Date.Format("2006-01-02")
	}
	rows := make([][]string, 0, len(conflicts))
	for _, c := range conflicts {
		date := ""
		if c.DayID != nil {
			date = dates[*c.DayID]
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(c.ID), 10),
			c.Type,
			c.Severity,
			c.Status,
			date,
			joinIDs(c.AffectedJobIDs),
			joinIDs(c.AffectedUserIDs),
			c.Description,
		})
	}
	return rows, nil
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(JobHeader); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, jobs, conflicts [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", jobsSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if _, err := f.NewSheet(conflictsSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := fillSheet(f, jobsSheet, JobHeader, jobs, map[int]bool{6: true}); err != nil {
		return err
	}
	if err := fillSheet(f, conflictsSheet, ConflictHeader, conflicts, nil); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

// fillSheet writes a header row and the rows below it. Columns listed in
// numeric are stored as numbers.
func fillSheet(f *excelize.File, sheet string, header []string, rows [][]string, numeric map[int]bool) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", toCells(header, nil)); err != nil {
		return fmt.Errorf("export: %s header: %w", sheet, err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("export: %s header style: %w", sheet, err)
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, toCells(r, numeric)); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toCells(row []string, numeric map[int]bool) *[]any {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
		if numeric[i] {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				cells[i] = f
			}
		}
	}
	return &cells
}

func names(db *gorm.DB) (users, equipment map[uint]string, err error) {
	var us []models.User
	if err := db.Select("id", "name").Find(&us).Error; err != nil {
		return nil, nil, fmt.Errorf("export: load users: %w", err)
	}
	var eqs []models.Equipment
	if err := db.Select("id", "name").Find(&eqs).Error; err != nil {
		return nil, nil, fmt.Errorf("export: load equipment: %w", err)
	}
	users = lo.SliceToMap(us, func(u models.User) (uint, string) { return u.ID, u.Name })
	equipment = lo.SliceToMap(eqs, func(e models.Equipment) (uint, string) { return e.ID, e.Name })
	return users, equipment, nil
}

func splitLabel(j models.Job) string {
	switch {
	case j.IsSplit:
		return "split"
	case j.SplitFromID != nil:
		return fmt.Sprintf("part %d of #%d", j.SplitPart, *j.SplitFromID)
	}
	return ""
}

func joinIDs(ids []uint) string {
	return strings.Join(lo.Map(ids, func(id uint, _ int) string { return strconv.FormatUint(uint64(id), 10) }), " ")
}
