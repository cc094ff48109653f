package httpapi

import (
	"bytes"
	"fmt"
	"net/http"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/service"

	"github.com/xuri/excelize/v2"
)

// PatientStatusExportHeader 导出表头
var PatientStatusExportHeader = []string{
	"ID",
	"Patient ID",
	"Patient Name",
	"Medical Record Number",
	"Status",
	"Previous Status",
	"Department",
	"Room Number",
	"Doctor Name",
	"Notes",
	"Created At",
	"Updated At",
	"Created By",
	"Updated By",
	"Deleted",
	"Deleted At",
	"Deleted By",
}

const exportSheetName = "Patient Status"

var exportColumnWidths = []float64{38, 15, 25, 22, 16, 16, 20, 12, 20, 40, 26, 26, 12, 12, 10, 26, 12}

func exportRow(rec domain.PatientStatus) []any {
	deleted := "No"
	if rec.IsDeleted {
		deleted = "Yes"
	}
	prev := ""
	if rec.PreviousStatus != nil {
		prev = string(*rec.PreviousStatus)
	}
	return []any{
		rec.ID,
		rec.PatientID,
		rec.PatientName,
		rec.MedicalRecordNumber,
		string(rec.Status),
		prev,
		rec.Department,
		deref(rec.RoomNumber),
		deref(rec.DoctorName),
		deref(rec.Notes),
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CreatedBy,
		rec.UpdatedBy,
		deleted,
		deref(rec.DeletedAt),
		deref(rec.DeletedBy),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GeneratePatientStatusExport 生成导出 Excel（表头 + 每条记录一行，冻结首行）
func GeneratePatientStatusExport(records []domain.PatientStatus) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(exportSheetName, "A1", &PatientStatusExportHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(PatientStatusExportHeader), 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(exportSheetName, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range exportColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(exportSheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := exportRow(rec)
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// 冻结表头
	if err := f.SetPanes(exportSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// Export GET /api/v1/patient-status/export，过滤条件同列表
func (h *PatientStatusHandler) Export(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, service.OpExport); !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	records, err := h.store.FindAll(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	data, err := GeneratePatientStatusExport(records)
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("generate export: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=patient-status-export.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
