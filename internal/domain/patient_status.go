package domain

import (
	"regexp"
	"time"
)

// PatientStatusType 患者状态枚举
type PatientStatusType string

const (
	StatusRegistered    PatientStatusType = "REGISTERED"
	StatusWaiting       PatientStatusType = "WAITING"
	StatusInExamination PatientStatusType = "IN_EXAMINATION"
	StatusLabTest       PatientStatusType = "LAB_TEST"
	StatusRadiology     PatientStatusType = "RADIOLOGY"
	StatusPharmacy      PatientStatusType = "PHARMACY"
	StatusInpatient     PatientStatusType = "INPATIENT"
	StatusSurgery       PatientStatusType = "SURGERY"
	StatusRecovery      PatientStatusType = "RECOVERY"
	StatusDischarged    PatientStatusType = "DISCHARGED"
	StatusReferred      PatientStatusType = "REFERRED"
	StatusCancelled     PatientStatusType = "CANCELLED"
)

// AllStatuses 按业务流程排序
var AllStatuses = []PatientStatusType{
	StatusRegistered,
	StatusWaiting,
	StatusInExamination,
	StatusLabTest,
	StatusRadiology,
	StatusPharmacy,
	StatusInpatient,
	StatusSurgery,
	StatusRecovery,
	StatusDischarged,
	StatusReferred,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s PatientStatusType) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// MedicalRecordNumberPattern MR-XXXXXX (6-10 digits)
var MedicalRecordNumberPattern = regexp.MustCompile(`^MR-[0-9]{6,10}$`)

// TimestampLayout UTC, millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t the way records store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// PatientStatus 患者状态记录（Redis hash patient_status 中的 JSON 值）
type PatientStatus struct {
	ID                  string             `json:"id"`
	PatientID           string             `json:"patientId"`
	PatientName         string             `json:"patientName"`
	MedicalRecordNumber string             `json:"medicalRecordNumber"`
	Status              PatientStatusType  `json:"status"`
	PreviousStatus      *PatientStatusType `json:"previousStatus,omitempty"`
	Department          string             `json:"department"`
	RoomNumber          *string            `json:"roomNumber,omitempty"`
	DoctorName          *string            `json:"doctorName,omitempty"`
	Notes               *string            `json:"notes,omitempty"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy"`

	// soft delete: DeletedAt/DeletedBy are set iff IsDeleted
	IsDeleted bool    `json:"isDeleted"`
	DeletedAt *string `json:"deletedAt,omitempty"`
	DeletedBy *string `json:"deletedBy,omitempty"`
}

// UpdatedTime parses UpdatedAt; zero time when unparseable.
func (p *PatientStatus) UpdatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, p.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreatePatientStatusInput 创建输入（由 HTTP 层校验后传入）
type CreatePatientStatusInput struct {
	PatientID           string            `json:"patientId" validate:"required,min=3,max=50"`
	PatientName         string            `json:"patientName" validate:"required,min=2,max=100"`
	MedicalRecordNumber string            `json:"medicalRecordNumber" validate:"required,mrn"`
	Status              PatientStatusType `json:"status" validate:"required,patient_status"`
	Department          string            `json:"department" validate:"required,min=2,max=50"`
	RoomNumber          *string           `json:"roomNumber,omitempty" validate:"omitempty,max=20"`
	DoctorName          *string           `json:"doctorName,omitempty" validate:"omitempty,max=100"`
	Notes               *string           `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// UpdatePatientStatusPatch 部分更新：nil 表示未提供，非 nil 则覆盖（"" 清空可选字段）
type UpdatePatientStatusPatch struct {
	Status     *PatientStatusType `json:"status,omitempty" validate:"omitempty,patient_status"`
	Department *string            `json:"department,omitempty" validate:"omitempty,min=2,max=50"`
	RoomNumber *string            `json:"roomNumber,omitempty" validate:"omitempty,max=20"`
	DoctorName *string            `json:"doctorName,omitempty" validate:"omitempty,max=100"`
	Notes      *string            `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// PatientStatusFilter 列表过滤条件
type PatientStatusFilter struct {
	Status         *PatientStatusType
	Department     string // case-insensitive substring
	PatientID      string // exact
	IncludeDeleted bool
}

// PatientStatusStatistics 统计结果
type PatientStatusStatistics struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Deleted  int            `json:"deleted"`
	ByStatus map[string]int `json:"byStatus"`
}
