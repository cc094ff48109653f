package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"wisefido-patient-status/internal/domain"
	"wisefido-patient-status/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mrn", func(fl validator.FieldLevel) bool {
		return domain.MedicalRecordNumberPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("patient_status", func(fl validator.FieldLevel) bool {
		return domain.PatientStatusType(fl.Field().String()).Valid()
	})
	return v
}

var fieldLabels = map[string]string{
	"patientId":           "Patient ID",
	"patientName":         "Patient name",
	"medicalRecordNumber": "Medical record number",
	"status":              "Status",
	"department":          "Department",
	"roomNumber":          "Room number",
	"doctorName":          "Doctor name",
	"notes":               "Notes",
}

var statusListMessage = "Status must be one of: " + strings.Join(
	lo.Map(domain.AllStatuses, func(s domain.PatientStatusType, _ int) string { return string(s) }), ", ")

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// validateStruct runs the validate tags and returns a ValidationFailed error with
// one message per failing field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return service.NewValidationError([]string{err.Error()})
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	return service.NewValidationError(details)
}

func fieldMessage(fe validator.FieldError) string {
	name := label(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", name, fe.Param())
	case "mrn":
		return "Medical record number must be in format MR-XXXXXX (6-10 digits)"
	case "patient_status":
		return statusListMessage
	default:
		return name + " is invalid"
	}
}

// typeMessage is the detail for a JSON value of the wrong type.
func typeMessage(field string) string {
	if field == "status" {
		return statusListMessage
	}
	return label(field) + " must be a string"
}
