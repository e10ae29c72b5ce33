package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/xerrors"
)

const emergencyTTL = 24 * time.Hour

// EmergencyAlert broadcasts a critical, acknowledged alert to a department, or
// to every connected user when department is empty. It expires after 24h.
func (s *NotificationService) EmergencyAlert(ctx context.Context, title, message string, data map[string]any, department string) ([]string, error) {
	expires := s.now().Add(emergencyTTL)
	in := domain.NotificationInput{
		Type:                   domain.TypeEmergencyAlert,
		Priority:               domain.PriorityCritical,
		Title:                  title,
		Message:                message,
		Data:                   data,
		Department:             department,
		RequiresAcknowledgment: true,
		ExpiresAt:              &expires,
	}
	criteria := domain.BroadcastCriteria{All: true}
	if department != "" {
		criteria = domain.BroadcastCriteria{Department: department}
	}
	return s.BroadcastNotification(ctx, in, criteria)
}

// CriticalResultAlert notifies the ordering practitioner of a critical lab value.
func (s *NotificationService) CriticalResultAlert(ctx context.Context, patientID, testName string, value any, practitionerID string) (string, error) {
	if strings.TrimSpace(patientID) == "" {
		return "", fmt.Errorf("%w: patient id required", xerrors.ErrInvalidInput)
	}
	return s.SendNotification(ctx, domain.NotificationInput{
		Type:     domain.TypeCriticalResult,
		Priority: domain.PriorityCritical,
		Title:    "Critical Lab Result",
		Message:  fmt.Sprintf("Critical value for %s: %v", testName, value),
		Data: map[string]any{
			"patientId": patientID,
			"testName":  testName,
			"value":     value,
		},
		UserID:                 practitionerID,
		RequiresAcknowledgment: true,
	})
}

// VitalSignAlert notifies the assigned nurse of an abnormal reading.
func (s *NotificationService) VitalSignAlert(ctx context.Context, patientID, vitalSign string, value any, nurseID string) (string, error) {
	if strings.TrimSpace(patientID) == "" {
		return "", fmt.Errorf("%w: patient id required", xerrors.ErrInvalidInput)
	}
	return s.SendNotification(ctx, domain.NotificationInput{
		Type:     domain.TypeVitalSignAlert,
		Priority: domain.PriorityHigh,
		Title:    "Abnormal Vital Sign",
		Message:  fmt.Sprintf("Abnormal %s reading: %v", vitalSign, value),
		Data: map[string]any{
			"patientId": patientID,
			"vitalSign": vitalSign,
			"value":     value,
		},
		UserID:                 nurseID,
		RequiresAcknowledgment: true,
	})
}

// AppointmentReminder reminds the patient; the reminder stops being
// deliverable once the appointment starts.
func (s *NotificationService) AppointmentReminder(ctx context.Context, patientID, appointmentID string, appointmentTime time.Time, practitionerID string) (string, error) {
	at := appointmentTime
	return s.SendNotification(ctx, domain.NotificationInput{
		Type:     domain.TypeAppointmentReminder,
		Priority: domain.PriorityNormal,
		Title:    "Appointment Reminder",
		Message:  fmt.Sprintf("You have an appointment on %s", appointmentTime.Format("Mon, 02 Jan 2006 15:04")),
		Data: map[string]any{
			"appointmentId":   appointmentID,
			"appointmentTime": appointmentTime,
			"practitionerId":  practitionerID,
		},
		UserID:    patientID,
		ExpiresAt: &at,
	})
}
