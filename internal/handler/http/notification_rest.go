package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/response"
	"hms-notification-service/internal/usecase"
	"hms-notification-service/internal/xerrors"

	"go.uber.org/zap"
)

type NotificationHandler struct {
	svc    *usecase.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *usecase.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// ----------------------
// Dispatch
// ----------------------

func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var in domain.NotificationInput
	if !decode(w, r, &in) {
		return
	}
	id, err := h.svc.SendNotification(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type broadcastRequest struct {
	Notification domain.NotificationInput `json:"notification"`
	Criteria     domain.BroadcastCriteria `json:"criteria"`
}

func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := h.svc.BroadcastNotification(r.Context(), req.Notification, req.Criteria)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string][]string{"ids": ids})
}

// ----------------------
// Alert helpers
// ----------------------

type emergencyRequest struct {
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
	Department string         `json:"department"`
}

func (h *NotificationHandler) EmergencyAlert(w http.ResponseWriter, r *http.Request) {
	var req emergencyRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := h.svc.EmergencyAlert(r.Context(), req.Title, req.Message, req.Data, req.Department)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string][]string{"ids": ids})
}

type criticalResultRequest struct {
	PatientID      string `json:"patientId"`
	TestName       string `json:"testName"`
	Value          any    `json:"value"`
	PractitionerID string `json:"practitionerId"`
}

func (h *NotificationHandler) CriticalResultAlert(w http.ResponseWriter, r *http.Request) {
	var req criticalResultRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.CriticalResultAlert(r.Context(), req.PatientID, req.TestName, req.Value, req.PractitionerID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type vitalSignRequest struct {
	PatientID string `json:"patientId"`
	VitalSign string `json:"vitalSign"`
	Value     any    `json:"value"`
	NurseID   string `json:"nurseId"`
}

func (h *NotificationHandler) VitalSignAlert(w http.ResponseWriter, r *http.Request) {
	var req vitalSignRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.svc.VitalSignAlert(r.Context(), req.PatientID, req.VitalSign, req.Value, req.NurseID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type appointmentRequest struct {
	PatientID       string    `json:"patientId"`
	AppointmentID   string    `json:"appointmentId"`
	AppointmentTime time.Time `json:"appointmentTime"`
	PractitionerID  string    `json:"practitionerId"`
}

func (h *NotificationHandler) AppointmentReminder(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AppointmentTime.IsZero() {
		response.Error(w, http.StatusBadRequest, "appointmentTime required")
		return
	}
	id, err := h.svc.AppointmentReminder(r.Context(), req.PatientID, req.AppointmentID, req.AppointmentTime, req.PractitionerID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// ----------------------
// Introspection
// ----------------------

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.svc.GetStatistics(r.Context()))
}

func (h *NotificationHandler) ClientsCount(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]int{"count": h.svc.GetConnectedClientsCount()})
}

func (h *NotificationHandler) ConnectedUsers(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string][]string{"userIds": h.svc.GetConnectedUserIDs()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return false
	}
	return true
}

func (h *NotificationHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), xerrors.ErrInvalidInput.Error()+": "))
	case errors.Is(err, xerrors.ErrShuttingDown):
		response.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("notification request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
