package handlers

import (
	"net/http"

	"github.com/Epin-platforms/nadal-server/services"
)

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(ns services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: ns}
}

type fcmTokenInput struct {
	Token string `json:"token"`
}

// ListHandler
// @Summary Уведомления текущего пользователя
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]interface{} "notifications"
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.notificationService.ListRecent(r.Context(), uid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"notifications": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateFCMTokenHandler
// @Summary Обновить FCM токен устройства
// @Tags notifications
// @Description Пустой токен отключает push-уведомления.
// @Accept json
// @Param body body fcmTokenInput true "token"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /users/me/fcm-token [put]
func (h *NotificationHandler) UpdateFCMTokenHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input fcmTokenInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.notificationService.UpdateFCMToken(r.Context(), uid, input.Token); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
