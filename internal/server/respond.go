package server

import (
	"encoding/json"
	"net/http"

	"freightwatch/pkg/apperror"
	"freightwatch/pkg/logger"
)

// errorBody формат тела ошибки
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON сериализует ответ
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError рендерит ошибку по таксономии apperror
func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.From(err)

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "code", string(appErr.Code), "error", err)
	} else {
		logger.Warn("Request rejected", "code", string(appErr.Code), "error", err)
	}

	body := errorBody{}
	body.Error.Code = string(appErr.Code)
	body.Error.Message = appErr.Message

	writeJSON(w, status, body)
}
