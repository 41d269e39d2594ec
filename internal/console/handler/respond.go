package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/domain"
)

// validate — единственный экземпляр валидатора (кэширует разбор тегов)
var validate = validator.New()

// Envelope — обертка успешного ответа {status, message, data}.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Status    int               `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// WriteJSON пишет JSON с заданным статусом
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

func respond(w http.ResponseWriter, logger *zap.Logger, status int, message string, data interface{}) {
	if err := WriteJSON(w, status, Envelope{Status: status, Message: message, Data: data}); err != nil {
		logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleServiceError переводит ошибку сервиса в HTTP-ответ по ее Kind.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	ae := domain.AsAuthError(err)
	resp := ErrorResponse{
		Error:     string(ae.Kind),
		Message:   ae.Message,
		Status:    ae.Status(),
		Timestamp: time.Now().UTC(),
	}

	if ae.Kind == domain.KindInternal {
		// Внутренние детали клиенту не отдаем
		logger.Error("internal server error", zap.Error(err))
		resp.Message = "An internal error occurred"
	} else {
		logger.Debug("handled service error", zap.String("kind", string(ae.Kind)), zap.String("message", ae.Message))
	}

	if err := WriteJSON(w, resp.Status, resp); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// ErrorWriter адаптирует HandleServiceError к сигнатуре отказа policy.
func ErrorWriter(logger *zap.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, _ *http.Request, err error) {
		HandleServiceError(w, err, logger)
	}
}

// decodeAndValidate читает JSON и проверяет теги validate.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("Malformed JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &fieldErrors{fields: fieldMessages(verrs)}
		}
		return domain.NewValidationError(err.Error())
	}
	return nil
}

// fieldErrors — ошибки валидации по полям
type fieldErrors struct {
	fields map[string]string
}

func (e *fieldErrors) Error() string { return "Validation failed" }

func fieldMessages(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
		}
	}
	return fields
}

// handleDecodeError отвечает 400 на ошибку разбора или валидации тела запроса.
func handleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var fe *fieldErrors
	if !errors.As(err, &fe) {
		HandleServiceError(w, err, logger)
		return
	}
	resp := ErrorResponse{
		Error:     string(domain.KindValidation),
		Message:   fe.Error(),
		Status:    http.StatusBadRequest,
		Timestamp: time.Now().UTC(),
		Details:   fe.fields,
	}
	if err := WriteJSON(w, resp.Status, resp); err != nil {
		logger.Error("failed to write validation response", zap.Error(err))
	}
}
