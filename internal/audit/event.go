package audit

import "time"

// Действия, попадающие в журнал аудита
const (
	ActionSignup     = "signup"
	ActionLogin      = "login"
	ActionRefresh    = "refresh"
	ActionSetRole    = "set_role"
	ActionActivation = "activation"
	ActionLock       = "lock"
	ActionUpdateSelf = "update_self"
	ActionDelete     = "delete"
)

const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILED"
)

type Event struct {
	ID        string `json:"id" bson:"_id"`                // UUID события
	RequestID string `json:"request_id" bson:"request_id"` // Сквозной ID запроса
	Action    string `json:"action" bson:"action"`
	Email     string `json:"email" bson:"email"`     // Над кем выполнено действие
	UserID    string `json:"user_id" bson:"user_id"` // Пусто, если пользователь не найден
	ActorID   string `json:"actor_id,omitempty" bson:"actor_id,omitempty"`

	// Результат
	Outcome    string    `json:"outcome" bson:"outcome"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty" bson:"remote_addr,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
