package model

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var statusLabels = map[Status]string{
	StatusCreated:   "Создан",
	StatusPaid:      "Оплачен",
	StatusAccepted:  "Принят",
	StatusRejected:  "Отклонен",
	StatusCompleted: "Завершен",
}

// ParseStatus converts raw input into a known Status.
func ParseStatus(raw string) (Status, error) {
	if raw == "" {
		return "", ErrStatusMissing
	}
	s := Status(raw)
	if _, ok := statusLabels[s]; !ok {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Label returns the customer-facing name of the status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// TransitionFunc decides whether an order may move from one status to another.
type TransitionFunc func(from, to Status) error

// CheckTransition is the single place where status legality is decided.
// Every pair is currently allowed, including moves out of terminal states.
func CheckTransition(from, to Status) error {
	return nil
}
