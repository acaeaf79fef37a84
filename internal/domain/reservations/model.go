package reservations

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusConsumed  Status = "consumed"
)

var (
	ErrNotFound        = errors.New("reservations: not found")
	ErrInvalidQuantity = errors.New("reservations: invalid quantity")
	ErrInvalidState    = errors.New("reservations: invalid state")
)

// Reservation — мягкая бронь количества на конкретном плейте под
// строку материалов заказа. Физического движения товара нет.
type Reservation struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	WOID       uuid.UUID
	MaterialID uuid.UUID
	PlateID    uuid.UUID
	Quantity   decimal.Decimal
	Status     Status
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
	ReleasedAt *time.Time

	// Заполняется join-ом при чтении, не колонка.
	PlateNumber string
}

// RejectReason — причина отказа по отдельной строке выбора.
// Отказ строки — данные ответа, не ошибка запроса.
type RejectReason string

const (
	ReasonNotFound                 RejectReason = "NotFound"
	ReasonAlreadyConsumed          RejectReason = "AlreadyConsumed"
	ReasonBlocked                  RejectReason = "Blocked"
	ReasonProductMismatch          RejectReason = "ProductMismatch"
	ReasonUOMMismatch              RejectReason = "UOMMismatch"
	ReasonInsufficientAvailability RejectReason = "InsufficientAvailability"
)

// Selection — явный выбор пользователя: плейт и количество.
type Selection struct {
	PlateID  uuid.UUID
	Quantity decimal.Decimal
}

// Request — провалидированный запрос на резервирование: либо
// авторазмещение, либо явный список строк.
type Request struct {
	Auto       bool
	Quantity   decimal.Decimal // авторежим; ноль = весь остаток потребности
	Selections []Selection     // явный режим
}

type RejectedLine struct {
	PlateID  uuid.UUID
	Quantity decimal.Decimal
	Reason   RejectReason
}

// Outcome — результат резервирования: частичный успех допустим и
// описывается данными, а не ошибкой.
type Outcome struct {
	Committed []Reservation
	Rejected  []RejectedLine
	Shortfall decimal.Decimal
	Warnings  []string
}

// Conflict — активные резервы другого заказа на том же плейте.
type Conflict struct {
	WOID     uuid.UUID
	WONumber string
	Quantity decimal.Decimal
}
