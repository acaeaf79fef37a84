package plates

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusConsumed  Status = "consumed"
	StatusBlocked   Status = "blocked"
)

type QAStatus string

const (
	QAPending    QAStatus = "pending"
	QAPassed     QAStatus = "passed"
	QAFailed     QAStatus = "failed"
	QAQuarantine QAStatus = "quarantine"
)

// Plate — паллета/партия (license plate): количество конкретного
// продукта в конкретной ячейке склада.
type Plate struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Number      string
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	LocationID  uuid.NullUUID
	Quantity    decimal.Decimal
	UOM         string
	Status      Status
	QAStatus    QAStatus
	LotNumber   string
	ExpiryDate  *time.Time
	CreatedAt   time.Time
}

// Candidate — плейт, пригодный под резерв, с уже посчитанным
// свободным остатком (quantity минус активные резервы).
type Candidate struct {
	Plate
	Available  decimal.Decimal
	ExpirySoon bool // срок годности внутри окна fefo_warning_days
}

// Settings — настройки склада на организацию.
type Settings struct {
	EnableFEFO      bool
	FEFOWarningDays int
}

func DefaultSettings() Settings {
	return Settings{EnableFEFO: true, FEFOWarningDays: 7}
}
