package model

import "github.com/shopspring/decimal"

// CascadeSpin входящий запрос спина после транспорта и авторизации
type CascadeSpin struct {
	SessionID string
	RequestID string
	Wager     decimal.Decimal
	// ClientMode режим, который считает клиент. Не доверяем, только для риск-скора
	ClientMode Mode
}

// MultiplierKind тип события множителя
type MultiplierKind string

const (
	MultiplierCascadeLinked MultiplierKind = "cascade_linked"
	MultiplierRandom        MultiplierKind = "random"
)

// MultiplierEvent выпавший множитель
type MultiplierEvent struct {
	Kind                 MultiplierKind `json:"kind"`
	Value                int            `json:"value"`
	Position             *Position      `json:"position,omitempty"`
	Actor                string         `json:"actor,omitempty"`
	AppliedToCurrentSpin bool           `json:"applied_to_current_spin"`
}

// Seed данные для воспроизведения и проверки спина
type Seed struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`
}

// CascadeSpinResult канонический контракт спина. Никаких алиасов полей
type CascadeSpinResult struct {
	RequestID string          `json:"request_id"`
	SessionID string          `json:"session_id"`
	Wager     decimal.Decimal `json:"wager"`
	Seed      Seed            `json:"seed"`

	InitialGrid Grid              `json:"initial_grid"`
	Steps       []CascadeStep     `json:"steps"`
	Multipliers []MultiplierEvent `json:"multipliers"`

	BaseWin           decimal.Decimal `json:"base_win"`
	AppliedMultiplier int             `json:"applied_multiplier"`
	TotalWin          decimal.Decimal `json:"total_win"`
	WinCapped         bool            `json:"win_capped"`

	ScatterCount        int `json:"scatter_count"`
	InitialScatterCount int `json:"initial_scatter_count"`
	FinalScatterCount   int `json:"final_scatter_count"`

	BonusTriggered   bool     `json:"bonus_triggered"`
	BonusRetriggered bool     `json:"bonus_retriggered"`
	AwardedSpins     int      `json:"awarded_spins"`
	BonusPath        []string `json:"bonus_path"`

	ModeBefore        Mode `json:"mode_before"`
	ModeAfter         Mode `json:"mode_after"`
	SpinsRemaining    int  `json:"spins_remaining"`
	CarriedMultiplier int  `json:"carried_multiplier"`

	Balance  decimal.Decimal `json:"balance"`
	Checksum string          `json:"checksum"`
}

// OpenedSession ответ на открытие сессии: состояние и первый безопасный вид поля
type OpenedSession struct {
	State   SessionState
	Grid    Grid
	Balance decimal.Decimal
}

// CascadeData состояние сессии и баланс для восстановления после обрыва
type CascadeData struct {
	State   SessionState
	Balance decimal.Decimal
}

// BuyBonus покупка бонуса за BuyBonusCostX ставок
type BuyBonus struct {
	SessionID string
	RequestID string
	Wager     decimal.Decimal
}

// BuyBonusResult состояние после покупки
type BuyBonusResult struct {
	State   SessionState    `json:"state"`
	Cost    decimal.Decimal `json:"cost"`
	Balance decimal.Decimal `json:"balance"`
}

// PurchaseRecord журнал покупок бонуса по request id. Повтор покупки отдает Result
type PurchaseRecord struct {
	SessionID string          `json:"session_id"`
	RequestID string          `json:"request_id"`
	Wager     decimal.Decimal `json:"wager"`
	Result    BuyBonusResult  `json:"result"`
}

// Deposit пополнение кошелька сессии
type Deposit struct {
	SessionID string
	RequestID string
	Amount    decimal.Decimal
}

// DesyncReport клиент сообщил о расхождении хэша при воспроизведении
type DesyncReport struct {
	SessionID  string
	RequestID  string
	StepIndex  int
	ClientHash string
}

// SpinRecord запись журнала спинов: результат и состояние до спина для перепроверки
type SpinRecord struct {
	Result CascadeSpinResult `json:"result"`
	Before SessionState      `json:"before"`
}
