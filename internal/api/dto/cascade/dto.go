package cascade

import "github.com/shopspring/decimal"

type SpinRequest struct {
	RequestID  string          `json:"request_id"`  // UUID, можно передать в Idempotency-Key
	Wager      decimal.Decimal `json:"wager"`       // Ставка, не точнее цента
	ClientMode string          `json:"client_mode"` // Режим, который видит клиент (base|bonus)
}

type BuyBonusRequest struct {
	RequestID string          `json:"request_id"`
	Wager     decimal.Decimal `json:"wager"` // Ставка фриспинов, цена = wager * buy_bonus_cost_x
}

type DepositRequest struct {
	RequestID string          `json:"request_id"`
	Amount    decimal.Decimal `json:"amount"` // Сумма депозита
}

type DesyncRequest struct {
	RequestID  string `json:"request_id"`
	StepIndex  int    `json:"step_index"`
	ClientHash string `json:"client_hash"`
}

type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Cluster struct {
	Symbol    int        `json:"symbol"`
	Positions []Position `json:"positions"`
	Size      int        `json:"size"`
	Tier      string     `json:"tier"`
	Payout    string     `json:"payout"`
}

type Drop struct {
	Symbol   int      `json:"symbol"`
	From     Position `json:"from"`
	To       Position `json:"to"`
	Distance int      `json:"distance"`
}

type Spawn struct {
	Position Position `json:"position"`
	Symbol   int      `json:"symbol"`
	Source   string   `json:"source"`
}

type CascadeStep struct {
	Index            int        `json:"index"`
	GridBefore       [][]int    `json:"grid_before"`
	Clusters         []Cluster  `json:"clusters"`
	Removed          []Position `json:"removed"`
	GridAfterRemoval [][]int    `json:"grid_after_removal"`
	Drops            []Drop     `json:"drops"`
	Spawns           []Spawn    `json:"spawns"`
	GridAfter        [][]int    `json:"grid_after"`
	StepWin          string     `json:"step_win"`
	RunningTotal     string     `json:"running_total"`
	Hash             string     `json:"hash"`
}

type Multiplier struct {
	Kind                 string    `json:"kind"`
	Value                int       `json:"value"`
	Position             *Position `json:"position,omitempty"`
	Actor                string    `json:"actor,omitempty"`
	AppliedToCurrentSpin bool      `json:"applied_to_current_spin"`
}

type Seed struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`
}

// SpinResponse контракт для рендера. Деньги строками с двумя знаками
type SpinResponse struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
	Wager     string `json:"wager"`
	Seed      Seed   `json:"seed"`

	InitialGrid [][]int       `json:"initial_grid"`
	Steps       []CascadeStep `json:"steps"`
	Multipliers []Multiplier  `json:"multipliers"`

	BaseWin           string `json:"base_win"`
	AppliedMultiplier int    `json:"applied_multiplier"`
	TotalWin          string `json:"total_win"`
	WinCapped         bool   `json:"win_capped"`

	ScatterCount        int `json:"scatter_count"`
	InitialScatterCount int `json:"initial_scatter_count"`
	FinalScatterCount   int `json:"final_scatter_count"`

	BonusTriggered   bool     `json:"bonus_triggered"`
	BonusRetriggered bool     `json:"bonus_retriggered"`
	AwardedSpins     int      `json:"awarded_spins"`
	BonusPath        []string `json:"bonus_path"`

	ModeBefore        string `json:"mode_before"`
	ModeAfter         string `json:"mode_after"`
	SpinsRemaining    int    `json:"spins_remaining"`
	CarriedMultiplier int    `json:"carried_multiplier"`

	Balance  string `json:"balance"`
	Checksum string `json:"checksum"`
}

type StateResponse struct {
	SessionID           string `json:"session_id"`
	Mode                string `json:"mode"`
	BonusSpinsRemaining int    `json:"bonus_spins_remaining"`
	CarriedMultiplier   int    `json:"carried_multiplier"`
	BonusWager          string `json:"bonus_wager"`
	LastSpinID          string `json:"last_spin_id"`
	Version             int64  `json:"version"`
	Balance             string `json:"balance"`
}

type OpenResponse struct {
	State StateResponse `json:"state"`
	Grid  [][]int       `json:"grid"`
}

type BuyBonusResponse struct {
	State StateResponse `json:"state"`
	Cost  string        `json:"cost"`
}

type DepositResponse struct {
	Balance string `json:"balance"`
}

type VerifyResponse struct {
	RequestID string `json:"request_id"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

type StatsResponse struct {
	TotalSpins  int     `json:"total_spins"`
	BonusSpins  int     `json:"bonus_spins"`
	Triggers    int     `json:"triggers"`
	Wins        int     `json:"wins"`
	TotalBet    string  `json:"total_bet"`
	TotalPayout string  `json:"total_payout"`
	CurrentRTP  float64 `json:"current_rtp"`
	TargetRTP   float64 `json:"target_rtp"`
	WindowRTP   float64 `json:"window_rtp"`
	DriftMode   bool    `json:"drift_mode"`
	Alerts      int     `json:"alerts"`
}
