package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// Mode режим сессии
type Mode string

const (
	ModeBase  Mode = "base"
	ModeBonus Mode = "bonus"
)

// Valid проверяет, что режим из допустимого набора
func (m Mode) Valid() bool {
	return m == ModeBase || m == ModeBonus
}

// SessionState единственный источник правды о сессии игрока.
// Меняется ровно один раз на закоммиченный спин, CAS по Version.
type SessionState struct {
	SessionID           string `json:"session_id"`
	Mode                Mode   `json:"mode"`
	BonusSpinsRemaining int    `json:"bonus_spins_remaining"`
	// CarriedMultiplier имеет смысл только при Mode == ModeBonus
	CarriedMultiplier int `json:"carried_multiplier"`
	// BonusWager ставка, зафиксированная при входе в бонус
	BonusWager decimal.Decimal `json:"bonus_wager"`
	LastSpinID string          `json:"last_spin_id"`
	RiskScore  int             `json:"risk_score"`
	Version    int64           `json:"version"`
}

// NewSessionState начальное состояние для новой сессии
func NewSessionState(sessionID string) SessionState {
	return SessionState{
		SessionID:         sessionID,
		Mode:              ModeBase,
		CarriedMultiplier: 1,
		BonusWager:        decimal.Zero,
	}
}

// SessionClaims claims access токена, Subject = session id
type SessionClaims struct {
	jwt.RegisteredClaims
}
