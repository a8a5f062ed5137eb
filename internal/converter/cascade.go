package converter

import (
	"github.com/shopspring/decimal"

	dto "infinity_stones/internal/api/dto/cascade"
	"infinity_stones/internal/model"
	statsModel "infinity_stones/internal/repository/stats_repo/model"
)

func ToCascadeSpin(sessionID, requestID string, d dto.SpinRequest) model.CascadeSpin {
	return model.CascadeSpin{
		SessionID:  sessionID,
		RequestID:  requestID,
		Wager:      d.Wager,
		ClientMode: model.Mode(d.ClientMode),
	}
}

func ToBuyBonus(sessionID, requestID string, d dto.BuyBonusRequest) model.BuyBonus {
	return model.BuyBonus{
		SessionID: sessionID,
		RequestID: requestID,
		Wager:     d.Wager,
	}
}

func ToDeposit(sessionID, requestID string, d dto.DepositRequest) model.Deposit {
	return model.Deposit{
		SessionID: sessionID,
		RequestID: requestID,
		Amount:    d.Amount,
	}
}

func ToDesyncReport(sessionID string, d dto.DesyncRequest) model.DesyncReport {
	return model.DesyncReport{
		SessionID:  sessionID,
		RequestID:  d.RequestID,
		StepIndex:  d.StepIndex,
		ClientHash: d.ClientHash,
	}
}

func ToSpinResponse(res model.CascadeSpinResult) dto.SpinResponse {
	steps := make([]dto.CascadeStep, 0, len(res.Steps))
	for _, st := range res.Steps {
		steps = append(steps, toStep(st))
	}
	mults := make([]dto.Multiplier, 0, len(res.Multipliers))
	for _, m := range res.Multipliers {
		out := dto.Multiplier{
			Kind:                 string(m.Kind),
			Value:                m.Value,
			Actor:                m.Actor,
			AppliedToCurrentSpin: m.AppliedToCurrentSpin,
		}
		if m.Position != nil {
			p := toPosition(*m.Position)
			out.Position = &p
		}
		mults = append(mults, out)
	}

	return dto.SpinResponse{
		RequestID: res.RequestID,
		SessionID: res.SessionID,
		Wager:     money(res.Wager),
		Seed: dto.Seed{
			ServerSeed:     res.Seed.ServerSeed,
			ServerSeedHash: res.Seed.ServerSeedHash,
			ClientSeed:     res.Seed.ClientSeed,
			Nonce:          res.Seed.Nonce,
		},
		InitialGrid:         toGrid(res.InitialGrid),
		Steps:               steps,
		Multipliers:         mults,
		BaseWin:             money(res.BaseWin),
		AppliedMultiplier:   res.AppliedMultiplier,
		TotalWin:            money(res.TotalWin),
		WinCapped:           res.WinCapped,
		ScatterCount:        res.ScatterCount,
		InitialScatterCount: res.InitialScatterCount,
		FinalScatterCount:   res.FinalScatterCount,
		BonusTriggered:      res.BonusTriggered,
		BonusRetriggered:    res.BonusRetriggered,
		AwardedSpins:        res.AwardedSpins,
		BonusPath:           res.BonusPath,
		ModeBefore:          string(res.ModeBefore),
		ModeAfter:           string(res.ModeAfter),
		SpinsRemaining:      res.SpinsRemaining,
		CarriedMultiplier:   res.CarriedMultiplier,
		Balance:             money(res.Balance),
		Checksum:            res.Checksum,
	}
}

func ToStateResponse(st model.SessionState, balance decimal.Decimal) dto.StateResponse {
	return dto.StateResponse{
		SessionID:           st.SessionID,
		Mode:                string(st.Mode),
		BonusSpinsRemaining: st.BonusSpinsRemaining,
		CarriedMultiplier:   st.CarriedMultiplier,
		BonusWager:          money(st.BonusWager),
		LastSpinID:          st.LastSpinID,
		Version:             st.Version,
		Balance:             money(balance),
	}
}

func ToOpenResponse(o model.OpenedSession) dto.OpenResponse {
	return dto.OpenResponse{
		State: ToStateResponse(o.State, o.Balance),
		Grid:  toGrid(o.Grid),
	}
}

func ToBuyBonusResponse(r model.BuyBonusResult) dto.BuyBonusResponse {
	return dto.BuyBonusResponse{
		State: ToStateResponse(r.State, r.Balance),
		Cost:  money(r.Cost),
	}
}

func ToStatsResponse(s statsModel.Stats) dto.StatsResponse {
	return dto.StatsResponse{
		TotalSpins:  s.TotalSpins,
		BonusSpins:  s.BonusSpins,
		Triggers:    s.Triggers,
		Wins:        s.Wins,
		TotalBet:    money(s.TotalBet),
		TotalPayout: money(s.TotalPayout),
		CurrentRTP:  s.CurrentRTP,
		TargetRTP:   s.TargetRTP,
		WindowRTP:   s.WindowRTP,
		DriftMode:   s.DriftMode,
		Alerts:      len(s.Alerts),
	}
}

func toStep(st model.CascadeStep) dto.CascadeStep {
	clusters := make([]dto.Cluster, 0, len(st.Clusters))
	for _, c := range st.Clusters {
		clusters = append(clusters, dto.Cluster{
			Symbol:    int(c.Symbol),
			Positions: toPositions(c.Positions),
			Size:      c.Size,
			Tier:      c.Tier,
			Payout:    money(c.Payout),
		})
	}
	drops := make([]dto.Drop, 0, len(st.Drops))
	for _, d := range st.Drops {
		drops = append(drops, dto.Drop{
			Symbol:   int(d.Symbol),
			From:     toPosition(d.From),
			To:       toPosition(d.To),
			Distance: d.Distance,
		})
	}
	spawns := make([]dto.Spawn, 0, len(st.Spawns))
	for _, s := range st.Spawns {
		spawns = append(spawns, dto.Spawn{
			Position: toPosition(s.Position),
			Symbol:   int(s.Symbol),
			Source:   s.Source,
		})
	}

	return dto.CascadeStep{
		Index:            st.Index,
		GridBefore:       toGrid(st.GridBefore),
		Clusters:         clusters,
		Removed:          toPositions(st.Removed),
		GridAfterRemoval: toGrid(st.GridAfterRemoval),
		Drops:            drops,
		Spawns:           spawns,
		GridAfter:        toGrid(st.GridAfter),
		StepWin:          money(st.StepWin),
		RunningTotal:     money(st.RunningTotal),
		Hash:             st.Hash,
	}
}

func toGrid(g model.Grid) [][]int {
	out := make([][]int, len(g))
	for r, row := range g {
		out[r] = make([]int, len(row))
		for c, s := range row {
			out[r][c] = int(s)
		}
	}
	return out
}

func toPosition(p model.Position) dto.Position {
	return dto.Position{Row: p.Row, Col: p.Col}
}

func toPositions(ps []model.Position) []dto.Position {
	out := make([]dto.Position, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPosition(p))
	}
	return out
}

// money деньги всегда с двумя знаками
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
