// Package sim прогон большого числа спинов через движок без хранилища и кошелька.
//
// Раунд это платный спин вместе со всей цепочкой фриспинов, которую он открыл.
// При BuyBonus раунд начинается сразу с купленного бонуса.
package sim

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"infinity_stones/internal/engine"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
)

// maxChainSpins защита от бесконечной цепочки ретриггеров
const maxChainSpins = 10000

type Options struct {
	Rounds  int
	Workers int
	Wager   decimal.Decimal
	// Seed общий server seed, воркер отличается client seed
	Seed string
	// BuyBonus каждый раунд покупает бонус по цене Wager * BuyBonusCostX
	BuyBonus      bool
	BuyBonusCostX decimal.Decimal
	Confidence    float64
	// Progress куда рисовать прогресс-бар, nil: никуда
	Progress io.Writer
}

func (o Options) validate() error {
	if o.Rounds < 1 {
		return errs.Warnf("rounds must be > 0, got %d", o.Rounds)
	}
	if o.Workers < 1 {
		return errs.Warnf("workers must be > 0, got %d", o.Workers)
	}
	if err := engine.ValidateWager(o.Wager); err != nil {
		return err
	}
	if o.BuyBonus && !o.BuyBonusCostX.IsPositive() {
		return errs.Warnf("buy bonus is disabled in config")
	}
	if o.Confidence <= 0 || o.Confidence >= 1 {
		return errs.Warnf("confidence must be in (0, 1), got %v", o.Confidence)
	}
	return nil
}

// tally счетчики одного воркера
type tally struct {
	rounds     int
	spins      int
	bonusSpins int
	hits       int
	triggers   int
	capped     int
	totalBet   decimal.Decimal
	baseWin    decimal.Decimal
	bonusWin   decimal.Decimal
	returns    []float64
	depths     map[int]int
	maxWin     decimal.Decimal
}

func newTally(rounds int) *tally {
	return &tally{
		totalBet: decimal.Zero,
		baseWin:  decimal.Zero,
		bonusWin: decimal.Zero,
		maxWin:   decimal.Zero,
		returns:  make([]float64, 0, rounds),
		depths:   make(map[int]int),
	}
}

// Run раунды делятся между воркерами поровну, остаток уходит первым
func Run(ctx context.Context, cfg engine.Config, opt Options) (*Report, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}

	progress := opt.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := pb.New(opt.Rounds)
	bar.SetWriter(progress)
	bar.Start()

	tallies := make([]*tally, opt.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < opt.Workers; w++ {
		rounds := opt.Rounds / opt.Workers
		if w < opt.Rounds%opt.Workers {
			rounds++
		}
		t := newTally(rounds)
		tallies[w] = t
		w := w
		g.Go(func() error {
			return play(gctx, cfg, opt, w, rounds, t, bar)
		})
	}
	err := g.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err != nil {
		return nil, err
	}

	return newReport(tallies, opt, used), nil
}

func play(ctx context.Context, cfg engine.Config, opt Options, worker, rounds int, t *tally, bar *pb.ProgressBar) error {
	state := model.NewSessionState(fmt.Sprintf("sim-%d", worker))
	seed := model.Seed{
		ServerSeed:     opt.Seed,
		ServerSeedHash: rng.HashSeed(opt.Seed),
		ClientSeed:     state.SessionID,
	}

	for r := 0; r < rounds; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		bet := opt.Wager
		if opt.BuyBonus {
			bet = opt.Wager.Mul(opt.BuyBonusCostX).Truncate(2)
			state.Mode = model.ModeBonus
			state.BonusSpinsRemaining = cfg.Bonus.InitialSpins
			state.CarriedMultiplier = 1
			state.BonusWager = opt.Wager
		}

		roundWin := decimal.Zero
		for chain := 0; ; chain++ {
			if chain >= maxChainSpins {
				return errs.Fatalf("bonus chain longer than %d spins", maxChainSpins)
			}

			seed.Nonce = state.Version
			res, after, err := engine.Compute(ctx, cfg, engine.Input{
				State:     state,
				Seed:      seed,
				RequestID: fmt.Sprintf("%s-%d", state.SessionID, state.Version),
				Wager:     opt.Wager,
			})
			if err != nil {
				return err
			}

			t.spins++
			t.depths[len(res.Steps)]++
			if res.ModeBefore == model.ModeBonus {
				t.bonusSpins++
				t.bonusWin = t.bonusWin.Add(res.TotalWin)
			} else {
				t.baseWin = t.baseWin.Add(res.TotalWin)
			}
			if res.BonusTriggered {
				t.triggers++
			}
			if res.WinCapped {
				t.capped++
			}
			roundWin = roundWin.Add(res.TotalWin)

			state = after
			if state.Mode == model.ModeBase {
				break
			}
		}

		t.rounds++
		t.totalBet = t.totalBet.Add(bet)
		if roundWin.IsPositive() {
			t.hits++
		}
		if roundWin.GreaterThan(t.maxWin) {
			t.maxWin = roundWin
		}
		t.returns = append(t.returns, roundWin.Div(bet).InexactFloat64())
		bar.Increment()
	}
	return nil
}

// depthKeys глубины каскада по возрастанию
func depthKeys(depths map[int]int) []int {
	keys := make([]int, 0, len(depths))
	for k := range depths {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
