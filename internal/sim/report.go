package sim

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang = language.English

// CI доверительный интервал
type CI struct {
	Lo float64
	Hi float64
}

type Report struct {
	Rounds     int
	Spins      int
	BonusSpins int
	Hits       int
	Triggers   int
	Capped     int

	TotalBet decimal.Decimal
	TotalWin decimal.Decimal
	BaseWin  decimal.Decimal
	BonusWin decimal.Decimal
	MaxWin   decimal.Decimal

	// RTP и HitRate доли, не проценты
	RTP     float64
	RTPCI   CI
	HitRate float64
	HitCI   CI
	Std     float64

	Confidence float64
	Depths     map[int]int
	Used       time.Duration
}

func newReport(tallies []*tally, opt Options, used time.Duration) *Report {
	r := &Report{
		TotalBet:   decimal.Zero,
		BaseWin:    decimal.Zero,
		BonusWin:   decimal.Zero,
		MaxWin:     decimal.Zero,
		Confidence: opt.Confidence,
		Depths:     make(map[int]int),
		Used:       used,
	}

	returns := make([]float64, 0, opt.Rounds)
	for _, t := range tallies {
		r.Rounds += t.rounds
		r.Spins += t.spins
		r.BonusSpins += t.bonusSpins
		r.Hits += t.hits
		r.Triggers += t.triggers
		r.Capped += t.capped
		r.TotalBet = r.TotalBet.Add(t.totalBet)
		r.BaseWin = r.BaseWin.Add(t.baseWin)
		r.BonusWin = r.BonusWin.Add(t.bonusWin)
		if t.maxWin.GreaterThan(r.MaxWin) {
			r.MaxWin = t.maxWin
		}
		for d, n := range t.depths {
			r.Depths[d] += n
		}
		returns = append(returns, t.returns...)
	}
	r.TotalWin = r.BaseWin.Add(r.BonusWin)

	if r.TotalBet.IsPositive() {
		r.RTP = r.TotalWin.Div(r.TotalBet).InexactFloat64()
	}
	// цена раунда одна на весь прогон, поэтому среднее доходов раунда совпадает с RTP
	r.RTPCI, r.Std = meanCI(returns, opt.Confidence)
	r.HitRate, r.HitCI = proportionCI(r.Hits, r.Rounds, opt.Confidence)
	return r
}

// meanCI нормальный интервал для среднего дохода раунда
func meanCI(data []float64, confidence float64) (CI, float64) {
	if len(data) < 2 {
		return CI{}, 0
	}
	mean, std := stat.MeanStdDev(data, nil)
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	half := z * std / math.Sqrt(float64(len(data)))
	return CI{Lo: mean - half, Hi: mean + half}, std
}

// proportionCI точный интервал Клоппера-Пирсона для k успехов из n
func proportionCI(k, n int, confidence float64) (float64, CI) {
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 1}
	}
	alpha := 1 - confidence
	pHat := float64(k) / float64(n)

	var ci CI
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return pHat, ci
}

// Write отчет таблицей и распределение глубины каскада
func (r *Report) Write(w io.Writer) {
	p := message.NewPrinter(lang)
	conf := p.Sprintf("%.0f%%", 100*r.Confidence)

	keys := []string{
		"Rounds", "Spins", "Bonus Spins", "Total Bet", "Total Win", "Base Win", "Bonus Win",
		"RTP", "RTP " + conf + " CI", "Hit Rate", "Hit " + conf + " CI", "Triggers", "Capped", "Max Win", "STD",
	}
	msg := map[string]string{
		"Rounds":              p.Sprintf("%d", r.Rounds),
		"Spins":               p.Sprintf("%d", r.Spins),
		"Bonus Spins":         p.Sprintf("%d", r.BonusSpins),
		"Total Bet":           r.TotalBet.StringFixed(2),
		"Total Win":           r.TotalWin.StringFixed(2),
		"Base Win":            r.BaseWin.StringFixed(2),
		"Bonus Win":           r.BonusWin.StringFixed(2),
		"RTP":                 p.Sprintf("%.2f %%", 100*r.RTP),
		"RTP " + conf + " CI": p.Sprintf("[%.2f%%, %.2f%%]", 100*r.RTPCI.Lo, 100*r.RTPCI.Hi),
		"Hit Rate":            p.Sprintf("%.2f %%", 100*r.HitRate),
		"Hit " + conf + " CI": p.Sprintf("[%.2f%%, %.2f%%]", 100*r.HitCI.Lo, 100*r.HitCI.Hi),
		"Triggers":            p.Sprintf("%d", r.Triggers),
		"Capped":              p.Sprintf("%d", r.Capped),
		"Max Win":             r.MaxWin.StringFixed(2),
		"STD":                 p.Sprintf("%.3f", r.Std),
	}
	fmt.Fprint(w, table("Cascade RTP", keys, msg))

	depthKeysList := depthKeys(r.Depths)
	depths := make([]string, 0, len(depthKeysList))
	depthMsg := make(map[string]string, len(depthKeysList))
	for _, d := range depthKeysList {
		k := p.Sprintf("depth %d", d)
		depths = append(depths, k)
		depthMsg[k] = p.Sprintf("%d (%.2f%%)", r.Depths[d], 100*float64(r.Depths[d])/float64(max(r.Spins, 1)))
	}
	fmt.Fprint(w, table("Cascade Depth", depths, depthMsg))

	sec := max(r.Used.Seconds(), 1e-9)
	p.Fprintf(w, "used: %.2f seconds\nsps : %d spins/sec\n", sec, int(float64(r.Spins)/sec))
}

func table(title string, keys []string, msg map[string]string) string {
	maxKeyLen := runewidth.StringWidth(title)
	maxValLen := 0
	for _, k := range keys {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(msg[k]); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	inner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)
	left := (inner - titleW) / 2

	var b strings.Builder
	b.WriteString(top)
	b.WriteString("|" + blank(left) + title + blank(inner-titleW-left) + "|\n")
	b.WriteString(divider)
	for _, k := range keys {
		v := msg[k]
		b.WriteString("| " + k + blank(maxKeyLen-2-runewidth.StringWidth(k)) + " | " + v + blank(maxValLen-2-runewidth.StringWidth(v)) + " |\n")
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
