// Package indicators implements the technical-indicator library: pure,
// total functions over a closing-price sequence. Positions that fall in
// a warm-up window are represented as a nil *float64 so JSON encodes
// them as null without a custom marshaler.
package indicators

import "math"

// Series is an indicator output aligned 1:1 with the input price
// sequence; undefined (warm-up) positions are nil.
type Series []*float64

func val(f float64) *float64 {
	return &f
}

func undefinedSeries(n int) Series {
	return make(Series, n)
}

// SMA computes the simple moving average over a trailing window of
// length period. Positions before period-1 are undefined.
func SMA(prices []float64, period int) Series {
	n := len(prices)
	out := undefinedSeries(n)
	if period <= 0 || n < period {
		return out
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += prices[i]
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = val(sum / float64(period))
		}
	}
	return out
}

// EMA computes the exponential moving average, seeded by the first SMA
// value at index period-1 and recursed forward with alpha = 2/(period+1).
func EMA(prices []float64, period int) Series {
	n := len(prices)
	out := undefinedSeries(n)
	if period <= 0 || n < period {
		return out
	}

	sma := SMA(prices, period)
	out[period-1] = sma[period-1]

	alpha := 2.0 / (float64(period) + 1.0)
	for i := period; i < n; i++ {
		prev := *out[i-1]
		ema := (prices[i]-prev)*alpha + prev
		out[i] = val(ema)
	}
	return out
}

// MACDResult holds the three aligned output series of MACD.
type MACDResult struct {
	MACD      Series `json:"macd"`
	Signal    Series `json:"signal"`
	Histogram Series `json:"histogram"`
}

// MACD computes the MACD line (fast EMA - slow EMA), its signal line
// (EMA of the MACD line's defined prefix), and their difference.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	n := len(prices)
	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)

	macdLine := undefinedSeries(n)
	var compact []float64
	for i := 0; i < n; i++ {
		if emaFast[i] != nil && emaSlow[i] != nil {
			m := *emaFast[i] - *emaSlow[i]
			macdLine[i] = val(m)
			compact = append(compact, m)
		}
	}

	signalCompact := EMA(compact, signal)

	signalLine := undefinedSeries(n)
	histogram := undefinedSeries(n)
	signalIdx := 0
	for i := 0; i < n; i++ {
		if macdLine[i] == nil {
			continue
		}
		if signalIdx < len(signalCompact) {
			signalLine[i] = signalCompact[signalIdx]
			signalIdx++
		}
		if signalLine[i] != nil {
			histogram[i] = val(*macdLine[i] - *signalLine[i])
		}
	}

	return MACDResult{MACD: macdLine, Signal: signalLine, Histogram: histogram}
}

// RSI computes the Relative Strength Index using Wilder's smoothing.
func RSI(prices []float64, period int) Series {
	n := len(prices)
	out := undefinedSeries(n)
	if period <= 0 || n < period+1 {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < n; i++ {
		if avgLoss == 0 {
			out[i] = val(100)
		} else {
			rs := avgGain / avgLoss
			out[i] = val(100 - 100/(1+rs))
		}

		if i+1 < n {
			avgGain = (avgGain*float64(period-1) + gains[i+1]) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + losses[i+1]) / float64(period)
		}
	}
	return out
}

// BollingerResult holds the three aligned bands.
type BollingerResult struct {
	Upper  Series `json:"upper"`
	Middle Series `json:"middle"`
	Lower  Series `json:"lower"`
}

// Bollinger computes Bollinger Bands using population variance.
func Bollinger(prices []float64, period int, stdDev float64) BollingerResult {
	n := len(prices)
	middle := SMA(prices, period)
	upper := undefinedSeries(n)
	lower := undefinedSeries(n)

	if period <= 0 || n < period {
		return BollingerResult{Upper: upper, Middle: middle, Lower: lower}
	}

	for i := period - 1; i < n; i++ {
		mean := *middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - mean
			variance += d * d
		}
		variance /= float64(period)
		std := math.Sqrt(variance)

		upper[i] = val(mean + stdDev*std)
		lower[i] = val(mean - stdDev*std)
	}

	return BollingerResult{Upper: upper, Middle: middle, Lower: lower}
}

// Volatility computes the average absolute percentage change over a
// trailing window of length period.
func Volatility(prices []float64, period int) Series {
	n := len(prices)
	out := undefinedSeries(n)
	if period <= 0 || n < period+1 {
		return out
	}

	for i := period; i < n; i++ {
		var sum float64
		var count int
		for j := i - period + 1; j <= i; j++ {
			if j > 0 && prices[j-1] > 0 {
				change := math.Abs((prices[j] - prices[j-1]) / prices[j-1] * 100)
				sum += change
				count++
			}
		}
		if count > 0 {
			out[i] = val(sum / float64(count))
		}
	}
	return out
}

// DualEMAResult holds two EMA series at different periods.
type DualEMAResult struct {
	EMA50  Series `json:"ema50"`
	EMA200 Series `json:"ema200"`
}

// DualEMA computes two EMA series, conventionally 50- and 200-period.
func DualEMA(prices []float64, period1, period2 int) DualEMAResult {
	return DualEMAResult{
		EMA50:  EMA(prices, period1),
		EMA200: EMA(prices, period2),
	}
}

// Default parameter values, matching the distilled spec and its
// original Python source.
const (
	DefaultMACDFast     = 12
	DefaultMACDSlow     = 26
	DefaultMACDSignal   = 9
	DefaultRSIPeriod    = 14
	DefaultBBPeriod     = 20
	DefaultBBStdDev     = 2.0
	DefaultVolatility   = 200
	DefaultDualEMAFast  = 50
	DefaultDualEMASlow  = 200
)
