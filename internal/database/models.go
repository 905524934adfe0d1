package database

import "github.com/shopspring/decimal"

// Timeframe is one of the seven supported bar durations, each
// backed by its own table.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1"
	Timeframe5m  Timeframe = "5"
	Timeframe15m Timeframe = "15"
	Timeframe1h  Timeframe = "60"
	Timeframe4h  Timeframe = "240"
	Timeframe1d  Timeframe = "D"
	Timeframe1w  Timeframe = "W"
)

// Timeframes lists every supported timeframe, coarsest first — the
// order the ingestion pipeline processes them in.
var Timeframes = []Timeframe{Timeframe1w, Timeframe1d, Timeframe4h, Timeframe1h, Timeframe15m, Timeframe5m, Timeframe1m}

// TableName returns the candle table backing a timeframe, or "" if
// tf is not one of the seven supported values.
func (tf Timeframe) TableName() string {
	switch tf {
	case Timeframe1m:
		return "candles1"
	case Timeframe5m:
		return "candles5"
	case Timeframe15m:
		return "candles15"
	case Timeframe1h:
		return "candles60"
	case Timeframe4h:
		return "candles240"
	case Timeframe1d:
		return "candlesd"
	case Timeframe1w:
		return "candlesw"
	default:
		return ""
	}
}

// Valid reports whether tf is one of the seven supported timeframes.
func (tf Timeframe) Valid() bool {
	return tf.TableName() != ""
}

// Candle is a closed (or still-forming) OHLCV bar for one
// (symbol, timeframe, open_time) triple.
type Candle struct {
	Symbol       string
	OpenTime     int64
	OpenDatetime string
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       decimal.Decimal
	Turnover     int64
}

// Ticker is the current 24h market snapshot for a symbol. Every
// numeric field is nullable because the exchange omits some of them
// for certain instrument types.
type Ticker struct {
	Symbol                 string
	LastPrice              *decimal.Decimal
	IndexPrice             *decimal.Decimal
	MarkPrice              *decimal.Decimal
	PrevPrice24h           *decimal.Decimal
	Price24hPcnt           *decimal.Decimal
	HighPrice24h           *decimal.Decimal
	LowPrice24h            *decimal.Decimal
	PrevPrice1h            *decimal.Decimal
	OpenInterest           *decimal.Decimal
	OpenInterestValue      *decimal.Decimal
	Turnover24h            *decimal.Decimal
	Volume24h              *decimal.Decimal
	FundingRate            *decimal.Decimal
	NextFundingTime        *decimal.Decimal
	PredictedDeliveryPrice *decimal.Decimal
	BasisRate              *decimal.Decimal
	DeliveryFeeRate        *decimal.Decimal
	DeliveryTime           *decimal.Decimal
	Ask1Size               *decimal.Decimal
	Bid1Price              *decimal.Decimal
	Ask1Price              *decimal.Decimal
	Bid1Size               *decimal.Decimal
	Basis                  *string
}
