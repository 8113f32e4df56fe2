package marketprice

import (
	"math/rand/v2"
	"time"

	"github.com/amoylab/mdprovider/pkg/omm"
	"github.com/shopspring/decimal"
)

// Field ids published for every instrument
const (
	fidDisplayName int16 = 3
	fidTimeActive  int16 = 5
	fidLast        int16 = 6
	fidNetChange   int16 = 11
	fidHigh        int16 = 12
	fidLow         int16 = 13
	fidCurrency    int16 = 15
	fidBid         int16 = 22
	fidAsk         int16 = 25
	fidBidSize     int16 = 30
	fidAskSize     int16 = 31
	fidVolume      int16 = 32
)

const currencyUSD uint64 = 840

var tick = decimal.New(1, -2)

// quote is the simulated state of one instrument.
type quote struct {
	name    string
	open    decimal.Decimal
	last    decimal.Decimal
	bid     decimal.Decimal
	ask     decimal.Decimal
	high    decimal.Decimal
	low     decimal.Decimal
	bidSize int64
	askSize int64
	volume  int64
	updated time.Time
}

func newQuote(name string, rng *rand.Rand) *quote {
	price := decimal.New(1000+rng.Int64N(9000), -2)
	q := &quote{
		name:    name,
		open:    price,
		last:    price,
		high:    price,
		low:     price,
		updated: time.Now(),
	}
	q.requote(rng)
	return q
}

// advance moves the last price a few ticks and trades some volume.
func (q *quote) advance(rng *rand.Rand) {
	step := tick.Mul(decimal.NewFromInt(rng.Int64N(21) - 10))
	q.last = decimal.Max(q.last.Add(step), tick)
	if q.last.GreaterThan(q.high) {
		q.high = q.last
	}
	if q.last.LessThan(q.low) {
		q.low = q.last
	}
	q.volume += 100 * (1 + rng.Int64N(50))
	q.requote(rng)
	q.updated = time.Now()
}

func (q *quote) requote(rng *rand.Rand) {
	spread := tick.Mul(decimal.NewFromInt(1 + rng.Int64N(3)))
	q.bid = decimal.Max(q.last.Sub(spread), tick)
	q.ask = q.last.Add(spread)
	q.bidSize = 100 * (1 + rng.Int64N(20))
	q.askSize = 100 * (1 + rng.Int64N(20))
}

// fieldSet decides which fids go on the wire.
type fieldSet func(fid int16) bool

func allFields(int16) bool { return true }

func (q *quote) refreshFields(include fieldSet) *omm.FieldList {
	fl := &omm.FieldList{}
	add := func(fid int16, name string, v any) {
		if include(fid) {
			fl.Add(fid, name, v)
		}
	}
	add(fidDisplayName, "DSPLY_NAME", q.name)
	add(fidTimeActive, "TIMACT", q.updated.UTC().Format(time.TimeOnly))
	add(fidLast, "TRDPRC_1", q.last)
	add(fidNetChange, "NETCHNG_1", q.last.Sub(q.open))
	add(fidHigh, "HIGH_1", q.high)
	add(fidLow, "LOW_1", q.low)
	add(fidCurrency, "CURRENCY", currencyUSD)
	add(fidBid, "BID", q.bid)
	add(fidAsk, "ASK", q.ask)
	add(fidBidSize, "BIDSIZE", q.bidSize)
	add(fidAskSize, "ASKSIZE", q.askSize)
	add(fidVolume, "ACVOL_1", q.volume)
	return fl
}

func (q *quote) updateFields(include fieldSet) *omm.FieldList {
	fl := &omm.FieldList{}
	add := func(fid int16, name string, v any) {
		if include(fid) {
			fl.Add(fid, name, v)
		}
	}
	add(fidTimeActive, "TIMACT", q.updated.UTC().Format(time.TimeOnly))
	add(fidLast, "TRDPRC_1", q.last)
	add(fidNetChange, "NETCHNG_1", q.last.Sub(q.open))
	add(fidHigh, "HIGH_1", q.high)
	add(fidLow, "LOW_1", q.low)
	add(fidBid, "BID", q.bid)
	add(fidAsk, "ASK", q.ask)
	add(fidVolume, "ACVOL_1", q.volume)
	return fl
}
