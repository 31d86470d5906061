package usecase

import (
	"math"
	"strings"

	"goldbot/internal/config"
	"goldbot/internal/domain"
	"goldbot/internal/infrastructure/indicators"
)

const (
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerMult   = 2.0
)

// FeatureInput is the market state at a decision point.
type FeatureInput struct {
	EntryTF     domain.Timeframe
	TrendTF     domain.Timeframe
	Entry       []domain.Candle
	Trend       []domain.Candle
	Quote       domain.Quote
	Chop        bool
	SetupActive bool
}

// BuildFeatures produces the feature vector the offline labeler trains on.
// Keys are prefixed with the lowercase timeframe; undefined indicators are omitted.
func BuildFeatures(cfg config.StrategyConfig, in FeatureInput) map[string]float64 {
	f := map[string]float64{
		"spread":       in.Quote.Spread(),
		"chop":         boolFeature(in.Chop),
		"setup_active": boolFeature(in.SetupActive),
	}
	ep := strings.ToLower(in.EntryTF.String()) + "_"
	tp := strings.ToLower(in.TrendTF.String()) + "_"

	closes := domain.Closes(in.Entry)
	atr, atrOK := indicators.LastATR(domain.Highs(in.Entry), domain.Lows(in.Entry), closes, cfg.ATRPeriod)
	atrOK = atrOK && atr > 0
	if atrOK {
		f[ep+"atr"] = atr
		f["spread_norm"] = in.Quote.Spread() / atr
	}

	fast, fastOK := indicators.LastEMA(closes, cfg.EMAFastPeriod)
	slow, slowOK := indicators.LastEMA(closes, cfg.EMAPullbackPeriod)
	if fastOK && slowOK && atrOK {
		f[ep+"ema20_50_dist_atr"] = (fast - slow) / atr
	}
	if slowOK {
		f[ep+"close_ema50_dist"] = closes[len(closes)-1] - slow
	}
	if rsi, ok := indicators.LastRSI(closes, rsiPeriod); ok {
		f[ep+"rsi14"] = rsi
	}
	if bw, ok := indicators.LastBandWidth(closes, bollingerPeriod, bollingerMult); ok {
		f[ep+"bb_width"] = bw
	}

	trendCloses := domain.Closes(in.Trend)
	if ema, ok := indicators.LastEMA(trendCloses, cfg.EMATrendPeriod); ok {
		last := trendCloses[len(trendCloses)-1]
		if atrOK {
			f[tp+"ema200_dist_atr"] = (last - ema) / atr
		}
		tatr, ok := indicators.LastATR(domain.Highs(in.Trend), domain.Lows(in.Trend), trendCloses, cfg.ATRPeriod)
		if ok && tatr > 0 {
			f[tp+"trend_strength"] = math.Abs(last-ema) / tatr
		}
	}
	return f
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
