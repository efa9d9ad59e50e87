package market

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SeriesStats summarizes a close series for the history response.
type SeriesStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ComputeStats returns min/max/mean/stddev over the closes of a series.
func ComputeStats(points []SeriesPoint) (*SeriesStats, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("cannot compute stats on empty series")
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	stats := &SeriesStats{
		Min:  floats.Min(closes),
		Max:  floats.Max(closes),
		Mean: stat.Mean(closes, nil),
	}
	if len(closes) > 1 {
		stats.StdDev = stat.StdDev(closes, nil)
	}

	return stats, nil
}

// SMA computes a simple moving average over the series closes. The result
// starts at the first date with a full window, so it is shorter than the
// input by period-1 points. Returns nil when the series is shorter than the
// period.
func SMA(points []SeriesPoint, period int) []SeriesPoint {
	if period <= 0 || len(points) < period {
		return nil
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	values := talib.Sma(closes, period)

	out := make([]SeriesPoint, 0, len(points)-period+1)
	for i := period - 1; i < len(points); i++ {
		out = append(out, SeriesPoint{Date: points[i].Date, Close: values[i]})
	}

	return out
}
