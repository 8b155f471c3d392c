package analytics

import (
	"fmt"

	"github.com/mcs-logistics/shipmentqa/pkg/dataset"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// accumulator computes one aggregate over a group's rows.
type accumulator struct {
	spec models.AggregateExpr

	count    int64
	sum      float64
	seen     int64
	min, max any
	distinct map[string]bool
}

func newAccumulator(spec models.AggregateExpr) *accumulator {
	acc := &accumulator{spec: spec}
	if spec.Func == models.AggCountDistinct {
		acc.distinct = make(map[string]bool)
	}
	return acc
}

func (a *accumulator) observe(row dataset.Row) {
	var val any
	if a.spec.Column != "" {
		val = row[a.spec.Column]
	}

	switch a.spec.Func {
	case models.AggCount:
		if a.spec.Column == "" || !isNull(val) {
			a.count++
		}
	case models.AggCountDistinct:
		if !isNull(val) {
			a.distinct[fmt.Sprintf("%v", val)] = true
		}
	case models.AggSum, models.AggAvg:
		if f, ok := toFloat(val); ok {
			a.sum += f
			a.seen++
		}
	case models.AggMin:
		if !isNull(val) && (a.min == nil || compareValues(val, a.min) < 0) {
			a.min = val
		}
	case models.AggMax:
		if !isNull(val) && (a.max == nil || compareValues(val, a.max) > 0) {
			a.max = val
		}
	}
}

func (a *accumulator) result() any {
	switch a.spec.Func {
	case models.AggCount:
		return a.count
	case models.AggCountDistinct:
		return int64(len(a.distinct))
	case models.AggSum:
		return a.sum
	case models.AggAvg:
		if a.seen == 0 {
			return nil
		}
		return a.sum / float64(a.seen)
	case models.AggMin:
		return a.min
	case models.AggMax:
		return a.max
	}
	return nil
}
