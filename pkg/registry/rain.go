package registry

import (
	"math"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

const (
	rainHour = time.Hour
	rainDay  = 24 * time.Hour
)

type rainEvent struct {
	at     time.Time
	amount float64
}

// rainHistory turns the rain gauge's running counter into per update and per
// period amounts.
type rainHistory struct {
	counter    float64
	hasCounter bool
	lastRain   float64
	events     []rainEvent

	timeSpan  float64
	lastFrame time.Time
}

func (h *rainHistory) observe(now time.Time, measurements []models.Measurement) {
	for _, m := range measurements {
		if !m.Valid {
			continue
		}
		switch m.Type {
		case models.MeasurementRain:
			h.lastRain = 0
			// a counter going backwards is a sensor reset, start over from it
			if h.hasCounter && m.Value > h.counter {
				h.lastRain = roundMM(m.Value - h.counter)
				h.events = append(h.events, rainEvent{at: now, amount: h.lastRain})
			}
			h.counter = m.Value
			h.hasCounter = true
		case models.MeasurementTimeSpan:
			h.timeSpan = m.Value
			h.lastFrame = now
		}
	}
}

func (h *rainHistory) sum(now time.Time, window time.Duration) float64 {
	total := 0.0
	for _, e := range h.events {
		if !e.at.Before(now.Add(-window)) {
			total += e.amount
		}
	}
	return roundMM(total)
}

func (h *rainHistory) prune(now time.Time) {
	keep := h.events[:0]
	for _, e := range h.events {
		if !e.at.Before(now.Add(-rainDay)) {
			keep = append(keep, e)
		}
	}
	h.events = keep
}

func (h *rainHistory) derived(now time.Time, lastRainPeriod time.Duration) []models.Measurement {
	h.prune(now)

	raining := !h.lastFrame.IsZero() && h.timeSpan == 0 && !h.lastFrame.Before(now.Add(-lastRainPeriod))
	isRaining := models.Measurement{
		Type:  models.MeasurementIsRaining,
		Key:   "is_raining",
		Text:  models.BoolText(raining),
		Valid: true,
	}
	if raining {
		isRaining.Value = 1
	}

	return []models.Measurement{
		isRaining,
		rainAmount(models.MeasurementLastRain, "last_rain", h.lastRain),
		rainAmount(models.MeasurementLastHourRain, "last_hour_rain", h.sum(now, rainHour)),
		rainAmount(models.MeasurementLastDayRain, "last_day_rain", h.sum(now, rainDay)),
	}
}

func rainAmount(t models.MeasurementType, key string, mm float64) models.Measurement {
	return models.Measurement{Type: t, Key: key, Value: mm, Unit: models.UnitMillimeter, Valid: true}
}

func roundMM(v float64) float64 {
	return math.Round(v*1000) / 1000
}
