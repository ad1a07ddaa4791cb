// Package models содержит структуры данных телеметрии кольца и API сервиса
package models

import "time"

// Sample представляет один PPG-сэмпл от кольца
type Sample struct {
	Value       float64 `json:"value"`
	TimestampMs uint32  `json:"ts_ms"`
}

// SamplesBatch представляет пакет сэмплов для массовой загрузки
type SamplesBatch struct {
	DeviceID string   `json:"device_id,omitempty"`
	Samples  []Sample `json:"samples"`
}

// SkinTemperature показание датчика температуры кожи
type SkinTemperature struct {
	Celsius int8 `json:"celsius"`
}

// RRBatch принятые RR-интервалы, выгруженные за один цикл
type RRBatch struct {
	SessionID   string    `json:"session_id,omitempty"`
	TimestampMs uint32    `json:"ts_ms"`
	RRMs        []float64 `json:"rr_ms"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Store     string    `json:"store"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	SamplesTotal    int64  `json:"samples_total"`
	RRAccepted      int64  `json:"rr_accepted"`
	RRSeen          uint32 `json:"rr_seen"`
	CuesGenerated   uint32 `json:"cues_generated"`
	CuesSuppressed  uint32 `json:"cues_suppressed"`
	CuesStored      int64  `json:"cues_stored"`
	EventsDropped   uint64 `json:"events_dropped"`
	DeviceClockMs   uint32 `json:"device_clock_ms"`
	AutonomousMode  bool   `json:"autonomous_mode"`
	SignatureFeel   bool   `json:"signature_feel"`
	ActiveGoroutine int    `json:"active_goroutines"`
}
