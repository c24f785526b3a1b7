package models

import (
	"time"
)

const (
	DirectSource    = "direct"
	UnknownLocation = "N/A"
)

type Click struct {
	ClickedAt time.Time `json:"clicked_at"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}

// Visit описывает переход без времени. Время клика проставляет хранилище
// под блокировкой записи, иначе порядок кликов и проверка срока расходятся.
type Visit struct {
	Source   string
	Location string
}

// NewVisit строит переход по Referer, без него источник "direct"
func NewVisit(referrer string) Visit {
	source := referrer
	if source == "" {
		source = DirectSource
	}
	return Visit{
		Source:   source,
		Location: UnknownLocation,
	}
}

// At фиксирует переход как клик в момент at
func (v Visit) At(at time.Time) Click {
	return Click{
		ClickedAt: at,
		Source:    v.Source,
		Location:  v.Location,
	}
}
