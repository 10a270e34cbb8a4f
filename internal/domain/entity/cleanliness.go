package entity

import "math"

// Cleanliness итоговая метка чистоты.
type Cleanliness string

const (
	Clean Cleanliness = "clean"
	Dirty Cleanliness = "dirty"
)

// CleanlinessEstimate пара взаимодополняющих вероятностей, PClean + PDirty = 1.
type CleanlinessEstimate struct {
	PClean float64 `json:"p_clean"`
	PDirty float64 `json:"p_dirty"`
}

// NewCleanlinessEstimate строит оценку по вероятности «чисто», приводя её к [0,1].
func NewCleanlinessEstimate(pClean float64) CleanlinessEstimate {
	switch {
	case pClean < 0 || math.IsNaN(pClean):
		pClean = 0
	case pClean > 1:
		pClean = 1
	}
	return CleanlinessEstimate{PClean: pClean, PDirty: 1 - pClean}
}

// FallbackCleanliness безопасная оценка, когда классификатор ничего не сказал.
func FallbackCleanliness() CleanlinessEstimate {
	return CleanlinessEstimate{PClean: 0.5, PDirty: 0.5}
}

// Label возвращает clean при PClean >= 0.5.
func (e CleanlinessEstimate) Label() Cleanliness {
	if e.PClean >= 0.5 {
		return Clean
	}
	return Dirty
}
