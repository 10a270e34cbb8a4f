package storage

import (
	"context"
	"errors"
	"sync"

	"car-inspect/internal/domain/entity"
	"car-inspect/internal/domain/port"
)

// ErrReportNotFound возвращается, если отчёта с таким ID нет.
var ErrReportNotFound = errors.New("report not found")

// DefaultReportCapacity сколько последних отчётов держим в памяти.
const DefaultReportCapacity = 1000

// MemoryReportRepository хранит последние отчёты в памяти, вытесняя самые старые.
type MemoryReportRepository struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	reports  map[string]*entity.InspectionReport
}

// NewMemoryReportRepository создаёт хранилище на capacity отчётов.
func NewMemoryReportRepository(capacity int) *MemoryReportRepository {
	if capacity <= 0 {
		capacity = DefaultReportCapacity
	}
	return &MemoryReportRepository{
		capacity: capacity,
		reports:  make(map[string]*entity.InspectionReport),
	}
}

// Save сохраняет отчёт
func (r *MemoryReportRepository) Save(ctx context.Context, report *entity.InspectionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.ID]; !exists {
		r.order = append(r.order, report.ID)
	}
	r.reports[report.ID] = report

	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.reports, oldest)
	}
	return nil
}

// Get возвращает отчёт по ID
func (r *MemoryReportRepository) Get(ctx context.Context, id string) (*entity.InspectionReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}

var _ port.ReportRepository = (*MemoryReportRepository)(nil)
