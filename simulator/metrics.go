package simulator

import (
	"errors"
	"sync"

	"github.com/dargueta/blocksim"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fileManagerPrometheusMetrics sync.Once

	fileManagerFilesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blocksim",
			Subsystem: "simulator",
			Name:      "files_created_total",
			Help:      "Number of files created, by allocation method.",
		},
		[]string{"method"})
	fileManagerFilesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blocksim",
			Subsystem: "simulator",
			Name:      "files_deleted_total",
			Help:      "Number of files deleted.",
		})
	fileManagerCreateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "blocksim",
			Subsystem: "simulator",
			Name:      "create_failures_total",
			Help:      "Number of file creations that were rejected, by allocation method and reason.",
		},
		[]string{"method", "reason"})
	fileManagerPersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blocksim",
			Subsystem: "simulator",
			Name:      "persistence_failures_total",
			Help:      "Number of changes that were applied but could not be saved.",
		})
	fileManagerFreeBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "blocksim",
			Subsystem: "simulator",
			Name:      "free_blocks",
			Help:      "Number of free blocks on the device after the last change.",
		})
)

type metricsFileManager struct {
	base blocksim.FileManager
}

// NewMetricsFileManager creates a decorator for FileManager that exposes
// Prometheus metrics on files created and deleted, rejected creations, failed
// saves and the number of free blocks.
func NewMetricsFileManager(base blocksim.FileManager) blocksim.FileManager {
	fileManagerPrometheusMetrics.Do(func() {
		prometheus.MustRegister(fileManagerFilesCreated)
		prometheus.MustRegister(fileManagerFilesDeleted)
		prometheus.MustRegister(fileManagerCreateFailures)
		prometheus.MustRegister(fileManagerPersistenceFailures)
		prometheus.MustRegister(fileManagerFreeBlocks)
	})

	fm := &metricsFileManager{base: base}
	fm.updateFreeBlocks()
	return fm
}

// failureReason maps a creation error to a short label value.
func failureReason(err error) string {
	switch {
	case errors.Is(err, blocksim.ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, blocksim.ErrInsufficientContiguousSpace):
		return "no_contiguous_space"
	case errors.Is(err, blocksim.ErrInsufficientSpace):
		return "no_space"
	case errors.Is(err, blocksim.ErrInvalidArgument):
		return "invalid_argument"
	}
	return "other"
}

func (fm *metricsFileManager) updateFreeBlocks() {
	free := 0
	for _, state := range fm.base.DeviceSnapshot() {
		if state.IsFree() {
			free++
		}
	}
	fileManagerFreeBlocks.Set(float64(free))
}

// observeSave counts a failed save. It returns true if the change itself went
// through, whether or not it was saved.
func (fm *metricsFileManager) observeSave(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, blocksim.ErrPersistenceFailure) {
		fileManagerPersistenceFailures.Inc()
		return true
	}
	return false
}

func (fm *metricsFileManager) CreateFile(
	name string,
	size uint,
	method blocksim.Method,
	fileType blocksim.FileType,
	content string,
) error {
	err := fm.base.CreateFile(name, size, method, fileType, content)
	if fm.observeSave(err) {
		fileManagerFilesCreated.WithLabelValues(method.String()).Inc()
		fm.updateFreeBlocks()
	} else {
		fileManagerCreateFailures.WithLabelValues(method.String(), failureReason(err)).Inc()
	}
	return err
}

func (fm *metricsFileManager) DeleteFile(name string) (bool, error) {
	deleted, err := fm.base.DeleteFile(name)
	fm.observeSave(err)
	if deleted {
		fileManagerFilesDeleted.Inc()
		fm.updateFreeBlocks()
	}
	return deleted, err
}

func (fm *metricsFileManager) GetAllFiles() map[string]blocksim.FileInfo {
	return fm.base.GetAllFiles()
}

func (fm *metricsFileManager) GetFileContent(name string) (string, bool) {
	return fm.base.GetFileContent(name)
}

func (fm *metricsFileManager) UpdateFileContent(name, content string) (bool, error) {
	updated, err := fm.base.UpdateFileContent(name, content)
	fm.observeSave(err)
	return updated, err
}

func (fm *metricsFileManager) DeviceSnapshot() []blocksim.BlockState {
	return fm.base.DeviceSnapshot()
}
