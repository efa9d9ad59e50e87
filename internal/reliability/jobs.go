package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/ataha322/stock-agent-hackathon/internal/database"
)

// diskUsageCriticalPct halts maintenance when the data volume is this full.
const diskUsageCriticalPct = 95.0

// MaintenanceJob keeps the store healthy: integrity check, WAL truncation
// and a disk-space guard. Runs daily off-hours.
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	log     zerolog.Logger
}

// NewMaintenanceJob creates the daily maintenance job.
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		log:     log.With().Str("job", "maintenance").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *MaintenanceJob) Name() string {
	return "store_maintenance"
}

// Run implements scheduler.Job.
func (j *MaintenanceJob) Run() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store integrity check failed: %w", err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		// Not fatal; the next checkpoint attempt may succeed.
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read disk usage")
	} else if usage.UsedPercent >= diskUsageCriticalPct {
		return fmt.Errorf("disk usage critical: %.1f%% used on %s", usage.UsedPercent, j.dataDir)
	}

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("Maintenance completed")
	return nil
}

// BackupJob creates and ships one backup, then applies retention.
type BackupJob struct {
	service *BackupService
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *BackupJob) Name() string {
	return "store_backup"
}

// Run implements scheduler.Job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.service.PruneOldBackups(ctx); err != nil {
		// The backup itself succeeded; retention can catch up next run.
		j.log.Warn().Err(err).Msg("Backup retention failed")
	}

	return nil
}
