package recordings

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"nvr-timeline/internal/playback"
	"nvr-timeline/internal/timeline"
)

// Times are stored as unix nanoseconds so range predicates compare integers
// and round trips are exact.

type recordingRow struct {
	ID        uint   `gorm:"primaryKey"`
	Camera    string `gorm:"not null;index:idx_recordings_camera_start,priority:1"`
	StartNano int64  `gorm:"not null;index:idx_recordings_camera_start,priority:2"`
	EndNano   int64  `gorm:"not null"`
	Path      string `gorm:"not null"`
}

func (recordingRow) TableName() string { return "recordings" }

type activityRow struct {
	ID         uint    `gorm:"primaryKey"`
	Camera     string  `gorm:"not null;index:idx_activity_camera_at,priority:1"`
	AtNano     int64   `gorm:"not null;index:idx_activity_camera_at,priority:2"`
	Count      float64 `gorm:"not null"`
	HasObjects bool    `gorm:"not null"`
}

func (activityRow) TableName() string { return "activity_samples" }

type eventRow struct {
	ID     string `gorm:"primaryKey"`
	Camera string `gorm:"not null;index:idx_events_camera_at,priority:1"`
	AtNano int64  `gorm:"not null;index:idx_events_camera_at,priority:2"`
	Label  string
}

func (eventRow) TableName() string { return "timeline_events" }

type previewRow struct {
	ID        uint   `gorm:"primaryKey"`
	Camera    string `gorm:"not null;index:idx_previews_camera_start,priority:1"`
	StartNano int64  `gorm:"not null;index:idx_previews_camera_start,priority:2"`
	EndNano   int64  `gorm:"not null"`
	Src       string `gorm:"not null"`
}

func (previewRow) TableName() string { return "preview_clips" }

func fromNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// OpenSQLite opens a SQLite database through gorm. SQLite gets a single
// connection, which also keeps ":memory:" databases alive between queries.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

// GormRepository is a Repository backed by a gorm database.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository migrates the schema and returns a repository on db.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&recordingRow{}, &activityRow{}, &eventRow{}, &previewRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// AddRecording implements Repository.AddRecording.
func (r *GormRepository) AddRecording(ctx context.Context, rec Recording) error {
	row := recordingRow{
		Camera:    rec.Camera,
		StartNano: rec.Start.UnixNano(),
		EndNano:   rec.End.UnixNano(),
		Path:      rec.Path,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		err := tx.Model(&recordingRow{}).
			Where("camera = ? AND start_nano < ? AND end_nano > ?", row.Camera, row.EndNano, row.StartNano).
			Count(&n).Error
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrOverlap
		}
		return tx.Create(&row).Error
	})
}

// FindRecordings implements Repository.FindRecordings.
func (r *GormRepository) FindRecordings(ctx context.Context, camera string, after, before time.Time) ([]Recording, error) {
	var rows []recordingRow
	err := r.db.WithContext(ctx).
		Where("camera = ? AND start_nano < ? AND end_nano > ?", camera, before.UnixNano(), after.UnixNano()).
		Order("start_nano, end_nano, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Recording, 0, len(rows))
	for _, row := range rows {
		out = append(out, Recording{
			Camera: row.Camera,
			Start:  fromNano(row.StartNano),
			End:    fromNano(row.EndNano),
			Path:   row.Path,
		})
	}
	return out, nil
}

// AddActivity implements Repository.AddActivity.
func (r *GormRepository) AddActivity(ctx context.Context, camera string, samples []timeline.ActivitySample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([]activityRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, activityRow{
			Camera:     camera,
			AtNano:     s.Date.UnixNano(),
			Count:      s.Count,
			HasObjects: s.HasObjects,
		})
	}
	return r.db.WithContext(ctx).CreateInBatches(&rows, 500).Error
}

// FindActivity implements Repository.FindActivity.
func (r *GormRepository) FindActivity(ctx context.Context, camera string, after, before time.Time) ([]timeline.ActivitySample, error) {
	var rows []activityRow
	err := r.db.WithContext(ctx).
		Where("camera = ? AND at_nano BETWEEN ? AND ?", camera, after.UnixNano(), before.UnixNano()).
		Order("at_nano, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]timeline.ActivitySample, 0, len(rows))
	for _, row := range rows {
		out = append(out, timeline.ActivitySample{
			Date:       fromNano(row.AtNano),
			Count:      row.Count,
			HasObjects: row.HasObjects,
		})
	}
	return out, nil
}

// AddEvent implements Repository.AddEvent.
func (r *GormRepository) AddEvent(ctx context.Context, ev timeline.TimelineEvent) error {
	row := eventRow{
		ID:     ev.ID,
		Camera: ev.Camera,
		AtNano: ev.Timestamp.UnixNano(),
		Label:  ev.Label,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// FindEvents implements Repository.FindEvents.
func (r *GormRepository) FindEvents(ctx context.Context, camera string, after, before time.Time) ([]timeline.TimelineEvent, error) {
	var rows []eventRow
	err := r.db.WithContext(ctx).
		Where("camera = ? AND at_nano BETWEEN ? AND ?", camera, after.UnixNano(), before.UnixNano()).
		Order("at_nano, rowid").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]timeline.TimelineEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, timeline.TimelineEvent{
			ID:        row.ID,
			Camera:    row.Camera,
			Label:     row.Label,
			Timestamp: fromNano(row.AtNano),
		})
	}
	return out, nil
}

// AddPreview implements Repository.AddPreview.
func (r *GormRepository) AddPreview(ctx context.Context, camera string, clip playback.PreviewClip) error {
	row := previewRow{
		Camera:    camera,
		StartNano: clip.Start.UnixNano(),
		EndNano:   clip.End.UnixNano(),
		Src:       clip.Src,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// FindPreview implements Repository.FindPreview.
func (r *GormRepository) FindPreview(ctx context.Context, camera string, t time.Time) (playback.PreviewClip, bool, error) {
	var rows []previewRow
	at := t.UnixNano()
	err := r.db.WithContext(ctx).
		Where("camera = ? AND start_nano <= ? AND end_nano >= ?", camera, at, at).
		Order("start_nano DESC, id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return playback.PreviewClip{}, false, err
	}
	return playback.PreviewClip{
		Src:   rows[0].Src,
		Start: fromNano(rows[0].StartNano),
		End:   fromNano(rows[0].EndNano),
	}, true, nil
}

// CameraCount implements Repository.CameraCount.
func (r *GormRepository) CameraCount(ctx context.Context) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&recordingRow{}).Distinct("camera").Count(&n).Error
	return int(n), err
}
