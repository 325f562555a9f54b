package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeriesRow 以 JSON 存储单行的全部单元格，按自增主键保持追加顺序。
type SeriesRow struct {
	ID        uint   `gorm:"primarykey"`
	Series    string `gorm:"index"`
	Cells     string
	CreatedAt time.Time
}

// Setting 是键值形式的设置记录，未知键直接落为新行。
type Setting struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string
}

// SQLiteStore 是本地模式下的行存储实现，同时作为测试后端。
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite 打开（必要时创建）sqlite 数据库并执行迁移。
// databasePath 为空时回退到默认值 healthbot.db。
func OpenSQLite(databasePath string) (*gorm.DB, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "healthbot.db"
	}

	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(&SeriesRow{}, &Setting{}); err != nil {
		return nil, err
	}

	return gdb, nil
}

// NewSQLiteStore 基于已迁移的 gorm 连接构造存储。
func NewSQLiteStore(gdb *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: gdb}
}

func (s *SQLiteStore) Append(ctx context.Context, series string, row []string) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return unavailable("append "+series, err)
	}

	record := SeriesRow{Series: series, Cells: string(cells)}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return unavailable("append "+series, err)
	}
	return nil
}

func (s *SQLiteStore) ListAll(ctx context.Context, series string) ([][]string, error) {
	var records []SeriesRow
	if err := s.db.WithContext(ctx).
		Where("series = ?", series).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, unavailable("list "+series, err)
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		var cells []string
		if err := json.Unmarshal([]byte(record.Cells), &cells); err != nil {
			// 损坏的行按空行处理，聚合层自行降级
			cells = []string{}
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (s *SQLiteStore) DeleteAt(ctx context.Context, series string, index int) error {
	if index < 0 {
		return ErrIndexOutOfRange
	}

	var record SeriesRow
	err := s.db.WithContext(ctx).
		Where("series = ?", series).
		Order("id ASC").
		Offset(index).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrIndexOutOfRange
	}
	if err != nil {
		return unavailable("locate "+series, err)
	}

	if err := s.db.WithContext(ctx).Delete(&SeriesRow{}, record.ID).Error; err != nil {
		return unavailable("delete "+series, err)
	}
	return nil
}

func (s *SQLiteStore) ReadSettings(ctx context.Context) (map[string]string, error) {
	var records []Setting
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, unavailable("read settings", err)
	}

	settings := make(map[string]string, len(records))
	for _, record := range records {
		settings[record.Key] = record.Value
	}
	return settings, nil
}

func (s *SQLiteStore) WriteSetting(ctx context.Context, key, value string) error {
	record := Setting{Key: key, Value: value}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(&record).Error; err != nil {
		return unavailable("write setting "+key, err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
