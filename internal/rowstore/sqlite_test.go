package rowstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&SeriesRow{}, &Setting{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return NewSQLiteStore(gdb)
}

func TestAppendAndListPreserveOrder(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		row := []string{fmt.Sprintf("2026-03-02 09:0%d:00", i), fmt.Sprintf("id-%d", i)}
		if err := store.Append(ctx, "water_log", row); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}
	// 其他序列互不干扰
	if err := store.Append(ctx, "stand_log", []string{"2026-03-02 09:00:00", "other"}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	rows, err := store.ListAll(ctx, "water_log")
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row[1] != fmt.Sprintf("id-%d", i) {
			t.Fatalf("rows out of order at %d: %+v", i, row)
		}
	}
}

func TestDeleteAt(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, "water_log", []string{fmt.Sprintf("ts-%d", i), fmt.Sprintf("id-%d", i)}); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	if err := store.DeleteAt(ctx, "water_log", 1); err != nil {
		t.Fatalf("DeleteAt returned error: %v", err)
	}

	rows, err := store.ListAll(ctx, "water_log")
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "id-0" || rows[1][1] != "id-2" {
		t.Fatalf("unexpected survivors: %+v", rows)
	}

	if err := store.DeleteAt(ctx, "water_log", 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := store.DeleteAt(ctx, "water_log", -1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange for negative index, got %v", err)
	}
}

func TestSettingsUpsert(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	settings, err := store.ReadSettings(ctx)
	if err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}
	if len(settings) != 0 {
		t.Fatalf("expected empty settings, got %+v", settings)
	}

	if err := store.WriteSetting(ctx, "goal_water", "8"); err != nil {
		t.Fatalf("WriteSetting returned error: %v", err)
	}
	if err := store.WriteSetting(ctx, "goal_water", "10"); err != nil {
		t.Fatalf("WriteSetting returned error: %v", err)
	}
	if err := store.WriteSetting(ctx, "enabled", "true"); err != nil {
		t.Fatalf("WriteSetting returned error: %v", err)
	}

	settings, err = store.ReadSettings(ctx)
	if err != nil {
		t.Fatalf("ReadSettings returned error: %v", err)
	}
	if settings["goal_water"] != "10" {
		t.Fatalf("expected overwrite to win, got %q", settings["goal_water"])
	}
	if settings["enabled"] != "true" {
		t.Fatalf("unexpected enabled value: %q", settings["enabled"])
	}
}

func TestListAllToleratesCorruptRow(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "water_log", []string{"ok", "id"}); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	// 直接塞一条非 JSON 的脏行
	if err := store.db.Create(&SeriesRow{Series: "water_log", Cells: "not json"}).Error; err != nil {
		t.Fatalf("seed corrupt row failed: %v", err)
	}

	rows, err := store.ListAll(ctx, "water_log")
	if err != nil {
		t.Fatalf("ListAll returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected corrupt row to degrade to empty, got %d rows", len(rows))
	}
	if len(rows[1]) != 0 {
		t.Fatalf("expected empty cells for corrupt row, got %+v", rows[1])
	}
}
