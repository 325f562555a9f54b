package rowstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// settingsSeries 是设置工作表的名称，首行为表头、第二行为值。
const settingsSeries = "settings"

// SheetsStore 把一个 Google 试算表当作行存储使用：
// 每个 series 对应一个工作表，首行表头、数据从第二行开始追加。
type SheetsStore struct {
	srv           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsStore 用服务账号凭证构造 Sheets 后端。
func NewSheetsStore(ctx context.Context, spreadsheetID string, credentialsJSON []byte) (*SheetsStore, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, unavailable("create sheets client", err)
	}

	return &SheetsStore{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		sheetIDs:      make(map[string]int64),
	}, nil
}

func (s *SheetsStore) Append(ctx context.Context, series string, row []string) error {
	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cell
	}

	_, err := s.srv.Spreadsheets.Values.
		Append(s.spreadsheetID, series, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return unavailable("append "+series, err)
	}
	return nil
}

func (s *SheetsStore) ListAll(ctx context.Context, series string) ([][]string, error) {
	// 跳过表头行
	resp, err := s.srv.Spreadsheets.Values.
		Get(s.spreadsheetID, fmt.Sprintf("%s!A2:Z", series)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, unavailable("list "+series, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		cells := make([]string, len(raw))
		for i, v := range raw {
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (s *SheetsStore) DeleteAt(ctx context.Context, series string, index int) error {
	if index < 0 {
		return ErrIndexOutOfRange
	}

	sheetID, err := s.sheetID(ctx, series)
	if err != nil {
		return err
	}

	// 数据从第二行开始，逻辑下标 0 对应表格行下标 1
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(index + 1),
					EndIndex:   int64(index + 2),
				},
			},
		}},
	}

	if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return unavailable("delete "+series, err)
	}
	return nil
}

func (s *SheetsStore) ReadSettings(ctx context.Context) (map[string]string, error) {
	headers, values, err := s.settingsRows(ctx)
	if err != nil {
		return nil, err
	}

	settings := make(map[string]string, len(headers))
	for i, key := range headers {
		if key == "" {
			continue
		}
		if i < len(values) {
			settings[key] = values[i]
		} else {
			settings[key] = ""
		}
	}
	return settings, nil
}

func (s *SheetsStore) WriteSetting(ctx context.Context, key, value string) error {
	headers, _, err := s.settingsRows(ctx)
	if err != nil {
		return err
	}

	column := -1
	for i, header := range headers {
		if header == key {
			column = i
			break
		}
	}

	if column >= 0 {
		rng := fmt.Sprintf("%s!%s2", settingsSeries, columnLetter(column))
		_, err := s.srv.Spreadsheets.Values.
			Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{{value}}}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return unavailable("write setting "+key, err)
		}
		return nil
	}

	// 未知键扩展一列：同时写入表头与值
	letter := columnLetter(len(headers))
	rng := fmt.Sprintf("%s!%s1:%s2", settingsSeries, letter, letter)
	_, err = s.srv.Spreadsheets.Values.
		Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{{key}, {value}}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return unavailable("extend setting "+key, err)
	}
	return nil
}

func (s *SheetsStore) settingsRows(ctx context.Context) (headers, values []string, err error) {
	resp, err := s.srv.Spreadsheets.Values.
		Get(s.spreadsheetID, settingsSeries+"!A1:ZZ2").
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, unavailable("read settings", err)
	}

	toStrings := func(raw []interface{}) []string {
		out := make([]string, len(raw))
		for i, v := range raw {
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		return out
	}

	if len(resp.Values) > 0 {
		headers = toStrings(resp.Values[0])
	}
	if len(resp.Values) > 1 {
		values = toStrings(resp.Values[1])
	}
	return headers, values, nil
}

// sheetID 解析工作表名称对应的数字 ID，结果缓存在进程内。
func (s *SheetsStore) sheetID(ctx context.Context, series string) (int64, error) {
	s.mu.Lock()
	if id, ok := s.sheetIDs[series]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	meta, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, unavailable("resolve sheet "+series, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil {
			s.sheetIDs[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}

	id, ok := s.sheetIDs[series]
	if !ok {
		return 0, fmt.Errorf("resolve sheet %s: %w: sheet not found", series, ErrStoreUnavailable)
	}
	return id, nil
}

// columnLetter 把 0 起始的列下标转换为 A1 标记的列名。
func columnLetter(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}
