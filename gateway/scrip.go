package gateway

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"ladder-trader-go/infrastructure/logger"
)

// ScripMaster 证券主档：symbol↔securityID 双向映射。
// 连接时构建一次，之后只读；惰性缓存填充可安全竞争（幂等，末写胜出）。
type ScripMaster struct {
	symbolToID map[string]int
	idToSymbol map[int]string
	cache      sync.Map // symbol -> int，含 -EQ 回退命中
	log        *logger.Logger
}

// 主档 CSV 的关键列名（Dhan api-scrip-master.csv）。
const (
	colExchange   = "SEM_EXM_EXCH_ID"
	colInstrument = "SEM_INSTRUMENT_NAME"
	colSymbol     = "SEM_TRADING_SYMBOL"
	colSecurityID = "SEM_SMST_SECURITY_ID"
)

// FetchScripMaster 下载证券主档 CSV 并构建映射，只保留 NSE 股票。
func FetchScripMaster(url string, client *http.Client, log *logger.Logger) (*ScripMaster, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build scrip master request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch scrip master: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrip master status %d", resp.StatusCode)
	}
	return ParseScripMaster(resp.Body, log)
}

// ParseScripMaster 解析主档 CSV。未知列布局通过表头定位。
func ParseScripMaster(r io.Reader, log *logger.Logger) (*ScripMaster, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read scrip master header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	maxIdx := 0
	for _, col := range []string{colExchange, colInstrument, colSymbol, colSecurityID} {
		i, ok := idx[col]
		if !ok {
			return nil, fmt.Errorf("scrip master missing column %s", col)
		}
		if i > maxIdx {
			maxIdx = i
		}
	}

	sm := &ScripMaster{
		symbolToID: make(map[string]int),
		idToSymbol: make(map[int]string),
		log:        log,
	}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // 坏行跳过
		}
		if len(rec) <= maxIdx {
			continue // 残缺行跳过
		}
		if rec[idx[colExchange]] != "NSE" || rec[idx[colInstrument]] != "EQUITY" {
			continue
		}
		id, err := strconv.Atoi(rec[idx[colSecurityID]])
		if err != nil {
			continue
		}
		sym := rec[idx[colSymbol]]
		sm.symbolToID[sym] = id
		sm.idToSymbol[id] = sym
	}
	if len(sm.symbolToID) == 0 {
		return nil, fmt.Errorf("scrip master has no NSE equity records")
	}
	if log != nil {
		log.Info("scrip master loaded", zap.Int("symbols", len(sm.symbolToID)))
	}
	return sm, nil
}

// SecurityID 返回 symbol 对应的数字 ID。裸 symbol 未命中时追加 -EQ 再查。
// 命中结果缓存，第二个返回值为 false 表示无法解析。
func (s *ScripMaster) SecurityID(symbol string) (int, bool) {
	if v, ok := s.cache.Load(symbol); ok {
		return v.(int), true
	}
	if id, ok := s.symbolToID[symbol]; ok {
		s.cache.Store(symbol, id)
		return id, true
	}
	if id, ok := s.symbolToID[symbol+"-EQ"]; ok {
		s.cache.Store(symbol, id)
		return id, true
	}
	return 0, false
}

// SymbolByID 反查 ID→symbol，用于 tick 回调。
func (s *ScripMaster) SymbolByID(id int) (string, bool) {
	sym, ok := s.idToSymbol[id]
	return sym, ok
}

// Size 已加载的映射条数。
func (s *ScripMaster) Size() int {
	return len(s.symbolToID)
}
