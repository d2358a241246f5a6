package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-trader-go/infrastructure/logger"
)

const sampleScripCSV = `SEM_EXM_EXCH_ID,SEM_INSTRUMENT_NAME,SEM_TRADING_SYMBOL,SEM_SMST_SECURITY_ID
NSE,EQUITY,RELIANCE,2885
NSE,EQUITY,TCS-EQ,11536
BSE,EQUITY,RELIANCE,500325
NSE,FUTIDX,NIFTY,13
NSE,EQUITY,INFY,1594
`

func parseSample(t *testing.T) *ScripMaster {
	t.Helper()
	sm, err := ParseScripMaster(strings.NewReader(sampleScripCSV), logger.NewNop())
	require.NoError(t, err)
	return sm
}

func TestParseScripMasterFiltersNSEEquity(t *testing.T) {
	sm := parseSample(t)
	assert.Equal(t, 3, sm.Size()) // BSE 行与期货行被过滤
}

func TestSecurityIDDirectHit(t *testing.T) {
	sm := parseSample(t)
	id, ok := sm.SecurityID("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, 2885, id)
}

func TestSecurityIDSuffixFallback(t *testing.T) {
	sm := parseSample(t)
	// 裸 symbol 未命中，追加 -EQ 后命中
	id, ok := sm.SecurityID("TCS")
	require.True(t, ok)
	assert.Equal(t, 11536, id)

	// 第二次从缓存命中
	id2, ok2 := sm.SecurityID("TCS")
	require.True(t, ok2)
	assert.Equal(t, id, id2)
}

func TestSecurityIDUnknown(t *testing.T) {
	sm := parseSample(t)
	_, ok := sm.SecurityID("NOPE")
	assert.False(t, ok)
}

func TestSymbolByID(t *testing.T) {
	sm := parseSample(t)
	sym, ok := sm.SymbolByID(1594)
	require.True(t, ok)
	assert.Equal(t, "INFY", sym)

	_, ok = sm.SymbolByID(999999)
	assert.False(t, ok)
}

func TestParseScripMasterMissingColumn(t *testing.T) {
	_, err := ParseScripMaster(strings.NewReader("A,B\n1,2\n"), logger.NewNop())
	assert.Error(t, err)
}

func TestParseScripMasterSkipsShortRows(t *testing.T) {
	// 残缺行（列数不足）不得让解析崩溃，跳过后继续
	raggedCSV := "SEM_EXM_EXCH_ID,SEM_INSTRUMENT_NAME,SEM_TRADING_SYMBOL,SEM_SMST_SECURITY_ID\n" +
		"NSE,EQUITY\n" +
		"NSE,EQUITY,RELIANCE,2885\n"

	sm, err := ParseScripMaster(strings.NewReader(raggedCSV), logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, sm.Size())

	id, ok := sm.SecurityID("RELIANCE")
	require.True(t, ok)
	assert.Equal(t, 2885, id)
}
