package gateway

import (
	"encoding/binary"
	"fmt"
	"math"
)

// 行情二进制包的响应码。
const (
	packetTicker = 2 // LTP
	packetQuote  = 4 // LTP + 成交量
)

// 包头：1 字节响应码，2 字节长度，1 字节交易所段，4 字节 securityID，小端。
const headerSize = 8

// Tick 从行情流解析出的单笔数据。
type Tick struct {
	SecurityID int
	LTP        float64
	Volume     float64
}

// ParseTickPacket 解析一个二进制行情包。
// 只认 ticker/quote 两类；其余包与残缺包返回错误，由调用方丢弃并记日志。
func ParseTickPacket(raw []byte) (Tick, error) {
	if len(raw) < headerSize {
		return Tick{}, fmt.Errorf("packet too short: %d bytes", len(raw))
	}
	code := raw[0]
	securityID := int(binary.LittleEndian.Uint32(raw[4:8]))
	if securityID <= 0 {
		return Tick{}, fmt.Errorf("invalid security id %d", securityID)
	}

	switch code {
	case packetTicker:
		if len(raw) < headerSize+4 {
			return Tick{}, fmt.Errorf("ticker packet truncated: %d bytes", len(raw))
		}
		ltp := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[8:12])))
		if ltp <= 0 || math.IsNaN(ltp) {
			return Tick{}, fmt.Errorf("ticker packet without price")
		}
		return Tick{SecurityID: securityID, LTP: ltp}, nil

	case packetQuote:
		// quote: float32 LTP, int16 LTQ, int32 LTT, float32 ATP, int32 volume
		if len(raw) < headerSize+18 {
			return Tick{}, fmt.Errorf("quote packet truncated: %d bytes", len(raw))
		}
		ltp := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[8:12])))
		if ltp <= 0 || math.IsNaN(ltp) {
			return Tick{}, fmt.Errorf("quote packet without price")
		}
		volume := float64(binary.LittleEndian.Uint32(raw[22:26]))
		return Tick{SecurityID: securityID, LTP: ltp, Volume: volume}, nil

	default:
		return Tick{}, fmt.Errorf("unhandled packet code %d", code)
	}
}

// BuildTickerPacket 构造 ticker 包，测试与模拟流使用。
func BuildTickerPacket(securityID int, ltp float32) []byte {
	buf := make([]byte, headerSize+4)
	buf[0] = packetTicker
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(buf)))
	buf[3] = 1 // NSE
	binary.LittleEndian.PutUint32(buf[4:8], uint32(securityID))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(ltp))
	return buf
}

// BuildQuotePacket 构造 quote 包，测试与模拟流使用。
func BuildQuotePacket(securityID int, ltp float32, volume uint32) []byte {
	buf := make([]byte, headerSize+18)
	buf[0] = packetQuote
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(buf)))
	buf[3] = 1
	binary.LittleEndian.PutUint32(buf[4:8], uint32(securityID))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(ltp))
	binary.LittleEndian.PutUint32(buf[22:26], volume)
	return buf
}
