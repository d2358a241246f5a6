package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"ladder-trader-go/config"
	"ladder-trader-go/gateway"
	"ladder-trader-go/infrastructure/logger"
	"ladder-trader-go/internal/engine"
	"ladder-trader-go/order"
	"ladder-trader-go/store"
)

// 策略模拟器：不连券商，用随机游走价格驱动引擎，
// 校验参数组合下的阶梯行为与盈亏分布。
func main() {
	ticks := flag.Int("ticks", 10000, "每个标的的 tick 数")
	symbols := flag.Int("symbols", 6, "模拟标的数量")
	vol := flag.Float64("vol", 0.0008, "单 tick 波动率")
	seed := flag.Int64("seed", 42, "随机种子")
	flag.Parse()

	logg, err := logger.New(logger.Config{Level: "warn", Outputs: []string{"stdout"}, Format: "console"})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Close()

	settings := config.DefaultSettings()
	eng, err := engine.New(settings, engine.Components{
		Broker: simBroker{},
		Ledger: order.NewLedger(logg),
		Logger: logg,
	})
	if err != nil {
		log.Fatalf("init engine: %v", err)
	}

	// 固定在交易时段内，模拟不受真实时钟约束
	tradingClock := time.Date(2026, 8, 25, 10, 30, 0, 0, time.FixedZone("IST", 19800))
	eng.SetClock(func() time.Time { return tradingClock })

	rng := rand.New(rand.NewSource(*seed))
	candidates := make([]store.Candidate, 0, *symbols)
	for i := 0; i < *symbols; i++ {
		change := (rng.Float64()*4 - 2) // ±2%
		candidates = append(candidates, store.Candidate{
			Symbol:     fmt.Sprintf("SIM%02d", i),
			LTP:        100,
			PrevClose:  100 / (1 + change/100),
			ChangePct:  change,
			TurnoverCr: 10,
		})
	}
	registered, err := eng.StartStrategy(candidates)
	if err != nil {
		log.Fatalf("start strategy: %v", err)
	}

	if err := eng.Start(context.Background()); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	prices := make(map[string]float64, len(registered))
	for _, s := range registered {
		prices[s] = 100
	}
	for i := 0; i < *ticks; i++ {
		for _, s := range registered {
			p := prices[s] * (1 + rng.NormFloat64()**vol)
			prices[s] = p
			eng.ProcessTick(s, p, 0)
		}
		// 控制循环每秒才跑一轮选股，模拟里显式驱动
		eng.RunSelection()
	}

	fmt.Printf("%-8s %-6s %-22s %3s %10s\n", "SYMBOL", "MODE", "STATUS", "CYC", "PNL")
	var total float64
	for _, sn := range eng.Positions() {
		pnl := sn.RealizedPnL + sn.UnrealizedPnL
		total += pnl
		fmt.Printf("%-8s %-6s %-22s %3d %10.2f\n",
			sn.Symbol, sn.Mode, sn.Status, sn.CycleIndex, pnl)
	}
	fmt.Printf("\ntotal pnl: %.2f\n", total)
	logg.Info("simulation complete", zap.Int("ticks", *ticks))
}

// simBroker 全部成交的假券商。
type simBroker struct{}

var simSeq int

func (simBroker) PlaceOrder(symbol, side string, qty int, orderType string) (gateway.OrderResult, error) {
	simSeq++
	return gateway.OrderResult{Status: "success", OrderID: fmt.Sprintf("SIM_%d", simSeq)}, nil
}

func (simBroker) IsConnected() bool { return true }
