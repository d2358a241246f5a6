package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"ladder-trader-go/config"
	"ladder-trader-go/gateway"
	"ladder-trader-go/infrastructure/logger"
)

// 紧急清理工具：平掉券商侧的全部日内持仓。
// 引擎失联或行情流放弃重连后的最后手段。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	confirm := flag.Bool("yes", false, "确认平掉全部持仓")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Close()

	limiter := gateway.NewRateLimiter(cfg.Gateway.RequestsPerSec, cfg.Gateway.MaxConnections)
	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.ClientID, cfg.Gateway.AccessToken, limiter, logg)
	if err := client.Connect(cfg.Gateway.ScripMasterURL); err != nil {
		log.Fatalf("broker connect: %v", err)
	}

	positions, err := client.Positions()
	if err != nil {
		log.Fatalf("fetch positions: %v", err)
	}
	open := make([]gateway.BrokerPosition, 0, len(positions))
	for _, p := range positions {
		if p.NetQty != 0 {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		fmt.Println("no open positions, nothing to do")
		return
	}

	fmt.Printf("open positions: %d\n", len(open))
	for _, p := range open {
		fmt.Printf("  %-12s netQty=%d buyAvg=%.2f sellAvg=%.2f\n",
			p.Symbol, p.NetQty, p.BuyAvg, p.SellAvg)
	}
	if !*confirm {
		fmt.Println("\nrun again with -yes to square off everything")
		os.Exit(1)
	}

	failed := 0
	for _, p := range open {
		// SquareOffPosition 接收原方向，内部取反下市价单
		entrySide := "BUY"
		qty := p.NetQty
		if qty < 0 {
			entrySide = "SELL"
			qty = -qty
		}
		res, err := client.SquareOffPosition(p.Symbol, qty, entrySide)
		if err != nil || res.Failed() {
			failed++
			fmt.Printf("  FAILED  %s: %v %s\n", p.Symbol, err, res.Message)
			continue
		}
		fmt.Printf("  closed  %s x%d (order %s)\n", p.Symbol, qty, res.OrderID)
	}
	if failed > 0 {
		log.Fatalf("%d positions could not be closed", failed)
	}
	fmt.Println("all positions squared off")
}
