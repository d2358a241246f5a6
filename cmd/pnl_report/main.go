package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"ladder-trader-go/config"
	"ladder-trader-go/gateway"
	"ladder-trader-go/infrastructure/logger"
)

// 盘后盈亏报告：拉取券商侧持仓，按标的打印已实现/未实现盈亏。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
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
	if len(positions) == 0 {
		fmt.Println("no positions today")
		return
	}

	var realized, unrealized float64
	fmt.Printf("%-14s %8s %10s %10s %12s %12s\n",
		"SYMBOL", "NETQTY", "BUYAVG", "SELLAVG", "REALIZED", "UNREALIZED")
	for _, p := range positions {
		fmt.Printf("%-14s %8d %10.2f %10.2f %12.2f %12.2f\n",
			p.Symbol, p.NetQty, p.BuyAvg, p.SellAvg, p.RealizedPnL, p.UnrealizedPL)
		realized += p.RealizedPnL
		unrealized += p.UnrealizedPL
	}
	fmt.Printf("\ntotal realized: %.2f  unrealized: %.2f  net: %.2f\n",
		realized, unrealized, realized+unrealized)
}
