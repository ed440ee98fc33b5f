package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/adapter"
	"main/internal/commission"
	"main/internal/connector"
	"main/internal/emulator"
	"main/internal/latency"
	"main/internal/message"
	"main/internal/ops"
	"main/internal/pnl"
	"main/internal/reconnect"
	"main/internal/remote"
	"main/internal/security"
	"main/internal/storage"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	gatewayURL := flag.String("gateway", "", "Remote gateway websocket URL (empty=emulated venue)")
	symbolKey := flag.String("symbol", "", "Instrument to subscribe as SYMBOL@BOARD (default: first configured)")
	dataTypeName := flag.String("data-type", "level1", "Subscription data type: level1, depth, trades")
	record := flag.Bool("record", false, "Record the stream into the configured storage drive")
	duration := flag.Duration("duration", 15*time.Second, "How long to keep the subscription open")
	flag.Parse()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if loaded.Profiling.ServerAddress != "" {
		stop, err := startProfiler(loaded.Profiling)
		if err != nil {
			log.Fatalf("profiler start failed: %v", err)
		}
		defer stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dt, err := parseDataType(*dataTypeName)
	if err != nil {
		log.Fatalf("%v", err)
	}
	sec, err := pickSecurity(loaded, *symbolKey)
	if err != nil {
		log.Fatalf("%v", err)
	}

	venue, emu := buildVenue(ctx, loaded, *gatewayURL)
	lat := latency.NewAdapter(
		commission.NewAdapter(
			pnl.NewAdapter(venue),
			loaded.Commission...,
		),
	)
	chain := reconnect.NewAdapter(lat, loaded.Reconnect)

	c := connector.New(loaded.Connector, chain)
	go c.Events().Run(ctx, logEvent)

	if err := c.Connect(); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer func() {
		if err := c.Disconnect(); err != nil {
			logs.Warnf("disconnect failed: %v", err)
		}
	}()

	if emu != nil {
		defer emu.Close()
		go pumpTicks(ctx, emu, sec)
	}

	stream, err := c.Subscribe(sec, dt, nil, nil)
	if err != nil {
		log.Fatalf("subscribe failed: %v", err)
	}
	defer stream.Close()

	runCtx, stop := context.WithTimeout(ctx, *duration)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-runCtx.Done():
		}
	}()

	if *record {
		if err := runRecord(runCtx, loaded.Storage, stream, sec, dt); err != nil {
			log.Fatalf("record failed: %v", err)
		}
		return
	}
	consume(runCtx, stream)

	snapshot := c.Metrics().Snapshot()
	logs.Infof("metrics: messages=%v drops=%d misses=%d round_trip=%+v",
		snapshot.MessageCounts, snapshot.QueueDrops, snapshot.CorrelationMiss, lat.Snapshot())
}

func logEvent(m message.Message) {
	switch v := m.(type) {
	case *message.ConnectedMessage:
		if v.Err != nil {
			logs.Errorf("connect failed: %v", v.Err)
			return
		}
		logs.Info("connected")
	case *message.DisconnectedMessage:
		if v.Err != nil {
			logs.Warnf("connection lost: %v", v.Err)
			return
		}
		logs.Info("disconnected")
	case *message.ErrorMessage:
		logs.Errorf("session error: origin=%d err=%v", v.OriginalTransactionID, v.Err)
	default:
		logs.Infof("session event: %s", m.MessageType())
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

func defaultLoaded() (ops.Loaded, error) {
	reg := security.NewRegistry()
	if err := reg.AddBoard("SIM"); err != nil {
		return ops.Loaded{}, err
	}
	if _, err := reg.AddSecurity("TEST-USD", "SIM"); err != nil {
		return ops.Loaded{}, err
	}
	return ops.Loaded{
		Registry: reg,
		Commission: []commission.Rule{
			&commission.PerTradeRule{Fee: decimal.NewFromFloat(0.1)},
		},
		Storage: ops.StorageConfig{Kind: "fs", Path: "testdata/marketdata"},
	}, nil
}

func pickSecurity(loaded ops.Loaded, key string) (security.ID, error) {
	if key != "" {
		id, ok := loaded.Registry.Lookup(key)
		if !ok {
			return security.ID{}, fmt.Errorf("security not found: %s", key)
		}
		return id, nil
	}
	secs := loaded.Registry.Securities()
	if len(secs) == 0 {
		return security.ID{}, fmt.Errorf("no securities configured")
	}
	return secs[0], nil
}

func parseDataType(name string) (security.DataType, error) {
	switch strings.ToLower(name) {
	case "level1":
		return security.DataTypeLevel1, nil
	case "depth":
		return security.DataTypeMarketDepth, nil
	case "trades":
		return security.DataTypeTrades, nil
	default:
		return security.DataTypeUnknown, fmt.Errorf("unknown data type: %s", name)
	}
}

func buildVenue(ctx context.Context, loaded ops.Loaded, gatewayURL string) (adapter.Adapter, *emulator.Adapter) {
	url := gatewayURL
	if url == "" {
		url = loaded.Remote.URL
	}
	if url != "" {
		logs.Infof("using remote gateway: %s", url)
		return remote.New(ctx, remote.Config{URL: url}), nil
	}
	logs.Info("using emulated venue")
	emu := emulator.New(emulator.Config{FillOrders: true})
	return emu, emu
}

// pumpTicks feeds the emulated venue a random walk so live subscriptions
// have something to stream.
func pumpTicks(ctx context.Context, emu *emulator.Adapter, sec security.ID) {
	price := decimal.NewFromInt(100)
	step := decimal.NewFromFloat(0.05)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			delta := step.Mul(decimal.NewFromInt(int64(rand.Intn(5) - 2)))
			price = price.Add(delta)
			emu.EmitLevel1(sec, map[message.Level1Field]decimal.Decimal{
				message.Level1FieldLastTradePrice:  price,
				message.Level1FieldLastTradeVolume: decimal.NewFromInt(int64(1 + rand.Intn(9))),
			})
		}
	}
}

func consume(ctx context.Context, stream *connector.Stream) {
	for {
		m, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logs.Warnf("stream ended: %v", err)
			}
			return
		}
		switch v := m.(type) {
		case *message.Level1ChangeMessage:
			logs.Infof("level1 %s: %v", v.Security, v.Changes)
		default:
			logs.Infof("%s", m.MessageType())
		}
	}
}

func runRecord(ctx context.Context, cfg ops.StorageConfig, stream *connector.Stream, sec security.ID, dt security.DataType) error {
	drive, err := openDrive(cfg)
	if err != nil {
		return err
	}
	defer drive.Close()

	rec := storage.NewRecorder(drive, sec, dt)
	if err := rec.Run(ctx, stream); err != nil && ctx.Err() == nil {
		return err
	}
	dates, err := drive.Dates(sec, dt)
	if err != nil {
		return err
	}
	logs.Infof("recorded %s/%s across %d date(s)", sec, dt, len(dates))
	return nil
}

func openDrive(cfg ops.StorageConfig) (storage.Drive, error) {
	switch cfg.Kind {
	case "", "fs":
		return storage.NewFSDrive(cfg.Path)
	case "leveldb":
		return storage.NewLevelDBDrive(cfg.Path)
	case "postgres":
		return storage.NewPostgresDrive(conn.Option{ConnString: cfg.DSN})
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", cfg.Kind)
	}
}

func startProfiler(cfg ops.ProfilingConfig) (func(), error) {
	name := cfg.ApplicationName
	if name == "" {
		name = "connect"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = profiler.Stop() }, nil
}
