// Command tn3270gw is the TN3270E gateway listener binary: it loads
// configuration, starts the screen template manager, the 3270
// listener, and the admin control socket, and runs until signalled to
// stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/neo6/tn3270gw/internal/adminsock"
	"github.com/neo6/tn3270gw/internal/gwconfig"
	"github.com/neo6/tn3270gw/internal/gwlog"
	"github.com/neo6/tn3270gw/internal/negotiate"
	"github.com/neo6/tn3270gw/internal/protoabi"
	"github.com/neo6/tn3270gw/internal/scheduler"
	"github.com/neo6/tn3270gw/internal/screens"
	"github.com/neo6/tn3270gw/internal/txmap"
)

func main() {
	protocol := flag.String("protocol", "", "protocol adapter name (default: from config, else tn3270)")
	port := flag.Int("port", 0, "3270 listener port (default: from config)")
	logLevel := flag.String("log-level", "", "log level: trace, debug, info, warn, error (default: from config)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*protocol, *port, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "tn3270gw: %v\n", err)
		os.Exit(1)
	}
}

func run(protocolFlag string, portFlag int, logLevelFlag string) error {
	configDir := os.Getenv("NEO6_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}

	cfg, err := gwconfig.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if protocolFlag != "" {
		cfg.ProtocolName = protocolFlag
	}
	if portFlag != 0 {
		cfg.ListenPort = portFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if lvl, ok := gwlog.ParseLevel(cfg.LogLevel); ok {
		gwlog.SetLevel(lvl)
	}
	log := gwlog.New()
	log.Infof("tn3270gw: starting protocol=%s listen=%s:%d admin=%s:%d",
		cfg.ProtocolName, cfg.ListenHost, cfg.ListenPort, cfg.AdminHost, cfg.AdminPort)

	screensMgr := screens.NewManager(cfg.ScreensDir, log)
	if err := screensMgr.Watch(); err != nil {
		log.Warnf("tn3270gw: screens watch disabled: %v", err)
	}
	defer screensMgr.Stop()

	router := newScreenRouter(screensMgr, "welcome", log)

	var transactions txmap.TransactionMap
	if cfg.TransactionMapPath != "" {
		tm, err := txmap.Load(cfg.TransactionMapPath)
		if err != nil {
			log.Warnf("tn3270gw: transaction map disabled: %v", err)
		} else {
			transactions = tm
			log.Infof("tn3270gw: loaded %d transactions from %s", len(tm.Transactions), cfg.TransactionMapPath)
		}
	}

	protocols := protoabi.NewRegistry()
	protocols.Register("tn3270", &protoabi.TN3270Adapter{
		ScreenProvider: router.Provide,
		OnInput:        router.HandleInput,
		Log:            log,
	})

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := adminsock.NewRegistry()

	listener := &negotiate.Listener{
		Addr:    fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort),
		Log:     log,
		Handler: sessionHandler(router, registry),
	}

	commands := make(chan adminsock.Command, 4)
	admin := adminsock.NewServer(
		fmt.Sprintf("%s:%d", cfg.AdminHost, cfg.AdminPort),
		adminsock.ProxyInfo{
			ProtocolName: cfg.ProtocolName,
			ListenAddr:   listener.Addr,
			AdminAddr:    fmt.Sprintf("%s:%d", cfg.AdminHost, cfg.AdminPort),
		},
		registry,
		commands,
		log,
	)
	admin.Protocols = protocols.Names
	admin.TransactionCount = func() int { return len(transactions.Transactions) }

	sched := scheduler.New(cfg.ReloadConfigCron, screensMgr.ReloadConfig, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.ListenAndServe(ctx); err != nil {
			log.Errorf("tn3270gw: listener stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := admin.ListenAndServe(ctx); err != nil {
			log.Errorf("tn3270gw: admin socket stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Start(ctx); err != nil {
			log.Errorf("tn3270gw: scheduler stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-commands:
				switch cmd.Kind {
				case adminsock.CmdShutdown:
					log.Infof("tn3270gw: shutdown requested via admin socket")
					listener.Close()
					cancel()
				case adminsock.CmdReloadConfig:
					screensMgr.ReloadConfig()
				case adminsock.CmdSetLogLevel:
					gwlog.SetLevel(cmd.Level)
					log.Infof("tn3270gw: log level set to %s", cmd.Level)
				}
			}
		}
	}()

	<-ctx.Done()
	wg.Wait()
	log.Infof("tn3270gw: shut down cleanly")
	return nil
}
