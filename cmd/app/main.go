package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/hubertat/servicemaker"

	"github.com/hubertat/pinkit"
	"github.com/hubertat/pinkit/agent"
	"github.com/hubertat/pinkit/server"
)

const defaultListenAddress = ":8270"

var (
	Version string
	Build   string

	config      = flag.String("config", "config.json", "path of the configuration file")
	flagInstall = flag.Bool("install", false, "install service in os")
	flagMock    = flag.Bool("mock", false, "run against an in-memory mock device")
	level       = flag.String("level", "info", "log level")

	pinkitService = servicemaker.ServiceMaker{
		User:               "pinkit",
		ServicePath:        "/etc/systemd/system/pinkit.service",
		ServiceDescription: "pinkit service: web dashboard and chat control for microcontroller pins. github.com/hubertat/pinkit",
		ExecDir:            "/srv/pinkit",
		ExecName:           "pinkit",
	}
)

func main() {
	flag.Parse()

	logLevel, err := log.ParseLevel(*level)
	if err == nil {
		log.SetLevel(logLevel)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "pinkit",
		Level:  log.GetLevel(),
	})
	logger.Info("pinkit started", "version", Version, "build", Build)

	if *flagInstall {
		err := pinkitService.InstallService()
		if err != nil {
			logger.Fatal("service install failed", "err", err)
		}
		logger.Info("service installed!")
		return
	}

	pk := &pinkit.PinKit{}
	configFile, err := os.Open(*config)
	if err == nil {
		cBuff, err := io.ReadAll(configFile)
		configFile.Close()
		if err != nil {
			logger.Fatal("failed reading config file", "err", err)
		}
		err = json.Unmarshal(cBuff, pk)
		if err != nil {
			logger.Fatal("failed unmarshalling json config", "err", err)
		}
	} else if !*flagMock {
		logger.Fatal("can't find/open config file", "path", *config, "err", err)
	}

	if *flagMock {
		pk.Esp = nil
		pk.Gpio = nil
		pk.Mcp = nil
		pk.Mock = true
	}
	if len(pk.LlmApiKey) == 0 {
		pk.LlmApiKey = os.Getenv("GROQ_API_KEY")
	}
	if len(pk.ListenAddress) == 0 {
		pk.ListenAddress = defaultListenAddress
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = pk.Init(logger)
	if err != nil {
		logger.Fatal("init failed", "err", err)
	}
	defer pk.Close()

	var chat server.ChatAgent
	if len(pk.LlmApiKey) > 0 {
		provider := agent.NewProvider(pk.LlmBaseUrl, pk.LlmApiKey, pk.LlmModel, logger)
		chat = agent.New(agent.NewBreakerProvider(provider, logger), pk.Dispatcher(), logger)
		logger.Info("chat agent enabled")
	} else {
		logger.Info("no llm api key, chat agent disabled")
	}

	srv, err := server.New(pk.ListenAddress, pk.Dispatcher(), chat, logger)
	if err != nil {
		logger.Fatal("failed to create http server", "err", err)
	}
	pk.Store().OnPinChange(func(pinkit.PinID, bool) { srv.Broadcast() })
	pk.Store().OnConnectionChange(func(bool) { srv.Broadcast() })

	pk.StartInflux()

	if len(pk.MqttBroker) > 0 {
		err = pk.InitMqtt()
		if err != nil {
			logger.Error("mqtt init failed, continuing without broker", "err", err)
		}
	}

	go pk.Poller().Run(ctx)

	if len(pk.HkPin) == 8 {
		logger.Info("starting with HomeKit server")
		go func() {
			err := pk.StartHomeKit(ctx, Version)
			if err != nil {
				logger.Error("HomeKit server stopped", "err", err)
			}
		}()
	} else {
		logger.Info("HomeKit not configured, disabled")
	}

	err = srv.Run(ctx)
	if err != nil {
		logger.Fatal("http server stopped", "err", err)
	}
}
