package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lhhong/yolink2mqtt/server"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const recentCalls = 100

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logrus.WithError(err).Fatal("Unexpected error")
	}
	defer watcher.Close()

	config, err := server.InitConfig(watcher)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	if level, err := logrus.ParseLevel(config.EnvVars.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	recorder := server.NewServiceRecorder(nil, recentCalls)
	host := server.NewHost(recorder, logrus.StandardLogger())
	pairing := server.InitPairing()
	config.OnReload(host.Apply)

	client, err := server.InitMqtt(config, host, pairing)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start MQTT")
	}
	defer client.Disconnect(1000)

	publisher := server.NewMqttPublisher(client)
	recorder.SetNext(server.NewMqttServiceExecutor(publisher, config.EnvVars.RootTopic))
	server.ForwardTriggers(host, config.EnvVars.RootTopic, publisher)

	config.OnReload(func(devConf server.DeviceConfig) {
		server.PublishAllDiscovery(devConf, config.EnvVars, publisher)
	})

	hub, _ := server.NewEventHub(host.Bus)
	httpServer := &http.Server{
		Addr: config.EnvVars.ListenAddr,
		Handler: server.NewRouter(&server.Api{
			Host:     host,
			Config:   config,
			Pairing:  pairing,
			Hub:      hub,
			Recorder: recorder,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", httpServer.Addr).Info("Listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("Server stopped")
	}
}
