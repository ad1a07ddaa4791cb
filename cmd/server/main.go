// Package main запускает сервис тактильных подсказок кольца.
// Сервис реализует:
// - прием PPG-сэмплов и детекцию пульсовых ударов
// - оценку стресса и когерентности по RR-интервалам
// - автономные подсказки нагревом и вибрацией
// - публикацию телеметрии в MQTT, NATS и WebSocket
// - кэширование в Redis и хранение настроек в Badger
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ring",
		Short: "Wearable ring haptic cue service",
		Long: `ring turns a PPG stream into heart rhythm metrics and decides when
to nudge the wearer with warmth or vibration.

The serve command runs the HTTP API with live telemetry, the simulate
command replays a synthetic session offline.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSimulateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cfg := loadConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and telemetry transports",
		Long: `serve reads its configuration from the environment (SERVER_ADDR,
REDIS_ADDR, BADGER_PATH, MQTT_BROKER, NATS_URL, LOG_LEVEL, ...).
Flags override the environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&cfg.ServerAddr, "addr", cfg.ServerAddr, "HTTP listen address")
	f.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address")
	f.StringVar(&cfg.BadgerPath, "badger", cfg.BadgerPath, "Badger directory, empty keeps settings in memory")
	f.StringVar(&cfg.MQTTBroker, "mqtt", cfg.MQTTBroker, "MQTT broker URL, empty disables MQTT")
	f.StringVar(&cfg.NATSURL, "nats", cfg.NATSURL, "NATS server URL, empty disables NATS")
	f.StringVar(&cfg.DeviceID, "device", cfg.DeviceID, "device id used in topics")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	f.BoolVar(&cfg.Autonomous, "autonomous", cfg.Autonomous, "generate cues autonomously")
	f.BoolVar(&cfg.SignatureFeel, "signature-feel", cfg.SignatureFeel, "express cues as signature patterns")
	f.BoolVar(&cfg.OTelEnabled, "otel", cfg.OTelEnabled, "export traces over OTLP/HTTP")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	opts := simOptions{
		Duration:      3 * time.Minute,
		Schedule:      "ramp",
		Autonomous:    true,
		SignatureFeel: true,
		Hour:          12,
	}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a synthetic PPG session through the decision core",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := simulate(opts)
			if err != nil {
				return err
			}
			printSimulation(cmd.OutOrStdout(), res)
			return nil
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.DurationVar(&opts.Duration, "duration", opts.Duration, "session length")
	f.StringVar(&opts.Schedule, "schedule", opts.Schedule, "beat schedule: steady, alternating or ramp")
	f.BoolVar(&opts.Autonomous, "autonomous", opts.Autonomous, "generate cues autonomously")
	f.BoolVar(&opts.SignatureFeel, "signature-feel", opts.SignatureFeel, "express cues as signature patterns")
	f.Uint8Var(&opts.Hour, "hour", opts.Hour, "hour of day for quiet hours")
	return cmd
}
