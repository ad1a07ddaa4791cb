// Package transport доставляет события runner наружу (MQTT, NATS, WebSocket)
// и принимает входящие команды, заменяя радиоканал кольца.
// Полезная нагрузка повторяет характеристики устройства: пакет когерентности
// и состояние устройства идут упакованными байтами, остальное в JSON
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ring-haptics-service/internal/metrics"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/wellness"
)

// Суффиксы топиков относительно <prefix>/<device>
const (
	TopicCoherence   = "coherence"
	TopicDeviceState = "state"
	TopicRR          = "rr"
	TopicCue         = "cue"
	TopicCommand     = "command"
	TopicConfig      = "config"

	CmdActuator = "cmd/actuator"
	CmdConfig   = "cmd/config"
	CmdSamples  = "ppg"
)

// ErrRejected контроллер не принял команду (приоритет, порог интенсивности, охлаждение)
var ErrRejected = errors.New("transport: actuator command rejected")

// CommandTimeout сколько ждать runner при обработке входящей команды
const CommandTimeout = 2 * time.Second

// Publisher получатель событий
type Publisher interface {
	Name() string
	Publish(e wellness.Event) error
}

// Controller принимает входящие команды. *wellness.Runner реализует его
type Controller interface {
	Submit(batch []models.Sample) error
	ApplyCommand(ctx context.Context, cmd models.ActuatorCommand) (bool, error)
	ApplyConfig(ctx context.Context, cfg models.Config) (models.Config, error)
}

// Encode выбирает суффикс топика и полезную нагрузку события
func Encode(e wellness.Event) (string, []byte, error) {
	switch e.Type {
	case wellness.EventCoherence:
		if e.Coherence == nil {
			return "", nil, fmt.Errorf("coherence event %s without packet", e.ID)
		}
		b, err := e.Coherence.MarshalBinary()
		return TopicCoherence, b, err
	case wellness.EventDeviceState:
		if e.DeviceState == nil {
			return "", nil, fmt.Errorf("device state event %s without state", e.ID)
		}
		b, err := e.DeviceState.MarshalBinary()
		return TopicDeviceState, b, err
	case wellness.EventRR:
		return jsonPayload(TopicRR, e)
	case wellness.EventCue:
		return jsonPayload(TopicCue, e)
	case wellness.EventCommand:
		return jsonPayload(TopicCommand, e)
	case wellness.EventConfig:
		return jsonPayload(TopicConfig, e)
	default:
		return "", nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

func jsonPayload(topic string, e wellness.Event) (string, []byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	return topic, b, nil
}

// Dispatch разбирает входящую команду по суффиксу топика и передает ее контроллеру
func Dispatch(ctx context.Context, ctrl Controller, suffix string, payload []byte) error {
	switch suffix {
	case CmdActuator:
		var cmd models.ActuatorCommand
		if err := cmd.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("bad actuator command: %w", err)
		}
		accepted, err := ctrl.ApplyCommand(ctx, cmd)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrRejected
		}
		return nil

	case CmdConfig:
		var cfg models.Config
		if err := cfg.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("bad config: %w", err)
		}
		_, err := ctrl.ApplyConfig(ctx, cfg)
		return err

	case CmdSamples:
		var batch models.SamplesBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return fmt.Errorf("bad samples batch: %w", err)
		}
		return ctrl.Submit(batch.Samples)

	default:
		return fmt.Errorf("unknown command %q", suffix)
	}
}

// Fanout рассылает событие всем получателям. Ошибка одного не мешает остальным
type Fanout struct {
	sinks []Publisher
	log   *zap.Logger
}

// NewFanout собирает рассылку, nil-получатели пропускаются
func NewFanout(log *zap.Logger, sinks ...Publisher) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fanout{log: log.Named("fanout")}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Add добавляет получателя
func (f *Fanout) Add(p Publisher) {
	f.sinks = append(f.sinks, p)
}

// Len число получателей
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Publish отправляет событие всем получателям, возвращает число ошибок
func (f *Fanout) Publish(e wellness.Event) int {
	failed := 0
	for _, s := range f.sinks {
		if err := s.Publish(e); err != nil {
			failed++
			metrics.PublishErrors.WithLabelValues(s.Name()).Inc()
			f.log.Debug("Publish failed",
				zap.String("sink", s.Name()),
				zap.String("event", string(e.Type)),
				zap.Error(err))
		}
	}
	return failed
}

// Run читает события до закрытия канала или отмены контекста.
// each вызывается для каждого события перед рассылкой, может быть nil
func (f *Fanout) Run(ctx context.Context, events <-chan wellness.Event, each func(wellness.Event)) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if each != nil {
				each(e)
			}
			f.Publish(e)
		case <-ctx.Done():
			return
		}
	}
}

func topicJoin(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}
