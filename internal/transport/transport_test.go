package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/wellness"
)

type fakeController struct {
	mu       sync.Mutex
	commands []models.ActuatorCommand
	configs  []models.Config
	samples  []models.Sample
	reject   bool
}

func (f *fakeController) Submit(batch []models.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, batch...)
	return nil
}

func (f *fakeController) ApplyCommand(_ context.Context, cmd models.ActuatorCommand) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return !f.reject, nil
}

func (f *fakeController) ApplyConfig(_ context.Context, cfg models.Config) (models.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg = cfg.Clamp()
	f.configs = append(f.configs, cfg)
	return cfg, nil
}

type fakeSink struct {
	name   string
	err    error
	events []wellness.Event
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Publish(e wellness.Event) error {
	s.events = append(s.events, e)
	return s.err
}

func TestEncode(t *testing.T) {
	t.Run("coherence is packed", func(t *testing.T) {
		topic, b, err := Encode(wellness.Event{
			Type:      wellness.EventCoherence,
			Coherence: &models.CoherencePacket{StressLevel: 49, CoherencePct: 50, MeanRRMs: 800},
		})
		require.NoError(t, err)
		assert.Equal(t, TopicCoherence, topic)
		require.Len(t, b, models.CoherencePacketSize)
		assert.Equal(t, byte(49), b[0])
	})

	t.Run("device state is packed", func(t *testing.T) {
		topic, b, err := Encode(wellness.Event{
			Type:        wellness.EventDeviceState,
			DeviceState: &models.DeviceState{BatteryPct: 85},
		})
		require.NoError(t, err)
		assert.Equal(t, TopicDeviceState, topic)
		assert.Len(t, b, models.DeviceStateSize)
	})

	t.Run("cue is json", func(t *testing.T) {
		topic, b, err := Encode(wellness.Event{
			ID:       "abc",
			Type:     wellness.EventCue,
			Decision: &wellness.Decision{Output: cue.Output{Type: cue.TypeAlert}},
		})
		require.NoError(t, err)
		assert.Equal(t, TopicCue, topic)

		var back wellness.Event
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, "abc", back.ID)
		assert.Equal(t, cue.TypeAlert, back.Decision.Output.Type)
	})

	t.Run("missing payload", func(t *testing.T) {
		_, _, err := Encode(wellness.Event{Type: wellness.EventCoherence})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := Encode(wellness.Event{Type: "bogus"})
		assert.Error(t, err)
	})
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("actuator command", func(t *testing.T) {
		ctrl := &fakeController{}
		require.NoError(t, Dispatch(ctx, ctrl, CmdActuator, []byte{60, 20, 4, 55}))
		require.Len(t, ctrl.commands, 1)
		assert.Equal(t, models.ActuatorCommand{ThermalIntensity: 60, ThermalDurationS: 20, VibrationPattern: 4, VibrationIntensity: 55}, ctrl.commands[0])
	})

	t.Run("rejected command", func(t *testing.T) {
		ctrl := &fakeController{reject: true}
		assert.ErrorIs(t, Dispatch(ctx, ctrl, CmdActuator, []byte{2, 0, 0, 0}), ErrRejected)
	})

	t.Run("short command", func(t *testing.T) {
		assert.ErrorIs(t, Dispatch(ctx, &fakeController{}, CmdActuator, []byte{1}), models.ErrShortPacket)
	})

	t.Run("config", func(t *testing.T) {
		ctrl := &fakeController{}
		b, err := models.Config{StreamingRateHz: 50, CoherenceUpdateS: 15}.MarshalBinary()
		require.NoError(t, err)
		require.NoError(t, Dispatch(ctx, ctrl, CmdConfig, b))
		require.Len(t, ctrl.configs, 1)
		assert.Equal(t, uint8(10), ctrl.configs[0].StreamingRateHz)
	})

	t.Run("samples", func(t *testing.T) {
		ctrl := &fakeController{}
		require.NoError(t, Dispatch(ctx, ctrl, CmdSamples, []byte(`{"samples":[{"value":1.5,"ts_ms":10},{"value":1.0,"ts_ms":20}]}`)))
		assert.Equal(t, []models.Sample{{Value: 1.5, TimestampMs: 10}, {Value: 1.0, TimestampMs: 20}}, ctrl.samples)
	})

	t.Run("bad json", func(t *testing.T) {
		assert.Error(t, Dispatch(ctx, &fakeController{}, CmdSamples, []byte(`{`)))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, Dispatch(ctx, &fakeController{}, "cmd/reboot", nil))
	})
}

func TestFanout(t *testing.T) {
	ok := &fakeSink{name: "ok"}
	bad := &fakeSink{name: "bad", err: errors.New("down")}
	f := NewFanout(zap.NewNop(), ok, nil, bad)
	assert.Equal(t, 2, f.Len())

	assert.Equal(t, 1, f.Publish(wellness.Event{ID: "1"}))
	assert.Len(t, ok.events, 1)
	assert.Len(t, bad.events, 1)

	events := make(chan wellness.Event, 2)
	events <- wellness.Event{ID: "2"}
	events <- wellness.Event{ID: "3"}
	close(events)

	var seen []string
	f.Run(context.Background(), events, func(e wellness.Event) { seen = append(seen, e.ID) })
	assert.Equal(t, []string{"2", "3"}, seen)
	assert.Len(t, ok.events, 3)
}

func TestFanout_RunStopsOnCancel(t *testing.T) {
	f := NewFanout(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Run(ctx, make(chan wellness.Event), nil)
}

func TestTopicJoin(t *testing.T) {
	assert.Equal(t, "ring/dev-1/coherence", topicJoin("ring/", "/dev-1", "coherence"))
	assert.Equal(t, "dev-1/cmd/actuator", topicJoin("", "dev-1", CmdActuator))
}
