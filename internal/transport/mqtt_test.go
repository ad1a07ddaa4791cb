package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ring-haptics-service/internal/models"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTT_Topics(t *testing.T) {
	m := newMQTT(nil, MQTTConfig{TopicPrefix: "ring", DeviceID: "dev-1"}, zap.NewNop())
	assert.Equal(t, "ring/dev-1/coherence", m.Topic(TopicCoherence))
	assert.Equal(t, "ring/dev-1/cmd/actuator", m.Topic(CmdActuator))
	assert.Equal(t, "mqtt", m.Name())
}

func TestMQTT_HandleRoutesCommands(t *testing.T) {
	m := newMQTT(nil, MQTTConfig{TopicPrefix: "ring", DeviceID: "dev-1"}, zap.NewNop())
	ctrl := &fakeController{}

	m.handle(ctrl, fakeMessage{topic: "ring/dev-1/cmd/actuator", payload: []byte{50, 10, 0, 0}})
	m.handle(ctrl, fakeMessage{topic: "ring/dev-1/ppg", payload: []byte(`{"samples":[{"value":1,"ts_ms":0}]}`)})
	// Malformed messages are logged and dropped
	m.handle(ctrl, fakeMessage{topic: "ring/dev-1/cmd/config", payload: []byte{1, 2}})

	require.Len(t, ctrl.commands, 1)
	assert.Equal(t, uint8(50), ctrl.commands[0].ThermalIntensity)
	assert.Equal(t, []models.Sample{{Value: 1, TimestampMs: 0}}, ctrl.samples)
	assert.Empty(t, ctrl.configs)
}

func TestNewMQTT_Unreachable(t *testing.T) {
	_, err := NewMQTT(MQTTConfig{Broker: "tcp://127.0.0.1:1", ClientID: "test"}, nil)
	assert.Error(t, err)
}
