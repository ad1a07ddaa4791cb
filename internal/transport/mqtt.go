package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"ring-haptics-service/internal/wellness"
)

// MQTTConfig параметры подключения к брокеру
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	DeviceID    string
	QoS         byte
}

// MQTT публикует телеметрию в <prefix>/<device>/<topic> и слушает команды
// в <prefix>/<device>/cmd/+ и <prefix>/<device>/ppg
type MQTT struct {
	client mqtt.Client
	cfg    MQTTConfig
	base   string
	log    *zap.Logger
}

// NewMQTT подключается к брокеру
func NewMQTT(cfg MQTTConfig, log *zap.Logger) (*MQTT, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Info("MQTT connected", zap.String("broker", cfg.Broker), zap.String("client_id", cfg.ClientID))
	return newMQTT(client, cfg, log), nil
}

func newMQTT(client mqtt.Client, cfg MQTTConfig, log *zap.Logger) *MQTT {
	return &MQTT{
		client: client,
		cfg:    cfg,
		base:   topicJoin(cfg.TopicPrefix, cfg.DeviceID),
		log:    log,
	}
}

// Name имя получателя для метрик
func (m *MQTT) Name() string {
	return "mqtt"
}

// Topic полный топик для суффикса
func (m *MQTT) Topic(suffix string) string {
	return topicJoin(m.base, suffix)
}

// Publish отправляет событие
func (m *MQTT) Publish(e wellness.Event) error {
	suffix, payload, err := Encode(e)
	if err != nil {
		return err
	}

	topic := m.Topic(suffix)
	token := m.client.Publish(topic, m.cfg.QoS, false, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

// Subscribe направляет входящие команды в контроллер
func (m *MQTT) Subscribe(ctrl Controller) error {
	filters := map[string]byte{
		m.Topic("cmd/+"):     m.cfg.QoS,
		m.Topic(CmdSamples): m.cfg.QoS,
	}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		m.handle(ctrl, msg)
	}

	if token := m.client.SubscribeMultiple(filters, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", m.base, token.Error())
	}

	m.log.Info("MQTT subscribed", zap.String("base", m.base))
	return nil
}

func (m *MQTT) handle(ctrl Controller, msg mqtt.Message) {
	suffix := strings.TrimPrefix(msg.Topic(), m.base+"/")

	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()

	if err := Dispatch(ctx, ctrl, suffix, msg.Payload()); err != nil {
		// Ошибка не прерывает обработку следующих сообщений
		m.log.Warn("Error handling MQTT message",
			zap.String("topic", msg.Topic()),
			zap.Error(err))
	}
}

// IsConnected проверяет состояние соединения
func (m *MQTT) IsConnected() bool {
	return m.client.IsConnected()
}

// Close отписывается и разрывает соединение
func (m *MQTT) Close() {
	m.client.Unsubscribe(m.Topic("cmd/+"), m.Topic(CmdSamples)).WaitTimeout(time.Second)
	m.client.Disconnect(250) // 250ms на отправку
}
