package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"ring-haptics-service/internal/wellness"
)

// NATS публикует телеметрию в <prefix>.<device>.<topic>.
// Команды принимаются на <prefix>.<device>.cmd.* и <prefix>.<device>.ppg
type NATS struct {
	conn *nats.Conn
	base string
	subs []*nats.Subscription
	log  *zap.Logger
}

// ConnectNATS подключается к серверу с бесконечным переподключением
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewNATS оборачивает соединение. Префикс и устройство задают корень темы
func NewNATS(conn *nats.Conn, prefix, deviceID string, log *zap.Logger) *NATS {
	if log == nil {
		log = zap.NewNop()
	}
	return &NATS{
		conn: conn,
		base: subjectJoin(prefix, deviceID),
		log:  log.Named("nats"),
	}
}

func subjectJoin(parts ...string) string {
	return strings.ReplaceAll(topicJoin(parts...), "/", ".")
}

// Name имя получателя для метрик
func (n *NATS) Name() string {
	return "nats"
}

// Subject полная тема для суффикса топика
func (n *NATS) Subject(suffix string) string {
	return subjectJoin(n.base, suffix)
}

// Publish отправляет событие
func (n *NATS) Publish(e wellness.Event) error {
	suffix, payload, err := Encode(e)
	if err != nil {
		return err
	}
	subject := n.Subject(suffix)
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe направляет входящие команды в контроллер
func (n *NATS) Subscribe(ctrl Controller) error {
	for _, subject := range []string{n.Subject("cmd.*"), n.Subject(CmdSamples)} {
		sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
			n.handle(ctrl, msg)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		n.subs = append(n.subs, sub)
	}
	n.log.Info("NATS subscribed", zap.String("base", n.base))
	return nil
}

func (n *NATS) handle(ctrl Controller, msg *nats.Msg) {
	suffix := strings.ReplaceAll(strings.TrimPrefix(msg.Subject, n.base+"."), ".", "/")

	ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
	defer cancel()

	err := Dispatch(ctx, ctrl, suffix, msg.Data)
	if msg.Reply != "" {
		reply := []byte("ok")
		if err != nil {
			reply = []byte(err.Error())
		}
		_ = msg.Respond(reply)
	}
	if err != nil {
		n.log.Warn("Error handling NATS message",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// Close снимает подписки и сливает соединение
func (n *NATS) Close() error {
	for _, sub := range n.subs {
		_ = sub.Unsubscribe()
	}
	n.subs = nil
	return n.conn.Drain()
}
