package mqttbridge

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

type published struct {
	topic    string
	payload  string
	retained bool
}

// mockMQTTClient implements mqtt.Client for testing. Connect runs the options'
// OnConnect handler the way paho does.
type mockMQTTClient struct {
	mu              sync.Mutex
	opts            *mqtt.ClientOptions
	connectError    error
	subscribeError  error
	handlers        map[string]mqtt.MessageHandler
	published       []published
	disconnectCalls int
	connected       bool
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{handlers: make(map[string]mqtt.MessageHandler)}
}

// factory returns a ClientFactory handing out m.
func (m *mockMQTTClient) factory() ClientFactory {
	return func(opts *mqtt.ClientOptions) mqtt.Client {
		m.mu.Lock()
		m.opts = opts
		m.mu.Unlock()
		return m
	}
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTTClient) IsConnectionOpen() bool {
	return m.IsConnected()
}

func (m *mockMQTTClient) Connect() mqtt.Token {
	m.mu.Lock()
	if m.connectError != nil {
		err := m.connectError
		m.mu.Unlock()
		return &mockToken{err: err, complete: true}
	}
	m.connected = true
	onConnect := m.opts.OnConnect
	m.mu.Unlock()

	if onConnect != nil {
		onConnect(m)
	}
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) Disconnect(_ uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.disconnectCalls++
}

func (m *mockMQTTClient) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic: topic, payload: payload.(string), retained: retained})
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeError != nil {
		return &mockToken{err: m.subscribeError, complete: true}
	}
	m.handlers[topic] = callback
	return &mockToken{complete: true}
}

func (*mockMQTTClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return &mockToken{complete: true}
}

func (*mockMQTTClient) Unsubscribe(_ ...string) mqtt.Token {
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = callback
}

func (*mockMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// deliver routes payload to the handler subscribed on topic. It reports false when
// nothing is subscribed.
func (m *mockMQTTClient) deliver(topic, payload string) bool {
	m.mu.Lock()
	h, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h(m, &mockMessage{topic: topic, payload: []byte(payload)})
	return true
}

func (m *mockMQTTClient) subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// statuses returns every payload published on topic.
func (m *mockMQTTClient) statuses(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

// mockToken implements mqtt.Token for testing
type mockToken struct {
	err      error
	complete bool
}

func (*mockToken) Wait() bool {
	return true
}

func (t *mockToken) WaitTimeout(_ time.Duration) bool {
	return t.complete
}

func (*mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *mockToken) Error() error {
	return t.err
}

// mockMessage implements mqtt.Message for testing
type mockMessage struct {
	topic   string
	payload []byte
}

func (*mockMessage) Duplicate() bool            { return false }
func (*mockMessage) Qos() byte                  { return 1 }
func (*mockMessage) Retained() bool             { return false }
func (m *mockMessage) Topic() string            { return m.topic }
func (*mockMessage) MessageID() uint16          { return 0 }
func (m *mockMessage) Payload() []byte          { return m.payload }
func (*mockMessage) Ack()                       {}
func (m *mockMessage) AutoAckOff() mqtt.Message { return m }
func (m *mockMessage) AutoAckOn() mqtt.Message  { return m }

// MockDevice is a testify mock of Device.
type MockDevice struct {
	mock.Mock
}

func (d *MockDevice) SetFanPercent(ctx context.Context, pct int) error {
	return d.Called(ctx, pct).Error(0)
}

func (d *MockDevice) SetFanAuto(ctx context.Context) error {
	return d.Called(ctx).Error(0)
}

func (d *MockDevice) SetLightPercent(ctx context.Context, pct int) error {
	return d.Called(ctx, pct).Error(0)
}

func (d *MockDevice) SetLightAuto(ctx context.Context) error {
	return d.Called(ctx).Error(0)
}
