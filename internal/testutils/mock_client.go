package testutils

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of the go-ble client surface used by the radio. It also
// exposes a Disconnected() channel that tests close to simulate a link drop.
type MockClient struct {
	mock.Mock

	once         sync.Once
	disconnected chan struct{}
}

// NewMockClient creates a MockClient with an open Disconnected() channel.
func NewMockClient() *MockClient {
	return &MockClient{disconnected: make(chan struct{})}
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	p, _ := args.Get(0).(*ble.Profile)
	return p, args.Error(1)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	args := m.Called(c, value, noRsp)
	return args.Error(0)
}

func (m *MockClient) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Drop closes the Disconnected() channel once.
func (m *MockClient) Drop() {
	m.once.Do(func() { close(m.disconnected) })
}

// ProfileBuilder builds ble.Profile values for mocked discovery.
type ProfileBuilder struct {
	profile ble.Profile
}

// NewProfileBuilder creates an empty profile builder.
func NewProfileBuilder() *ProfileBuilder {
	return &ProfileBuilder{}
}

// WithService adds a service.
func (b *ProfileBuilder) WithService(uuid string) *ProfileBuilder {
	b.profile.Services = append(b.profile.Services, &ble.Service{UUID: ble.MustParse(uuid)})
	return b
}

// WithCharacteristic adds a characteristic to the last added service.
func (b *ProfileBuilder) WithCharacteristic(uuid string, props ble.Property) *ProfileBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	svc := b.profile.Services[len(b.profile.Services)-1]
	svc.Characteristics = append(svc.Characteristics, &ble.Characteristic{
		UUID:     ble.MustParse(uuid),
		Property: props,
	})
	return b
}

// Build returns the profile.
func (b *ProfileBuilder) Build() *ble.Profile {
	p := b.profile
	return &p
}
