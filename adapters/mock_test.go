package adapters

import (
	"mqtt-console/application"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) IsConnectionOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMQTTClient) Connect() mqtt.Token {
	args := m.Called()
	return tokenArg(args, 0)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return tokenArg(args, 0)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	args := m.Called(topic, qos, callback)
	return tokenArg(args, 0)
}

func (m *MockMQTTClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	args := m.Called(filters, callback)
	return tokenArg(args, 0)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	args := m.Called(topics)
	return tokenArg(args, 0)
}

func (m *MockMQTTClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	m.Called(topic, callback)
}

func (m *MockMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	args := m.Called()
	return args.Get(0).(mqtt.ClientOptionsReader)
}

var _ mqtt.Client = &MockMQTTClient{}

func tokenArg(args mock.Arguments, i int) mqtt.Token {
	if t := args.Get(i); t != nil {
		return t.(mqtt.Token)
	}
	return nil
}

type MockToken struct {
	mock.Mock
}

func (m *MockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockToken) WaitTimeout(d time.Duration) bool {
	args := m.Called(d)
	return args.Bool(0)
}

func (m *MockToken) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

func (m *MockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}

var _ mqtt.Token = &MockToken{}

type MockPublishToken struct {
	MockToken
}

func (m *MockPublishToken) MessageID() uint16 {
	args := m.Called()
	return args.Get(0).(uint16)
}

type MockSubscribeToken struct {
	MockToken
}

func (m *MockSubscribeToken) Result() map[string]byte {
	args := m.Called()
	return args.Get(0).(map[string]byte)
}

type MockMessage struct {
	mqtt.Message

	topic   string
	payload []byte
}

func (m *MockMessage) Topic() string {
	return m.topic
}

func (m *MockMessage) Payload() []byte {
	return m.payload
}

type MockListener struct {
	mock.Mock
}

func (m *MockListener) ConnectionLost(cause error) {
	m.Called(cause)
}

func (m *MockListener) MessageArrived(topic string, payload []byte) {
	m.Called(topic, payload)
}

func (m *MockListener) DeliveryComplete(token application.DeliveryToken) {
	m.Called(token)
}

var _ application.TransportListener = &MockListener{}

type MockSession struct {
	mock.Mock
}

func (m *MockSession) Connect(cfg application.ConnectionConfig) error {
	args := m.Called(cfg)
	return args.Error(0)
}

func (m *MockSession) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSession) Publish(req application.PublishRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockSession) Subscribe(req application.SubscriptionRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockSession) Unsubscribe(topic string) error {
	args := m.Called(topic)
	return args.Error(0)
}

func (m *MockSession) Status() application.SessionStatus {
	args := m.Called()
	return args.Get(0).(application.SessionStatus)
}

var _ Session = &MockSession{}
