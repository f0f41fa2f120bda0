package adapters

import (
	"fmt"
	"mqtt-console/application"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clientFactory struct {
	mu      sync.Mutex
	client  mqtt.Client
	options []*mqtt.ClientOptions
}

func (f *clientFactory) NewClient(options *mqtt.ClientOptions) mqtt.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options = append(f.options, options)
	return f.client
}

func (f *clientFactory) Options() []*mqtt.ClientOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options
}

func newTestMQTTClient(t *testing.T, mClient *MockMQTTClient, listener *MockListener) (*MQTTClient, *clientFactory) {
	factory := &clientFactory{client: mClient}

	mqttClient, err := NewMQTTClient(MQTTClientParams{
		Listener: listener,
		// for testing
		NewClientFunc: factory.NewClient,
	})
	require.NoError(t, err)

	return mqttClient, factory
}

func testConnectOptions() application.ConnectOptions {
	return application.ConnectOptions{
		ClientID:       "test",
		KeepAlive:      30 * time.Second,
		CleanSession:   true,
		ConnectTimeout: 5 * time.Second,
		Username:       "admin",
		Password:       "password",
	}
}

func expectConnect(mClient *MockMQTTClient) *MockToken {
	mToken := &MockToken{}
	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", 5*time.Second).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	return mToken
}

func TestNewMQTTClient_NoListener(t *testing.T) {
	mqttClient, err := NewMQTTClient(MQTTClientParams{})
	require.Error(t, err)
	require.Nil(t, mqttClient)
}

func TestNewMQTTTransportFactory(t *testing.T) {
	factory := NewMQTTTransportFactory(MQTTClientParams{})

	transport, err := factory(&MockListener{})
	require.NoError(t, err)
	require.NotNil(t, transport)

	_, err = factory(nil)
	require.Error(t, err)
}

func TestMQTTClient_Connect(t *testing.T) {
	mClient := &MockMQTTClient{}
	listener := &MockListener{}
	mqttClient, factory := newTestMQTTClient(t, mClient, listener)

	mToken := expectConnect(mClient)

	opts := testConnectOptions()
	opts.Will = &application.Will{Topic: "clients/test", Message: []byte("offline"), QoS: application.QoSAtLeastOnce, Retain: true}

	err := mqttClient.Connect("tcp://localhost:1883", opts)
	require.NoError(t, err)

	require.Len(t, factory.Options(), 1)
	o := factory.Options()[0]
	require.Len(t, o.Servers, 1)
	assert.Equal(t, "tcp://localhost:1883", o.Servers[0].String())
	assert.Equal(t, "test", o.ClientID)
	assert.Equal(t, int64(30), o.KeepAlive)
	assert.Equal(t, true, o.CleanSession)
	assert.Equal(t, 5*time.Second, o.ConnectTimeout)
	assert.Equal(t, "admin", o.Username)
	assert.Equal(t, "password", o.Password)
	assert.Equal(t, true, o.WillEnabled)
	assert.Equal(t, "clients/test", o.WillTopic)
	assert.Equal(t, []byte("offline"), o.WillPayload)
	assert.Equal(t, byte(1), o.WillQos)
	assert.Equal(t, true, o.WillRetained)
	assert.Equal(t, false, o.AutoReconnect)
	assert.Equal(t, false, o.ConnectRetry)
	assert.Equal(t, true, o.Order)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Connect_NoCredentials(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, factory := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)

	opts := testConnectOptions()
	opts.Password = ""

	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", opts))

	o := factory.Options()[0]
	assert.Equal(t, "", o.Username)
	assert.Equal(t, "", o.Password)
	assert.Equal(t, false, o.WillEnabled)
}

func TestMQTTClient_Connect_ReusesClient(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, factory := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)
	expectConnect(mClient)

	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))
	mClient.On("IsConnectionOpen").Return(false).Once()
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))
	assert.Len(t, factory.Options(), 1)

	// changed options rebuild the paho client
	expectConnect(mClient)
	mClient.On("IsConnectionOpen").Return(false).Once()

	opts := testConnectOptions()
	opts.ClientID = "other"
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", opts))
	assert.Len(t, factory.Options(), 2)
	assert.Equal(t, "other", factory.Options()[1].ClientID)

	mClient.AssertExpectations(t)
}

func TestMQTTClient_Connect_Error(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", 5*time.Second).Return(true).Once()
	mToken.On("Error").Return(fmt.Errorf("internal")).Once()

	err := mqttClient.Connect("tcp://localhost:1883", testConnectOptions())
	require.Error(t, err)
	assert.Equal(t, "internal", err.Error())

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Connect_Timeout(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", 5*time.Second).Return(false).Once()
	mClient.On("Disconnect", uint(0)).Return().Once()

	err := mqttClient.Connect("tcp://localhost:1883", testConnectOptions())
	require.Equal(t, ErrMQTTConnectTimeout, err)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Connect_RetryAfterTimeout(t *testing.T) {
	mClient := &MockMQTTClient{}
	mToken := &MockToken{}
	mqttClient, factory := newTestMQTTClient(t, mClient, &MockListener{})

	mClient.On("Connect").Return(mToken).Once()
	mToken.On("WaitTimeout", 5*time.Second).Return(false).Once()
	mClient.On("Disconnect", uint(0)).Return().Once()

	require.Equal(t, ErrMQTTConnectTimeout, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mClient.On("IsConnectionOpen").Return(false).Once()
	expectConnect(mClient)

	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))
	assert.Len(t, factory.Options(), 1)

	mClient.AssertExpectations(t)
}

func TestMQTTClient_Connect_DropsOpenConnection(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mClient.On("IsConnectionOpen").Return(true).Once()
	mClient.On("Disconnect", uint(MQTTDefaultDisconnectQuiesce)).Return().Once()
	expectConnect(mClient)

	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mClient.AssertExpectations(t)
}

func TestMQTTClient_Disconnect(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	require.Equal(t, ErrMQTTNoClient, mqttClient.Disconnect())

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mClient.On("IsConnectionOpen").Return(true).Once()
	mClient.On("Disconnect", uint(MQTTDefaultDisconnectQuiesce)).Return().Once()
	require.NoError(t, mqttClient.Disconnect())

	mClient.On("IsConnectionOpen").Return(false).Once()
	require.Equal(t, ErrMQTTNotConnected, mqttClient.Disconnect())

	mClient.AssertExpectations(t)
}

func TestMQTTClient_Publish(t *testing.T) {
	mClient := &MockMQTTClient{}
	listener := &MockListener{}
	mqttClient, _ := newTestMQTTClient(t, mClient, listener)

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	topic := "testTopic"
	qos := application.QoSAtLeastOnce
	retained := true
	payload := []byte("test_payload")

	mToken := &MockPublishToken{}
	mClient.On("Publish", topic, byte(qos), retained, payload).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultOperationTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	mToken.On("MessageID").Return(uint16(42)).Once()

	delivered := make(chan struct{})
	listener.On("DeliveryComplete", application.DeliveryToken{MessageID: 42, Topic: topic}).Run(func(args mock.Arguments) {
		close(delivered)
	}).Return().Once()

	err := mqttClient.Publish(topic, payload, qos, retained)
	require.NoError(t, err)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("delivery complete was not reported")
	}

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
	listener.AssertExpectations(t)
}

func TestMQTTClient_Publish_NotConnected(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	err := mqttClient.Publish("testTopic", []byte("test_payload"), application.QoSAtMostOnce, true)
	require.Error(t, err)
	require.Equal(t, ErrMQTTNoClient, err)

	mClient.AssertExpectations(t)
}

func TestMQTTClient_Publish_Error(t *testing.T) {
	mClient := &MockMQTTClient{}
	listener := &MockListener{}
	mqttClient, _ := newTestMQTTClient(t, mClient, listener)

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mToken := &MockToken{}
	mClient.On("Publish", "testTopic", byte(0), false, []byte("test_payload")).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultOperationTimeout).Return(true).Once()
	mToken.On("Error").Return(fmt.Errorf("internal")).Once()

	err := mqttClient.Publish("testTopic", []byte("test_payload"), application.QoSAtMostOnce, false)
	require.Error(t, err)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
	listener.AssertNotCalled(t, "DeliveryComplete", mock.Anything)
}

func TestMQTTClient_Publish_Timeout(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mToken := &MockToken{}
	mClient.On("Publish", "testTopic", byte(2), false, []byte("x")).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultOperationTimeout).Return(false).Once()

	err := mqttClient.Publish("testTopic", []byte("x"), application.QoSExactlyOnce, false)
	require.Equal(t, ErrMQTTPublishTimeout, err)
}

func TestMQTTClient_Subscribe(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mToken := &MockSubscribeToken{}
	mClient.On("SubscribeMultiple", map[string]byte{"sensors/#": 2}, mock.Anything).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultOperationTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	mToken.On("Result").Return(map[string]byte{"sensors/#": 1}).Once()

	granted, err := mqttClient.Subscribe([]string{"sensors/#"}, []application.QoS{application.QoSExactlyOnce})
	require.NoError(t, err)
	assert.Equal(t, []application.QoS{application.QoSAtLeastOnce}, granted)

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Subscribe_Rejected(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mToken := &MockSubscribeToken{}
	mClient.On("SubscribeMultiple", map[string]byte{"private/#": 0}, mock.Anything).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultOperationTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()
	mToken.On("Result").Return(map[string]byte{"private/#": 0x80}).Once()

	granted, err := mqttClient.Subscribe([]string{"private/#"}, []application.QoS{application.QoSAtMostOnce})
	require.ErrorIs(t, err, ErrMQTTSubscriptionRejected)
	assert.Nil(t, granted)
}

func TestMQTTClient_Subscribe_InvalidArguments(t *testing.T) {
	mqttClient, _ := newTestMQTTClient(t, &MockMQTTClient{}, &MockListener{})

	_, err := mqttClient.Subscribe([]string{"a", "b"}, []application.QoS{application.QoSAtMostOnce})
	require.Equal(t, ErrMQTTSubscriptionQoSLength, err)

	_, err = mqttClient.Subscribe([]string{"a"}, []application.QoS{application.QoSAtMostOnce})
	require.Equal(t, ErrMQTTNoClient, err)
}

func TestMQTTClient_Unsubscribe(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mToken := &MockToken{}
	mClient.On("Unsubscribe", []string{"a", "b"}).Return(mToken).Once()
	mToken.On("WaitTimeout", MQTTDefaultOperationTimeout).Return(true).Once()
	mToken.On("Error").Return(nil).Once()

	require.NoError(t, mqttClient.Unsubscribe([]string{"a", "b"}))

	mClient.AssertExpectations(t)
	mToken.AssertExpectations(t)
}

func TestMQTTClient_Callbacks(t *testing.T) {
	mClient := &MockMQTTClient{}
	listener := &MockListener{}
	mqttClient, _ := newTestMQTTClient(t, mClient, listener)

	cause := fmt.Errorf("connection lost")
	listener.On("MessageArrived", "sensors/temp", []byte("21.5")).Return().Once()
	listener.On("ConnectionLost", cause).Return().Once()

	mqttClient.PublishHandler(mClient, &MockMessage{topic: "sensors/temp", payload: []byte("21.5")})
	mqttClient.OnConnect(mClient)
	mqttClient.OnConnectionLost(mClient, cause)

	listener.AssertExpectations(t)
}

func TestMQTTClient_Close(t *testing.T) {
	mClient := &MockMQTTClient{}
	mqttClient, _ := newTestMQTTClient(t, mClient, &MockListener{})

	require.NoError(t, mqttClient.Close())

	expectConnect(mClient)
	require.NoError(t, mqttClient.Connect("tcp://localhost:1883", testConnectOptions()))

	mClient.On("IsConnectionOpen").Return(true).Once()
	mClient.On("Disconnect", uint(MQTTDefaultDisconnectQuiesce)).Return().Once()
	require.NoError(t, mqttClient.Close())

	err := mqttClient.Publish("testTopic", []byte("x"), application.QoSAtMostOnce, false)
	require.Equal(t, ErrMQTTNoClient, err)

	mClient.AssertExpectations(t)
}

func TestSameConnectOptions(t *testing.T) {
	a := testConnectOptions()
	b := testConnectOptions()
	assert.True(t, sameConnectOptions(a, b))

	a.Will = &application.Will{Topic: "w", Message: []byte("m")}
	assert.False(t, sameConnectOptions(a, b))

	b.Will = &application.Will{Topic: "w", Message: []byte("m")}
	assert.True(t, sameConnectOptions(a, b))

	b.Will.Message = []byte("n")
	assert.False(t, sameConnectOptions(a, b))

	b = testConnectOptions()
	b.Will = a.Will
	b.KeepAlive = time.Minute
	assert.False(t, sameConnectOptions(a, b))
}
