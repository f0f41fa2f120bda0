package adapters

import (
	"bytes"
	"fmt"
	"mqtt-console/application"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	MQTTDefaultConnectTimeout    = 30 * time.Second
	MQTTDefaultOperationTimeout  = 10 * time.Second
	MQTTDefaultDisconnectQuiesce = 250

	subscriptionFailure = 0x80
)

var (
	ErrMQTTNoClient              = fmt.Errorf("client was never connected")
	ErrMQTTNotConnected          = fmt.Errorf("not connected")
	ErrMQTTConnectTimeout        = fmt.Errorf("connect timeout")
	ErrMQTTPublishTimeout        = fmt.Errorf("publish timeout")
	ErrMQTTSubscribeTimeout      = fmt.Errorf("subscribe timeout")
	ErrMQTTUnsubscribeTimeout    = fmt.Errorf("unsubscribe timeout")
	ErrMQTTSubscriptionRejected  = fmt.Errorf("subscription rejected by broker")
	ErrMQTTSubscriptionQoSLength = fmt.Errorf("topics and qos lists differ in length")
)

type MQTTClientParams struct {
	Listener application.TransportListener

	OperationTimeout  time.Duration
	DisconnectQuiesce uint

	// Store is shared by every paho client built for this transport, so in-flight
	// messages of a persistent session survive a rebuild.
	Store mqtt.Store

	NewClientFunc func(options *mqtt.ClientOptions) mqtt.Client

	Log zerolog.Logger
}

func (m *MQTTClientParams) EnsureDefaults() {
	if m.OperationTimeout == 0 {
		m.OperationTimeout = MQTTDefaultOperationTimeout
	}

	if m.DisconnectQuiesce == 0 {
		m.DisconnectQuiesce = MQTTDefaultDisconnectQuiesce
	}

	if m.Store == nil {
		m.Store = mqtt.NewMemoryStore()
	}

	if m.NewClientFunc == nil {
		m.NewClientFunc = mqtt.NewClient
	}
}

// MQTTClient is the paho backed application.Transport. The paho client is rebuilt only
// when the broker uri or the connect options change between attempts.
type MQTTClient struct {
	params MQTTClientParams

	client mqtt.Client
	uri    string
	opts   application.ConnectOptions

	mu sync.Mutex

	log zerolog.Logger
}

func NewMQTTClient(params MQTTClientParams) (*MQTTClient, error) {
	if params.Listener == nil {
		return nil, fmt.Errorf("listener is required")
	}
	params.EnsureDefaults()

	return &MQTTClient{params: params, log: params.Log}, nil
}

// NewMQTTTransportFactory binds the controller's listener to a new MQTTClient.
func NewMQTTTransportFactory(params MQTTClientParams) application.TransportFactory {
	return func(listener application.TransportListener) (application.Transport, error) {
		params.Listener = listener
		return NewMQTTClient(params)
	}
}

func (m *MQTTClient) Connect(uri string, opts application.ConnectOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil || m.uri != uri || !sameConnectOptions(m.opts, opts) {
		if m.client != nil && m.client.IsConnectionOpen() {
			m.client.Disconnect(m.params.DisconnectQuiesce)
		}
		m.client = m.newMqttClient(uri, opts)
		m.uri = uri
		m.opts = opts
		m.log.Debug().Str("uri", uri).Str("client_id", opts.ClientID).Msg("built mqtt client")
	} else if m.client.IsConnectionOpen() {
		// paho refuses to connect a client it still considers connected
		m.log.Debug().Str("uri", uri).Msg("dropping open connection before connect")
		m.client.Disconnect(m.params.DisconnectQuiesce)
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = MQTTDefaultConnectTimeout
	}

	token := m.client.Connect()
	if !token.WaitTimeout(timeout) {
		// the attempt keeps running inside paho until aborted
		m.log.Debug().Str("uri", uri).Dur("timeout", timeout).Msg("aborting timed out connect")
		m.client.Disconnect(0)
		return ErrMQTTConnectTimeout
	}
	return token.Error()
}

func (m *MQTTClient) Disconnect() error {
	client, err := m.current()
	if err != nil {
		return err
	}

	if !client.IsConnectionOpen() {
		return ErrMQTTNotConnected
	}

	client.Disconnect(m.params.DisconnectQuiesce)
	return nil
}

func (m *MQTTClient) Publish(topic string, payload []byte, qos application.QoS, retain bool) error {
	client, err := m.current()
	if err != nil {
		return err
	}

	token := client.Publish(topic, byte(qos), retain, payload)
	if !token.WaitTimeout(m.params.OperationTimeout) {
		return ErrMQTTPublishTimeout
	}
	if err := token.Error(); err != nil {
		return err
	}

	delivered := application.DeliveryToken{Topic: topic}
	if pt, ok := token.(interface{ MessageID() uint16 }); ok {
		delivered.MessageID = pt.MessageID()
	}
	go m.params.Listener.DeliveryComplete(delivered)

	return nil
}

func (m *MQTTClient) Subscribe(topics []string, qos []application.QoS) ([]application.QoS, error) {
	if len(topics) != len(qos) {
		return nil, ErrMQTTSubscriptionQoSLength
	}

	client, err := m.current()
	if err != nil {
		return nil, err
	}

	filters := make(map[string]byte, len(topics))
	for i, topic := range topics {
		filters[topic] = byte(qos[i])
	}

	// nil callback: arrivals go through the default publish handler
	token := client.SubscribeMultiple(filters, nil)
	if !token.WaitTimeout(m.params.OperationTimeout) {
		return nil, ErrMQTTSubscribeTimeout
	}
	if err := token.Error(); err != nil {
		return nil, err
	}

	granted := append([]application.QoS(nil), qos...)
	if st, ok := token.(interface{ Result() map[string]byte }); ok {
		result := st.Result()
		for i, topic := range topics {
			g, ok := result[topic]
			if !ok {
				continue
			}
			if g == subscriptionFailure {
				return nil, fmt.Errorf("%w: %s", ErrMQTTSubscriptionRejected, topic)
			}
			granted[i] = application.QoS(g)
		}
	}

	return granted, nil
}

func (m *MQTTClient) Unsubscribe(topics []string) error {
	client, err := m.current()
	if err != nil {
		return err
	}

	token := client.Unsubscribe(topics...)
	if !token.WaitTimeout(m.params.OperationTimeout) {
		return ErrMQTTUnsubscribeTimeout
	}
	return token.Error()
}

func (m *MQTTClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}

	if m.client.IsConnectionOpen() {
		m.client.Disconnect(m.params.DisconnectQuiesce)
	}
	m.client = nil
	return nil
}

func (m *MQTTClient) PublishHandler(client mqtt.Client, msg mqtt.Message) {
	m.params.Listener.MessageArrived(msg.Topic(), msg.Payload())
}

func (m *MQTTClient) OnConnect(client mqtt.Client) {
	m.log.Debug().Msg("connected")
}

func (m *MQTTClient) OnConnectionLost(client mqtt.Client, err error) {
	m.log.Info().Msgf("connection lost: %v", err)
	m.params.Listener.ConnectionLost(err)
}

func (m *MQTTClient) current() (mqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil, ErrMQTTNoClient
	}
	return m.client, nil
}

func (m *MQTTClient) newMqttClient(uri string, opts application.ConnectOptions) mqtt.Client {
	o := mqtt.NewClientOptions()

	o.AddBroker(uri)
	o.SetClientID(opts.ClientID)
	o.SetKeepAlive(opts.KeepAlive)
	o.SetCleanSession(opts.CleanSession)
	o.SetConnectTimeout(opts.ConnectTimeout)

	if opts.Username != "" && opts.Password != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}

	if opts.Will != nil {
		o.SetBinaryWill(opts.Will.Topic, opts.Will.Message, byte(opts.Will.QoS), opts.Will.Retain)
	}

	// reconnection is owned by the session controller
	o.SetAutoReconnect(false)
	o.SetConnectRetry(false)
	o.SetOrderMatters(true)
	o.SetStore(m.params.Store)

	o.SetDefaultPublishHandler(m.PublishHandler)
	o.SetOnConnectHandler(m.OnConnect)
	o.SetConnectionLostHandler(m.OnConnectionLost)

	return m.params.NewClientFunc(o)
}

func sameConnectOptions(a, b application.ConnectOptions) bool {
	if a.ClientID != b.ClientID ||
		a.KeepAlive != b.KeepAlive ||
		a.CleanSession != b.CleanSession ||
		a.ConnectTimeout != b.ConnectTimeout ||
		a.Username != b.Username ||
		a.Password != b.Password {
		return false
	}

	if a.Will == nil || b.Will == nil {
		return a.Will == nil && b.Will == nil
	}
	return a.Will.Topic == b.Will.Topic &&
		a.Will.QoS == b.Will.QoS &&
		a.Will.Retain == b.Will.Retain &&
		bytes.Equal(a.Will.Message, b.Will.Message)
}

var _ application.Transport = &MQTTClient{}
