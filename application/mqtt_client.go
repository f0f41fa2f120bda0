package application

type Transport interface {
	Connect(uri string, opts ConnectOptions) error
	Disconnect() error

	Publish(topic string, payload []byte, qos QoS, retain bool) error
	// Subscribe returns the QoS granted by the broker for each topic.
	Subscribe(topics []string, qos []QoS) ([]QoS, error)
	Unsubscribe(topics []string) error

	Close() error
}

// TransportListener receives broker callbacks. Implementations are called from transport goroutines.
type TransportListener interface {
	ConnectionLost(cause error)
	MessageArrived(topic string, payload []byte)
	DeliveryComplete(token DeliveryToken)
}

// TransportFactory is called at most once per SessionController.
type TransportFactory func(listener TransportListener) (Transport, error)

type EventSink interface {
	Append(line string)
}

const (
	OpConnect     = "connect"
	OpReconnect   = "reconnect"
	OpDisconnect  = "disconnect"
	OpPublish     = "publish"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

type Metrics interface {
	SetState(state ConnectionState)
	ObserveOperation(op string, err error)
	MessageArrived(size int)
}

type noopMetrics struct{}

func (noopMetrics) SetState(ConnectionState) {}
func (noopMetrics) ObserveOperation(string, error) {}
func (noopMetrics) MessageArrived(int) {}
