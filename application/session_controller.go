package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

const (
	DefaultConnectTimeout    = 30 * time.Second
	DefaultCallbackQueueSize = 256
)

type SessionControllerParams struct {
	NewTransport TransportFactory
	Sink         EventSink
	Metrics      Metrics

	Now           func() time.Time
	RenderPayload func([]byte) string

	ConnectTimeout    time.Duration
	CallbackQueueSize int

	Log zerolog.Logger
}

func (p *SessionControllerParams) EnsureDefaults() {
	if p.Metrics == nil {
		p.Metrics = noopMetrics{}
	}

	if p.Now == nil {
		p.Now = time.Now
	}

	if p.RenderPayload == nil {
		p.RenderPayload = TextPayload
	}

	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = DefaultConnectTimeout
	}

	if p.CallbackQueueSize <= 0 {
		p.CallbackQueueSize = DefaultCallbackQueueSize
	}
}

type request struct {
	fn   func() error
	done chan error
}

// SessionController owns a single MQTT connection. Commands and transport callbacks are
// serialized on one dispatcher goroutine, which is also the only caller of the EventSink.
type SessionController struct {
	params SessionControllerParams

	// owned by the dispatcher goroutine
	state     *fsm.FSM
	transport Transport
	config    *ConnectionConfig
	closed    bool

	requests  chan request
	callbacks chan func()
	stop      chan struct{}
	closeOnce sync.Once
	wg        conc.WaitGroup

	// generation counts established connections. A lost signal carries the
	// generation it was raised under and is dropped once a newer one exists.
	generation atomic.Uint64

	publishedCount    uint64
	arrivedCount      uint64
	lastTimePublished atomic.Pointer[time.Time]

	log zerolog.Logger
}

func NewSessionController(params SessionControllerParams) (*SessionController, error) {
	if params.NewTransport == nil {
		return nil, fmt.Errorf("NewTransport is nil")
	}
	if params.Sink == nil {
		return nil, fmt.Errorf("Sink is nil")
	}
	params.EnsureDefaults()

	c := &SessionController{
		params:    params,
		requests:  make(chan request),
		callbacks: make(chan func(), params.CallbackQueueSize),
		stop:      make(chan struct{}),
		log:       params.Log,
	}
	c.state = newStateMachine(c.onStateChange)

	t := time.Unix(0, 0)
	c.lastTimePublished.Store(&t)

	params.Metrics.SetState(StateDisconnected)
	c.wg.Go(c.dispatch)

	return c, nil
}

func (c *SessionController) Connect(cfg ConnectionConfig) error {
	cfg = cfg.Clone()
	return c.do(func() error { return c.connect(cfg) })
}

func (c *SessionController) Disconnect() error {
	return c.do(c.disconnect)
}

func (c *SessionController) Publish(req PublishRequest) error {
	req.Payload = bytes.Clone(req.Payload)
	return c.do(func() error { return c.publish(req) })
}

func (c *SessionController) Subscribe(req SubscriptionRequest) error {
	return c.do(func() error { return c.subscribe(req) })
}

func (c *SessionController) Unsubscribe(topic string) error {
	return c.do(func() error { return c.unsubscribe(topic) })
}

func (c *SessionController) State() ConnectionState {
	return ConnectionState(c.state.Current())
}

func (c *SessionController) Status() SessionStatus {
	return SessionStatus{
		State:             c.State(),
		PublishedCount:    atomic.LoadUint64(&c.publishedCount),
		ArrivedCount:      atomic.LoadUint64(&c.arrivedCount),
		LastTimePublished: *c.lastTimePublished.Load(),
	}
}

// Close disconnects if connected, releases the transport and stops the dispatcher.
// Every operation afterwards returns ErrClosed.
func (c *SessionController) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.do(c.teardown)
		close(c.stop)
		c.wg.Wait()
	})
	return err
}

func (c *SessionController) do(fn func() error) error {
	req := request{
		fn: func() error {
			if c.closed {
				return ErrClosed
			}
			return fn()
		},
		done: make(chan error, 1),
	}

	select {
	case c.requests <- req:
	case <-c.stop:
		return ErrClosed
	}
	return <-req.done
}

func (c *SessionController) post(fn func()) {
	select {
	case c.callbacks <- fn:
	case <-c.stop:
		c.log.Debug().Msg("callback dropped, controller closed")
	}
}

func (c *SessionController) dispatch() {
	for {
		select {
		case <-c.stop:
			return
		case req := <-c.requests:
			req.done <- req.fn()
		case fn := <-c.callbacks:
			fn()
		}
	}
}

func (c *SessionController) connect(cfg ConnectionConfig) error {
	if !c.is(StateDisconnected) {
		c.emit("Error connecting: Client is currently connected.")
		return ErrAlreadyConnected
	}

	uri := cfg.BrokerURI()
	if err := cfg.Validate(); err != nil {
		switch {
		case errors.Is(err, errMissingClientID):
			c.emit("Error connecting to " + uri + ", please enter a valid client ID.")
		case errors.Is(err, errMissingWillTopic):
			c.emit("Error connecting: Please enter a LWT topic.")
		default:
			c.emit("Error connecting: " + err.Error())
		}
		return err
	}

	if c.transport == nil {
		t, err := c.params.NewTransport(listener{c: c})
		if err != nil {
			c.params.Metrics.ObserveOperation(OpConnect, err)
			c.emit("Failed to connect to broker: " + err.Error())
			return fmt.Errorf("%w: %w", ErrConnect, err)
		}
		c.transport = t
	}
	c.config = &cfg

	c.transition(eventConnect)
	c.emit("Attempting to connect to broker: " + uri)

	err := c.transport.Connect(uri, cfg.ConnectOptions(c.params.ConnectTimeout))
	c.params.Metrics.ObserveOperation(OpConnect, err)
	if err != nil {
		c.log.Warn().Err(err).Str("uri", uri).Msg("connect failed")
		c.transition(eventFail)
		c.emit("Failed to connect to broker: " + err.Error())
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	c.generation.Add(1)
	c.transition(eventSucceed)
	c.emit("CONNECTED - Client ID: " + cfg.ClientID)
	return nil
}

// disconnect is best effort: the controller never stays Connected after it.
func (c *SessionController) disconnect() error {
	if !c.is(StateConnected) {
		c.emit("Error disconnecting: Client was not connected.")
		return ErrNotConnected
	}

	err := c.transport.Disconnect()
	c.params.Metrics.ObserveOperation(OpDisconnect, err)
	c.transition(eventDisconnect)
	if err != nil {
		c.log.Warn().Err(err).Msg("disconnect failed")
		c.emit("Error disconnecting: " + err.Error())
		return fmt.Errorf("%w: %w", ErrDisconnect, err)
	}

	c.emit("DISCONNECTED")
	return nil
}

func (c *SessionController) publish(req PublishRequest) error {
	if err := c.checkRequest("publishing", req.Topic, req.QoS); err != nil {
		return err
	}

	err := c.transport.Publish(req.Topic, req.Payload, req.QoS, req.Retain)
	c.params.Metrics.ObserveOperation(OpPublish, err)
	if err != nil {
		c.log.Warn().Err(err).Str("topic", req.Topic).Msg("publish failed")
		c.emit("Error publishing: " + err.Error())
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	t := c.params.Now()
	c.lastTimePublished.Store(&t)
	atomic.AddUint64(&c.publishedCount, 1)

	c.emit("PUBLISH")
	c.emit(fmt.Sprintf(" Topic: \"%s\"\n QOS: %d\n Retain: %t\n Payload: \"%s\"",
		req.Topic, req.QoS, req.Retain, c.params.RenderPayload(req.Payload)))
	return nil
}

func (c *SessionController) subscribe(req SubscriptionRequest) error {
	if err := c.checkRequest("subscribing", req.Topic, req.QoS); err != nil {
		return err
	}

	granted, err := c.transport.Subscribe([]string{req.Topic}, []QoS{req.QoS})
	c.params.Metrics.ObserveOperation(OpSubscribe, err)
	if err != nil {
		c.log.Warn().Err(err).Str("topic", req.Topic).Msg("subscribe failed")
		c.emit("Error subscribing: " + err.Error())
		return fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	qos := req.QoS
	if len(granted) > 0 {
		qos = granted[0]
	}

	c.emit("SUBSCRIBE")
	c.emit(fmt.Sprintf(" Topic: \"%s\"\n QOS: %d", req.Topic, qos))
	return nil
}

func (c *SessionController) unsubscribe(topic string) error {
	if err := c.checkRequest("unsubscribing", topic, QoSAtMostOnce); err != nil {
		return err
	}

	err := c.transport.Unsubscribe([]string{topic})
	c.params.Metrics.ObserveOperation(OpUnsubscribe, err)
	if err != nil {
		c.log.Warn().Err(err).Str("topic", topic).Msg("unsubscribe failed")
		c.emit("Error unsubscribing: " + err.Error())
		return fmt.Errorf("%w: %w", ErrSubscription, err)
	}

	c.emit("UNSUBSCRIBE")
	c.emit(fmt.Sprintf(" Topic: \"%s\"", topic))
	return nil
}

// checkRequest gates publish/subscribe/unsubscribe on a live connection and a usable topic.
func (c *SessionController) checkRequest(action, topic string, qos QoS) error {
	if c.transport == nil || !c.is(StateConnected) {
		c.emit("Error " + action + ": Client is not connected.")
		return ErrNotConnected
	}
	if topic == "" {
		c.emit("Error " + action + ": Please enter a topic to " + topicVerb(action) + ".")
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errMissingTopic)
	}
	if !qos.Valid() {
		c.emit(fmt.Sprintf("Error %s: Invalid QoS %d.", action, qos))
		return fmt.Errorf("%w: invalid qos %d", ErrInvalidRequest, qos)
	}
	return nil
}

func topicVerb(action string) string {
	switch action {
	case "publishing":
		return "publish on"
	case "subscribing":
		return "subscribe to"
	default:
		return "unsubscribe from"
	}
}

func (c *SessionController) teardown() error {
	var errs []error
	if c.is(StateConnected) {
		errs = append(errs, c.disconnect())
	}
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.log.Warn().Err(err).Msg("transport close failed")
			errs = append(errs, err)
		}
		c.transport = nil
	}
	c.closed = true
	return errors.Join(errs...)
}

func (c *SessionController) handleConnectionLost(generation uint64, cause error) {
	if !c.is(StateConnected) || c.config == nil || generation != c.generation.Load() {
		c.log.Debug().Err(cause).
			Str("state", c.State().String()).
			Uint64("generation", generation).
			Msg("ignoring stale connection lost")
		return
	}
	c.log.Warn().Err(cause).Msg("connection lost")

	cfg := *c.config
	c.transition(eventLose)
	c.emit("CONNECTION LOST!")
	c.emit("Attempting to reconnect to broker: " + cfg.BrokerHostPort())

	err := c.transport.Connect(cfg.BrokerURI(), cfg.ConnectOptions(c.params.ConnectTimeout))
	c.params.Metrics.ObserveOperation(OpReconnect, err)
	if err != nil {
		c.log.Warn().Err(err).Msg("reconnect failed")
		c.transition(eventFail)
		c.emit("Failed to reconnect.")
		c.emit("DISCONNECTED")
		return
	}

	c.generation.Add(1)
	c.transition(eventSucceed)
	c.emit("CONNECTED - Client ID: " + cfg.ClientID)
}

func (c *SessionController) handleMessageArrived(topic string, payload []byte) {
	atomic.AddUint64(&c.arrivedCount, 1)
	c.params.Metrics.MessageArrived(len(payload))

	c.emit("PUBLISH ARRIVED - Topic: \"" + topic + "\"")
	c.emit(" Payload: \"" + c.params.RenderPayload(payload) + "\"")
}

func (c *SessionController) handleDeliveryComplete(token DeliveryToken) {
	c.log.Debug().Uint16("message_id", token.MessageID).Str("topic", token.Topic).Msg("delivery complete")
	c.emit("PUBLISH COMPLETE")
}

func (c *SessionController) is(state ConnectionState) bool {
	return c.state.Is(string(state))
}

func (c *SessionController) transition(event string) {
	if err := c.state.Event(context.Background(), event); err != nil {
		c.log.Error().Err(err).Str("event", event).Str("state", c.State().String()).Msg("invalid state transition")
	}
}

func (c *SessionController) onStateChange(from, to ConnectionState) {
	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state changed")
	c.params.Metrics.SetState(to)
}

func (c *SessionController) emit(text string) {
	c.params.Sink.Append(LogEvent{Timestamp: c.params.Now(), Text: text}.String())
}

// listener hands transport callbacks over to the dispatcher goroutine.
type listener struct {
	c *SessionController
}

func (l listener) ConnectionLost(cause error) {
	generation := l.c.generation.Load()
	l.c.post(func() { l.c.handleConnectionLost(generation, cause) })
}

func (l listener) MessageArrived(topic string, payload []byte) {
	payload = bytes.Clone(payload)
	l.c.post(func() { l.c.handleMessageArrived(topic, payload) })
}

func (l listener) DeliveryComplete(token DeliveryToken) {
	l.c.post(func() { l.c.handleDeliveryComplete(token) })
}

var _ TransportListener = listener{}
