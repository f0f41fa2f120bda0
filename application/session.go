package application

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	DefaultBrokerPort       = 1883
	DefaultKeepAliveSeconds = 30

	LogTimeLayout = "2006/01/02 03:04:05.000"
)

type QoS byte

const (
	QoSAtMostOnce  QoS = 0
	QoSAtLeastOnce QoS = 1
	QoSExactlyOnce QoS = 2
)

func (q QoS) Valid() bool {
	return q <= QoSExactlyOnce
}

func ParseQoS(s string) (QoS, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !QoS(v).Valid() {
		return 0, fmt.Errorf("%w: qos must be one of [0, 1, 2], got %q", ErrInvalidRequest, s)
	}
	return QoS(v), nil
}

// Will is the Last Will and Testament the broker publishes if the client drops.
type Will struct {
	Topic   string
	Message []byte
	QoS     QoS
	Retain  bool
}

type ConnectionConfig struct {
	BrokerAddress string
	BrokerPort    int

	ClientID         string
	KeepAliveSeconds int
	CleanSession     bool

	Username string
	Password string

	// Will is nil when no LWT should be registered.
	Will *Will
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		BrokerPort:       DefaultBrokerPort,
		KeepAliveSeconds: DefaultKeepAliveSeconds,
		CleanSession:     true,
	}
}

func (c ConnectionConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errMissingClientID)
	}
	if c.Will != nil {
		if c.Will.Topic == "" {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, errMissingWillTopic)
		}
		if !c.Will.QoS.Valid() {
			return fmt.Errorf("%w: invalid LWT qos %d", ErrInvalidConfig, c.Will.QoS)
		}
	}
	return nil
}

// BrokerURI always uses the plaintext tcp scheme.
func (c ConnectionConfig) BrokerURI() string {
	return "tcp://" + c.BrokerHostPort()
}

func (c ConnectionConfig) BrokerHostPort() string {
	return fmt.Sprintf("%s:%d", c.BrokerAddress, c.BrokerPort)
}

// Clone returns a deep copy, so the captured config is not affected by later edits to the will message.
func (c ConnectionConfig) Clone() ConnectionConfig {
	if c.Will != nil {
		w := *c.Will
		w.Message = bytes.Clone(c.Will.Message)
		c.Will = &w
	}
	return c
}

// ConnectOptions builds a fresh option set for one connect attempt.
func (c ConnectionConfig) ConnectOptions(connectTimeout time.Duration) ConnectOptions {
	opts := ConnectOptions{
		ClientID:       c.ClientID,
		KeepAlive:      time.Duration(c.KeepAliveSeconds) * time.Second,
		CleanSession:   c.CleanSession,
		ConnectTimeout: connectTimeout,
	}
	if c.Username != "" && c.Password != "" {
		opts.Username = c.Username
		opts.Password = c.Password
	}
	if c.Will != nil {
		opts.Will = c.Clone().Will
	}
	return opts
}

type ConnectOptions struct {
	ClientID       string
	KeepAlive      time.Duration
	CleanSession   bool
	ConnectTimeout time.Duration

	Username string
	Password string

	Will *Will
}

type PublishRequest struct {
	Topic   string
	QoS     QoS
	Retain  bool
	Payload []byte
}

type SubscriptionRequest struct {
	Topic string
	QoS   QoS
}

type LogEvent struct {
	Timestamp time.Time
	Text      string
}

func (e LogEvent) String() string {
	return "[" + e.Timestamp.Format(LogTimeLayout) + "] " + e.Text
}

// DeliveryToken identifies a completed publish. MessageID is zero for QoS 0.
type DeliveryToken struct {
	MessageID uint16
	Topic     string
}

type SessionStatus struct {
	State             ConnectionState
	PublishedCount    uint64
	ArrivedCount      uint64
	LastTimePublished time.Time
}

func TextPayload(b []byte) string {
	return string(b)
}

func HexPayload(b []byte) string {
	return hex.EncodeToString(b)
}
