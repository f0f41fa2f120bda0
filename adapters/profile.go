package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mqtt-console/application"
	"os"

	"gopkg.in/yaml.v3"
)

type ProfileBroker struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type ProfileWill struct {
	Topic   string `yaml:"topic"`
	Message string `yaml:"message"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// Profile is the on-disk form of a connection config. Omitted fields keep their defaults.
type Profile struct {
	Broker       ProfileBroker `yaml:"broker"`
	ClientID     string        `yaml:"client_id"`
	KeepAlive    *int          `yaml:"keep_alive"`
	CleanSession *bool         `yaml:"clean_session"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Will         *ProfileWill  `yaml:"will"`
}

func (p Profile) ToConnectionConfig() (application.ConnectionConfig, error) {
	cfg := application.DefaultConnectionConfig()

	cfg.BrokerAddress = p.Broker.Address
	if p.Broker.Port != 0 {
		cfg.BrokerPort = p.Broker.Port
	}
	cfg.ClientID = p.ClientID
	if p.KeepAlive != nil {
		cfg.KeepAliveSeconds = *p.KeepAlive
	}
	if p.CleanSession != nil {
		cfg.CleanSession = *p.CleanSession
	}
	cfg.Username = p.Username
	cfg.Password = p.Password

	if p.Will != nil {
		qos := application.QoS(p.Will.QoS)
		if p.Will.QoS < 0 || !qos.Valid() {
			return application.ConnectionConfig{}, fmt.Errorf("%w: invalid will qos %d", application.ErrInvalidConfig, p.Will.QoS)
		}
		cfg.Will = &application.Will{
			Topic:   p.Will.Topic,
			Message: []byte(p.Will.Message),
			QoS:     qos,
			Retain:  p.Will.Retain,
		}
	}

	return cfg, nil
}

func ParseProfile(data []byte) (application.ConnectionConfig, error) {
	var p Profile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return application.ConnectionConfig{}, fmt.Errorf("failed to parse profile: %w", err)
	}

	return p.ToConnectionConfig()
}

func LoadProfile(path string) (application.ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return application.ConnectionConfig{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}
