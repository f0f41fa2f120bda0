package main

import (
	"mqtt-console/adapters"
	"mqtt-console/application"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

// connectionConfig starts from the profile, if any, and applies explicitly set flags on top.
func connectionConfig(ctx *cli.Context) (application.ConnectionConfig, error) {
	cfg := application.DefaultConnectionConfig()
	cfg.BrokerAddress = ctx.String(FlagMQTTHost.Name)

	if path := ctx.String(FlagProfile.Name); path != "" {
		var err error
		if cfg, err = adapters.LoadProfile(path); err != nil {
			return application.ConnectionConfig{}, err
		}
		if cfg.BrokerAddress == "" {
			cfg.BrokerAddress = ctx.String(FlagMQTTHost.Name)
		}
	}

	if ctx.IsSet(FlagMQTTHost.Name) {
		cfg.BrokerAddress = ctx.String(FlagMQTTHost.Name)
	}
	if ctx.IsSet(FlagMQTTPort.Name) {
		cfg.BrokerPort = ctx.Int(FlagMQTTPort.Name)
	}
	if ctx.IsSet(FlagMQTTClientID.Name) {
		cfg.ClientID = ctx.String(FlagMQTTClientID.Name)
	}
	if ctx.Bool(FlagMQTTRandomClientID.Name) {
		cfg.ClientID = "mqtt-console-" + uuid.NewString()
	}
	if ctx.IsSet(FlagMQTTKeepAlive.Name) {
		cfg.KeepAliveSeconds = ctx.Int(FlagMQTTKeepAlive.Name)
	}
	if ctx.IsSet(FlagMQTTCleanSession.Name) {
		cfg.CleanSession = ctx.Bool(FlagMQTTCleanSession.Name)
	}
	if ctx.IsSet(FlagMQTTUsername.Name) {
		cfg.Username = ctx.String(FlagMQTTUsername.Name)
	}
	if ctx.IsSet(FlagMQTTPassword.Name) {
		cfg.Password = ctx.String(FlagMQTTPassword.Name)
	}

	if ctx.IsSet(FlagWillTopic.Name) {
		if cfg.Will == nil {
			cfg.Will = &application.Will{}
		}
		cfg.Will.Topic = ctx.String(FlagWillTopic.Name)
	}
	if cfg.Will != nil {
		if ctx.IsSet(FlagWillMessage.Name) {
			cfg.Will.Message = []byte(ctx.String(FlagWillMessage.Name))
		}
		if ctx.IsSet(FlagWillQoS.Name) {
			qos, err := application.ParseQoS(ctx.String(FlagWillQoS.Name))
			if err != nil {
				return application.ConnectionConfig{}, err
			}
			cfg.Will.QoS = qos
		}
		if ctx.IsSet(FlagWillRetain.Name) {
			cfg.Will.Retain = ctx.Bool(FlagWillRetain.Name)
		}
	}

	return cfg, nil
}
