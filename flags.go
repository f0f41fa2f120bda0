package main

import (
	"mqtt-console/application"

	"github.com/urfave/cli/v2"
)

var FlagLogLevel = &cli.StringFlag{
	Name:     "log-level",
	EnvVars:  []string{"LOG_LEVEL"},
	Value:    "warn",
	Required: false,
}

var FlagLogWriter = &cli.StringFlag{
	Name:     "log-writer",
	EnvVars:  []string{"LOG_WRITER"},
	Value:    "console",
	Required: false,
}

var FlagProfile = &cli.StringFlag{
	Name:     "profile",
	Usage:    "yaml connection profile, explicit flags override it",
	EnvVars:  []string{"MQTT_PROFILE"},
	Required: false,
}

var FlagMQTTHost = &cli.StringFlag{
	Name:     "mqtt-host",
	Usage:    "broker host name or address",
	EnvVars:  []string{"MQTT_HOST"},
	Value:    "localhost",
	Required: false,
}

var FlagMQTTPort = &cli.IntFlag{
	Name:     "mqtt-port",
	EnvVars:  []string{"MQTT_PORT"},
	Value:    application.DefaultBrokerPort,
	Required: false,
}

var FlagMQTTClientID = &cli.StringFlag{
	Name:     "mqtt-client-id",
	EnvVars:  []string{"MQTT_CLIENT_ID"},
	Required: false,
}

var FlagMQTTRandomClientID = &cli.BoolFlag{
	Name:     "mqtt-random-client-id",
	Usage:    "use mqtt-console-<uuid> as client id",
	EnvVars:  []string{"MQTT_RANDOM_CLIENT_ID"},
	Required: false,
}

var FlagMQTTKeepAlive = &cli.IntFlag{
	Name:     "mqtt-keep-alive",
	Usage:    "keep alive interval in seconds",
	EnvVars:  []string{"MQTT_KEEP_ALIVE"},
	Value:    application.DefaultKeepAliveSeconds,
	Required: false,
}

var FlagMQTTCleanSession = &cli.BoolFlag{
	Name:     "mqtt-clean-session",
	EnvVars:  []string{"MQTT_CLEAN_SESSION"},
	Value:    true,
	Required: false,
}

var FlagMQTTUsername = &cli.StringFlag{
	Name:     "mqtt-username",
	EnvVars:  []string{"MQTT_USERNAME"},
	Required: false,
}

var FlagMQTTPassword = &cli.StringFlag{
	Name:     "mqtt-password",
	EnvVars:  []string{"MQTT_PASSWORD"},
	Required: false,
}

var FlagWillTopic = &cli.StringFlag{
	Name:     "will-topic",
	Usage:    "enables the last will and testament on this topic",
	EnvVars:  []string{"MQTT_WILL_TOPIC"},
	Required: false,
}

var FlagWillMessage = &cli.StringFlag{
	Name:     "will-message",
	EnvVars:  []string{"MQTT_WILL_MESSAGE"},
	Required: false,
}

var FlagWillQoS = &cli.StringFlag{
	Name:     "will-qos",
	Usage:    "one of: [0, 1, 2]",
	EnvVars:  []string{"MQTT_WILL_QOS"},
	Value:    "0",
	Required: false,
}

var FlagWillRetain = &cli.BoolFlag{
	Name:     "will-retain",
	EnvVars:  []string{"MQTT_WILL_RETAIN"},
	Required: false,
}

var FlagHexPayloads = &cli.BoolFlag{
	Name:     "hex-payloads",
	Usage:    "log payloads as hex instead of text",
	EnvVars:  []string{"HEX_PAYLOADS"},
	Required: false,
}

var FlagConnectTimeout = &cli.DurationFlag{
	Name:     "connect-timeout",
	EnvVars:  []string{"MQTT_CONNECT_TIMEOUT"},
	Value:    application.DefaultConnectTimeout,
	Required: false,
}

var FlagMetricsAddr = &cli.StringFlag{
	Name:     "metrics-addr",
	Usage:    "serve prometheus metrics on this address, disabled when empty",
	EnvVars:  []string{"METRICS_ADDR"},
	Required: false,
}

var FlagStatusInterval = &cli.DurationFlag{
	Name:     "status-interval",
	Usage:    "session report interval, 0 disables it",
	EnvVars:  []string{"STATUS_INTERVAL"},
	Value:    application.DefaultStatusInterval,
	Required: false,
}

var FlagConnect = &cli.BoolFlag{
	Name:     "connect",
	Usage:    "connect on start",
	EnvVars:  []string{"MQTT_CONNECT"},
	Required: false,
}

var FlagEventLog = &cli.StringFlag{
	Name:     "event-log",
	Usage:    "also append the session event log to this file",
	EnvVars:  []string{"EVENT_LOG"},
	Required: false,
}
