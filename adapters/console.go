package adapters

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mqtt-console/application"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var ErrQuit = errors.New("quit")

const consoleHelp = `commands:
  connect                                         connect with the current settings
  disconnect                                      disconnect from the broker
  publish <topic|-> <qos> <retain> [payload...]   publish a message, "-" reuses the last subscribed topic
  publish-file <topic|-> <qos> <retain> <path>    publish the contents of a file
  subscribe <topic> [qos]                         subscribe to a topic filter
  unsubscribe [topic]                             unsubscribe, defaults to the last subscribed topic
  set <field> [value]                             edit a connection setting, see "show"
  show                                            print the connection settings
  status                                          print the session status
  help                                            print this help
  quit                                            exit`

// Session is the part of application.SessionController the console drives.
type Session interface {
	Connect(cfg application.ConnectionConfig) error
	Disconnect() error
	Publish(req application.PublishRequest) error
	Subscribe(req application.SubscriptionRequest) error
	Unsubscribe(topic string) error
	Status() application.SessionStatus
}

type ConsoleParams struct {
	Session Session
	Config  application.ConnectionConfig

	In  io.Reader
	Out io.Writer

	ReadFile func(name string) ([]byte, error)

	// ConnectOnStart runs "connect" before the first line is read.
	ConnectOnStart bool

	Log zerolog.Logger
}

func (p *ConsoleParams) EnsureDefaults() {
	if p.In == nil {
		p.In = os.Stdin
	}

	if p.Out == nil {
		p.Out = os.Stdout
	}

	if p.ReadFile == nil {
		p.ReadFile = os.ReadFile
	}
}

// Console is a line oriented front end over a Session. Connection settings are edited
// with "set" and only handed to the session on "connect".
type Console struct {
	params ConsoleParams

	config      application.ConnectionConfig
	willEnabled bool
	will        application.Will
	lastTopic   string

	log zerolog.Logger
}

func NewConsole(params ConsoleParams) (*Console, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("Session is nil")
	}
	params.EnsureDefaults()

	c := &Console{
		params: params,
		config: params.Config.Clone(),
		log:    params.Log,
	}
	if c.config.Will != nil {
		c.willEnabled = true
		c.will = *c.config.Will
		c.config.Will = nil
	}

	return c, nil
}

// Run reads commands until quit, end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.params.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.printf("type \"help\" for a list of commands\n")

	if c.params.ConnectOnStart {
		c.run("connect")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if quit := c.run(line); quit {
				return nil
			}
		}
	}
}

func (c *Console) run(line string) bool {
	err := c.Execute(line)
	if errors.Is(err, ErrQuit) {
		return true
	}
	if err != nil {
		c.log.Debug().Err(err).Str("command", line).Msg("command failed")
	}
	return false
}

// Execute runs a single command line. Session errors are already in the event log,
// input errors are printed to the console output.
func (c *Console) Execute(line string) error {
	cmd, rest := cut(line)

	var err error
	switch cmd {
	case "":
		return nil
	case "help", "?":
		c.printf("%s\n", consoleHelp)
	case "quit", "exit":
		return ErrQuit
	case "show":
		c.show()
	case "status":
		c.status()
	case "set":
		err = c.set(rest)
	case "connect":
		err = c.params.Session.Connect(c.connectionConfig())
	case "disconnect":
		err = c.params.Session.Disconnect()
	case "publish":
		err = c.publish(rest, false)
	case "publish-file":
		err = c.publish(rest, true)
	case "subscribe":
		err = c.subscribe(rest)
	case "unsubscribe":
		err = c.unsubscribe(rest)
	default:
		err = fmt.Errorf("%w: unknown command %q, type \"help\"", application.ErrInvalidRequest, cmd)
	}

	if errors.Is(err, application.ErrInvalidRequest) {
		c.printf("%v\n", err)
	}
	return err
}

func (c *Console) connectionConfig() application.ConnectionConfig {
	cfg := c.config.Clone()
	if c.willEnabled {
		w := c.will
		cfg.Will = &w
	}
	return cfg
}

func (c *Console) set(args string) error {
	field, value := cut(args)

	switch field {
	case "host":
		c.config.BrokerAddress = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return invalidValue(field, value)
		}
		c.config.BrokerPort = port
	case "client-id":
		c.config.ClientID = value
	case "keep-alive":
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 0 {
			return invalidValue(field, value)
		}
		c.config.KeepAliveSeconds = seconds
	case "clean-session":
		b, err := parseBool(value)
		if err != nil {
			return invalidValue(field, value)
		}
		c.config.CleanSession = b
	case "username":
		c.config.Username = value
	case "password":
		c.config.Password = value
	case "will":
		b, err := parseBool(value)
		if err != nil {
			return invalidValue(field, value)
		}
		c.willEnabled = b
	case "will-topic":
		c.will.Topic = value
	case "will-message":
		c.will.Message = []byte(value)
	case "will-qos":
		qos, err := application.ParseQoS(value)
		if err != nil {
			return err
		}
		c.will.QoS = qos
	case "will-retain":
		b, err := parseBool(value)
		if err != nil {
			return invalidValue(field, value)
		}
		c.will.Retain = b
	default:
		return fmt.Errorf("%w: unknown setting %q", application.ErrInvalidRequest, field)
	}

	return nil
}

func (c *Console) publish(args string, fromFile bool) error {
	topic, rest := cut(args)
	qosArg, rest := cut(rest)
	retainArg, payload := cut(rest)

	if topic == "-" {
		topic = c.lastTopic
	}

	qos, err := application.ParseQoS(qosArg)
	if err != nil {
		return err
	}

	retain, err := parseBool(retainArg)
	if err != nil {
		return invalidValue("retain", retainArg)
	}

	data := []byte(payload)
	if fromFile {
		if payload == "" {
			return fmt.Errorf("%w: file path required", application.ErrInvalidRequest)
		}
		data, err = c.params.ReadFile(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", application.ErrInvalidRequest, err)
		}
	}

	return c.params.Session.Publish(application.PublishRequest{
		Topic:   topic,
		QoS:     qos,
		Retain:  retain,
		Payload: data,
	})
}

func (c *Console) subscribe(args string) error {
	topic, qosArg := cut(args)

	qos := application.QoSAtMostOnce
	if qosArg != "" {
		var err error
		if qos, err = application.ParseQoS(qosArg); err != nil {
			return err
		}
	}

	err := c.params.Session.Subscribe(application.SubscriptionRequest{Topic: topic, QoS: qos})
	if err != nil {
		return err
	}

	c.lastTopic = topic
	return nil
}

func (c *Console) unsubscribe(args string) error {
	topic := args
	if topic == "" {
		topic = c.lastTopic
	}
	return c.params.Session.Unsubscribe(topic)
}

func (c *Console) show() {
	password := ""
	if c.config.Password != "" {
		password = "********"
	}

	c.printf("host:          %s\n", c.config.BrokerAddress)
	c.printf("port:          %d\n", c.config.BrokerPort)
	c.printf("client-id:     %s\n", c.config.ClientID)
	c.printf("keep-alive:    %d\n", c.config.KeepAliveSeconds)
	c.printf("clean-session: %t\n", c.config.CleanSession)
	c.printf("username:      %s\n", c.config.Username)
	c.printf("password:      %s\n", password)
	c.printf("will:          %t\n", c.willEnabled)
	c.printf("will-topic:    %s\n", c.will.Topic)
	c.printf("will-message:  %s\n", c.will.Message)
	c.printf("will-qos:      %d\n", c.will.QoS)
	c.printf("will-retain:   %t\n", c.will.Retain)
}

func (c *Console) status() {
	s := c.params.Session.Status()

	last := "never"
	if s.PublishedCount > 0 {
		last = s.LastTimePublished.Format(application.LogTimeLayout)
	}

	c.printf("state: %s, published: %d, arrived: %d, last publish: %s\n",
		s.State, s.PublishedCount, s.ArrivedCount, last)
}

func (c *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(c.params.Out, format, args...); err != nil {
		c.log.Error().Err(err).Msg("failed to write console output")
	}
}

// cut splits off the first word and returns the trimmed remainder.
func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func invalidValue(field, value string) error {
	return fmt.Errorf("%w: invalid %s %q", application.ErrInvalidRequest, field, value)
}

var (
	_ Session            = &application.SessionController{}
	_ application.Runner = &Console{}
)
