package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/gridshed/core/events"
	coremon "github.com/kilianp07/gridshed/core/monitoring"
	coremqtt "github.com/kilianp07/gridshed/core/mqtt"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	// Enabled turns on decision publishing and the measurement ingestor.
	Enabled     bool            `json:"enabled"`
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.TopicPrefix == "" {
		c.TopicPrefix = "gridshed"
	}
	if c.ClientID == "" {
		c.ClientID = "gridshed-" + uuid.NewString()[:8]
	}
	if c.LWTTopic == "" {
		c.LWTTopic = c.TopicPrefix + "/status"
		c.LWTPayload = "offline"
		c.LWTRetain = true
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PahoClient implements coremqtt.Publisher using Eclipse Paho.
type PahoClient struct {
	cli        pahoClient
	prefix     string
	qos        map[string]byte
	lwtTopic   string
	logger     logger.Logger
	monitor    coremon.Monitor
	maxRetries int
	backoff    time.Duration
}

var _ coremqtt.Publisher = (*PahoClient)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. Publish failures are reported
// to mon when it is not nil.
func NewPahoClient(cfg Config, mon coremon.Monitor) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		lwtTopic:   cfg.LWTTopic,
		logger:     log,
		monitor:    coremon.OrNop(mon),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		c.Publish(pc.lwtTopic, pc.qosFor("status"), true, "online")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type decisionMessage struct {
	DecisionID          string                  `json:"decision_id"`
	Timestamp           int64                   `json:"timestamp"`
	SelectedSource      model.Source            `json:"selected_source"`
	TotalAvailableKW    float64                 `json:"total_available_kw"`
	RemainingKW         float64                 `json:"remaining_kw"`
	DemandExceedsSupply bool                    `json:"demand_exceeds_supply"`
	Statuses            map[string]model.Status `json:"mcb_statuses"`
}

type circuitMessage struct {
	DecisionID string       `json:"decision_id"`
	Status     model.Status `json:"status"`
	PowerKW    float64      `json:"power_kw"`
	Rank       int          `json:"rank"`
	Critical   bool         `json:"critical"`
}

// PublishDecision publishes the retained decision summary on
// <prefix>/decision and each circuit status on <prefix>/circuits/<id>/status.
func (p *PahoClient) PublishDecision(d model.Decision) error {
	summary := decisionMessage{
		DecisionID:          d.ID,
		Timestamp:           d.Timestamp.UnixMilli(),
		SelectedSource:      d.SelectedSource,
		TotalAvailableKW:    d.TotalAvailableKW,
		RemainingKW:         d.RemainingKW,
		DemandExceedsSupply: d.DemandExceedsSupply,
		Statuses:            d.Statuses,
	}
	if err := p.publishJSON(p.prefix+"/decision", p.qosFor("decision"), true, summary); err != nil {
		p.monitor.CaptureException(err, map[string]string{"module": "mqtt", "decision_id": d.ID})
		return err
	}
	for _, c := range d.Circuits {
		msg := circuitMessage{DecisionID: d.ID, Status: c.Status, PowerKW: c.PowerKW, Rank: c.Rank, Critical: c.Critical}
		topic := fmt.Sprintf("%s/circuits/%s/status", p.prefix, c.ID)
		if err := p.publishJSON(topic, p.qosFor("circuit"), true, msg); err != nil {
			p.monitor.CaptureException(err, map[string]string{"module": "mqtt", "circuit_id": c.ID})
			return err
		}
	}
	return nil
}

// PublishPriorityEvent publishes the change on <prefix>/priorities/events.
func (p *PahoClient) PublishPriorityEvent(ev events.PriorityEvent) error {
	msg := struct {
		Action    string `json:"action"`
		Category  string `json:"category,omitempty"`
		Name      string `json:"name,omitempty"`
		OldRank   int    `json:"old_rank"`
		NewRank   int    `json:"new_rank"`
		Persisted bool   `json:"persisted"`
		Timestamp int64  `json:"timestamp"`
	}{string(ev.Action), ev.Category, ev.Name, ev.OldRank, ev.NewRank, ev.Persisted, ev.Time.UnixMilli()}
	if err := p.publishJSON(p.prefix+"/priorities/events", p.qosFor("priority"), false, msg); err != nil {
		p.monitor.CaptureException(err, map[string]string{"module": "mqtt", "action": string(ev.Action)})
		return err
	}
	return nil
}

func (p *PahoClient) publishJSON(topic string, qos byte, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Publish(p.lwtTopic, p.qosFor("status"), true, "offline").WaitTimeout(time.Second)
		p.cli.Disconnect(250)
	}
}
