package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/gridshed/core/events"
	"github.com/kilianp07/gridshed/core/model"
	coremqtt "github.com/kilianp07/gridshed/core/mqtt"
	"github.com/kilianp07/gridshed/internal/eventbus"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func sampleDecision() model.Decision {
	return model.Decision{
		ID:        "d1",
		Timestamp: time.Unix(1700000000, 0),
		AllocationResult: model.AllocationResult{
			SelectedSource: model.SourceGrid,
			Statuses:       map[string]model.Status{"MCB_1": model.StatusOn, "MCB_2": model.StatusOff},
		},
		Circuits: []model.CircuitDecision{
			{ID: "MCB_1", PowerKW: 2, Rank: 1, Critical: true, Status: model.StatusOn},
			{ID: "MCB_2", PowerKW: 3, Rank: 102, Status: model.StatusOff},
		},
	}
}

func TestPublishDecisionTopicsAndQoS(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "site/", QoS: map[string]byte{"decision": 1, "circuit": 2}}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "site/status" || string(mc.published[0].payload) != "online" {
		t.Fatalf("online status not published on connect: %+v", mc.published)
	}
	mc.published = nil
	if err := cli.PublishDecision(sampleDecision()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(mc.published))
	}
	summary := mc.published[0]
	if summary.topic != "site/decision" || summary.qos != 1 || !summary.retained {
		t.Fatalf("unexpected summary publish %+v", summary)
	}
	var body map[string]any
	if err := json.Unmarshal(summary.payload, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["selected_source"] != "Grid" || body["mcb_statuses"].(map[string]any)["MCB_2"] != "OFF" {
		t.Fatalf("unexpected payload %s", summary.payload)
	}
	if mc.published[2].topic != "site/circuits/MCB_2/status" || mc.published[2].qos != 2 {
		t.Fatalf("unexpected circuit publish %+v", mc.published[2])
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	last := mc.published[len(mc.published)-1]
	if last.topic != "lwt" || string(last.payload) != "offline" {
		t.Fatalf("offline status not published on disconnect: %+v", last)
	}
}

func TestDefaultLWT(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()
	if cfg.LWTTopic != "gridshed/status" || cfg.LWTPayload != "offline" || !cfg.LWTRetain {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.ClientID) != len("gridshed-")+8 {
		t.Fatalf("unexpected client id %q", cfg.ClientID)
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewPahoClient(cfg, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.published = nil
	mc.publishErrs = []error{fmt.Errorf("net fail"), nil}
	if err := cli.PublishPriorityEvent(events.PriorityEvent{Action: events.PriorityReset}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	mon := &recordMonitor{}
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}, mon)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.publishErrs = []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}
	if err := cli.PublishDecision(sampleDecision()); err == nil {
		t.Fatalf("expected error")
	}
	if mon.err == nil || mon.tags["module"] != "mqtt" || mon.tags["decision_id"] != "d1" {
		t.Fatalf("error not captured: %+v", mon)
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.disconnected = true
	if err := cli.PublishDecision(sampleDecision()); !errors.Is(err, coremqtt.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestForward(t *testing.T) {
	pub := NewMockPublisher()
	decisions := eventbus.New[events.DecisionEvent]()
	priorities := eventbus.New[events.PriorityEvent]()
	done := make(chan struct{})
	go func() {
		Forward(context.Background(), pub, decisions, priorities, nil)
		close(done)
	}()
	deadline := time.Now().Add(time.Second)
	for {
		decisions.Publish(events.DecisionEvent{Decision: sampleDecision()})
		priorities.Publish(events.PriorityEvent{Action: events.PriorityUpdated})
		if d, p := pub.Counts(); d > 0 && p > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("events not forwarded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	decisions.Close()
	priorities.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("forward did not stop after buses closed")
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published    []publishCall
	publishErrs  []error
	disconnected bool
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	m.published = append(m.published, publishCall{topic, qos, retained, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return !m.disconnected }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }


