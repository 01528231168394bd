package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/antenna-control/internal/pattern"
)

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 256

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// commandQueueSize bounds DF mode commands waiting for the handler.
	commandQueueSize = 16
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker and receives DF mode commands.
type RealPublisher struct {
	client paho.Client

	mu          sync.Mutex
	buf         *ringBuffer
	modeHandler func(on bool)
	connects    int

	// Commands are handed from paho's router to a single worker so the
	// handler may block without stalling the client.
	commands    chan bool
	startWorker sync.Once
	closeOnce   sync.Once
	done        chan struct{}
}

// NewRealPublisher creates a publisher for the given broker. The client keeps
// retrying in the background if the broker is not reachable yet; messages are
// buffered until the first connection.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	if o.ClientID == "" {
		o.ClientID = "antenna-control"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := newPublisherWithClient(nil, o.BufferSize)

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// newPublisherWithClient wires a publisher around c, which may be set later.
func newPublisherWithClient(c paho.Client, bufferSize int) *RealPublisher {
	return &RealPublisher{
		client:   c,
		buf:      newRingBuffer(bufferSize),
		commands: make(chan bool, commandQueueSize),
		done:     make(chan struct{}),
	}
}

// onConnect re-subscribes, replays buffered messages and announces reconnection.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	p.connects++
	reconnect := p.connects > 1
	handler := p.modeHandler
	dropped := p.buf.dropped
	pending := p.buf.drainAll()
	p.mu.Unlock()

	log.Printf("mqtt: connected (replaying %d buffered messages, %d dropped)", len(pending), dropped)

	if handler != nil {
		if err := p.subscribe(); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}

	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Printf("mqtt: replay to %s: %v", m.topic, err)
		}
	}

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			log.Printf("mqtt: publish reconnected: %v", err)
		}
	}
}

// PublishPattern sends a switch pattern change to the MQTT broker.
func (p *RealPublisher) PublishPattern(change pattern.Change) error {
	payload, err := FormatPayload(change)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: TopicPattern, payload: payload})
}

// PublishMode sends the DF mode state, retained so new subscribers see it.
func (p *RealPublisher) PublishMode(event ModeEvent) error {
	payload, err := FormatModePayload(event)
	if err != nil {
		return fmt.Errorf("format mode payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicMode, payload: payload, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
// System events are sent directly, never buffered.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !p.client.IsConnectionOpen() {
		return errors.New("publish system: not connected")
	}
	if err := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// publish sends m, or buffers it if the connection is down.
func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	if err := p.send(m); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timeout")
	}
	return token.Error()
}

// SubscribeMode registers handler for DF mode commands on TopicModeSet.
// The subscription is renewed on every reconnect. Commands are passed to
// handler in arrival order from one goroutine; handler may block.
func (p *RealPublisher) SubscribeMode(handler func(on bool)) error {
	p.mu.Lock()
	p.modeHandler = handler
	p.mu.Unlock()
	p.startWorker.Do(func() { go p.runCommands() })

	if !p.client.IsConnectionOpen() {
		// onConnect subscribes once the connection is up.
		return nil
	}
	return p.subscribe()
}

func (p *RealPublisher) subscribe() error {
	token := p.client.Subscribe(TopicModeSet, 1, p.handleModeMessage)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", TopicModeSet)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicModeSet, err)
	}
	return nil
}

func (p *RealPublisher) handleModeMessage(_ paho.Client, msg paho.Message) {
	if msg.Retained() {
		log.Printf("mqtt: ignoring retained command on %s", msg.Topic())
		return
	}
	on, err := ParseModeCommand(msg.Payload())
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}

	select {
	case p.commands <- on:
	default:
		log.Printf("mqtt: command queue full, dropping df_mode=%v", on)
	}
}

func (p *RealPublisher) runCommands() {
	for {
		select {
		case on := <-p.commands:
			p.mu.Lock()
			handler := p.modeHandler
			p.mu.Unlock()
			if handler != nil {
				handler(on)
			}
		case <-p.done:
			return
		}
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the client is connected to the broker.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close stops command delivery and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
