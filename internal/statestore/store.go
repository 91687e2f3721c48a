package statestore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"hvac-collector/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// States the registry treats as "no data". Mirrors the source platform's
// unavailable/unknown sentinel values.
const (
	StateUnavailable = "unavailable"
	StateUnknown     = "unknown"
)

// EntityState is the latest known value for one named sensor.
type EntityState struct {
	State      string
	Attributes map[string]interface{}
	UpdatedAt  time.Time
}

// UserInput is a user service-call notification delivered over the event
// topic.
type UserInput struct {
	Service    string                 `json:"service"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Store is an MQTT-backed latest-value store for named sensors. Entities
// publish to <prefix>/<entity_id>/state and <prefix>/<entity_id>/attributes;
// the store retains the most recent value per entity and hands out copies.
type Store struct {
	config *config.Config
	logger *logrus.Logger
	client mqtt.Client

	mu     sync.RWMutex
	states map[string]EntityState

	onUserInput func(UserInput)
}

type statePayload struct {
	State      interface{}            `json:"state"`
	Attributes map[string]interface{} `json:"attributes"`
}

func NewStore(cfg *config.Config, logger *logrus.Logger) *Store {
	return &Store{
		config: cfg,
		logger: logger,
		states: make(map[string]EntityState),
	}
}

// Connect dials the broker and subscribes to the state topics. The store is
// usable without Connect for tests and baseline seeding.
func (s *Store) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.MQTT.Broker)
	opts.SetClientID(s.config.MQTT.ClientID)
	opts.SetUsername(s.config.MQTT.Username)
	opts.SetPassword(s.config.MQTT.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetOnConnectHandler(s.onConnect)

	s.client = mqtt.NewClient(opts)

	s.logger.Info("Connecting to MQTT broker...")
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s.logger.Info("Connected to MQTT broker")
	return nil
}

func (s *Store) Disconnect() {
	if s.client == nil {
		return
	}
	s.logger.Info("Disconnecting from MQTT broker...")
	s.client.Disconnect(250)
}

// SetUserInputHandler registers the callback invoked for each user-input
// event. Must be set before Connect.
func (s *Store) SetUserInputHandler(fn func(UserInput)) {
	s.onUserInput = fn
}

func (s *Store) onConnect(client mqtt.Client) {
	s.logger.Info("MQTT connected, subscribing to state topics...")

	prefix := s.config.MQTT.TopicPrefix
	subs := map[string]mqtt.MessageHandler{
		prefix + "/+/state":           s.handleStateMessage,
		prefix + "/+/attributes":      s.handleAttributesMessage,
		prefix + "/events/user_input": s.handleUserInputMessage,
	}

	for topic, handler := range subs {
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			s.logger.Errorf("Failed to subscribe to %s: %v", topic, token.Error())
		} else {
			s.logger.Infof("Subscribed to %s", topic)
		}
	}
}

func (s *Store) onConnectionLost(client mqtt.Client, err error) {
	s.logger.Errorf("MQTT connection lost: %v", err)
}

// entityFromTopic extracts the entity id from <prefix>/<entity_id>/<leaf>.
func (s *Store) entityFromTopic(topic string) string {
	trimmed := strings.TrimPrefix(topic, s.config.MQTT.TopicPrefix+"/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return ""
	}
	return trimmed[:idx]
}

func (s *Store) handleStateMessage(client mqtt.Client, msg mqtt.Message) {
	entityID := s.entityFromTopic(msg.Topic())
	if entityID == "" || entityID == "events" {
		return
	}

	// Payload is either a bare scalar or a JSON object carrying state plus
	// attributes.
	var state string
	var attrs map[string]interface{}

	if json.Valid(msg.Payload()) {
		var p statePayload
		if err := json.Unmarshal(msg.Payload(), &p); err == nil && p.State != nil {
			state = fmt.Sprintf("%v", p.State)
			attrs = p.Attributes
		}
	}
	if state == "" {
		state = strings.TrimSpace(string(msg.Payload()))
	}

	s.logger.Debugf("State update for %s: %s", entityID, state)
	s.merge(entityID, state, attrs)
}

func (s *Store) handleAttributesMessage(client mqtt.Client, msg mqtt.Message) {
	entityID := s.entityFromTopic(msg.Topic())
	if entityID == "" || entityID == "events" {
		return
	}

	var attrs map[string]interface{}
	if err := json.Unmarshal(msg.Payload(), &attrs); err != nil {
		s.logger.Errorf("Failed to parse attributes for %s: %v", entityID, err)
		return
	}

	s.merge(entityID, "", attrs)
}

func (s *Store) handleUserInputMessage(client mqtt.Client, msg mqtt.Message) {
	var input UserInput
	if err := json.Unmarshal(msg.Payload(), &input); err != nil {
		s.logger.Errorf("Failed to parse user input event: %v", err)
		return
	}
	if input.Service == "" {
		return
	}

	s.logger.Debugf("User input event: %s", input.Service)
	if s.onUserInput != nil {
		s.onUserInput(input)
	}
}

// merge folds a state and/or attribute update into the entity's entry.
func (s *Store) merge(entityID, state string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.states[entityID]
	if cur.Attributes == nil {
		cur.Attributes = make(map[string]interface{})
	}
	if state != "" {
		cur.State = state
	}
	for k, v := range attrs {
		cur.Attributes[k] = v
	}
	cur.UpdatedAt = time.Now()
	s.states[entityID] = cur
}

// Set replaces an entity's state outright. Used by tests and day-start
// baseline seeding.
func (s *Store) Set(entityID, state string, attrs map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	s.states[entityID] = EntityState{State: state, Attributes: copied, UpdatedAt: time.Now()}
}

// Get returns a copy of the entity's latest state.
func (s *Store) Get(entityID string) (EntityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[entityID]
	if !ok {
		return EntityState{}, false
	}

	attrs := make(map[string]interface{}, len(st.Attributes))
	for k, v := range st.Attributes {
		attrs[k] = v
	}
	return EntityState{State: st.State, Attributes: attrs, UpdatedAt: st.UpdatedAt}, true
}

// Available reports whether the entity has a usable state.
func (s *Store) Available(entityID string) bool {
	st, ok := s.Get(entityID)
	if !ok {
		return false
	}
	return st.State != "" && st.State != StateUnavailable && st.State != StateUnknown
}

// Entities returns the ids currently held, for the status surface.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.states))
	for id := range s.states {
		out = append(out, id)
	}
	return out
}
