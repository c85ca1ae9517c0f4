package mqtt

import (
	"encoding/json"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jmylchreest/wakelightd/internal/config"
)

const (
	// defaultConnectTimeout is the maximum time to wait for the initial connection
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for a publish acknowledgment
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time in milliseconds to finish pending work on disconnect
	defaultDisconnectQuiesce = 250

	defaultKeepAlive            = 60 * time.Second
	defaultConnectRetryInterval = 5 * time.Second
	defaultMaxReconnectInterval = 30 * time.Second
)

// Status values published on the status topic
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// statusPayload is the retained availability message
type statusPayload struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func buildStatusPayload(status, clientID, reason string) []byte {
	payload, _ := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	return payload
}

// buildClientOptions creates paho options with auto-reconnect, credentials and
// a retained offline will on the status topic
func buildClientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(defaultConnectRetryInterval)
	opts.SetMaxReconnectInterval(defaultMaxReconnectInterval)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// published by the broker if the daemon vanishes without a clean disconnect
	opts.SetBinaryWill(topics.Status(), buildStatusPayload(StatusOffline, cfg.ClientID, "unexpected_disconnect"), cfg.QoS, true)

	return opts
}
