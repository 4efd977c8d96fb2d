// Package mqtt provides MQTT client connectivity for the BIOCAT bridge.
//
// This package manages:
//   - Connection to the Gray Logic broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the bridge health topic
//   - Connection health monitoring
//
// # Architecture
//
// The bridge talks to the rest of Gray Logic exclusively over MQTT using
// the flat bridge topic scheme:
//
//	graylogic/state/biocat/{entity}    retained entity state
//	graylogic/command/biocat/{entity}  inbound commands
//	graylogic/ack/biocat/{entity}      command acknowledgements
//	graylogic/health/biocat            retained bridge health + LWT
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
package mqtt
