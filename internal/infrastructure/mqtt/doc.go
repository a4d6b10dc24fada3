// Package mqtt provides MQTT client connectivity for the ET-Bus hub.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The hub republishes device state from the UDP bus onto MQTT so
// dashboards and home automation platforms can consume it without
// speaking the bus protocol, and it accepts commands the other way:
//
//	ET-Bus devices ↔ UDP multicast ↔ Hub ↔ MQTT Broker ↔ Consumers
//
// # Security Considerations
//
//   - TLS is recommended for anything beyond a trusted LAN
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all incoming device commands
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish device state
//	topic := mqtt.Topics{}.DeviceState("lamp1")
//	client.Publish(topic, []byte(`{"on":true}`), 1, true)
package mqtt
