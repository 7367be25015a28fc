// Package mqtt provides MQTT client connectivity for watchgrid.
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
// Sensor nodes that cannot speak HTTP publish device events to the broker
// instead; the server subscribes and feeds them into the same event relay
// as the HTTP ingress:
//
//	Sensor node → MQTT Broker → watchgrid server → WebSocket clients
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device events
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
