// Package mqtt provides MQTT client connectivity for the Millstream processor.
//
// This package manages:
//   - Connection to the plant broker with auto-reconnect
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The broker is the processor's only input: machine simulators and PLC
// gateways publish telemetry, lifecycle events, and piece-tracking events
// to the /plant/... topic families, and this client delivers them to the
// ingestion stage.
//
//	Machines/Gateways → MQTT Broker → Millstream processor → InfluxDB
//
// # Delivery Semantics
//
// Delivery is at-least-once at QoS 1: duplicates are possible after a
// reconnect and are tolerated downstream (the store deduplicates points
// with identical series and timestamp). No deduplication is performed here.
// Ordering holds only within a single topic on a single connection.
//
// # Reconnection
//
// Reconnect uses exponential backoff between the configured initial and
// maximum delays and retries indefinitely; a processor without a broker
// connection has nothing to do, so giving up is never the right call.
// Subscriptions are restored automatically on every reconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("/plant/data/+", 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
