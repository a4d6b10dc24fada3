// Package mqttbridge republishes ET-Bus traffic onto MQTT and forwards
// MQTT commands back onto the bus.
//
// The bridge subscribes to hub events and mirrors them to the broker:
//
//   - state envelopes   -> etbus/state/<id> (retained)
//   - discover envelopes -> etbus/discovery
//   - online/offline     -> etbus/online/<id> (retained)
//
// In the other direction it subscribes to etbus/command/+ and converts
// each message into an addressed command envelope. This lets dashboards
// and home automation platforms drive bus devices without speaking UDP
// multicast.
//
// Publishing happens on a dedicated goroutine so slow broker
// acknowledgements never stall the hub's receive loop.
package mqttbridge
