package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Manual test harness: publishes a plausible day of sensor state onto the
// statestream topics so the collector can be exercised without real
// hardware. Indoor temperature drifts toward the outdoor value and the
// simulated furnace kicks in below the setpoint.
func main() {
	var broker string
	var prefix string
	var interval time.Duration

	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "mqtt broker")
	flag.StringVar(&prefix, "prefix", "statestream", "topic prefix")
	flag.DurationVar(&interval, "interval", 10*time.Second, "publish interval")
	flag.Parse()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("simsensors")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("Cannot connect to MQTT broker %s: %v", broker, token.Error())
	}
	defer client.Disconnect(250)

	fmt.Printf("Connected to %s, publishing every %s\n", broker, interval)

	indoor := 68.0
	outdoor := 48.0
	target := 70.0
	action := "idle"
	tick := 0

	for {
		// Simple thermal model: drift toward outdoor, heat when running.
		if action == "heating" {
			indoor += 0.3
			if indoor >= target+0.5 {
				action = "idle"
			}
		} else {
			indoor -= 0.1 * (indoor - outdoor) / 20.0
			if indoor <= target-1.0 {
				action = "heating"
			}
		}
		outdoor = 48.0 + 6.0*math.Sin(float64(tick)/90.0)

		publish(client, prefix+"/sensor.indoor_temperature/state", fmt.Sprintf("%.1f", indoor))
		publish(client, prefix+"/climate.thermostat/state", "heat")
		publishJSON(client, prefix+"/climate.thermostat/attributes", map[string]interface{}{
			"hvac_action":         action,
			"hvac_mode":           "heat",
			"current_temperature": round1(indoor),
			"temperature":         target,
			"humidity":            42.0,
		})
		publish(client, prefix+"/weather.home/state", "cloudy")
		publishJSON(client, prefix+"/weather.home/attributes", map[string]interface{}{
			"temperature": round1(outdoor),
			"humidity":    70.0,
			"pressure":    1013.0,
			"wind_speed":  8.5,
		})

		fmt.Printf("indoor=%.1f outdoor=%.1f action=%s\n", indoor, outdoor, action)

		tick++
		time.Sleep(interval)
	}
}

func publish(client mqtt.Client, topic, value string) {
	token := client.Publish(topic, 1, false, value)
	token.Wait()
}

func publishJSON(client mqtt.Client, topic string, value map[string]interface{}) {
	payload, _ := json.Marshal(value)
	token := client.Publish(topic, 1, false, payload)
	token.Wait()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
