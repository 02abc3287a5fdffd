// Command prox-fusion monitors a pair of proximity modules on GPIO, fuses
// them into a single debounced near/far signal, and publishes transitions to
// MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/prox-fusion/internal/gpio"
	"github.com/sweeney/prox-fusion/internal/mqtt"
	"github.com/sweeney/prox-fusion/internal/run"
	"github.com/sweeney/prox-fusion/internal/sensor"
	"github.com/sweeney/prox-fusion/internal/status"
	"github.com/sweeney/prox-fusion/internal/web"
)

func main() {
	sample := flag.Duration("sample", 100*time.Millisecond, "Sensor sampling delay")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	pinPrimary := flag.Int("pin-primary", gpio.DefaultPinPrimary, "BCM pin number for the primary proximity module")
	pinSecondary := flag.Int("pin-secondary", gpio.DefaultPinSecondary, "BCM pin number for the secondary proximity module (-1 = none)")
	secondarySafe := flag.Bool("secondary-safe", false, "Keep the secondary sensor on continuously")
	printState := flag.Bool("print-state", false, "Print current line states and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")

	flag.Parse()

	if err := runDaemon(*sample, *broker, *heartbeat, *pinPrimary, *pinSecondary, *secondarySafe, *printState, *httpAddr); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func runDaemon(sample time.Duration, broker string, heartbeat time.Duration, pinPrimary, pinSecondary int, secondarySafe, printState bool, httpAddr string) error {
	// Initialize GPIO
	primaryReader, err := gpio.NewRealReader(pinPrimary)
	if err != nil {
		return fmt.Errorf("init primary gpio: %w", err)
	}
	defer primaryReader.Close()

	var secondaryReader gpio.Reader
	if pinSecondary >= 0 {
		r, err := gpio.NewRealReader(pinSecondary)
		if err != nil {
			return fmt.Errorf("init secondary gpio: %w", err)
		}
		defer r.Close()
		secondaryReader = r
	}

	// Print state mode
	if printState {
		primary, err := primaryReader.Read()
		if err != nil {
			return fmt.Errorf("read primary gpio: %w", err)
		}
		fmt.Printf("Primary: %s", stateString(primary))
		if secondaryReader != nil {
			secondary, err := secondaryReader.Read()
			if err != nil {
				return fmt.Errorf("read secondary gpio: %w", err)
			}
			fmt.Printf(", Secondary: %s", stateString(secondary))
		}
		fmt.Println()
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		SampleMs:     sample.Milliseconds(),
		HeartbeatMs:  heartbeat.Milliseconds(),
		Broker:       broker,
		HTTPAddr:     httpAddr,
		PrimaryPin:   pinPrimary,
		SecondaryPin: pinSecondary,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	// Build the confinement loop and the fusion sensor on it.
	loop := run.NewLoop()
	defer loop.Stop()

	var secondary sensor.ThresholdSensor = sensor.NullSensor{}
	if secondaryReader != nil {
		secondary = sensor.NewGPIOSensor(secondaryReader, loop)
	}
	fusion := sensor.NewFusion(sensor.NewGPIOSensor(primaryReader, loop), secondary, loop)

	listener := &proximityPublisher{fusion: fusion, publisher: publisher, tracker: tracker}
	onLoop(loop, func() {
		fusion.SetTag("daemon")
		fusion.SetDelay(sample)
		fusion.SetSecondarySafe(secondarySafe)
		fusion.Register(listener)
	})

	log.Printf("started: sample=%v broker=%s heartbeat=%v primary=%d secondary=%d safe=%t",
		sample, broker, heartbeat, pinPrimary, pinSecondary, secondarySafe)

	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, fusion, publisher, publisher, tracker, time.Now, tick, sigCh)
}

func runLoop(loop *run.Loop, fusion *sensor.Fusion, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			onLoop(loop, func() {
				fusion.Pause()
				syncTracker(fusion, tracker)
			})
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			onLoop(loop, func() {
				syncTracker(fusion, tracker)
			})
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v near=%d far=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Near, snap.Counts.Far)
			hbEvent := mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// proximityPublisher bridges fused sensor events to MQTT and the status
// tracker. Its callback runs on the confinement loop.
type proximityPublisher struct {
	fusion    *sensor.Fusion
	publisher mqtt.Publisher
	tracker   *status.Tracker
}

func (p *proximityPublisher) OnThresholdCrossed(event sensor.Event) {
	log.Printf("proximity: %s", stateString(event.Below))
	p.tracker.RecordEvent(event.Below)
	syncTracker(p.fusion, p.tracker)
	err := p.publisher.Publish(mqtt.Event{
		Timestamp: event.Timestamp,
		Near:      event.Below,
		Source:    "fused",
	})
	if err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
}

// syncTracker copies fusion state into the tracker. Must run on the loop.
func syncTracker(fusion *sensor.Fusion, tracker *status.Tracker) {
	var st status.State
	if near, ok := fusion.IsNear(); ok {
		if near {
			st = status.StateNear
		} else {
			st = status.StateFar
		}
	}
	tracker.Update(st, fusion.IsRegistered(), fusion.IsSecondarySafe(), fusion.ListenerCount())
}

// onLoop runs f on the confinement loop and waits for it to finish.
func onLoop(loop *run.Loop, f func()) {
	done := make(chan struct{})
	loop.Execute(func() {
		f()
		close(done)
	})
	<-done
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(near bool) string {
	if near {
		return "NEAR"
	}
	return "FAR"
}
