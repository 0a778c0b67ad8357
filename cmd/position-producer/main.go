package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// PositionReport represents a position report message
type PositionReport struct {
	PlayerID   string    `json:"player_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// walker is a simulated device doing a random walk around the start point
type walker struct {
	playerID string
	lat      float64
	lng      float64
}

const metersPerDegreeLat = 111320.0

func (w *walker) step(rng *rand.Rand, stepMeters float64) {
	heading := rng.Float64() * 2 * math.Pi
	dist := rng.Float64() * stepMeters
	w.lat += dist * math.Cos(heading) / metersPerDegreeLat
	w.lng += dist * math.Sin(heading) / (metersPerDegreeLat * math.Cos(w.lat*math.Pi/180))
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "position-reports", "Kafka topic")
	players := flag.String("players", "", "Player IDs to walk (comma-separated, required)")
	lat := flag.Float64("lat", 48.2082, "Walk center latitude")
	lng := flag.Float64("lng", 16.3738, "Walk center longitude")
	radius := flag.Float64("radius", 500, "Start spread around the center in meters")
	stepMeters := flag.Float64("step", 15, "Maximum step per report in meters")
	rate := flag.Int("rate", 1, "Reports per second per player")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *players == "" {
		log.Fatal("at least one player ID is required (-players)")
	}
	playerIDs := strings.Split(*players, ",")
	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🚶 Kafka Position Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Players:          %d\n", len(playerIDs))
	fmt.Printf("  Center:           %.4f, %.4f\n", *lat, *lng)
	fmt.Printf("  Reports/sec:      %d per player\n", *rate)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper
	sendMessage := func(report PositionReport) {
		data, err := json.Marshal(report)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(report.PlayerID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	// Scatter walkers around the center
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	walkers := make([]*walker, len(playerIDs))
	for i, id := range playerIDs {
		w := &walker{playerID: strings.TrimSpace(id), lat: *lat, lng: *lng}
		w.step(rng, *radius)
		walkers[i] = w
	}

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*rate*len(walkers))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var reportCount int64
	next := 0

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				shutdown()
				return
			}

			w := walkers[next]
			next = (next + 1) % len(walkers)
			w.step(rng, *stepMeters)

			sendMessage(PositionReport{
				PlayerID:   w.playerID,
				Lat:        w.lat,
				Lng:        w.lng,
				RecordedAt: time.Now(),
			})
			atomic.AddInt64(&reportCount, 1)

		case <-statsTicker.C:
			fmt.Printf("[%s] Reports: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&reportCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
