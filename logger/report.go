package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsStream    int64
	errorsCapture   int64
	warnsStream     int64
	warnsCapture    int64
	framesRead      int64
	framesWritten   int64
	eventsForwarded int64
	eventsDropped   int64
	commandsSent    int64
	captureWrites   int64
	channels        sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "capture") {
		atomic.AddInt64(&warnsCapture, 1)
	} else if strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "capture") {
		atomic.AddInt64(&errorsCapture, 1)
	} else if strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	}
}

// IncrementFrameRead counts one inbound frame of the given size.
func IncrementFrameRead(size int) {
	atomic.AddInt64(&framesRead, 1)
	recordChannel("frames_in", size)
}

// IncrementFrameWritten counts one outbound text frame of the given size.
func IncrementFrameWritten(size int) {
	atomic.AddInt64(&framesWritten, 1)
	recordChannel("frames_out", size)
}

// IncrementEventForwarded counts one decoded event handed to the consumer.
func IncrementEventForwarded(size int) {
	atomic.AddInt64(&eventsForwarded, 1)
	recordChannel("events_out", size)
}

// IncrementEventDropped counts one decoded event the consumer did not accept.
func IncrementEventDropped() {
	atomic.AddInt64(&eventsDropped, 1)
}

// IncrementCommandSent counts one trading command envelope.
func IncrementCommandSent(size int) {
	atomic.AddInt64(&commandsSent, 1)
	recordChannel("commands_out", size)
}

// IncrementCaptureWrite counts one flushed capture file of the given size.
func IncrementCaptureWrite(size int) {
	atomic.AddInt64(&captureWrites, 1)
	recordChannel("capture_files", size)
}

// RecordChannelMessage attributes one message of the given size to a named
// flow in the runtime report.
func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of runtime statistics and, when the
// CloudWatch client is initialized, publishes them as metrics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	fields := Fields{
		"errors_stream":    atomic.LoadInt64(&errorsStream),
		"errors_capture":   atomic.LoadInt64(&errorsCapture),
		"warns_stream":     atomic.LoadInt64(&warnsStream),
		"warns_capture":    atomic.LoadInt64(&warnsCapture),
		"frames_read":      atomic.LoadInt64(&framesRead),
		"frames_written":   atomic.LoadInt64(&framesWritten),
		"events_forwarded": atomic.LoadInt64(&eventsForwarded),
		"events_dropped":   atomic.LoadInt64(&eventsDropped),
		"commands_sent":    atomic.LoadInt64(&commandsSent),
		"capture_writes":   atomic.LoadInt64(&captureWrites),
		"goroutines":       runtime.NumGoroutine(),
		"heap_mb":          int64(memStats.HeapAlloc) / 1024 / 1024,
		"channels":         channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	counters := map[string]int64{
		"ErrorsStream":    atomic.LoadInt64(&errorsStream),
		"ErrorsCapture":   atomic.LoadInt64(&errorsCapture),
		"WarnsStream":     atomic.LoadInt64(&warnsStream),
		"WarnsCapture":    atomic.LoadInt64(&warnsCapture),
		"FramesRead":      atomic.LoadInt64(&framesRead),
		"FramesWritten":   atomic.LoadInt64(&framesWritten),
		"EventsForwarded": atomic.LoadInt64(&eventsForwarded),
		"EventsDropped":   atomic.LoadInt64(&eventsDropped),
		"CommandsSent":    atomic.LoadInt64(&commandsSent),
		"CaptureWrites":   atomic.LoadInt64(&captureWrites),
	}

	var data []cwtypes.MetricDatum
	for name, value := range counters {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(value)),
		})
	}
	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}
	publishMetrics(ctx, data)
}
