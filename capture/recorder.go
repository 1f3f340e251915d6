// Package capture records streamed market-data events as parquet batches,
// locally and/or to S3, for replay and offline analysis.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "tradeflow/config"
	"tradeflow/logger"
	"tradeflow/models"
)

// eventRecord defines the parquet schema for captured push events. Data items
// stay as raw JSON; interpreting them is the reader's business.
type eventRecord struct {
	Channel      string `parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol       string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Action       string `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payload      string `parquet:"name=payload, type=BYTE_ARRAY, convertedtype=UTF8"`
	ReceivedTime int64  `parquet:"name=received_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// in-memory parquet sink
type memFileWriter struct{ buffer *bytes.Buffer }

func newMemFileWriter() *memFileWriter { return &memFileWriter{buffer: &bytes.Buffer{}} }

func (m *memFileWriter) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFileWriter) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFileWriter) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFileWriter) Read([]byte) (int, error)                  { return 0, nil }
func (m *memFileWriter) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFileWriter) Close() error                              { return nil }
func (m *memFileWriter) Bytes() []byte                             { return m.buffer.Bytes() }

// Recorder consumes decoded events and writes them out in parquet batches.
// Records are buffered per channel and symbol and flushed when a buffer
// reaches the configured batch size or on the flush interval.
type Recorder struct {
	cfg         *appconfig.Config
	events      <-chan models.MarketDataEvent
	s3Client    *s3.Client
	buffer      map[string][]eventRecord
	mu          sync.Mutex
	flushTicker *time.Ticker
	ctx         context.Context
	wg          *sync.WaitGroup
	running     bool
	log         *logger.Log
}

// NewRecorder builds a recorder for the given event channel. An S3 client is
// constructed only when the S3 target is enabled.
func NewRecorder(cfg *appconfig.Config, events <-chan models.MarketDataEvent) (*Recorder, error) {
	r := &Recorder{
		cfg:    cfg,
		events: events,
		buffer: make(map[string][]eventRecord),
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
	}
	if cfg.Capture.S3.Enabled {
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Capture.S3.Region)}
		if cfg.Capture.S3.AccessKeyID != "" && cfg.Capture.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Capture.S3.AccessKeyID,
					cfg.Capture.S3.SecretAccessKey,
					"",
				)))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		r.s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Capture.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Capture.S3.Endpoint)
			}
			o.UsePathStyle = cfg.Capture.S3.PathStyle
		})
	}
	return r, nil
}

// Start launches the consumer and the flush ticker.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder already running")
	}
	r.running = true
	r.ctx = ctx
	r.flushTicker = time.NewTicker(r.cfg.Capture.FlushInterval)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.worker()

	r.wg.Add(1)
	go r.flushLoop()

	r.log.WithComponent("capture").Info("recorder started")
	return nil
}

// Stop waits for the workers and flushes remaining buffers. The event channel
// should be closed (or the context cancelled) before calling Stop.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	r.wg.Wait()
	r.flushBuffers()
	r.log.WithComponent("capture").Info("recorder stopped")
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case event, ok := <-r.events:
			if !ok {
				return
			}
			r.addEvent(event)
		}
	}
}

func (r *Recorder) addEvent(event models.MarketDataEvent) {
	now := time.Now().UnixMilli()
	key := event.Arg.Channel + "|" + event.Arg.InstID
	records := make([]eventRecord, 0, len(event.Data))
	for _, item := range event.Data {
		records = append(records, eventRecord{
			Channel:      event.Arg.Channel,
			Symbol:       event.Arg.InstID,
			Action:       event.Action,
			Payload:      string(item),
			ReceivedTime: now,
		})
	}

	r.mu.Lock()
	r.buffer[key] = append(r.buffer[key], records...)
	size := len(r.buffer[key])
	r.mu.Unlock()

	if size >= r.cfg.Capture.BatchSize {
		r.flushKey(key)
	}
}

func (r *Recorder) flushKey(key string) {
	r.mu.Lock()
	records, ok := r.buffer[key]
	if !ok || len(records) == 0 {
		r.mu.Unlock()
		return
	}
	delete(r.buffer, key)
	r.mu.Unlock()

	r.writeBatch(key, records)
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flushBuffers()
		}
	}
}

func (r *Recorder) flushBuffers() {
	r.mu.Lock()
	buffers := r.buffer
	r.buffer = make(map[string][]eventRecord)
	r.mu.Unlock()

	for key, records := range buffers {
		if len(records) == 0 {
			continue
		}
		r.writeBatch(key, records)
	}
}

func (r *Recorder) writeBatch(key string, records []eventRecord) {
	start := time.Now()
	data, err := r.createParquet(records)
	if err != nil {
		r.log.WithComponent("capture").WithError(err).Error("create parquet failed")
		return
	}

	parts := strings.SplitN(key, "|", 2)
	filename := r.batchFilename(parts[0], parts[1], start)

	if r.cfg.Capture.Directory != "" {
		if err := r.writeLocal(filename, data); err != nil {
			r.log.WithComponent("capture").WithError(err).Error("local write failed")
		}
	}
	if r.s3Client != nil {
		if err := r.upload(filename, data); err != nil {
			r.log.WithComponent("capture").WithError(err).Error("upload to s3 failed")
		}
	}

	duration := time.Since(start)
	r.log.WithComponent("capture").WithFields(logger.Fields{
		"file":        filename,
		"records":     len(records),
		"bytes":       len(data),
		"duration_ms": float64(duration.Nanoseconds()) / 1e6,
	}).Info("batch written")
	logger.IncrementCaptureWrite(len(data))
}

func (r *Recorder) createParquet(records []eventRecord) ([]byte, error) {
	mw := newMemFileWriter()
	pw, err := writer.NewParquetWriter(mw, new(eventRecord), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return mw.Bytes(), nil
}

func (r *Recorder) writeLocal(filename string, data []byte) error {
	path := filepath.Join(r.cfg.Capture.Directory, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *Recorder) upload(filename string, data []byte) error {
	key := filename
	if prefix := strings.Trim(r.cfg.Capture.S3.Prefix, "/"); prefix != "" {
		key = prefix + "/" + filename
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(r.cfg.Capture.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	ctx := context.WithoutCancel(r.ctx)
	_, err := r.s3Client.PutObject(ctx, input)
	return err
}

func (r *Recorder) batchFilename(channel, symbol string, ts time.Time) string {
	if symbol == "" {
		symbol = "all"
	}
	datePath := fmt.Sprintf("%04d/%02d/%02d", ts.Year(), int(ts.Month()), ts.Day())
	name := fmt.Sprintf("%s_%s_%d_%s.parquet", channel, symbol, ts.UnixNano(), uuid.New().String())
	return filepath.ToSlash(filepath.Join(datePath, name))
}
