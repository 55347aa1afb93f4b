// Package recorder persists the pipeline's output: canonical messages,
// subscription/gift records and retract notices go to buffered JSONL
// streams with time/size rotation, and opaque-frame discovery dumps go to
// plain artifact files. Rotated JSONL files queue for upload.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/john/chatfunnel/internal/canonical"
)

// record is one JSONL line; exactly one of the payload fields is set.
type record struct {
	Message      *canonical.Message           `json:"message,omitempty"`
	Subscription *canonical.SubscriptionEvent `json:"subscription,omitempty"`
	RetractID    string                       `json:"retract_id,omitempty"`
}

// fileWriter manages a single JSONL stream file.
type fileWriter struct {
	file         *os.File
	writer       *bufio.Writer
	createdAt    time.Time
	bytesWritten int64
	buffer       []record
	stream       string
	filename     string
}

// Recorder buffers and writes pipeline output to disk.
type Recorder struct {
	outputDir       string
	bufferSize      int
	rotateMinutes   int
	rotateMegabytes int64
	logger          *slog.Logger

	currentFiles map[string]*fileWriter // key: stream name
	mu           sync.Mutex
}

// New creates a recorder.
func New(outputDir string, bufferSize, rotateMinutes, rotateMegabytes int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		outputDir:       outputDir,
		bufferSize:      bufferSize,
		rotateMinutes:   rotateMinutes,
		rotateMegabytes: int64(rotateMegabytes) * 1024 * 1024,
		logger:          logger.With(slog.String("component", "recorder")),
		currentFiles:    make(map[string]*fileWriter),
	}
}

// Start consumes the output channels until ctx is cancelled. Rotated and
// final files are queued on fileChan for the uploader.
func (r *Recorder) Start(
	ctx context.Context,
	messages <-chan canonical.Message,
	subscriptions <-chan canonical.SubscriptionEvent,
	retractions <-chan string,
	fileChan chan<- string,
) error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case msg := <-messages:
			stream := fmt.Sprintf("%s_%s", msg.Platform, nonEmpty(msg.Channel, "chat"))
			if err := r.append(stream, record{Message: &msg}); err != nil {
				r.logger.Error("record message", slog.Any("err", err))
			}

		case sub := <-subscriptions:
			if err := r.append("subs_events", record{Subscription: &sub}); err != nil {
				r.logger.Error("record subscription", slog.Any("err", err))
			}

		case id := <-retractions:
			if err := r.append("retract_ids", record{RetractID: id}); err != nil {
				r.logger.Error("record retraction", slog.Any("err", err))
			}

		case <-ticker.C:
			r.checkRotation(fileChan)

		case <-ctx.Done():
			r.logger.Info("recorder shutting down, flushing buffers")
			r.flushAll(fileChan)
			return ctx.Err()
		}
	}
}

// RecordArtifact appends an opaque-frame dump to the platform's artifact
// file. Artifacts are forensic; they bypass rotation and upload.
func (r *Recorder) RecordArtifact(platform, artifact string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	name := fmt.Sprintf("%s_frames_%s.dump", platform, time.Now().UTC().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(r.outputDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open artifact file: %w", err)
	}
	defer f.Close()

	header := fmt.Sprintf("-- %s --\n", time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(header + artifact + "\n"); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (r *Recorder) append(stream string, rec record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fw := r.currentFiles[stream]
	if fw == nil {
		var err error
		fw, err = r.createFileWriter(stream)
		if err != nil {
			return fmt.Errorf("create file writer: %w", err)
		}
		r.currentFiles[stream] = fw
	}

	fw.buffer = append(fw.buffer, rec)
	if len(fw.buffer) >= r.bufferSize {
		if err := r.flushFileWriter(fw); err != nil {
			return fmt.Errorf("flush buffer: %w", err)
		}
	}
	return nil
}

func (r *Recorder) createFileWriter(stream string) (*fileWriter, error) {
	timestamp := time.Now().UTC().Format("20060102_1504")
	filename := fmt.Sprintf("%s_%s.jsonl", stream, timestamp)

	file, err := os.Create(filepath.Join(r.outputDir, filename))
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	r.logger.Info("created record file", slog.String("file", filename))

	return &fileWriter{
		file:      file,
		writer:    bufio.NewWriter(file),
		createdAt: time.Now(),
		buffer:    make([]record, 0, r.bufferSize),
		stream:    stream,
		filename:  filename,
	}, nil
}

func (r *Recorder) flushFileWriter(fw *fileWriter) error {
	for _, rec := range fw.buffer {
		data, err := json.Marshal(rec)
		if err != nil {
			r.logger.Error("marshal record", slog.Any("err", err))
			continue
		}
		n, err := fw.writer.Write(data)
		if err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		fw.bytesWritten += int64(n)
		if err := fw.writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
		fw.bytesWritten++
	}
	fw.buffer = fw.buffer[:0]
	return fw.writer.Flush()
}

func (r *Recorder) checkRotation(fileChan chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for stream, fw := range r.currentFiles {
		needsRotation := false
		if time.Since(fw.createdAt).Minutes() >= float64(r.rotateMinutes) {
			needsRotation = true
			r.logger.Info("rotating file (time limit)", slog.String("file", fw.filename))
		}
		if fw.bytesWritten >= r.rotateMegabytes {
			needsRotation = true
			r.logger.Info("rotating file (size limit)", slog.String("file", fw.filename))
		}
		if needsRotation {
			r.rotateFile(stream, fw, fileChan)
		}
	}
}

func (r *Recorder) rotateFile(stream string, fw *fileWriter, fileChan chan<- string) {
	if err := r.closeFileWriter(fw, fileChan); err != nil {
		r.logger.Error("close file writer during rotation", slog.Any("err", err))
	}

	newFw, err := r.createFileWriter(stream)
	if err != nil {
		r.logger.Error("create new file writer", slog.Any("err", err))
		delete(r.currentFiles, stream)
		return
	}
	r.currentFiles[stream] = newFw
}

func (r *Recorder) closeFileWriter(fw *fileWriter, fileChan chan<- string) error {
	if err := r.flushFileWriter(fw); err != nil {
		return err
	}
	if err := fw.file.Close(); err != nil {
		return err
	}

	path := filepath.Join(r.outputDir, fw.filename)
	select {
	case fileChan <- path:
		r.logger.Info("queued file for upload", slog.String("file", fw.filename))
	default:
		r.logger.Warn("upload queue full, file uploads on next scan", slog.String("file", fw.filename))
	}
	return nil
}

func (r *Recorder) flushAll(fileChan chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for stream, fw := range r.currentFiles {
		if err := r.closeFileWriter(fw, fileChan); err != nil {
			r.logger.Error("close file writer", slog.Any("err", err))
		}
		delete(r.currentFiles, stream)
	}
	r.logger.Info("all record files flushed and closed")
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
