package mirror

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const (
	maxAttempts   = 4
	uploadTimeout = 2 * time.Minute
)

// Uploader is the part of Bucket the mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type Options struct {
	Prefix   string
	Workers  int
	Queue    int
	Logger   logrus.FieldLogger
	Registry prometheus.Registerer
	// Backoff between attempts; attempt starts at 1.
	Backoff func(attempt int) time.Duration
}

// Mirror uploads enqueued files on a fixed pool of workers. Enqueue never
// blocks; a file offered to a full queue is dropped and counted.
type Mirror struct {
	up      Uploader
	opts    Options
	log     logrus.FieldLogger
	jobs    chan string
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool

	uploads *prometheus.CounterVec
}

func New(up Uploader, opts Options) *Mirror {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Queue <= 0 {
		opts.Queue = 256
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 200 * time.Millisecond
		}
	}
	opts.Prefix = strings.Trim(strings.ReplaceAll(opts.Prefix, "\\", "/"), "/")

	m := &Mirror{
		up:   up,
		opts: opts,
		log:  opts.Logger.WithField("component", "mirror"),
		jobs: make(chan string, opts.Queue),
	}
	f := promauto.With(opts.Registry)
	m.uploads = f.NewCounterVec(prometheus.CounterOpts{
		Name: "gridrealm_mirror_files_total",
		Help: "Journal segments handled by the mirror, by result (ok, failed, dropped).",
	}, []string{"result"})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gridrealm_mirror_queue_depth",
		Help: "Journal segments waiting for upload.",
	}, func() float64 { return float64(len(m.jobs)) })

	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.upload(p)
			}
		}()
	}
	return m
}

func (m *Mirror) Enqueue(localPath string) {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.jobs <- localPath:
	default:
		m.uploads.WithLabelValues("dropped").Inc()
		m.log.WithField("file", localPath).Warn("queue full, segment not mirrored")
	}
}

// Close stops accepting files and waits until queued uploads finish.
func (m *Mirror) Close() {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return
	}
	m.closed = true
	close(m.jobs)
	m.closeMu.Unlock()
	m.wg.Wait()
}

func (m *Mirror) key(localPath string) string {
	name := filepath.Base(localPath)
	if m.opts.Prefix == "" {
		return name
	}
	return path.Join(m.opts.Prefix, name)
}

func (m *Mirror) upload(localPath string) {
	key := m.key(localPath)
	log := m.log.WithFields(logrus.Fields{"file": localPath, "key": key})
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			m.uploads.WithLabelValues("ok").Inc()
			log.Debug("mirrored")
			return
		}
		if attempt < maxAttempts {
			time.Sleep(m.opts.Backoff(attempt))
		}
	}
	m.uploads.WithLabelValues("failed").Inc()
	log.WithError(err).Error("mirror upload failed")
}
