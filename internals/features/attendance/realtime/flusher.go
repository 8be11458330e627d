package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"presensiku_backend/internals/observability"
)

// ErrFlushInFlight: sesi sedang di-flush goroutine lain. Snapshot yang
// sedang jalan bisa melewatkan scan yang baru masuk, jadi caller yang
// butuh buffer benar-benar kosong (close_session) harus retry - bukan
// menganggap flush-nya sudah terjadi.
var ErrFlushInFlight = errors.New("realtime: flush already in progress")

// FlushBatch: snapshot satu sesi yang siap dipersist.
type FlushBatch struct {
	SessionID string
	SubjectID uuid.UUID
	Date      string // YYYY-MM-DD (UTC)
	Scans     []*Scan
}

// FlushWriter mempersist satu batch sesi. Implementasi WAJIB idempoten
// per (student, hari): flush ulang setelah crash di antara "write
// sukses" dan "buffer cleared" tidak boleh dobel-hitung.
// Return: jumlah row yang benar-benar baru.
type FlushWriter interface {
	WriteSession(ctx context.Context, batch *FlushBatch) (int, error)
}

// Flusher memindahkan buffer sesi ke storage secara berkala
// (at-least-once; kegagalan dicoba lagi cycle berikutnya).
type Flusher struct {
	store    SessionStore
	writer   FlushWriter
	interval time.Duration

	mu       sync.Mutex
	inflight map[string]bool // single-flight per sesi

	stop chan struct{}
	done chan struct{}

	now func() time.Time
}

func NewFlusher(store SessionStore, writer FlushWriter, interval time.Duration) *Flusher {
	return &Flusher{
		store:    store,
		writer:   writer,
		interval: interval,
		inflight: make(map[string]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start menjalankan loop flush berkala sampai Stop dipanggil.
func (f *Flusher) Start() {
	go func() {
		defer close(f.done)
		t := time.NewTicker(f.interval)
		defer t.Stop()
		for {
			select {
			case <-f.stop:
				return
			case <-t.C:
				f.FlushAll(context.Background())
			}
		}
	}()
	log.Printf("[INFO] Flush engine started (interval %s)", f.interval)
}

// Stop menghentikan ticker lalu melakukan flush terakhir supaya buffer
// tidak hilang saat graceful shutdown.
func (f *Flusher) Stop() {
	close(f.stop)
	<-f.done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f.FlushAll(ctx)
	log.Println("[INFO] Flush engine stopped.")
}

// FlushAll mem-flush semua sesi yang punya isi.
func (f *Flusher) FlushAll(ctx context.Context) {
	var ids []string
	f.store.Range(func(sess *Session) bool {
		if sess.Len() > 0 {
			ids = append(ids, sess.ID)
		}
		return true
	})
	for _, id := range ids {
		if _, err := f.FlushSession(ctx, id); err != nil && !errors.Is(err, ErrFlushInFlight) {
			// Buffer masih utuh - retry di cycle berikutnya.
			log.Printf("[ERROR] flush session %s: %v", id, err)
		}
	}
}

// FlushSession mem-flush satu sesi. Single-flight per session id:
// flush kedua yang konkuren atas buffer yang sama akan dobel-hitung,
// jadi ditolak dengan ErrFlushInFlight.
// Buffer di-clear HANYA setelah write sukses, dan hanya untuk student
// yang ikut dalam snapshot.
func (f *Flusher) FlushSession(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	if f.inflight[sessionID] {
		f.mu.Unlock()
		return 0, ErrFlushInFlight
	}
	f.inflight[sessionID] = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.inflight, sessionID)
		f.mu.Unlock()
	}()

	sess, ok := f.store.Get(sessionID)
	if !ok {
		return 0, nil
	}

	scans := sess.Snapshot()
	if len(scans) == 0 {
		return 0, nil
	}

	batch := &FlushBatch{
		SessionID: sess.ID,
		SubjectID: sess.SubjectID,
		Date:      f.now().UTC().Format("2006-01-02"),
		Scans:     scans,
	}

	inserted, err := f.writer.WriteSession(ctx, batch)
	if err != nil {
		return 0, err
	}

	flushed := make([]string, 0, len(scans))
	for _, sc := range scans {
		flushed = append(flushed, sc.StudentID.String())
	}
	sess.Remove(flushed)

	observability.FlushBatches.Inc()
	observability.FlushRecords.Add(float64(inserted))
	log.Printf("[INFO] Flushed session %s: %d new records (%d buffered scans)",
		sessionID, inserted, len(scans))
	return inserted, nil
}
