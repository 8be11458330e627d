package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeWriter merekam batch dan bisa dipaksa gagal / digantung.
type fakeWriter struct {
	mu      sync.Mutex
	batches []*FlushBatch
	fail    bool
	block   chan struct{} // non-nil: WriteSession menunggu channel ditutup
}

func (w *fakeWriter) WriteSession(_ context.Context, batch *FlushBatch) (int, error) {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return 0, errors.New("storage down")
	}
	w.batches = append(w.batches, batch)
	return len(batch.Scans), nil
}

func newFlushFixture(writer *fakeWriter) (*Flusher, SessionStore, *Session) {
	store := NewMemorySessionStore()
	sess := NewSession("sess-1", uuid.New(), nil)
	store.Put(sess)
	return NewFlusher(store, writer, time.Hour), store, sess
}

func TestFlushSession_PersistsAndClears(t *testing.T) {
	writer := &fakeWriter{}
	f, _, sess := newFlushFixture(writer)

	students := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range students {
		sess.Add(&Scan{StudentID: id, Status: ScanStatusPresent})
	}
	// Duplicate dari salah satu student sebelum flush: tidak menambah entry.
	sess.Add(&Scan{StudentID: students[0], Status: ScanStatusPresent})

	n, err := f.FlushSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 records written, got %d", n)
	}
	if len(writer.batches) != 1 || len(writer.batches[0].Scans) != 3 {
		t.Fatalf("writer should get one batch of 3 scans")
	}
	if sess.Len() != 0 {
		t.Fatalf("buffer should be cleared after successful write, %d left", sess.Len())
	}
}

func TestFlushSession_FailureKeepsBuffer(t *testing.T) {
	writer := &fakeWriter{fail: true}
	f, _, sess := newFlushFixture(writer)
	sess.Add(&Scan{StudentID: uuid.New()})

	if _, err := f.FlushSession(context.Background(), "sess-1"); err == nil {
		t.Fatalf("expected flush error")
	}
	if sess.Len() != 1 {
		t.Fatalf("failed flush must leave buffer intact, %d left", sess.Len())
	}

	// Retry setelah storage pulih.
	writer.mu.Lock()
	writer.fail = false
	writer.mu.Unlock()
	n, err := f.FlushSession(context.Background(), "sess-1")
	if err != nil || n != 1 {
		t.Fatalf("retry should persist 1 record, got n=%d err=%v", n, err)
	}
	if sess.Len() != 0 {
		t.Fatalf("buffer should be cleared after retry")
	}
}

func TestFlushSession_SingleFlight(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	f, _, sess := newFlushFixture(writer)
	sess.Add(&Scan{StudentID: uuid.New()})

	done := make(chan int)
	go func() {
		n, _ := f.FlushSession(context.Background(), "sess-1")
		done <- n
	}()

	// Tunggu flush pertama masuk writer (menggantung di block).
	time.Sleep(20 * time.Millisecond)

	// Flush kedua atas buffer yang sama ditolak single-flight, dan
	// penolakannya harus bisa dibedakan dari flush sukses yang kosong.
	n, err := f.FlushSession(context.Background(), "sess-1")
	if !errors.Is(err, ErrFlushInFlight) {
		t.Fatalf("concurrent flush should report ErrFlushInFlight, got n=%d err=%v", n, err)
	}

	close(writer.block)
	if n := <-done; n != 1 {
		t.Fatalf("first flush should persist 1 record, got %d", n)
	}
	if sess.Len() != 0 {
		t.Fatalf("buffer should be cleared once")
	}
}

func TestFlushSession_ScanDuringFlushSurvives(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	f, _, sess := newFlushFixture(writer)
	early := uuid.New()
	sess.Add(&Scan{StudentID: early})

	done := make(chan struct{})
	go func() {
		_, _ = f.FlushSession(context.Background(), "sess-1")
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	// Scan baru selama flush berjalan.
	late := uuid.New()
	sess.Add(&Scan{StudentID: late})

	close(writer.block)
	<-done

	// Hanya snapshot yang dibuang; scan baru menunggu cycle berikut.
	if sess.Len() != 1 {
		t.Fatalf("late scan should survive the flush, buffer=%d", sess.Len())
	}
	if sess.Snapshot()[0].StudentID != late {
		t.Fatalf("wrong scan survived")
	}
}

func TestFlushSession_CloseRetryAfterInFlight(t *testing.T) {
	writer := &fakeWriter{block: make(chan struct{})}
	f, _, sess := newFlushFixture(writer)
	sess.Add(&Scan{StudentID: uuid.New()})

	done := make(chan struct{})
	go func() {
		_, _ = f.FlushSession(context.Background(), "sess-1")
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	// Scan masuk SETELAH snapshot flush periodik diambil; close yang
	// datang sekarang tidak boleh dianggap sukses dengan buffer kosong.
	late := uuid.New()
	sess.Add(&Scan{StudentID: late})

	if _, err := f.FlushSession(context.Background(), "sess-1"); !errors.Is(err, ErrFlushInFlight) {
		t.Fatalf("close during in-flight flush must be rejected, got %v", err)
	}

	close(writer.block)
	<-done

	// Retry setelah flush pertama selesai mempersist scan yang telat.
	n, err := f.FlushSession(context.Background(), "sess-1")
	if err != nil || n != 1 {
		t.Fatalf("retry should persist the late scan, got n=%d err=%v", n, err)
	}
	if sess.Len() != 0 {
		t.Fatalf("buffer should be empty after retry, %d left", sess.Len())
	}
	if len(writer.batches) != 2 || writer.batches[1].Scans[0].StudentID != late {
		t.Fatalf("second batch should carry the late scan")
	}
}

func TestFlushAll_SkipsEmptySessions(t *testing.T) {
	writer := &fakeWriter{}
	store := NewMemorySessionStore()
	full := NewSession("full", uuid.New(), nil)
	full.Add(&Scan{StudentID: uuid.New()})
	store.Put(full)
	store.Put(NewSession("empty", uuid.New(), nil))

	f := NewFlusher(store, writer, time.Hour)
	f.FlushAll(context.Background())

	if len(writer.batches) != 1 || writer.batches[0].SessionID != "full" {
		t.Fatalf("only the non-empty session should be flushed")
	}
}
