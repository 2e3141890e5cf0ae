package staging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/model"
)

var epoch = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory BlobStore.
type memStore struct {
	containers map[string]map[string][]byte
	uploadErr  error
	signed     []signCall
}

type signCall struct {
	container, blob string
	start, expiry   time.Time
}

func newMemStore() *memStore {
	return &memStore{containers: map[string]map[string][]byte{}}
}

func (m *memStore) CreateContainer(_ context.Context, c string) (model.CreateOutcome, error) {
	if _, ok := m.containers[c]; ok {
		return model.AlreadyExisted, nil
	}
	m.containers[c] = map[string][]byte{}
	return model.Created, nil
}

func (m *memStore) DeleteContainer(_ context.Context, c string) (model.DeleteOutcome, error) {
	if _, ok := m.containers[c]; !ok {
		return model.NotFound, nil
	}
	delete(m.containers, c)
	return model.Deleted, nil
}

func (m *memStore) UploadFile(_ context.Context, c, blob, path string) (int64, error) {
	if m.uploadErr != nil {
		return 0, m.uploadErr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	m.containers[c][blob] = data
	return int64(len(data)), nil
}

func (m *memStore) SignedURL(c, blob string, start, expiry time.Time) (string, error) {
	m.signed = append(m.signed, signCall{c, blob, start, expiry})
	return "https://acct.blob.core.windows.net/" + c + "/" + blob + "?sig=x", nil
}

func testStager(store BlobStore) *Stager {
	return NewStager(store, slog.New(slog.NewTextHandler(io.Discard, nil)), WithNow(func() time.Time { return epoch }))
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStage(t *testing.T) {
	store := newMemStore()
	s := testStager(store)
	path := writeInput(t, "simple_task.py", "print('hi')\n")

	ref, err := s.Stage(context.Background(), "inputs", path, "", time.Hour)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if ref.BlobName != "simple_task.py" || ref.Container != "inputs" || ref.LocalPath != path {
		t.Errorf("ref = %+v", ref)
	}
	if ref.Size != 12 {
		t.Errorf("size = %d, want 12", ref.Size)
	}
	if !ref.Expiry.Equal(epoch.Add(time.Hour)) {
		t.Errorf("expiry = %v, want now+1h", ref.Expiry)
	}
	if len(store.signed) != 1 || !store.signed[0].start.Equal(epoch) {
		t.Errorf("signed = %+v, want one call starting now", store.signed)
	}
	if string(store.containers["inputs"]["simple_task.py"]) != "print('hi')\n" {
		t.Error("blob content not uploaded")
	}

	rf := ref.ResourceFile()
	if rf.HTTPURL != ref.URL || rf.FilePath != "simple_task.py" {
		t.Errorf("ResourceFile = %+v", rf)
	}
}

func TestStage_TwiceIntoSameContainer(t *testing.T) {
	store := newMemStore()
	s := testStager(store)
	path := writeInput(t, "a.txt", "a")

	for i := 0; i < 2; i++ {
		if _, err := s.Stage(context.Background(), "shared", path, "a.txt", time.Minute); err != nil {
			t.Fatalf("Stage #%d: %v", i+1, err)
		}
	}
	outcome, err := s.EnsureContainer(context.Background(), "shared")
	if err != nil || outcome != model.AlreadyExisted {
		t.Errorf("EnsureContainer = %s, %v; want AlreadyExisted", outcome, err)
	}
}

func TestStage_Errors(t *testing.T) {
	store := newMemStore()
	s := testStager(store)
	path := writeInput(t, "a.txt", "a")

	if _, err := s.Stage(context.Background(), "c", path, "", 0); err == nil {
		t.Error("expected error for zero expiry")
	}

	boom := errors.New("network down")
	store.uploadErr = boom
	if _, err := s.Stage(context.Background(), "c", path, "", time.Hour); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapping upload error", err)
	}
}

func TestRemove(t *testing.T) {
	store := newMemStore()
	s := testStager(store)
	ctx := context.Background()

	if _, err := s.EnsureContainer(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if got, err := s.Remove(ctx, "c"); err != nil || got != model.Deleted {
		t.Errorf("Remove = %s, %v", got, err)
	}
	if got, err := s.Remove(ctx, "c"); err != nil || got != model.NotFound {
		t.Errorf("second Remove = %s, %v; want NotFound", got, err)
	}
}

func TestCheckExpiry(t *testing.T) {
	ref := Reference{Container: "c", BlobName: "b", Expiry: epoch.Add(30 * time.Minute)}

	if err := CheckExpiry(epoch.Add(25*time.Minute), ref); err != nil {
		t.Errorf("CheckExpiry(before expiry) = %v", err)
	}
	if err := CheckExpiry(epoch.Add(30*time.Minute), ref); err != nil {
		t.Errorf("CheckExpiry(at expiry) = %v", err)
	}
	err := CheckExpiry(epoch.Add(40*time.Minute), ref)
	if !errors.Is(err, ErrExpiresTooSoon) {
		t.Errorf("CheckExpiry(after expiry) = %v, want ErrExpiresTooSoon", err)
	}
}

func TestAzureBlobStore_SignedURL(t *testing.T) {
	store, err := NewAzureBlobStore(AzureConfig{
		AccountName: "acct",
		AccountKey:  "a2V5a2V5a2V5",
		AccountURL:  "https://acct.blob.core.windows.net",
	})
	if err != nil {
		t.Fatalf("NewAzureBlobStore: %v", err)
	}

	raw, err := store.SignedURL("inputs", "simple_task.py", epoch, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "acct.blob.core.windows.net" || u.Path != "/inputs/simple_task.py" {
		t.Errorf("url = %s", raw)
	}
	q := u.Query()
	if q.Get("sp") != "r" {
		t.Errorf("sp = %q, want r", q.Get("sp"))
	}
	if q.Get("st") != "2026-10-19T12:00:00Z" || q.Get("se") != "2026-10-19T13:00:00Z" {
		t.Errorf("window = %s..%s", q.Get("st"), q.Get("se"))
	}
	if q.Get("sig") == "" || q.Get("sr") != "b" {
		t.Errorf("signature params missing: %s", raw)
	}
}

func TestNewAzureBlobStore_BadKey(t *testing.T) {
	if _, err := NewAzureBlobStore(AzureConfig{AccountName: "a", AccountKey: "%%%", AccountURL: "https://a.blob.core.windows.net"}); err == nil {
		t.Error("expected error for undecodable key")
	}
}
