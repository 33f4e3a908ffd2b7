package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/matzehuels/cardpress/pkg/errors"
)

func TestNewMarksSkipped(t *testing.T) {
	r := New("run-1", "wedding", 3)
	ok, failed, skipped := r.Counts()
	if ok != 0 || failed != 0 || skipped != 3 {
		t.Errorf("Counts = %d, %d, %d", ok, failed, skipped)
	}
	for i, g := range r.Results {
		if g.Index != i {
			t.Errorf("result %d has index %d", i, g.Index)
		}
	}
}

func TestFail(t *testing.T) {
	r := New("run-1", "wedding", 2)
	r.Results[0] = GuestResult{Index: 0, Name: "a.pdf", Status: StatusOK}
	r.Fail(1, "b.pdf", errors.New(errors.ErrCodeEncoding, "jpeg failed"), time.Second)

	ok, failed, skipped := r.Counts()
	if ok != 1 || failed != 1 || skipped != 0 {
		t.Errorf("Counts = %d, %d, %d", ok, failed, skipped)
	}
	f := r.Failures()
	if len(f) != 1 || f[0].ErrorCode != "ENCODING" || f[0].Name != "b.pdf" {
		t.Errorf("Failures = %+v", f)
	}

	r.Fail(0, "a.pdf", fmt.Errorf("plain"), 0)
	if r.Results[0].ErrorCode != "" {
		t.Errorf("uncoded error got code %q", r.Results[0].ErrorCode)
	}
}

func TestJSONFile(t *testing.T) {
	s := JSONFile{Dir: t.TempDir()}
	r := New("3f1c", "wedding", 1)
	r.Results[0] = GuestResult{Index: 0, Name: "Priya.pdf", Status: StatusOK}

	if err := s.Save(context.Background(), r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(s.Path("3f1c"))
	if err != nil {
		t.Fatal(err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.RunID != "3f1c" || back.Results[0].Name != "Priya.pdf" {
		t.Errorf("saved report = %+v", back)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestMongoSinkRequiresURI(t *testing.T) {
	if _, err := NewMongoSink(context.Background(), MongoOptions{}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestMongoSink(t *testing.T) {
	uri := os.Getenv("CARDPRESS_TEST_MONGO")
	if uri == "" {
		t.Skip("CARDPRESS_TEST_MONGO not set")
	}
	ctx := context.Background()
	s, err := NewMongoSink(ctx, MongoOptions{URI: uri, Database: "cardpress_test"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)

	r := New(fmt.Sprintf("test-%d", time.Now().UnixNano()), "wedding", 1)
	r.Results[0] = GuestResult{Index: 0, Name: "a.pdf", Status: StatusOK}
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := s.Load(ctx, r.RunID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Results[0].Name != "a.pdf" {
		t.Errorf("loaded = %+v", back)
	}
	if _, err := s.Load(ctx, "missing-run"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Load missing = %v", err)
	}
}
